package scheduling

import (
	"sort"
	"time"
)

// DragContext describes the session being repositioned: its identity
// constraints and its duration, which stays fixed while dragging.
type DragContext struct {
	SessionID uint
	RoomName  string
	TeacherID uint
	Duration  time.Duration
}

// PreviewConfig bounds the drop grid of one day.
type PreviewConfig struct {
	SlotMinutes    int
	DayStartMinute int
	DayEndMinute   int
}

func (c PreviewConfig) withDefaults() PreviewConfig {
	if c.SlotMinutes <= 0 {
		c.SlotMinutes = defaultSlotMinutes
	}
	if c.DayEndMinute <= c.DayStartMinute {
		c.DayStartMinute = 0
		c.DayEndMinute = 24 * 60
	}
	return c
}

// InvalidDropSlots computes, per visible day, the slot indices where
// dropping the dragged session would conflict with another session sharing
// its room or teacher. For an obstacle [s, e) and drag duration D the
// blocked drop-start window is the open interval (s-D, e): a drop starting
// exactly at s-D ends exactly at s, and touching sessions do not overlap.
// The marking is exact on the grid; a slot start is marked iff it lies
// strictly inside the window. A drag with no room and no teacher blocks
// nothing.
//
// The result is advisory highlighting only: the commit still runs Detect
// against the exact drop target.
func InvalidDropSlots(drag DragContext, others []SessionInfo, days []time.Time, cfg PreviewConfig) map[string][]int {
	cfg = cfg.withDefaults()
	out := make(map[string][]int, len(days))
	for _, day := range days {
		out[day.Format("2006-01-02")] = []int{}
	}
	if drag.RoomName == "" && drag.TeacherID == 0 {
		return out
	}

	obstacles := make([]SessionInfo, 0, len(others))
	for _, s := range others {
		if s.ID == drag.SessionID {
			continue
		}
		sharesRoom := drag.RoomName != "" && s.RoomName == drag.RoomName
		sharesTeacher := drag.TeacherID != 0 && s.TeacherID == drag.TeacherID
		if sharesRoom || sharesTeacher {
			obstacles = append(obstacles, s)
		}
	}

	slot := time.Duration(cfg.SlotMinutes) * time.Minute
	slotsPerDay := (cfg.DayEndMinute - cfg.DayStartMinute) / cfg.SlotMinutes
	for _, day := range days {
		key := day.Format("2006-01-02")
		gridStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()).
			Add(time.Duration(cfg.DayStartMinute) * time.Minute)
		marked := make(map[int]struct{})
		for _, obs := range obstacles {
			// lo is the largest grid point at or before s-D and hi the
			// smallest at or after e, so on grid points the strict bounds
			// below reduce to s-D < t < e.
			lo := snapDown(obs.Start.Add(-drag.Duration), gridStart, slot)
			hi := snapUp(obs.End, gridStart, slot)
			for i := 0; i < slotsPerDay; i++ {
				t := gridStart.Add(time.Duration(i) * slot)
				if t.After(lo) && t.Before(hi) {
					marked[i] = struct{}{}
				}
			}
		}
		indices := make([]int, 0, len(marked))
		for i := range marked {
			indices = append(indices, i)
		}
		sort.Ints(indices)
		out[key] = indices
	}
	return out
}

func snapDown(t, gridStart time.Time, slot time.Duration) time.Time {
	d := t.Sub(gridStart)
	snapped := (d / slot) * slot
	if d < 0 && d%slot != 0 {
		snapped -= slot
	}
	return gridStart.Add(snapped)
}

func snapUp(t, gridStart time.Time, slot time.Duration) time.Time {
	d := t.Sub(gridStart)
	snapped := (d / slot) * slot
	if d > 0 && d%slot != 0 {
		snapped += slot
	}
	return gridStart.Add(snapped)
}

// DragState is the explicit repositioning state machine of the weekly grid.
type DragState int

const (
	DragIdle DragState = iota
	DragActive
	DragPreviewing
)

// PreviewFrame is emitted on every pointer move while dragging.
type PreviewFrame struct {
	SessionID uint
	Start     time.Time
	End       time.Time
	Blocked   bool
}

// CommitRequest is emitted on release over a slot; the caller submits it
// through the conflict check and the reschedule controller.
type CommitRequest struct {
	SessionID uint
	Start     time.Time
	End       time.Time
}

// DragMachine drives press/move/release interaction without any pointer
// device coupling: feed it synthetic events and read the emitted values.
// Not safe for concurrent use; drive it from the UI event loop.
type DragMachine struct {
	state   DragState
	drag    DragContext
	invalid map[string]map[int]struct{}
	cfg     PreviewConfig
}

// NewDragMachine returns an idle machine with the given grid config.
func NewDragMachine(cfg PreviewConfig) *DragMachine {
	return &DragMachine{state: DragIdle, cfg: cfg.withDefaults()}
}

// State returns the current machine state.
func (m *DragMachine) State() DragState { return m.state }

// Press starts a drag: the invalid-slot set across the visible days is
// precomputed once here so every subsequent Move is a map lookup, not a
// remote call.
func (m *DragMachine) Press(drag DragContext, others []SessionInfo, days []time.Time) {
	if m.state != DragIdle {
		return
	}
	m.drag = drag
	m.invalid = make(map[string]map[int]struct{}, len(days))
	for day, indices := range InvalidDropSlots(drag, others, days, m.cfg) {
		set := make(map[int]struct{}, len(indices))
		for _, i := range indices {
			set[i] = struct{}{}
		}
		m.invalid[day] = set
	}
	m.state = DragActive
}

// Move hovers the drag over a slot start and returns the preview frame for
// the renderer. Moves while idle return false.
func (m *DragMachine) Move(slotStart time.Time) (PreviewFrame, bool) {
	if m.state != DragActive && m.state != DragPreviewing {
		return PreviewFrame{}, false
	}
	m.state = DragPreviewing
	day := slotStart.Format("2006-01-02")
	gridStart := time.Date(slotStart.Year(), slotStart.Month(), slotStart.Day(), 0, 0, 0, 0, slotStart.Location()).
		Add(time.Duration(m.cfg.DayStartMinute) * time.Minute)
	idx := int(slotStart.Sub(gridStart) / (time.Duration(m.cfg.SlotMinutes) * time.Minute))
	_, blocked := m.invalid[day][idx]
	return PreviewFrame{
		SessionID: m.drag.SessionID,
		Start:     slotStart,
		End:       slotStart.Add(m.drag.Duration),
		Blocked:   blocked,
	}, true
}

// Release ends the drag. A release after at least one move emits the commit
// request for the last hovered position; releasing without moving cancels.
func (m *DragMachine) Release(slotStart time.Time) (CommitRequest, bool) {
	committed := m.state == DragPreviewing
	m.state = DragIdle
	m.invalid = nil
	if !committed {
		return CommitRequest{}, false
	}
	return CommitRequest{
		SessionID: m.drag.SessionID,
		Start:     slotStart,
		End:       slotStart.Add(m.drag.Duration),
	}, true
}
