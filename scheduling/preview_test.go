package scheduling

import (
	"testing"
	"time"
)

func day(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, bkk) }

func TestInvalidDropSlotsWindow(t *testing.T) {
	// Obstacle 10:00-11:00 in the drag's room; drag duration 60 min.
	// Blocked drop starts are the open window (9:00, 11:00): on a 30-min
	// grid open 8:00-20:00 that is 9:30, 10:00, 10:30. A drop at 9:00 ends
	// exactly at 10:00 and only touches, so slot 2 stays valid; a drop at
	// 11:00 starts where the obstacle ends, so slot 6 stays valid too.
	drag := DragContext{SessionID: 1, RoomName: "A1", Duration: time.Hour}
	others := []SessionInfo{
		{ID: 2, RoomName: "A1", Start: at(2, 10, 0), End: at(2, 11, 0)},
	}
	cfg := PreviewConfig{SlotMinutes: 30, DayStartMinute: 8 * 60, DayEndMinute: 20 * 60}
	got := InvalidDropSlots(drag, others, []time.Time{day(2)}, cfg)

	want := []int{3, 4, 5}
	slots := got["2026-03-02"]
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, slots)
		}
	}
}

func TestInvalidDropSlotsOffGridObstacle(t *testing.T) {
	// Obstacle 10:15-10:45, drag 30 min: the blocked window is (9:45,
	// 10:45). The only grid starts strictly inside are 10:00 and 10:30; a
	// drop at 9:30 spans 9:30-10:00 and clears the obstacle entirely.
	drag := DragContext{SessionID: 1, TeacherID: 4, Duration: 30 * time.Minute}
	others := []SessionInfo{
		{ID: 2, TeacherID: 4, Start: at(2, 10, 15), End: at(2, 10, 45)},
	}
	cfg := PreviewConfig{SlotMinutes: 30, DayStartMinute: 8 * 60, DayEndMinute: 20 * 60}
	slots := InvalidDropSlots(drag, others, []time.Time{day(2)}, cfg)["2026-03-02"]

	want := []int{4, 5} // 10:00, 10:30
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, slots)
		}
	}
}

func TestInvalidDropSlotsTouchingDropsAllowed(t *testing.T) {
	// Back-to-back placement around an obstacle must stay valid: with an
	// obstacle at [10:00, 11:00) and a 60-min drag, dropping at exactly
	// 9:00 or exactly 11:00 produces touching sessions, never a conflict.
	drag := DragContext{SessionID: 1, RoomName: "A1", Duration: time.Hour}
	others := []SessionInfo{
		{ID: 2, RoomName: "A1", Start: at(2, 10, 0), End: at(2, 11, 0)},
	}
	cfg := PreviewConfig{SlotMinutes: 30, DayStartMinute: 8 * 60, DayEndMinute: 20 * 60}
	blocked := make(map[int]struct{})
	for _, i := range InvalidDropSlots(drag, others, []time.Time{day(2)}, cfg)["2026-03-02"] {
		blocked[i] = struct{}{}
	}

	if _, ok := blocked[2]; ok {
		t.Fatal("drop at 9:00 ends where the obstacle starts and must be allowed")
	}
	if _, ok := blocked[6]; ok {
		t.Fatal("drop at 11:00 starts where the obstacle ends and must be allowed")
	}
	for _, i := range []int{3, 4, 5} {
		if _, ok := blocked[i]; !ok {
			t.Fatalf("slot %d lies strictly inside the blocked window and must be marked", i)
		}
	}
}

func TestInvalidDropSlotsUnconstrained(t *testing.T) {
	drag := DragContext{SessionID: 1, Duration: time.Hour}
	others := []SessionInfo{
		{ID: 2, RoomName: "A1", TeacherID: 4, Start: at(2, 10, 0), End: at(2, 11, 0)},
	}
	got := InvalidDropSlots(drag, others, []time.Time{day(2), day(3)}, PreviewConfig{})
	for d, slots := range got {
		if len(slots) != 0 {
			t.Fatalf("unconstrained drag must block nothing, day %s got %v", d, slots)
		}
	}
}

func TestInvalidDropSlotsIgnoresSelfAndOtherDays(t *testing.T) {
	drag := DragContext{SessionID: 9, RoomName: "A1", Duration: time.Hour}
	others := []SessionInfo{
		{ID: 9, RoomName: "A1", Start: at(2, 10, 0), End: at(2, 11, 0)}, // the dragged session itself
		{ID: 2, RoomName: "A1", Start: at(3, 10, 0), End: at(3, 11, 0)}, // next day
	}
	cfg := PreviewConfig{SlotMinutes: 30, DayStartMinute: 8 * 60, DayEndMinute: 20 * 60}
	got := InvalidDropSlots(drag, others, []time.Time{day(2), day(3)}, cfg)
	if len(got["2026-03-02"]) != 0 {
		t.Fatalf("own session must not block day 2: %v", got["2026-03-02"])
	}
	if len(got["2026-03-03"]) == 0 {
		t.Fatalf("obstacle on day 3 must block slots there")
	}
}

func TestDragMachineLifecycle(t *testing.T) {
	cfg := PreviewConfig{SlotMinutes: 30, DayStartMinute: 8 * 60, DayEndMinute: 20 * 60}
	m := NewDragMachine(cfg)
	if m.State() != DragIdle {
		t.Fatalf("new machine should be idle")
	}

	others := []SessionInfo{
		{ID: 2, RoomName: "A1", Start: at(2, 10, 0), End: at(2, 11, 0)},
	}
	m.Press(DragContext{SessionID: 1, RoomName: "A1", Duration: time.Hour}, others, []time.Time{day(2)})
	if m.State() != DragActive {
		t.Fatalf("press should activate the drag, state=%d", m.State())
	}

	// Hover over a blocked slot (10:00) then a clear one (13:00).
	frame, ok := m.Move(at(2, 10, 0))
	if !ok || !frame.Blocked {
		t.Fatalf("10:00 should be blocked: ok=%v frame=%+v", ok, frame)
	}
	if m.State() != DragPreviewing {
		t.Fatalf("move should switch to previewing")
	}
	frame, ok = m.Move(at(2, 13, 0))
	if !ok || frame.Blocked {
		t.Fatalf("13:00 should be clear: ok=%v frame=%+v", ok, frame)
	}
	if frame.End.Sub(frame.Start) != time.Hour {
		t.Fatalf("preview frame lost the drag duration: %+v", frame)
	}

	commit, ok := m.Release(at(2, 13, 0))
	if !ok {
		t.Fatal("release after moving should emit a commit")
	}
	if commit.SessionID != 1 || !commit.Start.Equal(at(2, 13, 0)) || !commit.End.Equal(at(2, 14, 0)) {
		t.Fatalf("unexpected commit: %+v", commit)
	}
	if m.State() != DragIdle {
		t.Fatalf("release should reset to idle")
	}
}

func TestDragMachineReleaseWithoutMoveCancels(t *testing.T) {
	m := NewDragMachine(PreviewConfig{})
	m.Press(DragContext{SessionID: 1, RoomName: "A1", Duration: time.Hour}, nil, []time.Time{day(2)})
	if _, ok := m.Release(at(2, 9, 0)); ok {
		t.Fatal("release without a move must cancel, not commit")
	}
	if m.State() != DragIdle {
		t.Fatalf("machine should be idle after cancel")
	}
	if _, ok := m.Move(at(2, 9, 0)); ok {
		t.Fatal("move while idle must be ignored")
	}
}
