package scheduling

import (
	"sort"
	"time"
)

// DetectorConfig bounds the suggestion scan. Zero values fall back to the
// defaults below.
type DetectorConfig struct {
	// SlotMinutes is the increment used when scanning forward for an
	// alternative time window.
	SlotMinutes int
	// ScanHorizon bounds how far past the candidate's original start the
	// time scan may walk.
	ScanHorizon time.Duration
	// MaxTimeSuggestions caps time alternatives.
	MaxTimeSuggestions int
	// MaxSuggestions caps the overall suggestion list regardless of the
	// roster size.
	MaxSuggestions int
}

const (
	defaultSlotMinutes        = 30
	defaultScanHorizon        = 8 * time.Hour
	defaultMaxTimeSuggestions = 3
	defaultMaxSuggestions     = 5
)

func (c DetectorConfig) withDefaults() DetectorConfig {
	if c.SlotMinutes <= 0 {
		c.SlotMinutes = defaultSlotMinutes
	}
	if c.ScanHorizon <= 0 {
		c.ScanHorizon = defaultScanHorizon
	}
	if c.MaxTimeSuggestions <= 0 {
		c.MaxTimeSuggestions = defaultMaxTimeSuggestions
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = defaultMaxSuggestions
	}
	return c
}

// Detect checks the candidate window against the given sessions and returns
// the conflicts split by kind plus conflict-free alternatives. existing
// should hold the sessions overlapping the candidate's day(s); rooms is the
// roster scanned for room alternatives, in roster order.
//
// Two sessions conflict on "room" when both name the same non-empty room
// and their windows overlap; "teacher" conflicts work the same way on the
// assigned teacher id. A session with neither a room nor a teacher never
// participates. Detection is advisory: a clear result here does not lock
// anything, and two operators racing can still double-book at the store.
func Detect(cand Candidate, existing []SessionInfo, rooms []string, cfg DetectorConfig) (ConflictResult, error) {
	if err := validateWindow(cand.Start, cand.End); err != nil {
		return ConflictResult{}, err
	}
	cfg = cfg.withDefaults()

	result := ConflictResult{
		RoomConflicts:    collectConflicts(cand, existing, matchRoom),
		TeacherConflicts: collectConflicts(cand, existing, matchTeacher),
		Suggestions:      []Suggestion{},
	}
	result.HasConflicts = len(result.RoomConflicts) > 0 || len(result.TeacherConflicts) > 0
	if !result.HasConflicts {
		return result, nil
	}

	result.Suggestions = buildSuggestions(cand, existing, rooms, cfg)
	return result, nil
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return &ValidationError{Field: "window", Reason: "start and end are required"}
	}
	if !end.After(start) {
		return &ValidationError{Field: "window", Reason: "end must be after start"}
	}
	return nil
}

type matchFunc func(cand Candidate, s SessionInfo) bool

func matchRoom(cand Candidate, s SessionInfo) bool {
	return cand.RoomName != "" && s.RoomName != "" && cand.RoomName == s.RoomName
}

func matchTeacher(cand Candidate, s SessionInfo) bool {
	return cand.TeacherID != 0 && s.TeacherID != 0 && cand.TeacherID == s.TeacherID
}

func collectConflicts(cand Candidate, existing []SessionInfo, match matchFunc) []ConflictingSession {
	window := SessionInfo{Start: cand.Start, End: cand.End}
	out := make([]ConflictingSession, 0)
	for _, s := range existing {
		if s.ID != 0 && s.ID == cand.ExcludeSessionID {
			continue
		}
		if !match(cand, s) || !window.Overlaps(s) {
			continue
		}
		out = append(out, ConflictingSession{
			SessionID:   s.ID,
			ClassName:   s.ClassName,
			CourseName:  s.CourseName,
			TeacherName: s.TeacherName,
			RoomName:    s.RoomName,
			Start:       s.Start,
			End:         s.End,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// isClear reports whether the candidate window has zero conflicts of either
// kind. Suggestions are verified with this exact predicate so that nothing
// the detector proposes would fail its own re-check.
func isClear(cand Candidate, existing []SessionInfo) bool {
	return len(collectConflicts(cand, existing, matchRoom)) == 0 &&
		len(collectConflicts(cand, existing, matchTeacher)) == 0
}

func buildSuggestions(cand Candidate, existing []SessionInfo, rooms []string, cfg DetectorConfig) []Suggestion {
	suggestions := make([]Suggestion, 0, cfg.MaxSuggestions)
	duration := cand.End.Sub(cand.Start)
	step := time.Duration(cfg.SlotMinutes) * time.Minute

	// Alternative times: walk forward from the original start in slot
	// increments, same duration, first hits win.
	taken := 0
	for offset := step; offset <= cfg.ScanHorizon; offset += step {
		if taken >= cfg.MaxTimeSuggestions || len(suggestions) >= cfg.MaxSuggestions {
			break
		}
		shifted := Candidate{
			RoomName:         cand.RoomName,
			TeacherID:        cand.TeacherID,
			Start:            cand.Start.Add(offset),
			End:              cand.Start.Add(offset).Add(duration),
			ExcludeSessionID: cand.ExcludeSessionID,
		}
		if !isClear(shifted, existing) {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Kind:  SuggestTime,
			Value: shifted.Start.Format("15:04"),
			Start: shifted.Start,
			End:   shifted.End,
		})
		taken++
	}

	// Alternative rooms: roster order, candidate window unchanged. A room
	// swap only helps when the teacher side is already clear, which isClear
	// enforces.
	for _, room := range rooms {
		if len(suggestions) >= cfg.MaxSuggestions {
			break
		}
		if room == "" || room == cand.RoomName {
			continue
		}
		swapped := Candidate{
			RoomName:         room,
			TeacherID:        cand.TeacherID,
			Start:            cand.Start,
			End:              cand.End,
			ExcludeSessionID: cand.ExcludeSessionID,
		}
		if !isClear(swapped, existing) {
			continue
		}
		suggestions = append(suggestions, Suggestion{Kind: SuggestRoom, Value: room})
	}

	return suggestions
}
