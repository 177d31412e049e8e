package scheduling

import (
	"testing"
	"time"
)

var bkk = time.FixedZone("ICT", 7*3600)

func at(day, hour, min int) time.Time {
	return time.Date(2026, 3, day, hour, min, 0, 0, bkk)
}

func TestDetectRoomOverlapProperty(t *testing.T) {
	tests := []struct {
		name        string
		candStart   time.Time
		candEnd     time.Time
		otherStart  time.Time
		otherEnd    time.Time
		wantClashes bool
	}{
		{"full overlap", at(2, 9, 0), at(2, 10, 0), at(2, 9, 0), at(2, 10, 0), true},
		{"partial overlap", at(2, 9, 0), at(2, 10, 0), at(2, 9, 30), at(2, 10, 30), true},
		{"contained", at(2, 9, 0), at(2, 12, 0), at(2, 10, 0), at(2, 11, 0), true},
		{"touching end to start", at(2, 9, 0), at(2, 10, 0), at(2, 10, 0), at(2, 11, 0), false},
		{"touching start to end", at(2, 10, 0), at(2, 11, 0), at(2, 9, 0), at(2, 10, 0), false},
		{"disjoint", at(2, 9, 0), at(2, 10, 0), at(2, 13, 0), at(2, 14, 0), false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			existing := []SessionInfo{{ID: 7, RoomName: "A1", Start: tc.otherStart, End: tc.otherEnd}}
			cand := Candidate{RoomName: "A1", Start: tc.candStart, End: tc.candEnd}
			res, err := Detect(cand, existing, nil, DetectorConfig{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.HasConflicts != tc.wantClashes {
				t.Fatalf("expected HasConflicts=%v, got %v", tc.wantClashes, res.HasConflicts)
			}
			if tc.wantClashes && len(res.RoomConflicts) != 1 {
				t.Fatalf("expected 1 room conflict, got %d", len(res.RoomConflicts))
			}
		})
	}
}

func TestDetectUnconstrainedSessionNeverConflicts(t *testing.T) {
	// Neither a room nor a teacher: the session must not show up in any
	// result, no matter how the windows line up.
	existing := []SessionInfo{
		{ID: 1, Start: at(2, 9, 0), End: at(2, 10, 0)},
	}
	cand := Candidate{RoomName: "A1", TeacherID: 5, Start: at(2, 9, 0), End: at(2, 10, 0)}
	res, err := Detect(cand, existing, nil, DetectorConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.HasConflicts {
		t.Fatalf("session without room or teacher must never conflict: %+v", res)
	}

	// And the reverse: an unconstrained candidate against a busy grid.
	busy := []SessionInfo{
		{ID: 2, RoomName: "A1", TeacherID: 5, Start: at(2, 9, 0), End: at(2, 10, 0)},
	}
	res, err = Detect(Candidate{Start: at(2, 9, 0), End: at(2, 10, 0)}, busy, nil, DetectorConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.HasConflicts {
		t.Fatalf("candidate without room or teacher must never conflict: %+v", res)
	}
}

func TestDetectSplitsByKindAndOrders(t *testing.T) {
	existing := []SessionInfo{
		{ID: 3, RoomName: "A1", TeacherID: 9, Start: at(2, 9, 30), End: at(2, 10, 30)},
		{ID: 1, RoomName: "A1", Start: at(2, 8, 30), End: at(2, 9, 30)},
		{ID: 2, TeacherID: 9, Start: at(2, 9, 0), End: at(2, 9, 45)},
	}
	cand := Candidate{RoomName: "A1", TeacherID: 9, Start: at(2, 9, 0), End: at(2, 10, 0)}
	res, err := Detect(cand, existing, nil, DetectorConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(res.RoomConflicts); got != 2 {
		t.Fatalf("expected 2 room conflicts, got %d", got)
	}
	if got := len(res.TeacherConflicts); got != 2 {
		t.Fatalf("expected 2 teacher conflicts, got %d", got)
	}
	// Session 3 shares both the room and the teacher: it must appear in
	// both lists, and each list must be ordered by ascending start.
	if res.RoomConflicts[0].SessionID != 1 || res.RoomConflicts[1].SessionID != 3 {
		t.Fatalf("room conflicts out of order: %+v", res.RoomConflicts)
	}
	if res.TeacherConflicts[0].SessionID != 2 || res.TeacherConflicts[1].SessionID != 3 {
		t.Fatalf("teacher conflicts out of order: %+v", res.TeacherConflicts)
	}
}

func TestDetectExcludesOwnSession(t *testing.T) {
	existing := []SessionInfo{
		{ID: 42, RoomName: "A1", Start: at(2, 9, 0), End: at(2, 10, 0)},
	}
	cand := Candidate{RoomName: "A1", Start: at(2, 9, 0), End: at(2, 10, 0), ExcludeSessionID: 42}
	res, err := Detect(cand, existing, nil, DetectorConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.HasConflicts {
		t.Fatalf("a session must not conflict with itself during an edit")
	}
}

func TestDetectValidation(t *testing.T) {
	_, err := Detect(Candidate{Start: at(2, 10, 0), End: at(2, 9, 0)}, nil, nil, DetectorConfig{})
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	_, err = Detect(Candidate{}, nil, nil, DetectorConfig{})
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError for zero window, got %v", err)
	}
}

func TestDetectClearWindowYieldsNoSuggestions(t *testing.T) {
	res, err := Detect(Candidate{RoomName: "A1", Start: at(2, 9, 0), End: at(2, 10, 0)}, nil, []string{"A1", "B2"}, DetectorConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.HasConflicts || len(res.Suggestions) != 0 {
		t.Fatalf("clear window must have no conflicts and no suggestions: %+v", res)
	}
}

func TestDetectSuggestionsRecheckClear(t *testing.T) {
	// Room A1 is blocked 9:00-11:00, room B2 is blocked all day, C3 free.
	existing := []SessionInfo{
		{ID: 1, RoomName: "A1", Start: at(2, 9, 0), End: at(2, 11, 0)},
		{ID: 2, RoomName: "B2", Start: at(2, 8, 0), End: at(2, 20, 0)},
	}
	rooms := []string{"A1", "B2", "C3"}
	cand := Candidate{RoomName: "A1", Start: at(2, 9, 0), End: at(2, 10, 0)}
	res, err := Detect(cand, existing, rooms, DetectorConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.HasConflicts {
		t.Fatal("expected a conflict")
	}
	if len(res.Suggestions) == 0 {
		t.Fatal("expected suggestions")
	}

	sawTime, sawRoom := false, false
	for _, s := range res.Suggestions {
		recheck := cand
		switch s.Kind {
		case SuggestTime:
			sawTime = true
			recheck.Start, recheck.End = s.Start, s.End
			if got := s.End.Sub(s.Start); got != time.Hour {
				t.Fatalf("time suggestion changed duration: %v", got)
			}
		case SuggestRoom:
			sawRoom = true
			recheck.RoomName = s.Value
			if s.Value == "B2" {
				t.Fatal("suggested a fully booked room")
			}
		}
		verdict, err := Detect(recheck, existing, rooms, DetectorConfig{})
		if err != nil {
			t.Fatalf("re-check error: %v", err)
		}
		if verdict.HasConflicts {
			t.Fatalf("suggestion %+v re-checks as conflicting", s)
		}
	}
	if !sawTime || !sawRoom {
		t.Fatalf("expected both suggestion kinds, got %+v", res.Suggestions)
	}
}

func TestDetectSuggestionCap(t *testing.T) {
	existing := []SessionInfo{
		{ID: 1, RoomName: "A1", Start: at(2, 9, 0), End: at(2, 9, 30)},
	}
	rooms := []string{"R1", "R2", "R3", "R4", "R5", "R6", "R7", "R8"}
	cand := Candidate{RoomName: "A1", Start: at(2, 9, 0), End: at(2, 9, 30)}
	res, err := Detect(cand, existing, rooms, DetectorConfig{MaxSuggestions: 4, MaxTimeSuggestions: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Suggestions) > 4 {
		t.Fatalf("suggestion cap ignored: %d returned", len(res.Suggestions))
	}
}
