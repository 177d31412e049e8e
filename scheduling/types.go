// Package scheduling holds the session-scheduling core: interval conflict
// detection, recurring-rule expansion, calendar layout, live drag previews,
// debounced conflict checking and optimistic rescheduling. Everything in
// conflict.go, expand.go, layout.go and preview.go is pure and reentrant;
// only the Coordinator and Rescheduler touch I/O, and only through the
// interfaces they are handed.
package scheduling

import "time"

// SessionInfo is a transient, read-only copy of a persisted session. The
// scheduling core never owns session state; these are rebuilt from the store
// for every computation. An empty RoomName means no room is booked and a
// zero TeacherID means no teacher is assigned.
type SessionInfo struct {
	ID          uint      `json:"id"`
	ClassID     uint      `json:"class_id"`
	ClassName   string    `json:"class_name"`
	CourseName  string    `json:"course_name"`
	TeacherID   uint      `json:"teacher_id"`
	TeacherName string    `json:"teacher_name"`
	RoomName    string    `json:"room_name"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// Overlaps reports whether the two half-open intervals [s.Start, s.End) and
// [o.Start, o.End) intersect. Sessions that merely touch do not overlap.
func (s SessionInfo) Overlaps(o SessionInfo) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Candidate is a window being tested for conflicts: a new session, an edit
// of an existing one (ExcludeSessionID set), or a tentative drop target.
type Candidate struct {
	RoomName         string    `json:"room_name"`
	TeacherID        uint      `json:"teacher_id"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	ExcludeSessionID uint      `json:"exclude_session_id"`
}

// ConflictingSession is the reporting projection of a session that clashes
// with a candidate. Denormalized for display, never persisted.
type ConflictingSession struct {
	SessionID   uint      `json:"session_id"`
	ClassName   string    `json:"class_name"`
	CourseName  string    `json:"course_name"`
	TeacherName string    `json:"teacher_name"`
	RoomName    string    `json:"room_name"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// SuggestionKind discriminates the two alternative kinds the detector emits.
type SuggestionKind string

const (
	SuggestTime SuggestionKind = "time"
	SuggestRoom SuggestionKind = "room"
)

// Suggestion is a conflict-free alternative for a rejected candidate. Time
// suggestions carry the shifted window; room suggestions carry only the
// room name in Value.
type Suggestion struct {
	Kind  SuggestionKind `json:"kind"`
	Value string         `json:"value"`
	Start time.Time      `json:"start,omitempty"`
	End   time.Time      `json:"end,omitempty"`
}

// ConflictResult is recomputed per check and never stored. Both conflict
// lists are ordered by ascending start time; a session may appear in both.
type ConflictResult struct {
	HasConflicts     bool                 `json:"has_conflicts"`
	RoomConflicts    []ConflictingSession `json:"room_conflicts"`
	TeacherConflicts []ConflictingSession `json:"teacher_conflicts"`
	Suggestions      []Suggestion         `json:"suggestions"`
}

// LayoutAssignment places one session inside a day grid. Column and
// TotalColumns drive horizontal placement, Top and Height are pixel offsets
// derived from the day window. Recomputed from the full session set on
// every render.
type LayoutAssignment struct {
	SessionID    uint    `json:"session_id"`
	Column       int     `json:"column"`
	TotalColumns int     `json:"total_columns"`
	Top          float64 `json:"top"`
	Height       float64 `json:"height"`
}

// PlannedSession is one concrete instance produced by expanding a weekly
// recurrence rule. The covered Date identifies the instance for idempotent
// upserts at the persistence layer.
type PlannedSession struct {
	RecurringScheduleID uint      `json:"recurring_schedule_id"`
	ClassID             uint      `json:"class_id"`
	Date                time.Time `json:"date"`
	Start               time.Time `json:"start"`
	End                 time.Time `json:"end"`
	RoomName            string    `json:"room_name"`
}
