package models

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	s, ok := value.([]byte)
	if !ok {
		return nil
	}
	*j = append((*j)[0:0], s...)
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// Room is part of the read-only roster consumed by suggestions. SortOrder
// fixes the roster order the detector scans in.
type Room struct {
	BaseModel
	Name      string `json:"name" gorm:"size:100;not null;uniqueIndex"`
	Capacity  int    `json:"capacity"`
	SortOrder int    `json:"sort_order" gorm:"default:1"`
	Active    bool   `json:"active" gorm:"default:true"`
}

// Teacher roster entry.
type Teacher struct {
	BaseModel
	FirstName string `json:"first_name" gorm:"size:100"`
	LastName  string `json:"last_name" gorm:"size:100"`
	Nickname  string `json:"nickname" gorm:"size:100"`
	Active    bool   `json:"active" gorm:"default:true"`
}

// DisplayName prefers the nickname over the full name.
func (t Teacher) DisplayName() string {
	if t.Nickname != "" {
		return t.Nickname
	}
	return t.FirstName + " " + t.LastName
}

// Class is the owning unit of sessions; the course name is denormalized for
// conflict reporting.
type Class struct {
	BaseModel
	Name       string `json:"name" gorm:"size:255;not null"`
	CourseName string `json:"course_name" gorm:"size:255"`
	Active     bool   `json:"active" gorm:"default:true"`
}

// Session is a concrete teaching session on the shared timeline. Start and
// end are tz-aware instants; end > start is enforced before any write. The
// recurring-schedule id plus covered date makes re-expansion idempotent:
// the pair is unique, so expanding an overlapping range upserts instead of
// duplicating.
type Session struct {
	BaseModel
	ClassID             uint       `json:"class_id" gorm:"not null;index"`
	TeacherID           *uint      `json:"teacher_id" gorm:"index"`
	RoomName            string     `json:"room_name" gorm:"size:100;index"`
	StartAt             time.Time  `json:"start_at" gorm:"not null;index"`
	EndAt               time.Time  `json:"end_at" gorm:"not null"`
	Status              string     `json:"status" gorm:"size:50;default:'scheduled';type:enum('scheduled','completed','cancelled')"` // scheduled, completed, cancelled
	RecurringScheduleID *uint      `json:"recurring_schedule_id" gorm:"uniqueIndex:idx_schedule_instance"`
	CoveredDate         *time.Time `json:"covered_date" gorm:"uniqueIndex:idx_schedule_instance"`
	Notes               string     `json:"notes" gorm:"type:text"`

	// Relationships
	Class   Class    `json:"class,omitempty" gorm:"foreignKey:ClassID"`
	Teacher *Teacher `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
}

// RecurringSchedule is a weekly recurrence rule: weekday plus start/end
// time-of-day, optionally pinned to a room. Deleting a rule never removes
// sessions it already produced.
type RecurringSchedule struct {
	BaseModel
	ClassID   uint   `json:"class_id" gorm:"not null;index"`
	Weekday   int    `json:"weekday" gorm:"not null"`           // 0 = Sunday .. 6 = Saturday
	StartTime string `json:"start_time" gorm:"size:8;not null"` // "15:04"
	EndTime   string `json:"end_time" gorm:"size:8;not null"`
	RoomName  string `json:"room_name" gorm:"size:100"`

	// Relationships
	Class Class `json:"class,omitempty" gorm:"foreignKey:ClassID"`
}

// User is the minimal identity consumed by the JWT middleware. Tokens are
// issued by the external auth service; this table only backs role checks.
type User struct {
	BaseModel
	Username string `json:"username" gorm:"size:100;not null;uniqueIndex"`
	Role     string `json:"role" gorm:"size:50;not null;default:'viewer';type:enum('admin','scheduler','teacher','viewer')"` // admin, scheduler, teacher, viewer
	Status   string `json:"status" gorm:"size:50;not null;default:'active';type:enum('active','inactive')"`                  // active, inactive
}

// Notification persists the override/conflict notices the sink emits; the
// WebSocket hub delivers the live copy.
type Notification struct {
	BaseModel
	UserID  uint       `json:"user_id" gorm:"not null;index"`
	Title   string     `json:"title" gorm:"size:255;not null"`
	Message string     `json:"message" gorm:"type:text;not null"`
	Type    string     `json:"type" gorm:"size:50;not null;type:enum('info','warning','error','success')"` // info, warning, error, success
	Read    bool       `json:"read" gorm:"default:false"`
	ReadAt  *time.Time `json:"read_at"`
	Data    JSON       `json:"data" gorm:"type:json"`
}
