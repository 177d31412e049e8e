// Package store is the GORM-backed persistence layer. It converts between
// the persisted Session rows and the in-memory projections the scheduling
// package operates on, and maps gorm errors to the domain error types.
package store

import (
	"context"
	"errors"
	"time"

	"classboard_go/models"
	"classboard_go/scheduling"

	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// toSessionInfo denormalizes a session row into the flat projection the
// conflict detector and layout engine consume. Cancelled sessions never
// reach this point.
func toSessionInfo(s models.Session) scheduling.SessionInfo {
	info := scheduling.SessionInfo{
		ID:         s.ID,
		ClassID:    s.ClassID,
		ClassName:  s.Class.Name,
		CourseName: s.Class.CourseName,
		RoomName:   s.RoomName,
		Start:      s.StartAt,
		End:        s.EndAt,
	}
	if s.TeacherID != nil {
		info.TeacherID = *s.TeacherID
		if s.Teacher != nil {
			info.TeacherName = s.Teacher.DisplayName()
		}
	}
	return info
}

// ListSessionsInRange returns non-cancelled sessions overlapping
// [from, to), ordered by start time.
func (st *Store) ListSessionsInRange(ctx context.Context, from, to time.Time) ([]scheduling.SessionInfo, error) {
	var rows []models.Session
	err := st.db.WithContext(ctx).
		Preload("Class").
		Preload("Teacher").
		Where("status <> ?", "cancelled").
		Where("start_at < ? AND end_at > ?", to, from).
		Order("start_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]scheduling.SessionInfo, 0, len(rows))
	for _, s := range rows {
		out = append(out, toSessionInfo(s))
	}
	return out, nil
}

func (st *Store) GetSessionModel(ctx context.Context, id uint) (*models.Session, error) {
	var s models.Session
	err := st.db.WithContext(ctx).Preload("Class").Preload("Teacher").First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &scheduling.NotFoundError{Resource: "session", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (st *Store) CreateSession(ctx context.Context, s *models.Session) error {
	if !s.EndAt.After(s.StartAt) {
		return &scheduling.ValidationError{Field: "end_at", Reason: "must be after start_at"}
	}
	return st.db.WithContext(ctx).Create(s).Error
}

func (st *Store) DeleteSession(ctx context.Context, id uint) error {
	res := st.db.WithContext(ctx).Delete(&models.Session{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &scheduling.NotFoundError{Resource: "session", ID: id}
	}
	return nil
}

// UpdateSession applies a reschedule move and returns the refreshed row as
// a SessionInfo. It satisfies scheduling.MoveStore.
func (st *Store) UpdateSession(ctx context.Context, id uint, move scheduling.SessionMove) (scheduling.SessionInfo, error) {
	if !move.End.After(move.Start) {
		return scheduling.SessionInfo{}, &scheduling.ValidationError{Field: "end_at", Reason: "must be after start_at"}
	}
	updates := map[string]interface{}{
		"start_at": move.Start,
		"end_at":   move.End,
	}
	if move.RoomName != nil {
		updates["room_name"] = *move.RoomName
	}
	res := st.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return scheduling.SessionInfo{}, res.Error
	}
	if res.RowsAffected == 0 {
		return scheduling.SessionInfo{}, &scheduling.NotFoundError{Resource: "session", ID: id}
	}
	return st.GetSession(ctx, id)
}

// GetSession satisfies scheduling.MoveStore.
func (st *Store) GetSession(ctx context.Context, id uint) (scheduling.SessionInfo, error) {
	s, err := st.GetSessionModel(ctx, id)
	if err != nil {
		return scheduling.SessionInfo{}, err
	}
	return toSessionInfo(*s), nil
}

// PlannedExists reports whether a rule already has an instance on a date.
func (st *Store) PlannedExists(ctx context.Context, scheduleID uint, date time.Time) (bool, error) {
	var count int64
	err := st.db.WithContext(ctx).Model(&models.Session{}).
		Where("recurring_schedule_id = ? AND covered_date = ?", scheduleID, date).
		Count(&count).Error
	return count > 0, err
}

// UpsertPlanned persists one expanded recurrence instance. The unique
// (recurring_schedule_id, covered_date) index makes re-expansion of an
// overlapping range a no-op for dates that already exist.
func (st *Store) UpsertPlanned(ctx context.Context, p scheduling.PlannedSession) (created bool, err error) {
	covered := p.Date
	row := models.Session{
		ClassID:             p.ClassID,
		RoomName:            p.RoomName,
		StartAt:             p.Start,
		EndAt:               p.End,
		Status:              "scheduled",
		RecurringScheduleID: &p.RecurringScheduleID,
		CoveredDate:         &covered,
	}
	res := st.db.WithContext(ctx).
		Where("recurring_schedule_id = ? AND covered_date = ?", p.RecurringScheduleID, covered).
		FirstOrCreate(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (st *Store) CreateRecurringSchedule(ctx context.Context, r *models.RecurringSchedule) error {
	return st.db.WithContext(ctx).Create(r).Error
}

func (st *Store) GetRecurringSchedule(ctx context.Context, id uint) (*models.RecurringSchedule, error) {
	var r models.RecurringSchedule
	err := st.db.WithContext(ctx).Preload("Class").First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &scheduling.NotFoundError{Resource: "recurring_schedule", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (st *Store) ListRecurringSchedules(ctx context.Context) ([]models.RecurringSchedule, error) {
	var rows []models.RecurringSchedule
	err := st.db.WithContext(ctx).Preload("Class").Order("weekday ASC, start_time ASC").Find(&rows).Error
	return rows, err
}

func (st *Store) ListRecurringSchedulesByClass(ctx context.Context, classID uint) ([]models.RecurringSchedule, error) {
	var rows []models.RecurringSchedule
	err := st.db.WithContext(ctx).Preload("Class").
		Where("class_id = ?", classID).
		Order("weekday ASC, start_time ASC").
		Find(&rows).Error
	return rows, err
}

func (st *Store) UpdateRecurringSchedule(ctx context.Context, id uint, updates map[string]interface{}) (*models.RecurringSchedule, error) {
	res := st.db.WithContext(ctx).Model(&models.RecurringSchedule{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &scheduling.NotFoundError{Resource: "recurring_schedule", ID: id}
	}
	return st.GetRecurringSchedule(ctx, id)
}

// DeleteRecurringSchedule removes the rule only. Sessions already expanded
// from it are kept; their recurring_schedule_id is detached so the unique
// instance index cannot collide with a future rule reusing the id.
func (st *Store) DeleteRecurringSchedule(ctx context.Context, id uint) error {
	return st.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.RecurringSchedule{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &scheduling.NotFoundError{Resource: "recurring_schedule", ID: id}
		}
		return tx.Model(&models.Session{}).
			Where("recurring_schedule_id = ?", id).
			Updates(map[string]interface{}{"recurring_schedule_id": nil, "covered_date": nil}).Error
	})
}

// Rooms returns the active room roster in its fixed scan order.
func (st *Store) Rooms(ctx context.Context) ([]models.Room, error) {
	var rows []models.Room
	err := st.db.WithContext(ctx).Where("active = ?", true).Order("sort_order ASC, name ASC").Find(&rows).Error
	return rows, err
}

// RoomNames is the roster projection the suggestion scan consumes.
func (st *Store) RoomNames(ctx context.Context) ([]string, error) {
	rooms, err := st.Rooms(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rooms))
	for _, r := range rooms {
		names = append(names, r.Name)
	}
	return names, nil
}

func (st *Store) Teachers(ctx context.Context) ([]models.Teacher, error) {
	var rows []models.Teacher
	err := st.db.WithContext(ctx).Where("active = ?", true).Order("id ASC").Find(&rows).Error
	return rows, err
}

func (st *Store) Classes(ctx context.Context) ([]models.Class, error) {
	var rows []models.Class
	err := st.db.WithContext(ctx).Where("active = ?", true).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (st *Store) GetClass(ctx context.Context, id uint) (*models.Class, error) {
	var c models.Class
	err := st.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &scheduling.NotFoundError{Resource: "class", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkCompletedBefore flips still-scheduled sessions whose end has passed
// to completed. Used by the periodic sweep.
func (st *Store) MarkCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := st.db.WithContext(ctx).Model(&models.Session{}).
		Where("status = ? AND end_at < ?", "scheduled", cutoff).
		Update("status", "completed")
	return res.RowsAffected, res.Error
}
