package controllers

import (
	"time"

	"classboard_go/config"
	"classboard_go/scheduling"
	"classboard_go/store"

	"github.com/gofiber/fiber/v2"
)

// CalendarController serves the day/week board projections and the
// drag-preview slot computation.
type CalendarController struct {
	store *store.Store
}

func NewCalendarController(st *store.Store) *CalendarController {
	return &CalendarController{store: st}
}

func layoutConfig() scheduling.LayoutConfig {
	return scheduling.LayoutConfig{
		DayStartMinute:  config.AppConfig.DayOpenMinute,
		PixelsPerMinute: config.AppConfig.PixelsPerMinute,
		MinHeight:       config.AppConfig.MinSessionHeight,
	}
}

func previewConfig() scheduling.PreviewConfig {
	return scheduling.PreviewConfig{
		SlotMinutes:    config.AppConfig.SlotMinutes,
		DayStartMinute: config.AppConfig.DayOpenMinute,
		DayEndMinute:   config.AppConfig.DayCloseMinute,
	}
}

// parseDay reads a "2006-01-02" query value as local midnight.
func parseDay(raw string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", raw, time.Local)
}

type dayView struct {
	Date     string                               `json:"date"`
	Sessions []scheduling.SessionInfo             `json:"sessions"`
	Layout   map[uint]scheduling.LayoutAssignment `json:"layout"`
}

func (cc *CalendarController) buildDayView(c *fiber.Ctx, day time.Time) (dayView, error) {
	sessions, err := cc.store.ListSessionsInRange(c.Context(), day, day.AddDate(0, 0, 1))
	if err != nil {
		return dayView{}, err
	}
	return dayView{
		Date:     day.Format("2006-01-02"),
		Sessions: sessions,
		Layout:   scheduling.LayoutDay(sessions, layoutConfig()),
	}, nil
}

// GetDay handles GET /api/calendar/day?date=2006-01-02.
func (cc *CalendarController) GetDay(c *fiber.Ctx) error {
	day, err := parseDay(c.Query("date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date is required (2006-01-02)"})
	}
	view, err := cc.buildDayView(c, day)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// GetWeek handles GET /api/calendar/week?start=2006-01-02 and returns
// seven day views from the given start.
func (cc *CalendarController) GetWeek(c *fiber.Ctx) error {
	start, err := parseDay(c.Query("start"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start is required (2006-01-02)"})
	}

	days := make([]dayView, 0, 7)
	for i := 0; i < 7; i++ {
		view, err := cc.buildDayView(c, start.AddDate(0, 0, i))
		if err != nil {
			return err
		}
		days = append(days, view)
	}
	return c.JSON(fiber.Map{"days": days})
}

type previewRequest struct {
	SessionID       uint     `json:"session_id"`
	RoomName        string   `json:"room_name"`
	TeacherID       uint     `json:"teacher_id"`
	DurationMinutes int      `json:"duration_minutes"`
	Days            []string `json:"days"` // "2006-01-02"
}

// Preview handles POST /api/calendar/preview: for a drag described by
// room/teacher/duration it returns, per requested day, the slot indices
// where a drop would collide with an existing session.
func (cc *CalendarController) Preview(c *fiber.Ctx) error {
	var req previewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.DurationMinutes <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "duration_minutes must be positive"})
	}
	if len(req.Days) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "days is required"})
	}

	days := make([]time.Time, 0, len(req.Days))
	for _, raw := range req.Days {
		day, err := parseDay(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid day: " + raw})
		}
		days = append(days, day)
	}

	first, last := days[0], days[0]
	for _, d := range days[1:] {
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	others, err := cc.store.ListSessionsInRange(c.Context(), first, last.AddDate(0, 0, 1))
	if err != nil {
		return err
	}

	drag := scheduling.DragContext{
		SessionID: req.SessionID,
		RoomName:  req.RoomName,
		TeacherID: req.TeacherID,
		Duration:  time.Duration(req.DurationMinutes) * time.Minute,
	}
	invalid := scheduling.InvalidDropSlots(drag, others, days, previewConfig())

	return c.JSON(fiber.Map{
		"slot_minutes":  config.AppConfig.SlotMinutes,
		"day_start":     config.AppConfig.DayOpenMinute,
		"day_end":       config.AppConfig.DayCloseMinute,
		"invalid_slots": invalid,
	})
}
