package controllers

import (
	"strconv"
	"time"

	"classboard_go/middleware"
	"classboard_go/models"
	"classboard_go/scheduling"
	"classboard_go/services/notifications"
	"classboard_go/services/websocket"
	"classboard_go/store"
	"classboard_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// RecurringController manages the weekly recurrence rules and their
// expansion into concrete sessions.
type RecurringController struct {
	store *store.Store
	hub   *websocket.Hub
}

func NewRecurringController(st *store.Store, hub *websocket.Hub) *RecurringController {
	return &RecurringController{store: st, hub: hub}
}

type recurringRequest struct {
	ClassID   uint   `json:"class_id"`
	Weekday   int    `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	RoomName  string `json:"room_name"`
}

func (req recurringRequest) validate() error {
	if req.ClassID == 0 {
		return &scheduling.ValidationError{Field: "class_id", Reason: "is required"}
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		return &scheduling.ValidationError{Field: "weekday", Reason: "must be between 0 (Sunday) and 6 (Saturday)"}
	}
	startMin, err := utils.MinuteOfDay(req.StartTime)
	if err != nil {
		return &scheduling.ValidationError{Field: "start_time", Reason: err.Error()}
	}
	endMin, err := utils.MinuteOfDay(req.EndTime)
	if err != nil {
		return &scheduling.ValidationError{Field: "end_time", Reason: err.Error()}
	}
	if endMin <= startMin {
		return &scheduling.ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	return nil
}

// GetRecurringSchedules lists all rules.
func (rc *RecurringController) GetRecurringSchedules(c *fiber.Ctx) error {
	rules, err := rc.store.ListRecurringSchedules(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"recurring_schedules": rules})
}

// GetClassRecurring lists the rules of one class.
func (rc *RecurringController) GetClassRecurring(c *fiber.Ctx) error {
	classID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid class ID"})
	}
	if _, err := rc.store.GetClass(c.Context(), uint(classID)); err != nil {
		return err
	}
	rules, err := rc.store.ListRecurringSchedulesByClass(c.Context(), uint(classID))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"recurring_schedules": rules})
}

// CreateClassRecurring creates a rule under /api/classes/:id/recurring;
// the class id comes from the path.
func (rc *RecurringController) CreateClassRecurring(c *fiber.Ctx) error {
	classID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid class ID"})
	}

	var req recurringRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.ClassID = uint(classID)
	return rc.createFromRequest(c, req)
}

// GetRecurringSchedule returns one rule by id.
func (rc *RecurringController) GetRecurringSchedule(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid schedule ID"})
	}
	rule, err := rc.store.GetRecurringSchedule(c.Context(), uint(id))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"recurring_schedule": rule})
}

// CreateRecurringSchedule handles POST /api/recurring.
func (rc *RecurringController) CreateRecurringSchedule(c *fiber.Ctx) error {
	var req recurringRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	return rc.createFromRequest(c, req)
}

func (rc *RecurringController) createFromRequest(c *fiber.Ctx, req recurringRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	if _, err := rc.store.GetClass(c.Context(), req.ClassID); err != nil {
		return err
	}

	startMin, _ := utils.MinuteOfDay(req.StartTime)
	endMin, _ := utils.MinuteOfDay(req.EndTime)
	rule := models.RecurringSchedule{
		ClassID:   req.ClassID,
		Weekday:   req.Weekday,
		StartTime: utils.FormatMinute(startMin),
		EndTime:   utils.FormatMinute(endMin),
		RoomName:  req.RoomName,
	}
	if err := rc.store.CreateRecurringSchedule(c.Context(), &rule); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"recurring_schedule": rule})
}

// UpdateRecurringSchedule handles PATCH /api/recurring/:id. Changes never
// rewrite already-expanded sessions; only future expansions see them.
func (rc *RecurringController) UpdateRecurringSchedule(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid schedule ID"})
	}

	var req struct {
		Weekday   *int    `json:"weekday"`
		StartTime *string `json:"start_time"`
		EndTime   *string `json:"end_time"`
		RoomName  *string `json:"room_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	current, err := rc.store.GetRecurringSchedule(c.Context(), uint(id))
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if req.Weekday != nil {
		if *req.Weekday < 0 || *req.Weekday > 6 {
			return &scheduling.ValidationError{Field: "weekday", Reason: "must be between 0 (Sunday) and 6 (Saturday)"}
		}
		updates["weekday"] = *req.Weekday
	}
	startRaw, endRaw := current.StartTime, current.EndTime
	if req.StartTime != nil {
		startRaw = *req.StartTime
	}
	if req.EndTime != nil {
		endRaw = *req.EndTime
	}
	if req.StartTime != nil || req.EndTime != nil {
		startMin, err := utils.MinuteOfDay(startRaw)
		if err != nil {
			return &scheduling.ValidationError{Field: "start_time", Reason: err.Error()}
		}
		endMin, err := utils.MinuteOfDay(endRaw)
		if err != nil {
			return &scheduling.ValidationError{Field: "end_time", Reason: err.Error()}
		}
		if endMin <= startMin {
			return &scheduling.ValidationError{Field: "end_time", Reason: "must be after start_time"}
		}
		updates["start_time"] = utils.FormatMinute(startMin)
		updates["end_time"] = utils.FormatMinute(endMin)
	}
	if req.RoomName != nil {
		updates["room_name"] = *req.RoomName
	}
	if len(updates) == 0 {
		return c.JSON(fiber.Map{"recurring_schedule": current})
	}

	rule, err := rc.store.UpdateRecurringSchedule(c.Context(), uint(id), updates)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"recurring_schedule": rule})
}

// DeleteRecurringSchedule handles DELETE /api/recurring/:id. Sessions the
// rule already produced survive it.
func (rc *RecurringController) DeleteRecurringSchedule(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid schedule ID"})
	}
	if err := rc.store.DeleteRecurringSchedule(c.Context(), uint(id)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Recurring schedule deleted"})
}

// weeklyRule converts a stored rule into the expander's value form. The
// stored weekday is a plain int, numbered like time.Weekday (0 = Sunday).
func weeklyRule(rule models.RecurringSchedule, startMin, endMin int) scheduling.WeeklyRule {
	return scheduling.WeeklyRule{
		RecurringScheduleID: rule.ID,
		ClassID:             rule.ClassID,
		Weekday:             time.Weekday(rule.Weekday),
		StartMinute:         startMin,
		EndMinute:           endMin,
		RoomName:            rule.RoomName,
	}
}

type expandRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// expandedInstance is the per-date outcome of one expansion run.
type expandedInstance struct {
	Date        string `json:"date"`
	Status      string `json:"status"` // created, skipped, conflict
	ConflictIDs []uint `json:"conflict_ids,omitempty"`
}

// Expand handles POST /api/recurring/:id/expand {start_date, end_date} and
// materializes the rule over a closed date range. Every instance is
// reported: dates that already hold an instance come back skipped, dates
// whose slot collides with existing sessions come back as conflicts and
// are persisted only when force=true.
func (rc *RecurringController) Expand(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid schedule ID"})
	}

	var req expandRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	from, err := parseDay(req.StartDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start_date is required (2006-01-02)"})
	}
	to, err := parseDay(req.EndDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "end_date is required (2006-01-02)"})
	}

	rule, err := rc.store.GetRecurringSchedule(c.Context(), uint(id))
	if err != nil {
		return err
	}
	startMin, err := utils.MinuteOfDay(rule.StartTime)
	if err != nil {
		return &scheduling.ValidationError{Field: "start_time", Reason: err.Error()}
	}
	endMin, err := utils.MinuteOfDay(rule.EndTime)
	if err != nil {
		return &scheduling.ValidationError{Field: "end_time", Reason: err.Error()}
	}

	planned, err := scheduling.ExpandWeekly(weeklyRule(*rule, startMin, endMin), from, to)
	if err != nil {
		return err
	}

	force := c.Query("force") == "true"
	created, skipped := 0, 0
	instances := make([]expandedInstance, 0, len(planned))
	for _, p := range planned {
		inst := expandedInstance{Date: p.Date.Format("2006-01-02")}

		// An existing instance would collide with its own slot, so the
		// idempotency check has to run before the conflict check.
		exists, err := rc.store.PlannedExists(c.Context(), p.RecurringScheduleID, p.Date)
		if err != nil {
			return err
		}
		if exists {
			inst.Status = "skipped"
			skipped++
			instances = append(instances, inst)
			continue
		}

		result, verified, err := runConflictCheck(c.Context(), rc.store, scheduling.Candidate{
			RoomName: p.RoomName,
			Start:    p.Start,
			End:      p.End,
		})
		if err != nil {
			return err
		}
		if verified && result.HasConflicts {
			for _, cs := range result.RoomConflicts {
				inst.ConflictIDs = append(inst.ConflictIDs, cs.SessionID)
			}
			if !force {
				inst.Status = "conflict"
				instances = append(instances, inst)
				continue
			}
		}

		ok, err := rc.store.UpsertPlanned(c.Context(), p)
		if err != nil {
			return err
		}
		if ok {
			inst.Status = "created"
			created++
		} else {
			inst.Status = "skipped"
			skipped++
		}
		instances = append(instances, inst)
	}

	if created > 0 && rc.hub != nil {
		rc.hub.BroadcastScheduleEvent("schedule.expanded", rule.ID, fiber.Map{
			"created": created,
			"skipped": skipped,
		})
	}
	rc.notifyExpansion(c, rule.ID, created, skipped)

	return c.JSON(fiber.Map{
		"recurring_schedule_id": rule.ID,
		"planned":               len(planned),
		"created":               created,
		"skipped":               skipped,
		"instances":             instances,
	})
}

func (rc *RecurringController) notifyExpansion(c *fiber.Ctx, ruleID uint, created, skipped int) {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return
	}
	svc := notifications.NewService()
	if err := svc.EnqueueOrCreate([]uint{user.ID}, notifications.ExpansionNotice(ruleID, created, skipped)); err != nil {
		logrus.WithError(err).Warn("Expansion notice delivery failed")
	}
}
