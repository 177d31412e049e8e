package controllers

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"classboard_go/config"
	"classboard_go/database"
	"classboard_go/middleware"
	"classboard_go/models"
	"classboard_go/scheduling"
	"classboard_go/services"
	"classboard_go/services/notifications"
	"classboard_go/services/websocket"
	"classboard_go/store"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ScheduleController owns the conflict check and the session CRUD surface.
type ScheduleController struct {
	store  *store.Store
	hub    *websocket.Hub
	checks *scheduling.Coordinator
	mover  *services.SessionMover
}

// NewScheduleController wires the controller's long-lived collaborators: a
// conflict-check coordinator over the store and the optimistic session
// mover shared by all move requests.
func NewScheduleController(st *store.Store, hub *websocket.Hub) *ScheduleController {
	var b services.Broadcaster
	if hub != nil {
		b = hub
	}
	return &ScheduleController{
		store:  st,
		hub:    hub,
		checks: scheduling.NewCoordinator(conflictCheckFunc(st), config.AppConfig.DebounceWindow),
		mover:  services.NewSessionMover(st, b),
	}
}

func detectorConfig() scheduling.DetectorConfig {
	return scheduling.DetectorConfig{
		SlotMinutes:        config.AppConfig.SlotMinutes,
		ScanHorizon:        config.AppConfig.ScanHorizon,
		MaxTimeSuggestions: config.AppConfig.MaxTimeSuggestions,
		MaxSuggestions:     config.AppConfig.MaxSuggestions,
	}
}

type conflictCheckRequest struct {
	ClassID          uint      `json:"class_id"`
	RoomName         string    `json:"room_name"`
	TeacherID        uint      `json:"teacher_id"`
	StartAt          time.Time `json:"start_at"`
	EndAt            time.Time `json:"end_at"`
	ExcludeSessionID uint      `json:"exclude_session_id"`
}

func (req conflictCheckRequest) candidate() scheduling.Candidate {
	return scheduling.Candidate{
		RoomName:         req.RoomName,
		TeacherID:        req.TeacherID,
		Start:            req.StartAt,
		End:              req.EndAt,
		ExcludeSessionID: req.ExcludeSessionID,
	}
}

// conflictCheckFunc builds one detector round trip over the stored
// timeline; it is the CheckFunc the coordinator fires.
func conflictCheckFunc(st *store.Store) scheduling.CheckFunc {
	return func(ctx context.Context, cand scheduling.Candidate) (scheduling.ConflictResult, error) {
		// Scan a window generously wider than the candidate so time
		// suggestions can verify against neighbors.
		from := cand.Start.Add(-config.AppConfig.ScanHorizon)
		to := cand.End.Add(config.AppConfig.ScanHorizon)

		existing, err := st.ListSessionsInRange(ctx, from, to)
		if err != nil {
			return scheduling.ConflictResult{}, fmt.Errorf("load sessions: %w", err)
		}
		rooms, err := st.RoomNames(ctx)
		if err != nil {
			logrus.WithError(err).Warn("Conflict check could not load room roster")
			rooms = nil
		}
		return scheduling.Detect(cand, existing, rooms, detectorConfig())
	}
}

// settleCheck maps a check outcome onto the degrade contract: validation
// errors surface to the caller, backend failures come back unverified
// instead of blocking the user.
func settleCheck(result scheduling.ConflictResult, err error) (scheduling.ConflictResult, bool, error) {
	if err != nil {
		if scheduling.IsValidation(err) {
			return scheduling.ConflictResult{}, false, err
		}
		logrus.WithError(err).Warn("Conflict check could not be verified")
		return scheduling.ConflictResult{}, false, nil
	}
	return result, true, nil
}

// runConflictCheck runs the detector directly, outside the coordinator; the
// expansion loop uses this because its checks are sequential, not bursty.
func runConflictCheck(ctx context.Context, st *store.Store, cand scheduling.Candidate) (scheduling.ConflictResult, bool, error) {
	result, err := conflictCheckFunc(st)(ctx, cand)
	return settleCheck(result, err)
}

// checkCandidate routes through the coordinator so a burst of checks
// cancels its predecessors and only the latest outcome is published.
func (sc *ScheduleController) checkCandidate(c *fiber.Ctx, cand scheduling.Candidate) (scheduling.ConflictResult, bool, error) {
	result, err := sc.checks.CheckNow(cand)
	return settleCheck(result, err)
}

// conflictCacheKey hashes the candidate so repeated checks for the same
// slot (drag bursts from multiple operators) hit Redis instead of MySQL.
func conflictCacheKey(req conflictCheckRequest) string {
	raw := fmt.Sprintf("%s|%d|%d|%d|%d", req.RoomName, req.TeacherID,
		req.StartAt.UnixNano(), req.EndAt.UnixNano(), req.ExcludeSessionID)
	sum := sha1.Sum([]byte(raw))
	return "conflictcheck:" + hex.EncodeToString(sum[:])
}

// CheckConflicts handles POST /api/schedules/conflicts. A backend failure
// is not an error to the caller: the response carries verified=false and
// the client treats the slot as unverified.
func (sc *ScheduleController) CheckConflicts(c *fiber.Ctx) error {
	var req conflictCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	key := conflictCacheKey(req)
	if rc := database.GetRedisClient(); rc != nil {
		if cached, err := rc.Get(c.Context(), key).Bytes(); err == nil {
			c.Set("Content-Type", "application/json")
			return c.Send(cached)
		}
	}

	result, verified, err := sc.checkCandidate(c, req.candidate())
	if err != nil {
		return err
	}
	if !verified {
		return c.JSON(fiber.Map{"verified": false})
	}

	body := fiber.Map{
		"verified":          true,
		"has_conflicts":     result.HasConflicts,
		"room_conflicts":    result.RoomConflicts,
		"teacher_conflicts": result.TeacherConflicts,
		"suggestions":       result.Suggestions,
	}
	if rc := database.GetRedisClient(); rc != nil {
		if encoded, err := json.Marshal(body); err == nil {
			// Short TTL: the cache only has to absorb drag bursts.
			rc.Set(c.Context(), key, encoded, 5*time.Second)
		}
	}
	return c.JSON(body)
}

// GetSessions returns sessions in a [from, to) window.
func (sc *ScheduleController) GetSessions(c *fiber.Ctx) error {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "from is required (RFC3339)"})
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "to is required (RFC3339)"})
	}
	if !to.After(from) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "to must be after from"})
	}

	sessions, err := sc.store.ListSessionsInRange(c.Context(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}

// GetSession returns one session by id.
func (sc *ScheduleController) GetSession(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID"})
	}
	session, err := sc.store.GetSessionModel(c.Context(), uint(id))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"session": session})
}

type createSessionRequest struct {
	ClassID   uint      `json:"class_id"`
	TeacherID *uint     `json:"teacher_id"`
	RoomName  string    `json:"room_name"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Notes     string    `json:"notes"`
}

// CreateSession handles POST /api/sessions. Known conflicts block the save
// unless force=true, which only admins may send; a forced save notifies
// the admins with the conflicting session ids.
func (sc *ScheduleController) CreateSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.ClassID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "class_id is required"})
	}
	if _, err := sc.store.GetClass(c.Context(), req.ClassID); err != nil {
		return err
	}

	var teacherID uint
	if req.TeacherID != nil {
		teacherID = *req.TeacherID
	}
	cand := scheduling.Candidate{
		RoomName:  req.RoomName,
		TeacherID: teacherID,
		Start:     req.StartAt,
		End:       req.EndAt,
	}

	result, verified, err := sc.checkCandidate(c, cand)
	if err != nil {
		return err
	}

	force := c.Query("force") == "true"
	if verified && result.HasConflicts {
		user, _ := middleware.GetCurrentUser(c)
		if !force || user == nil || user.Role != "admin" {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":             "Session conflicts with existing sessions",
				"room_conflicts":    result.RoomConflicts,
				"teacher_conflicts": result.TeacherConflicts,
				"suggestions":       result.Suggestions,
			})
		}
	}

	session := models.Session{
		ClassID:   req.ClassID,
		TeacherID: req.TeacherID,
		RoomName:  req.RoomName,
		StartAt:   req.StartAt,
		EndAt:     req.EndAt,
		Status:    "scheduled",
		Notes:     req.Notes,
	}
	if err := sc.store.CreateSession(c.Context(), &session); err != nil {
		return err
	}

	if verified && result.HasConflicts && force {
		sc.notifyOverride(c, session.ID, result)
	}
	if sc.hub != nil {
		sc.hub.BroadcastScheduleEvent("session.created", session.ID, session)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session":  session,
		"verified": verified,
	})
}

type updateSessionRequest struct {
	StartAt  *time.Time `json:"start_at"`
	EndAt    *time.Time `json:"end_at"`
	RoomName *string    `json:"room_name"`
	Notes    *string    `json:"notes"`
	Status   *string    `json:"status"`
}

// UpdateSession handles PATCH /api/sessions/:id. Time or room changes
// re-run the conflict check with the session itself excluded.
func (sc *ScheduleController) UpdateSession(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID"})
	}

	var req updateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	current, err := sc.store.GetSessionModel(c.Context(), uint(id))
	if err != nil {
		return err
	}

	start, end, room := current.StartAt, current.EndAt, current.RoomName
	if req.StartAt != nil {
		start = *req.StartAt
	}
	if req.EndAt != nil {
		end = *req.EndAt
	}
	if req.RoomName != nil {
		room = *req.RoomName
	}

	placementChanged := req.StartAt != nil || req.EndAt != nil || req.RoomName != nil
	var result scheduling.ConflictResult
	verified := true
	if placementChanged {
		var teacherID uint
		if current.TeacherID != nil {
			teacherID = *current.TeacherID
		}
		cand := scheduling.Candidate{
			RoomName:         room,
			TeacherID:        teacherID,
			Start:            start,
			End:              end,
			ExcludeSessionID: uint(id),
		}
		result, verified, err = sc.checkCandidate(c, cand)
		if err != nil {
			return err
		}
		force := c.Query("force") == "true"
		if verified && result.HasConflicts {
			user, _ := middleware.GetCurrentUser(c)
			if !force || user == nil || user.Role != "admin" {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error":             "Move conflicts with existing sessions",
					"room_conflicts":    result.RoomConflicts,
					"teacher_conflicts": result.TeacherConflicts,
					"suggestions":       result.Suggestions,
				})
			}
		}
	}

	if placementChanged {
		move := scheduling.SessionMove{Start: start, End: end}
		if req.RoomName != nil {
			move.RoomName = req.RoomName
		}
		// The mover applies the change optimistically and rolls its local
		// copy back if persistence fails; clients watching the hub see
		// every transition.
		if _, err := sc.mover.Move(c.Context(), uint(id), move); err != nil {
			return err
		}
	}
	if req.Notes != nil || req.Status != nil {
		updates := map[string]interface{}{}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		if req.Status != nil {
			switch *req.Status {
			case "scheduled", "completed", "cancelled":
			default:
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status"})
			}
			updates["status"] = *req.Status
		}
		if err := database.DB.WithContext(c.Context()).Model(&models.Session{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
	}

	updated, err := sc.store.GetSessionModel(c.Context(), uint(id))
	if err != nil {
		return err
	}

	if placementChanged && verified && result.HasConflicts {
		sc.notifyOverride(c, uint(id), result)
	}
	if sc.hub != nil {
		sc.hub.BroadcastScheduleEvent("session.updated", uint(id), updated)
	}

	return c.JSON(fiber.Map{
		"session":  updated,
		"verified": verified,
	})
}

// DeleteSession handles DELETE /api/sessions/:id.
func (sc *ScheduleController) DeleteSession(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session ID"})
	}
	if err := sc.store.DeleteSession(c.Context(), uint(id)); err != nil {
		return err
	}
	if sc.hub != nil {
		sc.hub.BroadcastScheduleEvent("session.deleted", uint(id), nil)
	}
	return c.JSON(fiber.Map{"message": "Session deleted"})
}

// notifyOverride records a forced save for every admin.
func (sc *ScheduleController) notifyOverride(c *fiber.Ctx, sessionID uint, result scheduling.ConflictResult) {
	var ids []uint
	for _, cs := range result.RoomConflicts {
		ids = append(ids, cs.SessionID)
	}
	for _, cs := range result.TeacherConflicts {
		ids = append(ids, cs.SessionID)
	}

	actor := "unknown"
	if user, err := middleware.GetCurrentUser(c); err == nil {
		actor = user.Username
	}

	var admins []models.User
	if err := database.DB.Where("role = ? AND status = ?", "admin", "active").Find(&admins).Error; err != nil {
		logrus.WithError(err).Warn("Could not load admins for override notice")
		return
	}
	adminIDs := make([]uint, 0, len(admins))
	for _, a := range admins {
		adminIDs = append(adminIDs, a.ID)
	}
	if len(adminIDs) == 0 {
		return
	}

	svc := notifications.NewService()
	if err := svc.EnqueueOrCreate(adminIDs, notifications.OverrideNotice(sessionID, ids, actor)); err != nil {
		logrus.WithError(err).Warn("Override notice delivery failed")
	}
}
