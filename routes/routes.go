package routes

import (
	"classboard_go/controllers"
	"classboard_go/database"
	"classboard_go/middleware"
	"classboard_go/services/websocket"
	"classboard_go/store"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, wsHub *websocket.Hub) {
	st := store.New(database.GetDB())

	scheduleController := controllers.NewScheduleController(st, wsHub)
	calendarController := controllers.NewCalendarController(st)
	recurringController := controllers.NewRecurringController(st, wsHub)
	importController := controllers.NewScheduleImportController(st)
	rosterController := controllers.NewRosterController(st)
	healthController := &controllers.HealthController{}
	wsController := controllers.NewWebSocketController(wsHub)

	app.Get("/health", healthController.GetHealthStatus)

	// WebSocket endpoint; the JWT rides the query string because browsers
	// cannot set headers on the upgrade request.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", wsController.WebSocketHandler())

	api := app.Group("/api")

	// All API routes require authentication
	protected := api.Group("/", middleware.JWTMiddleware())

	// Conflict checking
	protected.Post("/schedules/conflicts", scheduleController.CheckConflicts)

	// Sessions
	sessions := protected.Group("/sessions")
	sessions.Get("/", scheduleController.GetSessions)
	sessions.Get("/:id", scheduleController.GetSession)
	sessions.Post("/", middleware.RequireScheduler(), scheduleController.CreateSession)
	sessions.Patch("/:id", middleware.RequireScheduler(), scheduleController.UpdateSession)
	sessions.Delete("/:id", middleware.RequireScheduler(), scheduleController.DeleteSession)

	// Recurring schedules, class-scoped and flat, plus expansion
	classes := protected.Group("/classes")
	classes.Get("/:id/recurring", recurringController.GetClassRecurring)
	classes.Post("/:id/recurring", middleware.RequireScheduler(), recurringController.CreateClassRecurring)

	recurring := protected.Group("/recurring")
	recurring.Get("/", recurringController.GetRecurringSchedules)
	recurring.Get("/:id", recurringController.GetRecurringSchedule)
	recurring.Post("/", middleware.RequireScheduler(), recurringController.CreateRecurringSchedule)
	recurring.Patch("/:id", middleware.RequireScheduler(), recurringController.UpdateRecurringSchedule)
	recurring.Delete("/:id", middleware.RequireAdmin(), recurringController.DeleteRecurringSchedule)
	recurring.Post("/:id/expand", middleware.RequireScheduler(), recurringController.Expand)

	// Calendar projections
	calendar := protected.Group("/calendar")
	calendar.Get("/day", calendarController.GetDay)
	calendar.Get("/week", calendarController.GetWeek)
	calendar.Post("/preview", calendarController.Preview)

	// Bulk import
	protected.Post("/import/recurring", middleware.RequireAdmin(), importController.Import)

	// Rosters
	protected.Get("/rooms", rosterController.GetRooms)
	protected.Get("/teachers", rosterController.GetTeachers)
	protected.Get("/classes", rosterController.GetClasses)

	// WebSocket statistics (admin only)
	protected.Get("/ws/stats", middleware.RequireAdmin(), wsController.GetWebSocketStats)
}
