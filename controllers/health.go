package controllers

import (
	"time"

	"classboard_go/database"

	"github.com/gofiber/fiber/v2"
)

// HealthController reports readiness of the service and its backends.
type HealthController struct{}

// GetHealthStatus handles GET /health. Redis being down degrades the
// status but keeps the service available.
func (hc *HealthController) GetHealthStatus(c *fiber.Ctx) error {
	status := "ok"
	checks := fiber.Map{}

	dbStatus := "ok"
	if db := database.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			dbStatus = "down"
			status = "down"
		}
	} else {
		dbStatus = "down"
		status = "down"
	}
	checks["database"] = dbStatus

	redisStatus := "ok"
	if rc := database.GetRedisClient(); rc != nil {
		if err := rc.Ping(c.Context()).Err(); err != nil {
			redisStatus = "down"
			if status == "ok" {
				status = "degraded"
			}
		}
	} else {
		redisStatus = "disabled"
	}
	checks["redis"] = redisStatus

	code := fiber.StatusOK
	if status == "down" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}
