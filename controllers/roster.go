package controllers

import (
	"classboard_go/store"

	"github.com/gofiber/fiber/v2"
)

// RosterController serves the read-only room, teacher and class rosters
// the scheduling UI binds its pickers to.
type RosterController struct {
	store *store.Store
}

func NewRosterController(st *store.Store) *RosterController {
	return &RosterController{store: st}
}

// GetRooms returns the active rooms in display order.
func (rc *RosterController) GetRooms(c *fiber.Ctx) error {
	rooms, err := rc.store.Rooms(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"rooms": rooms})
}

// GetTeachers returns the active teachers.
func (rc *RosterController) GetTeachers(c *fiber.Ctx) error {
	teachers, err := rc.store.Teachers(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"teachers": teachers})
}

// GetClasses returns the active classes.
func (rc *RosterController) GetClasses(c *fiber.Ctx) error {
	classes, err := rc.store.Classes(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"classes": classes})
}
