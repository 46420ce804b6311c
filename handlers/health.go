package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/suhanipatel/faceglow-api/database"
	"gorm.io/gorm"
)

// HandleCheckHealth reports service and database health
func HandleCheckHealth(c *fiber.Ctx, store database.Storage) error {
	dbStatus := "ok"
	if db, ok := store.GetDB().(*gorm.DB); ok {
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			dbStatus = "unreachable"
		}
	} else {
		dbStatus = "unavailable"
	}

	status := fiber.StatusOK
	if dbStatus != "ok" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"status":   "ok",
		"database": dbStatus,
	})
}
