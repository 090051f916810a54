package schedule

import (
	"go-deskmigrate/internal/config"
	"go-deskmigrate/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ScheduleApi struct {
	controller *ScheduleController
	config     *config.Config
}

func NewScheduleApi(controller *ScheduleController, config *config.Config) *ScheduleApi {
	return &ScheduleApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all schedule routes
func (h *ScheduleApi) Setup(app *fiber.App) {
	schedules := app.Group("/api/migrate/schedules", middleware.AuthMiddleware(h.config.SkipAuth))

	schedules.Post("/", h.controller.CreateSchedule)
	schedules.Get("/", h.controller.ListSchedules)
	schedules.Get("/:id", h.controller.GetSchedule)
	schedules.Put("/:id", h.controller.UpdateSchedule)
	schedules.Delete("/:id", h.controller.DeleteSchedule)
}
