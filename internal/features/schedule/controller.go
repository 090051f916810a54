package schedule

import (
	"github.com/gofiber/fiber/v2"
)

type ScheduleController struct {
	ScheduleService ScheduleService
}

func NewScheduleController(scheduleService ScheduleService) *ScheduleController {
	return &ScheduleController{ScheduleService: scheduleService}
}

func (ctrl *ScheduleController) CreateSchedule(c *fiber.Ctx) error {
	var s Schedule
	if err := c.BodyParser(&s); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.ScheduleService.Create(c.Context(), &s); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Schedule created successfully",
		"data":    s,
	})
}

func (ctrl *ScheduleController) ListSchedules(c *fiber.Ctx) error {
	schedules, err := ctrl.ScheduleService.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"data": schedules})
}

func (ctrl *ScheduleController) GetSchedule(c *fiber.Ctx) error {
	s, err := ctrl.ScheduleService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Schedule not found",
		})
	}

	return c.JSON(fiber.Map{"data": s})
}

func (ctrl *ScheduleController) UpdateSchedule(c *fiber.Ctx) error {
	var s Schedule
	if err := c.BodyParser(&s); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.ScheduleService.Update(c.Context(), c.Params("id"), &s); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Schedule updated successfully",
		"data":    s,
	})
}

func (ctrl *ScheduleController) DeleteSchedule(c *fiber.Ctx) error {
	if err := ctrl.ScheduleService.Delete(c.Context(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Schedule deleted successfully",
	})
}
