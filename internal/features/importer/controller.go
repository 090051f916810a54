package importer

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type ImportController struct {
	ImportService ImportService
}

func NewImportController(importService ImportService) *ImportController {
	return &ImportController{ImportService: importService}
}

// StartImport godoc
// @Summary Start import job
// @Description Start an import job for a profile; runs asynchronously
// @Tags import
// @Accept json
// @Produce json
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/migrate/jobs [post]
func (ctrl *ImportController) StartImport(c *fiber.Ctx) error {
	var body struct {
		ProfileID string `json:"profile_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.ProfileID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "profile_id is required",
		})
	}

	j, err := ctrl.ImportService.StartImport(c.Context(), body.ProfileID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Import job started",
		"data":    j,
	})
}

// GetJob godoc
// @Summary Get import job
// @Description Get job status, progress, counters and the error log
// @Tags import
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/migrate/jobs/{id} [get]
func (ctrl *ImportController) GetJob(c *fiber.Ctx) error {
	j, err := ctrl.ImportService.GetJob(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Import job not found",
		})
	}

	return c.JSON(fiber.Map{"data": j})
}

// ListJobs godoc
func (ctrl *ImportController) ListJobs(c *fiber.Ctx) error {
	limit, _ := strconv.ParseInt(c.Query("limit", "20"), 10, 64)

	jobs, err := ctrl.ImportService.ListJobs(c.Context(), c.Query("profile_id"), limit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"data": jobs})
}

// CancelJob godoc
// @Summary Cancel import job
// @Description Request cooperative cancellation; the worker stops at the next row boundary
// @Tags import
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/migrate/jobs/{id}/cancel [post]
func (ctrl *ImportController) CancelJob(c *fiber.Ctx) error {
	if err := ctrl.ImportService.Cancel(c.Context(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Cancellation requested",
	})
}
