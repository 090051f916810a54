package mapping

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type MappingController struct {
	MappingService MappingService
}

func NewMappingController(mappingService MappingService) *MappingController {
	return &MappingController{MappingService: mappingService}
}

func (ctrl *MappingController) CreateMapping(c *fiber.Ctx) error {
	var m Mapping
	if err := c.BodyParser(&m); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.MappingService.Create(c.Context(), &m); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Mapping created successfully",
		"data":    m,
	})
}

func (ctrl *MappingController) ListMappings(c *fiber.Ctx) error {
	profileID := c.Query("profile_id")
	if profileID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "profile_id query parameter is required",
		})
	}

	mappings, err := ctrl.MappingService.ListByProfile(c.Context(), profileID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"data": mappings})
}

func (ctrl *MappingController) GetMapping(c *fiber.Ctx) error {
	m, err := ctrl.MappingService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Mapping not found",
		})
	}

	return c.JSON(fiber.Map{"data": m})
}

func (ctrl *MappingController) UpdateMapping(c *fiber.Ctx) error {
	var m Mapping
	if err := c.BodyParser(&m); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.MappingService.Update(c.Context(), c.Params("id"), &m); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Mapping updated successfully",
		"data":    m,
	})
}

func (ctrl *MappingController) DeleteMapping(c *fiber.Ctx) error {
	if err := ctrl.MappingService.Delete(c.Context(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Mapping deleted successfully",
	})
}

// ValidateMapping checks a mapping document without persisting it
func (ctrl *MappingController) ValidateMapping(c *fiber.Ctx) error {
	var m Mapping
	if err := c.BodyParser(&m); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result := ctrl.MappingService.Validate(c.Context(), &m)
	return c.JSON(fiber.Map{"data": result})
}

// PreviewMapping runs the mapping against the live source with a small limit
func (ctrl *MappingController) PreviewMapping(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	rows, query, err := ctrl.MappingService.Preview(c.Context(), c.Params("id"), limit)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
			"query": query,
		})
	}

	return c.JSON(fiber.Map{
		"data":  rows,
		"query": query,
	})
}

// SuggestJoins ranks join candidates for a base table from the source schema
func (ctrl *MappingController) SuggestJoins(c *fiber.Ctx) error {
	profileID := c.Query("profile_id")
	baseTable := c.Query("base_table")
	if profileID == "" || baseTable == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "profile_id and base_table query parameters are required",
		})
	}

	suggestions, err := ctrl.MappingService.SuggestJoins(c.Context(), profileID, baseTable)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"data": suggestions})
}
