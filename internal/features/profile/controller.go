package profile

import (
	"github.com/gofiber/fiber/v2"
)

type ProfileController struct {
	ProfileService ProfileService
}

func NewProfileController(profileService ProfileService) *ProfileController {
	return &ProfileController{ProfileService: profileService}
}

func (ctrl *ProfileController) CreateProfile(c *fiber.Ctx) error {
	var p ImportProfile
	if err := c.BodyParser(&p); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.ProfileService.Create(c.Context(), &p); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Import profile created successfully",
		"data":    p,
	})
}

func (ctrl *ProfileController) ListProfiles(c *fiber.Ctx) error {
	profiles, err := ctrl.ProfileService.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"data": profiles})
}

func (ctrl *ProfileController) GetProfile(c *fiber.Ctx) error {
	p, err := ctrl.ProfileService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Import profile not found",
		})
	}

	return c.JSON(fiber.Map{"data": p})
}

func (ctrl *ProfileController) UpdateProfile(c *fiber.Ctx) error {
	var p ImportProfile
	if err := c.BodyParser(&p); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.ProfileService.Update(c.Context(), c.Params("id"), &p); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Import profile updated successfully",
		"data":    p,
	})
}

func (ctrl *ProfileController) DeleteProfile(c *fiber.Ctx) error {
	if err := ctrl.ProfileService.Delete(c.Context(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Import profile deleted successfully",
	})
}

func (ctrl *ProfileController) TestConnection(c *fiber.Ctx) error {
	info, err := ctrl.ProfileService.TestConnection(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    info,
	})
}
