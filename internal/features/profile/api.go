package profile

import (
	"go-deskmigrate/internal/config"
	"go-deskmigrate/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ProfileApi struct {
	controller *ProfileController
	config     *config.Config
}

func NewProfileApi(controller *ProfileController, config *config.Config) *ProfileApi {
	return &ProfileApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all import profile routes
func (h *ProfileApi) Setup(app *fiber.App) {
	profiles := app.Group("/api/migrate/profiles", middleware.AuthMiddleware(h.config.SkipAuth))

	profiles.Post("/", h.controller.CreateProfile)
	profiles.Get("/", h.controller.ListProfiles)
	profiles.Get("/:id", h.controller.GetProfile)
	profiles.Put("/:id", h.controller.UpdateProfile)
	profiles.Delete("/:id", h.controller.DeleteProfile)

	profiles.Post("/:id/test-connection", h.controller.TestConnection)
}
