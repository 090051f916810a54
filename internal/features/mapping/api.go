package mapping

import (
	"go-deskmigrate/internal/config"
	"go-deskmigrate/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type MappingApi struct {
	controller *MappingController
	config     *config.Config
}

func NewMappingApi(controller *MappingController, config *config.Config) *MappingApi {
	return &MappingApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all mapping routes
func (h *MappingApi) Setup(app *fiber.App) {
	mappings := app.Group("/api/migrate/mappings", middleware.AuthMiddleware(h.config.SkipAuth))

	mappings.Post("/", h.controller.CreateMapping)
	mappings.Get("/", h.controller.ListMappings)
	mappings.Post("/validate", h.controller.ValidateMapping)
	mappings.Get("/suggest-joins", h.controller.SuggestJoins)
	mappings.Get("/:id", h.controller.GetMapping)
	mappings.Put("/:id", h.controller.UpdateMapping)
	mappings.Delete("/:id", h.controller.DeleteMapping)
	mappings.Get("/:id/preview", h.controller.PreviewMapping)
}
