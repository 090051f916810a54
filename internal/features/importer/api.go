package importer

import (
	"go-deskmigrate/internal/config"
	"go-deskmigrate/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type ImportApi struct {
	controller *ImportController
	hub        *Hub
	config     *config.Config
}

func NewImportApi(controller *ImportController, hub *Hub, config *config.Config) *ImportApi {
	return &ImportApi{
		controller: controller,
		hub:        hub,
		config:     config,
	}
}

// Setup registers job routes plus the live progress websocket
func (h *ImportApi) Setup(app *fiber.App) {
	jobs := app.Group("/api/migrate/jobs", middleware.AuthMiddleware(h.config.SkipAuth))

	jobs.Post("/", h.controller.StartImport)
	jobs.Get("/", h.controller.ListJobs)
	jobs.Get("/:id", h.controller.GetJob)
	jobs.Post("/:id/cancel", h.controller.CancelJob)

	app.Use("/ws/jobs/:id", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:id", websocket.New(func(conn *websocket.Conn) {
		jobID := conn.Params("id")
		h.hub.Subscribe(jobID, conn)
		defer h.hub.Unsubscribe(jobID, conn)

		// Block until the client goes away; all traffic is server push
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}
