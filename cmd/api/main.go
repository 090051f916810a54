package main

import (
	"context"
	"fmt"
	"log"
	"time"

	common_api "go-deskmigrate/internal/common/api"
	"go-deskmigrate/internal/config"
	"go-deskmigrate/internal/database"
	"go-deskmigrate/internal/features/destination"
	"go-deskmigrate/internal/features/importer"
	"go-deskmigrate/internal/features/job"
	"go-deskmigrate/internal/features/lineage"
	"go-deskmigrate/internal/features/mapping"
	"go-deskmigrate/internal/features/profile"
	"go-deskmigrate/internal/features/schedule"
	"go-deskmigrate/internal/logger"
	"go-deskmigrate/internal/middleware"
	"go-deskmigrate/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	return app
}

// AsRoute tags a constructor so Fx adds its result to the "routes" group
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes calls Setup() on every route in the group
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
	log.Printf("Registered %d route groups\n", len(routes))
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer starts Fiber in a goroutine and shuts it down on exit
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			utils.SetSecret(cfg.JWTSecret)
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// InitializeIndexes ensures database indexes exist at startup
func InitializeIndexes(lc fx.Lifecycle, lineageRepo lineage.LineageRepository, destRepo destination.DestinationRepository, zlog *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := lineageRepo.EnsureIndexes(ctx); err != nil {
					zlog.Error("failed to ensure lineage indexes", zap.Error(err))
				}
				if err := destRepo.EnsureIndexes(ctx); err != nil {
					zlog.Error("failed to ensure destination indexes", zap.Error(err))
				}
			}()
			return nil
		},
	})
}

// StartScheduler boots the cron runner with the persisted schedules
func StartScheduler(lc fx.Lifecycle, scheduleService schedule.ScheduleService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduleService.InitializeScheduler(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduleService.StopScheduler()
		},
	})
}

func main() {
	fx.New(
		fx.WithLogger(func(zlog *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zlog}
		}),

		fx.Provide(
			config.LoadConfig,
			database.NewDatabase,
			logger.NewLogger,
			NewFiberServer,

			profile.NewProfileRepository,
			mapping.NewMappingRepository,
			job.NewJobRepository,
			lineage.NewLineageRepository,
			destination.NewDestinationRepository,
			schedule.NewScheduleRepository,

			importer.NewHub,
			func(h *importer.Hub) importer.ProgressPublisher { return h },

			profile.NewProfileService,
			mapping.NewMappingService,
			importer.NewImportService,
			schedule.NewScheduleService,

			profile.NewProfileController,
			mapping.NewMappingController,
			importer.NewImportController,
			schedule.NewScheduleController,

			AsRoute(profile.NewProfileApi),
			AsRoute(mapping.NewMappingApi),
			AsRoute(importer.NewImportApi),
			AsRoute(schedule.NewScheduleApi),
		),

		fx.Invoke(
			RegisterAllRoutesWithAnnotation,
			InitializeIndexes,
			StartScheduler,
			StartServer,
		),
	).Run()
}
