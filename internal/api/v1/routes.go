package v1

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"

	"teamboard/internal/api/v1/handlers"
	"teamboard/internal/config"
	"teamboard/internal/middleware"
)

// NewApp builds the fiber app with the global middleware and every route.
func NewApp(deps *config.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      handlers.ServiceName,
		ErrorHandler: middleware.AppErrorHandler,
		BodyLimit:    6 << 20,
		// params dan body dipakai lagi oleh hub setelah handler selesai
		Immutable: true,
	})

	app.Use(requestid.New())
	app.Use(middleware.ErrorHandler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: deps.Config.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	if deps.Config.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        deps.Config.RateLimitMax,
			Expiration: 1 * time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return strings.HasPrefix(c.Path(), "/ws/")
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"message": "Too many requests"})
			},
		}))
	}

	RegisterRoutes(app, deps)
	return app
}

func RegisterRoutes(app *fiber.App, deps *config.Dependencies) {
	h := handlers.New(deps)
	protected := middleware.UseToken(deps.Issuer, deps.Store)

	app.Get("/health", h.Health)

	api := app.Group("/api")

	// Auth
	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", h.Register)
	authRoutes.Post("/login", h.Login)
	authRoutes.Get("/me", protected, h.Me)

	// User
	api.Get("/users", protected, h.ListUsers)

	// Project
	projectRoutes := api.Group("/projects", protected)
	projectRoutes.Post("/", h.CreateProject)
	projectRoutes.Get("/", h.ListProjects)
	projectRoutes.Get("/:id", h.GetProject)
	projectRoutes.Put("/:id", h.UpdateProject)
	projectRoutes.Delete("/:id", h.DeleteProject)

	// Task
	taskRoutes := api.Group("/tasks", protected)
	taskRoutes.Post("/", h.CreateTask)
	taskRoutes.Get("/project/:projectId", h.ListProjectTasks)
	taskRoutes.Get("/:id", h.GetTask)
	taskRoutes.Put("/:id", h.UpdateTask)
	taskRoutes.Delete("/:id", h.DeleteTask)
	taskRoutes.Post("/:id/comments", h.AddComment)
	taskRoutes.Post("/:id/attachments", h.UploadAttachment)

	// File
	api.Get("/uploads/:filename", protected, h.GetFile)

	// Board feed
	app.Get("/ws/projects/:projectId", h.BoardUpgrade, websocket.New(h.BoardFeed))
}
