package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// запас под multipart-обвязку вокруг файла
const bodySlack = 1 << 20

// NewApp создаёт fiber-приложение с middleware и маршрутами.
func NewApp(h *Handler) *fiber.App {
	cfg := fiber.Config{AppName: "docquiz"}
	if h.maxUpload > 0 {
		cfg.BodyLimit = int(h.maxUpload) + bodySlack
	}
	app := fiber.New(cfg)
	app.Use(recover.New())
	app.Use(logger.New())
	RegisterRoutes(app, h)
	return app
}

func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", h.Health)
	app.Get("/models", h.ListModels)
	app.Post("/upload", h.Upload)
	app.Get("/questions", h.Questions)
	app.Delete("/documents", h.DeleteDocuments)
}
