package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Router arma la aplicación Fiber con sus rutas y middlewares.
// Con jwtSecret vacío el endpoint de carga queda sin autenticación (solo
// recomendable en development).
func Router(handler *FacturaHandler, jwtSecret string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "addon-facturas",
		BodyLimit: 25 * 1024 * 1024, // las facturas escaneadas pueden pesar
	})

	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	if jwtSecret != "" {
		api.Use(AuthMiddleware(jwtSecret))
	}
	api.Post("/facturas/procesar", handler.Procesar)

	return app
}
