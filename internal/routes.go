package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	v1 "vistrail/api/v1"
)

// Collection endpoints are called cross-origin from tracked sites, so CORS
// stays permissive.
var publicCORSConfig = cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Referrer, User-Agent, X-Screen-Size",
}

// newServer builds the fiber app and mounts all routes.
func newServer(app *Application) *fiber.App {
	srv := fiber.New(fiber.Config{
		AppName:               app.Config.AppName,
		DisableStartupMessage: true,
	})
	srv.Use(recover.New())

	handler := v1.NewHandler(app.Sessions, app.Funnels, app.Rules, app.Engine, app.Logger)

	// Rate limiting only in production; in development and test it would
	// interfere with exercising the API.
	public := srv.Group("/api/v1", cors.New(publicCORSConfig))
	if app.Config.IsProduction() {
		public.Use(limiter.New(limiter.Config{
			Max:        70,
			Expiration: time.Minute,
		}))
	}

	public.Post("/heartbeat", handler.CreateHeartbeat)
	public.Get("/funnels", handler.GetFunnels)
	public.Post("/funnels/complete", handler.CreateCompletion)
	public.Get("/custom-events", handler.GetCustomEvents)
	public.Post("/custom-events/trigger", handler.CreateTrigger)
	public.Get("/stats", handler.GetStats)

	srv.Get("/_health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	srv.Head("/_health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	return srv
}
