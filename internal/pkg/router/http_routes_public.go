package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/CVFox/app/controllers"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	ctrl := h.deps.Controllers

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Login has no session to bind a token to yet; the session id is rotated
	// on success instead.
	loginLimiter := limiter.New(limiter.Config{
		Max:          10,
		Expiration:   time.Minute,
		KeyGenerator: controllers.GetClientIP,
	})
	app.Get("/login", ctrl.Auth.HandleLoginPage)
	app.Post("/login", loginLimiter, ctrl.Auth.HandleLogin)

	// Billing provider webhooks (no CSRF, signature-verified in the service)
	app.Post("/webhooks/stripe", ctrl.Billing.HandleStripeWebhook)
}
