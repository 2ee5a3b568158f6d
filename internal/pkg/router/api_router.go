package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/CVFox/app/controllers"
	"github.com/ManuelReschke/CVFox/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	ctrl := h.deps.Controllers

	api := app.Group("/api", limiter.New(limiter.Config{
		Max:          60,
		Expiration:   time.Minute,
		KeyGenerator: controllers.GetClientIP,
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes ride on the browser session, so they carry the same
	// token check as the web forms (sent as X-CSRF-Token).
	v1 := api.Group("/v1", requireCSRF(h.deps), middleware.RequireAPISessionAuth)
	v1.Get("/billing", ctrl.Billing.HandleBillingState)
	v1.Post("/billing/checkout", ctrl.Billing.HandleCheckout)
	v1.Post("/billing/portal", ctrl.Billing.HandlePortal)
	v1.Post("/org/:org/invitations/:id/cancel", ctrl.Invitation.HandleCancel)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}
