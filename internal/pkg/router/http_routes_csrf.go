package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CVFox/internal/pkg/middleware"
)

// registerCSRFProtectedRoutes mounts every session-authenticated web route.
// The token check runs before authentication so forged requests never reach
// a handler.
func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	ctrl := h.deps.Controllers
	csrf := requireCSRF(h.deps)

	app.Post("/logout", csrf, middleware.RequireAuth, ctrl.Auth.HandleLogout)

	user := app.Group("/user", csrf, middleware.RequireAuth)
	user.Get("/billing", ctrl.Billing.HandleBillingState)
	user.Post("/billing/checkout", ctrl.Billing.HandleCheckout)
	user.Post("/billing/portal", ctrl.Billing.HandlePortal)

	org := app.Group("/org", csrf, middleware.RequireAuth)
	org.Post("/:org/invitations/:id/cancel", ctrl.Invitation.HandleCancel)
}
