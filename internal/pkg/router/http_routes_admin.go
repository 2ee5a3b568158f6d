package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CVFox/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	admin := h.deps.Controllers.Admin

	adminGroup := app.Group("/admin", requireCSRF(h.deps), middleware.RequireAdmin)

	// Billing operations
	adminGroup.Get("/billing/events", admin.HandleWebhookEvents)
	adminGroup.Get("/billing/stats", admin.HandleWebhookStats)
	adminGroup.Get("/billing/markers", admin.HandleMarkers)
	adminGroup.Post("/billing/markers/:id/delete", admin.HandleMarkerDelete)

	// Organization audit trail
	adminGroup.Get("/orgs/:org/audit", admin.HandleOrgAudit)
}
