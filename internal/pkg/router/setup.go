package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CVFox/app/controllers"
	"github.com/ManuelReschke/CVFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/CVFox/internal/pkg/middleware"
	"github.com/ManuelReschke/CVFox/internal/pkg/security"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps is everything the routers mount.
type Deps struct {
	Controllers *controllers.Controllers
	Guard       *security.Guard
	Counters    *counter.Counters
	Plans       middleware.PlanResolver
}

func InstallRouter(app *fiber.App, deps Deps) {
	// The HttpRouter installs the UserContext middleware that the API
	// routes depend on, so it goes first.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

// requireCSRF builds the token check shared by web and API routes.
func requireCSRF(deps Deps) fiber.Handler {
	return middleware.RequireCSRF(middleware.CSRFConfig{
		Guard: deps.Guard,
		OnReject: func(c *fiber.Ctx) {
			deps.Counters.RecordCSRFRejection(c.UserContext(), c.Path())
		},
	})
}
