package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/CVFox/app/controllers"
	"github.com/ManuelReschke/CVFox/app/repository"
	"github.com/ManuelReschke/CVFox/internal/pkg/billing"
	"github.com/ManuelReschke/CVFox/internal/pkg/cache"
	"github.com/ManuelReschke/CVFox/internal/pkg/config"
	"github.com/ManuelReschke/CVFox/internal/pkg/database"
	"github.com/ManuelReschke/CVFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/CVFox/internal/pkg/env"
	"github.com/ManuelReschke/CVFox/internal/pkg/invitation"
	"github.com/ManuelReschke/CVFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/CVFox/internal/pkg/router"
	"github.com/ManuelReschke/CVFox/internal/pkg/security"
	"github.com/ManuelReschke/CVFox/internal/pkg/session"
)

func main() {
	cfg, app := NewApplication()
	err := app.Listen(cfg.ListenAddr())
	log.Fatal(err)
}

func NewApplication() (*config.Config, *fiber.App) {
	env.SetupEnvFile()
	cfg := config.Load()
	database.SetupDatabase()
	cache.SetupCache()

	session.NewSessionStore(cfg.SessionLifetime, cfg.SessionIdle)

	guard, err := security.NewGuard(cfg.CSRFSecret, session.SessionActive)
	if err != nil {
		// Without a secret every state-changing request is rejected; the
		// nil guard fails closed.
		log.Printf("[Main] CSRF guard disabled: %v", err)
	}

	db := database.GetDB()
	rdb := cache.GetClient()
	repository.InitializeFactory(db, rdb)
	repos := repository.GetGlobalRepositories()
	counters := counter.New(rdb)

	billingSvc := billing.NewService(billing.NewRepository(db), markerStore(rdb), stripeProcessor(cfg),
		billing.NewPlanCatalog(cfg.Billing.Plans), billing.Options{
			WebhookSecret:    cfg.Billing.WebhookSecret,
			WebhookTolerance: cfg.Billing.WebhookTolerance,
			ProcessorTimeout: cfg.Billing.ProcessorTimeout,
			MarkerTTL:        cfg.Billing.MarkerTTL,
			SuccessURL:       cfg.Billing.SuccessURL,
			CancelURL:        cfg.Billing.CancelURL,
			PortalReturnURL:  cfg.Billing.PortalReturnURL,
		})
	billingSvc.SetOutcomeRecorder(counters)

	admins := invitation.AdminAllowList(cfg.AdminEmails)
	invitations := invitation.NewService(repos.Organization, repos.Invitation, admins)

	app := fiber.New(fiber.Config{
		// Webhook bodies and forms are small.
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	if cfg.MetricsPassword != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				cfg.MetricsUser: cfg.MetricsPassword,
			},
		}), monitor.New())
	}

	// ROUTER
	router.InstallRouter(app, router.Deps{
		Controllers: controllers.New(repos, billingSvc, invitations, admins, counters),
		Guard:       guard,
		Counters:    counters,
		Plans:       planResolver(billingSvc),
	})

	return cfg, app
}

// markerStore keeps idempotency markers in Redis. Only development falls
// back to process memory when Redis is down; production refuses to start
// without shared markers.
func markerStore(rdb *redis.Client) billing.MarkerStore {
	if cache.Available(2 * time.Second) {
		return billing.NewRedisMarkerStore(rdb)
	}
	if env.IsDev() {
		log.Print("[Main] Redis unavailable, using in-memory webhook markers")
		return billing.NewMemoryMarkerStore()
	}
	log.Fatal("[Main] Redis is required for webhook idempotency markers")
	return nil
}

// stripeProcessor returns a nil interface, not a nil *StripeProcessor, when
// no key is configured so the service can detect it.
func stripeProcessor(cfg *config.Config) billing.Processor {
	p := billing.NewStripeProcessor(cfg.Billing.StripeSecretKey)
	if p == nil {
		log.Print("[Main] STRIPE_SECRET_KEY is empty, checkout and portal are disabled")
		return nil
	}
	return p
}

func planResolver(svc *billing.Service) func(ctx context.Context, accountID uint) string {
	return func(ctx context.Context, accountID uint) string {
		st, err := svc.GetSubscriptionState(ctx, accountID)
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				log.Printf("[Main] Plan lookup for account %d failed: %v", accountID, err)
			}
			return string(entitlements.PlanFree)
		}
		return string(entitlements.ForState(st))
	}
}
