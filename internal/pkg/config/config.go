// Package config turns the flat environment into the typed settings the
// billing, session and request-integrity packages are constructed with.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ManuelReschke/CVFox/internal/pkg/env"
)

const (
	defaultWebhookTolerance = 5 * time.Minute
	defaultProcessorTimeout = 10 * time.Second
	defaultMarkerTTL        = 72 * time.Hour
	defaultSessionLifetime  = 12 * time.Hour
	defaultSessionIdle      = 1 * time.Hour
)

type Config struct {
	AppHost      string
	AppPort      string
	PublicDomain string

	// CSRFSecret keys the per-session anti-forgery tokens.
	CSRFSecret      string
	SessionLifetime time.Duration
	SessionIdle     time.Duration

	Billing BillingConfig

	// AdminEmails grants administrative capability over every organization.
	AdminEmails map[string]struct{}

	MetricsUser     string
	MetricsPassword string
}

type BillingConfig struct {
	StripeSecretKey  string
	WebhookSecret    string
	WebhookTolerance time.Duration
	ProcessorTimeout time.Duration
	MarkerTTL        time.Duration

	SuccessURL      string
	CancelURL       string
	PortalReturnURL string

	// Plans maps internal plan ids to processor price ids.
	Plans map[string]string
}

// Load reads the configuration from env. Missing billing credentials are not
// fatal here: the billing service reports ErrConfigurationMissing per request.
func Load() *Config {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000"), "/")

	cfg := &Config{
		AppHost:         env.GetEnv("APP_HOST", "localhost"),
		AppPort:         env.GetEnv("APP_PORT", "4000"),
		PublicDomain:    base,
		CSRFSecret:      strings.TrimSpace(env.GetEnv("CSRF_SECRET", "")),
		SessionLifetime: env.GetEnvDuration("SESSION_LIFETIME", defaultSessionLifetime),
		SessionIdle:     env.GetEnvDuration("SESSION_IDLE_TIMEOUT", defaultSessionIdle),
		Billing: BillingConfig{
			StripeSecretKey:  strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
			WebhookSecret:    strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
			WebhookTolerance: env.GetEnvDuration("BILLING_WEBHOOK_TOLERANCE", defaultWebhookTolerance),
			ProcessorTimeout: env.GetEnvDuration("BILLING_PROCESSOR_TIMEOUT", defaultProcessorTimeout),
			MarkerTTL:        env.GetEnvDuration("BILLING_EVENT_MARKER_TTL", defaultMarkerTTL),
			SuccessURL:       env.GetEnv("BILLING_SUCCESS_URL", base+"/user/billing?checkout=success"),
			CancelURL:        env.GetEnv("BILLING_CANCEL_URL", base+"/user/billing?checkout=cancel"),
			PortalReturnURL:  env.GetEnv("BILLING_PORTAL_RETURN_URL", base+"/user/billing"),
			Plans:            ParsePlans(env.GetEnvList("BILLING_PLANS")),
		},
		AdminEmails:     ParseEmailSet(env.GetEnvList("ADMIN_EMAILS")),
		MetricsUser:     env.GetEnv("METRICS_USER", "admin"),
		MetricsPassword: env.GetEnv("METRICS_PASSWORD", ""),
	}

	if cfg.CSRFSecret == "" {
		log.Print("[Config] CSRF_SECRET is empty, state-changing requests will be rejected")
	}
	return cfg
}

// ParsePlans parses "plan:price" pairs. Entries without a price are skipped.
func ParsePlans(entries []string) map[string]string {
	plans := make(map[string]string, len(entries))
	for _, entry := range entries {
		planID, priceID, ok := strings.Cut(entry, ":")
		planID = strings.ToLower(strings.TrimSpace(planID))
		priceID = strings.TrimSpace(priceID)
		if !ok || planID == "" || priceID == "" {
			log.Printf("[Config] ignoring malformed BILLING_PLANS entry %q", entry)
			continue
		}
		plans[planID] = priceID
	}
	return plans
}

func ParseEmailSet(emails []string) map[string]struct{} {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.AppHost, c.AppPort)
}
