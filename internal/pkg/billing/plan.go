package billing

import (
	"sort"
	"strings"

	"github.com/ManuelReschke/CVFox/app/models"
)

// PlanCatalog is the set of plans that can be bought, keyed by internal plan
// id, with the processor price behind each one.
type PlanCatalog struct {
	prices map[string]string
	plans  map[string]string
}

// NewPlanCatalog builds a catalog from plan id -> price id pairs. The free
// sentinel is never purchasable and is dropped if configured.
func NewPlanCatalog(planPrices map[string]string) *PlanCatalog {
	c := &PlanCatalog{
		prices: make(map[string]string, len(planPrices)),
		plans:  make(map[string]string, len(planPrices)),
	}
	for plan, price := range planPrices {
		p := normalizePlan(plan)
		price = strings.TrimSpace(price)
		if p == "" || p == models.PlanFree || price == "" {
			continue
		}
		c.prices[p] = price
		c.plans[price] = p
	}
	return c
}

// PriceFor returns the processor price of a purchasable plan.
func (c *PlanCatalog) PriceFor(plan string) (string, bool) {
	if c == nil {
		return "", false
	}
	price, ok := c.prices[normalizePlan(plan)]
	return price, ok
}

// PlanForPrice maps a processor price back to the internal plan. Unknown
// prices resolve to the free plan.
func (c *PlanCatalog) PlanForPrice(priceID string) (string, bool) {
	if c == nil {
		return models.PlanFree, false
	}
	plan, ok := c.plans[strings.TrimSpace(priceID)]
	if !ok {
		return models.PlanFree, false
	}
	return plan, true
}

// Plans lists the purchasable plan ids in stable order.
func (c *PlanCatalog) Plans() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.prices))
	for p := range c.prices {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func normalizePlan(plan string) string {
	return strings.ToLower(strings.TrimSpace(plan))
}

// normalizeStatus folds the processor's status vocabulary into the five
// states the account record knows.
func normalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "trialing":
		return models.SubscriptionStatusTrialing
	case "active":
		return models.SubscriptionStatusActive
	case "past_due":
		return models.SubscriptionStatusPastDue
	case "canceled", "unpaid", "incomplete_expired", "paused":
		return models.SubscriptionStatusCanceled
	default:
		// "incomplete": the first payment has not gone through yet.
		return models.SubscriptionStatusNone
	}
}

// IsEntitlingStatus reports whether a status grants the paid plan.
func IsEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing, models.SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}
