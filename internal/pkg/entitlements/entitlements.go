package entitlements

import (
	"strings"

	"github.com/ManuelReschke/CVFox/app/models"
	"github.com/ManuelReschke/CVFox/internal/pkg/billing"
)

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
	PlanTeam Plan = "team"
)

// Limits are the plan allowances enforced by the CV editor.
type Limits struct {
	MaxResumes        int  `json:"max_resumes"`
	MaxTemplates      int  `json:"max_templates"`
	OrganizationSeats int  `json:"organization_seats"`
	PDFWatermark      bool `json:"pdf_watermark"`
}

// ForState returns the plan a subscription state entitles to. Anything not
// active, trialing or past_due falls back to free.
func ForState(st *models.SubscriptionState) Plan {
	if st == nil || !billing.IsEntitlingStatus(st.Status) {
		return PlanFree
	}
	p := Plan(strings.ToLower(strings.TrimSpace(st.Plan)))
	if p == "" {
		return PlanFree
	}
	return p
}

// LimitsFor returns the allowances of a plan. Unknown plans get free limits.
func LimitsFor(plan Plan) Limits {
	switch plan {
	case PlanTeam:
		return Limits{MaxResumes: 0, MaxTemplates: 0, OrganizationSeats: 25}
	case PlanPro:
		return Limits{MaxResumes: 0, MaxTemplates: 0, OrganizationSeats: 1}
	default:
		return Limits{MaxResumes: 2, MaxTemplates: 3, OrganizationSeats: 1, PDFWatermark: true}
	}
}
