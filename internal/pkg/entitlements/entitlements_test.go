package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/CVFox/app/models"
)

func TestForState(t *testing.T) {
	cases := []struct {
		name  string
		state *models.SubscriptionState
		want  Plan
	}{
		{"nil", nil, PlanFree},
		{"empty", models.EmptySubscriptionState(1), PlanFree},
		{"active", &models.SubscriptionState{Plan: "pro", Status: models.SubscriptionStatusActive}, PlanPro},
		{"trialing", &models.SubscriptionState{Plan: "Team", Status: models.SubscriptionStatusTrialing}, PlanTeam},
		{"past due keeps plan", &models.SubscriptionState{Plan: "pro", Status: models.SubscriptionStatusPastDue}, PlanPro},
		{"first payment pending", &models.SubscriptionState{Plan: "pro", Status: models.SubscriptionStatusNone}, PlanFree},
		{"canceled", &models.SubscriptionState{Plan: "pro", Status: models.SubscriptionStatusCanceled}, PlanFree},
		{"active without plan", &models.SubscriptionState{Status: models.SubscriptionStatusActive}, PlanFree},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ForState(tc.state))
		})
	}
}

func TestLimitsFor(t *testing.T) {
	assert.True(t, LimitsFor(PlanFree).PDFWatermark)
	assert.False(t, LimitsFor(PlanPro).PDFWatermark)
	assert.Equal(t, 25, LimitsFor(PlanTeam).OrganizationSeats)
	assert.Equal(t, LimitsFor(PlanFree), LimitsFor(Plan("legacy")))
}
