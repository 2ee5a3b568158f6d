package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionStateIsNewerThan(t *testing.T) {
	s := &SubscriptionState{LastEventSequence: 5, LastEventID: "evt_m"}

	assert.True(t, s.IsNewerThan(6, "evt_a"))
	assert.False(t, s.IsNewerThan(4, "evt_z"))
	assert.False(t, s.IsNewerThan(5, "evt_m"), "same event is never newer")
	assert.True(t, s.IsNewerThan(5, "evt_n"))
	assert.False(t, s.IsNewerThan(5, "evt_a"))
}

func TestEmptySubscriptionState(t *testing.T) {
	s := EmptySubscriptionState(7)

	assert.Equal(t, uint(7), s.AccountID)
	assert.Equal(t, PlanFree, s.Plan)
	assert.Equal(t, SubscriptionStatusNone, s.Status)
	assert.Zero(t, s.LastEventSequence)
	assert.True(t, s.IsNewerThan(1, ""))
}

func TestCreateUser(t *testing.T) {
	u, err := CreateUser("jane doe", " Jane@Example.com ", "secret123")
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", u.Email)
	assert.Equal(t, ROLE_USER, u.Role)
	assert.True(t, u.IsActive())
	assert.True(t, u.CheckPassword("secret123"))
	assert.False(t, u.CheckPassword("wrong"))

	_, err = CreateUser("jo", "not-an-email", "secret123")
	assert.Error(t, err)
}
