package billing

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CVFox/app/models"
)

func newMockRepository(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	return openMockRepository(t, sqlDB), mock
}

func openMockRepository(t *testing.T, sqlDB *sql.DB) Repository {
	t.Helper()
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return NewRepository(db)
}

func TestGormRepository_ReadSubscriptionState_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT \\* FROM `subscription_states`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id"}))

	state, err := repo.ReadSubscriptionState(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, uint(3), state.AccountID)
	assert.Equal(t, models.SubscriptionStatusNone, state.Status)
	assert.False(t, VersionOf(state).Exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepository_ReadSubscriptionState_Found(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := sqlmock.NewRows([]string{"id", "account_id", "plan", "status", "last_event_sequence", "last_event_id"}).
		AddRow(11, 3, "pro", "trialing", 3, "evt_3")
	mock.ExpectQuery("SELECT \\* FROM `subscription_states`").WillReturnRows(rows)

	state, err := repo.ReadSubscriptionState(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "trialing", state.Status)
	assert.Equal(t, StateVersion{Exists: true, Sequence: 3, EventID: "evt_3"}, VersionOf(state))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepository_WriteSubscriptionState_ConditionalUpdate(t *testing.T) {
	repo, mock := newMockRepository(t)
	next := &models.SubscriptionState{ID: 11, AccountID: 3, Plan: "pro", Status: "active", LastEventSequence: 5, LastEventID: "evt_5"}
	expected := StateVersion{Exists: true, Sequence: 3, EventID: "evt_3"}

	mock.ExpectExec("UPDATE `subscription_states` SET .* WHERE \\(?account_id = \\? AND last_event_sequence = \\? AND last_event_id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.WriteSubscriptionState(context.Background(), next, expected))

	// A concurrent writer moved the row on: nothing matches the expected version.
	mock.ExpectExec("UPDATE `subscription_states` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.WriteSubscriptionState(context.Background(), next, expected)
	assert.True(t, errors.Is(err, ErrConflict))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepository_WriteSubscriptionState_FirstWrite(t *testing.T) {
	repo, mock := newMockRepository(t)
	next := &models.SubscriptionState{AccountID: 3, Plan: "pro", Status: "active", LastEventSequence: 5, LastEventID: "evt_5"}

	mock.ExpectExec("INSERT INTO `subscription_states`").
		WillReturnResult(sqlmock.NewResult(21, 1))
	require.NoError(t, repo.WriteSubscriptionState(context.Background(), next, StateVersion{}))
	assert.Equal(t, uint(21), next.ID)

	// Lost the race against another first write for the same account.
	other := &models.SubscriptionState{AccountID: 3, Plan: "pro", Status: "trialing", LastEventSequence: 4, LastEventID: "evt_4"}
	mock.ExpectExec("INSERT INTO `subscription_states`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.WriteSubscriptionState(context.Background(), other, StateVersion{})
	assert.True(t, errors.Is(err, ErrConflict))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepository_WriteSubscriptionState_DatabaseError(t *testing.T) {
	repo, mock := newMockRepository(t)
	boom := errors.New("connection reset")

	mock.ExpectExec("UPDATE `subscription_states`").WillReturnError(boom)
	err := repo.WriteSubscriptionState(context.Background(), &models.SubscriptionState{AccountID: 1}, StateVersion{Exists: true})
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRepository_UpsertBillingAccount_KeepsEmailWhenUnknown(t *testing.T) {
	// updateClause holds the ON DUPLICATE KEY part of the latest upsert.
	var updateClause string
	matcher := sqlmock.QueryMatcherFunc(func(expected, actual string) error {
		if i := strings.Index(actual, "ON DUPLICATE KEY UPDATE"); i >= 0 {
			updateClause = actual[i:]
		}
		return sqlmock.QueryMatcherRegexp.Match(expected, actual)
	})
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(matcher))
	require.NoError(t, err)
	repo := openMockRepository(t, sqlDB)

	mock.ExpectExec("INSERT INTO `billing_accounts`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT \\* FROM `billing_accounts`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "provider", "provider_customer_id", "email"}).
			AddRow(1, 17, models.BillingProviderStripe, "cus_9", "seventeen@example.com"))

	account := &models.BillingAccount{UserID: 17, Provider: models.BillingProviderStripe, ProviderCustomerID: "cus_9"}
	require.NoError(t, repo.UpsertBillingAccount(context.Background(), account))
	assert.Equal(t, "seventeen@example.com", account.Email)

	assert.Contains(t, updateClause, "provider_customer_id")
	assert.NotContains(t, updateClause, "`email`")

	mock.ExpectExec("INSERT INTO `billing_accounts`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT \\* FROM `billing_accounts`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "provider", "provider_customer_id", "email"}).
			AddRow(1, 17, models.BillingProviderStripe, "cus_9", "new@example.com"))

	account = &models.BillingAccount{UserID: 17, Provider: models.BillingProviderStripe, ProviderCustomerID: "cus_9", Email: "new@example.com"}
	require.NoError(t, repo.UpsertBillingAccount(context.Background(), account))
	assert.Contains(t, updateClause, "`email`")

	require.NoError(t, mock.ExpectationsWereMet())
}
