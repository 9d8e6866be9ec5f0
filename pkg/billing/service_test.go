package billing

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covault/covault/pkg/orgs"
)

func newMockGateway(t *testing.T) (*PostgresGateway, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresGateway(db), mock, db
}

func TestAdjustSeats(t *testing.T) {
	gateway, mock, db := newMockGateway(t)
	defer db.Close()

	org := &orgs.Organization{
		ID:                    uuid.New(),
		GatewayCustomerID:     "cus_1",
		GatewaySubscriptionID: "sub_1",
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE subscriptions SET seats = \$1`).
			WithArgs(12, org.ID, SubscriptionActive).
			WillReturnResult(sqlmock.NewResult(0, 1))

		secret, err := gateway.AdjustSeats(context.Background(), org, 12)
		require.NoError(t, err)
		assert.Equal(t, "", secret)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no subscription", func(t *testing.T) {
		bare := &orgs.Organization{ID: uuid.New()}
		_, err := gateway.AdjustSeats(context.Background(), bare, 12)

		var gatewayErr *GatewayError
		require.ErrorAs(t, err, &gatewayErr)
		assert.Equal(t, "payment gateway error", gatewayErr.Error())
	})

	t.Run("inactive subscription", func(t *testing.T) {
		mock.ExpectExec(`UPDATE subscriptions SET seats = \$1`).
			WithArgs(12, org.ID, SubscriptionActive).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := gateway.AdjustSeats(context.Background(), org, 12)
		var gatewayErr *GatewayError
		assert.ErrorAs(t, err, &gatewayErr)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGatewayErrorPreservesDetail(t *testing.T) {
	detail := errors.New("card declined")
	err := &GatewayError{Detail: detail}
	assert.Equal(t, "payment gateway error", err.Error())
	assert.ErrorIs(t, err, detail)
}

func TestGetSubscription(t *testing.T) {
	gateway, mock, db := newMockGateway(t)
	defer db.Close()

	orgID := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM subscriptions WHERE organization_id = \$1`).
		WithArgs(orgID).
		WillReturnError(sql.ErrNoRows)

	sub, err := gateway.GetSubscription(context.Background(), orgID)
	assert.Nil(t, sub)
	assert.True(t, orgs.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReinstateSubscription(t *testing.T) {
	gateway, mock, db := newMockGateway(t)
	defer db.Close()

	org := &orgs.Organization{
		ID:                    uuid.New(),
		GatewayCustomerID:     "cus_1",
		GatewaySubscriptionID: "sub_1",
	}

	t.Run("reactivates canceled subscription", func(t *testing.T) {
		mock.ExpectExec(`UPDATE subscriptions SET status = \$1`).
			WithArgs(SubscriptionActive, org.ID, SubscriptionCanceled).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, gateway.ReinstateSubscription(context.Background(), org))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing to reinstate", func(t *testing.T) {
		mock.ExpectExec(`UPDATE subscriptions SET status = \$1`).
			WithArgs(SubscriptionActive, org.ID, SubscriptionCanceled).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := gateway.ReinstateSubscription(context.Background(), org)
		var gatewayErr *GatewayError
		assert.ErrorAs(t, err, &gatewayErr)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNoopGateway(t *testing.T) {
	gateway := NoopGateway{}
	org := &orgs.Organization{ID: uuid.New()}

	customerID, subscriptionID, err := gateway.CreateCustomer(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Contains(t, customerID, org.ID.String())
	assert.Contains(t, subscriptionID, org.ID.String())

	_, err = gateway.AdjustSeats(context.Background(), org, 5)
	assert.NoError(t, err)
	_, err = gateway.AdjustSmSeats(context.Background(), org, 5)
	assert.NoError(t, err)
	assert.NoError(t, gateway.CancelSubscription(context.Background(), org))
	assert.NoError(t, gateway.ReinstateSubscription(context.Background(), org))
}
