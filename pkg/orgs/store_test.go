package orgs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to create a new mock store
func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	store := NewPostgresStore(db)
	return store, mock, db
}

func orgUserRowColumns() []string {
	return []string{
		"id", "organization_id", "user_id", "email", "key", "type", "status",
		"access_all", "access_secrets_manager", "permissions", "reset_password_key",
		"external_id", "created_at", "updated_at",
	}
}

func TestGetOrganization(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("success", func(t *testing.T) {
		orgID := uuid.New()
		now := time.Now()
		seats := 10

		rows := sqlmock.NewRows([]string{
			"id", "name", "billing_email", "plan_type", "status", "enabled",
			"seats", "max_autoscale_seats", "use_secrets_manager", "sm_seats",
			"sm_service_accounts", "max_autoscale_sm_seats", "use_policies",
			"use_reset_password", "use_custom_permissions", "flexible_collections",
			"allow_admin_access_to_all_collection_items",
			"limit_collection_creation_deletion", "gateway_customer_id",
			"gateway_subscription_id", "owners_notified_of_autoscaling",
			"sm_owners_notified_of_autoscaling", "expiration_date", "created_at", "updated_at",
		}).AddRow(orgID, "Acme Corp", "billing@acme.com", PlanTeams, OrgStatusCreated, true,
			seats, nil, false, nil, nil, nil, true, false, false, true, true, false,
			"cus_123", "sub_456", nil, nil, nil, now, now)

		mock.ExpectQuery(`SELECT (.+) FROM organizations WHERE id = \$1`).
			WithArgs(orgID).
			WillReturnRows(rows)

		org, err := store.GetOrganization(context.Background(), orgID)
		require.NoError(t, err)
		assert.Equal(t, orgID, org.ID)
		assert.Equal(t, "Acme Corp", org.Name)
		assert.Equal(t, PlanTeams, org.PlanType)
		require.NotNil(t, org.Seats)
		assert.Equal(t, 10, *org.Seats)
		assert.Nil(t, org.MaxAutoscaleSeats)
		assert.Equal(t, "cus_123", org.GatewayCustomerID)
		assert.True(t, org.FlexibleCollections)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		orgID := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM organizations WHERE id = \$1`).
			WithArgs(orgID).
			WillReturnError(sql.ErrNoRows)

		org, err := store.GetOrganization(context.Background(), orgID)
		assert.Nil(t, org)
		assert.True(t, IsNotFound(err))

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReplaceOrganizationNotFound(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	org := &Organization{ID: uuid.New(), Name: "Ghost", PlanType: PlanFree}
	mock.ExpectExec(`UPDATE organizations`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.ReplaceOrganization(context.Background(), org)
	assert.True(t, IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrgUser(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("confirmed member with permissions", func(t *testing.T) {
		id := uuid.New()
		orgID := uuid.New()
		userID := uuid.New()
		now := time.Now()

		rows := sqlmock.NewRows(orgUserRowColumns()).
			AddRow(id, orgID, userID, nil, "org-key", UserTypeCustom, UserStatusConfirmed,
				false, true, []byte(`{"manageUsers":true,"editAnyCollection":true}`),
				nil, "ext-1", now, now)

		mock.ExpectQuery(`SELECT (.+) FROM organization_users WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(rows)

		user, err := store.GetOrgUser(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		require.NotNil(t, user.UserID)
		assert.Equal(t, userID, *user.UserID)
		assert.Equal(t, "", user.Email)
		assert.Equal(t, "org-key", user.Key)
		assert.Equal(t, UserTypeCustom, user.Type)
		require.NotNil(t, user.Permissions)
		assert.True(t, user.Permissions.ManageUsers)
		assert.True(t, user.Permissions.EditAnyCollection)
		assert.False(t, user.Permissions.ManageGroups)
		assert.True(t, user.AccessSecretsManager)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invited member has nil user and permissions", func(t *testing.T) {
		id := uuid.New()
		orgID := uuid.New()
		now := time.Now()

		rows := sqlmock.NewRows(orgUserRowColumns()).
			AddRow(id, orgID, nil, "new@example.com", nil, UserTypeUser, UserStatusInvited,
				false, false, nil, nil, nil, now, now)

		mock.ExpectQuery(`SELECT (.+) FROM organization_users WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(rows)

		user, err := store.GetOrgUser(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, user.UserID)
		assert.Equal(t, "new@example.com", user.Email)
		assert.Nil(t, user.Permissions)
		assert.Equal(t, UserStatusInvited, user.Status)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM organization_users WHERE id = \$1`).
			WithArgs(id).
			WillReturnError(sql.ErrNoRows)

		user, err := store.GetOrgUser(context.Background(), id)
		assert.Nil(t, user)
		assert.True(t, IsNotFound(err))

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetManyOrgUsers(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("empty input skips query", func(t *testing.T) {
		users, err := store.GetManyOrgUsers(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, users)
	})

	t.Run("returns matched rows", func(t *testing.T) {
		ids := []uuid.UUID{uuid.New(), uuid.New()}
		orgID := uuid.New()
		now := time.Now()

		rows := sqlmock.NewRows(orgUserRowColumns()).
			AddRow(ids[0], orgID, nil, "a@example.com", nil, UserTypeUser, UserStatusInvited,
				false, false, nil, nil, nil, now, now).
			AddRow(ids[1], orgID, nil, "b@example.com", nil, UserTypeAdmin, UserStatusInvited,
				false, false, nil, nil, nil, now, now)

		mock.ExpectQuery(`SELECT (.+) FROM organization_users WHERE id = ANY\(\$1\)`).
			WillReturnRows(rows)

		users, err := store.GetManyOrgUsers(context.Background(), ids)
		require.NoError(t, err)
		assert.Len(t, users, 2)
		assert.Equal(t, UserTypeAdmin, users[1].Type)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetOccupiedSeatCount(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	orgID := uuid.New()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM organization_users`).
		WithArgs(orgID, UserStatusRevoked).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := store.GetOccupiedSeatCount(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectKnownEmails(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("lowercases input before matching", func(t *testing.T) {
		orgID := uuid.New()

		mock.ExpectQuery(`SELECT DISTINCT LOWER\(COALESCE\(ou\.email, u\.email\)\)`).
			WithArgs(orgID, pq.Array([]string{"alice@example.com", "bob@example.com"})).
			WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("alice@example.com"))

		known, err := store.SelectKnownEmails(context.Background(), orgID,
			[]string{"Alice@Example.com", "BOB@example.com"})
		require.NoError(t, err)
		assert.Equal(t, []string{"alice@example.com"}, known)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty input skips query", func(t *testing.T) {
		known, err := store.SelectKnownEmails(context.Background(), uuid.New(), nil)
		require.NoError(t, err)
		assert.Nil(t, known)
	})
}

func TestRevokeAndRestoreOrgUser(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	id := uuid.New()

	t.Run("revoke", func(t *testing.T) {
		mock.ExpectExec(`UPDATE organization_users SET status = \$1`).
			WithArgs(UserStatusRevoked, id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.RevokeOrgUser(context.Background(), id))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("restore to prior status", func(t *testing.T) {
		mock.ExpectExec(`UPDATE organization_users SET status = \$1`).
			WithArgs(UserStatusConfirmed, id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.RestoreOrgUser(context.Background(), id, UserStatusConfirmed))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("revoke missing member", func(t *testing.T) {
		mock.ExpectExec(`UPDATE organization_users SET status = \$1`).
			WithArgs(UserStatusRevoked, id).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.RevokeOrgUser(context.Background(), id)
		assert.True(t, IsNotFound(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetProviderByOrganization(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("no provider returns nil without error", func(t *testing.T) {
		orgID := uuid.New()
		mock.ExpectQuery(`SELECT p\.id, p\.name, p\.type, p\.enabled`).
			WithArgs(orgID).
			WillReturnError(sql.ErrNoRows)

		provider, err := store.GetProviderByOrganization(context.Background(), orgID)
		require.NoError(t, err)
		assert.Nil(t, provider)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reseller provider", func(t *testing.T) {
		orgID := uuid.New()
		providerID := uuid.New()
		mock.ExpectQuery(`SELECT p\.id, p\.name, p\.type, p\.enabled`).
			WithArgs(orgID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "enabled"}).
				AddRow(providerID, "MSP Inc", ProviderTypeReseller, true))

		provider, err := store.GetProviderByOrganization(context.Background(), orgID)
		require.NoError(t, err)
		require.NotNil(t, provider)
		assert.Equal(t, ProviderTypeReseller, provider.Type)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetCountByFreeOrganizationAdmin(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	userID := uuid.New()
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(userID, PlanFree, UserTypeOwner, UserTypeAdmin, UserStatusRevoked).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := store.GetCountByFreeOrganizationAdmin(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpiredInvites(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	cutoff := time.Now().Add(-5 * 24 * time.Hour)
	mock.ExpectExec(`DELETE FROM organization_users WHERE status = \$1 AND created_at < \$2`).
		WithArgs(UserStatusInvited, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := store.DeleteExpiredInvites(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
