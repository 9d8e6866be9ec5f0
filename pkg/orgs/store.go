package orgs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements organization and membership persistence using
// PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orgColumns = `id, name, billing_email, plan_type, status, enabled,
	       seats, max_autoscale_seats, use_secrets_manager, sm_seats,
	       sm_service_accounts, max_autoscale_sm_seats, use_policies,
	       use_reset_password, use_custom_permissions, flexible_collections,
	       allow_admin_access_to_all_collection_items,
	       limit_collection_creation_deletion, gateway_customer_id,
	       gateway_subscription_id, owners_notified_of_autoscaling,
	       sm_owners_notified_of_autoscaling, expiration_date, created_at, updated_at`

// CreateOrganization inserts a new organization
func (s *PostgresStore) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	query := `
		INSERT INTO organizations (id, name, billing_email, plan_type, status, enabled,
			seats, max_autoscale_seats, use_secrets_manager, sm_seats,
			sm_service_accounts, max_autoscale_sm_seats, use_policies,
			use_reset_password, use_custom_permissions, flexible_collections,
			allow_admin_access_to_all_collection_items,
			limit_collection_creation_deletion, gateway_customer_id,
			gateway_subscription_id, expiration_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, org.ID, org.Name, org.BillingEmail,
		org.PlanType, org.Status, org.Enabled, org.Seats, org.MaxAutoscaleSeats,
		org.UseSecretsManager, org.SmSeats, org.SmServiceAccounts,
		org.MaxAutoscaleSmSeats, org.UsePolicies, org.UseResetPassword,
		org.UseCustomPermissions, org.FlexibleCollections,
		org.AllowAdminAccessToAllCollectionItems, org.LimitCollectionCreationDeletion,
		nullString(org.GatewayCustomerID), nullString(org.GatewaySubscriptionID),
		org.ExpirationDate).
		Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetOrganization retrieves an organization by ID
func (s *PostgresStore) GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`
	org, err := scanOrganization(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "organization"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// ReplaceOrganization saves the full state of an existing organization
func (s *PostgresStore) ReplaceOrganization(ctx context.Context, org *Organization) error {
	query := `
		UPDATE organizations
		SET name = $2, billing_email = $3, plan_type = $4, status = $5, enabled = $6,
		    seats = $7, max_autoscale_seats = $8, use_secrets_manager = $9,
		    sm_seats = $10, sm_service_accounts = $11, max_autoscale_sm_seats = $12,
		    use_policies = $13, use_reset_password = $14, use_custom_permissions = $15,
		    flexible_collections = $16, allow_admin_access_to_all_collection_items = $17,
		    limit_collection_creation_deletion = $18, gateway_customer_id = $19,
		    gateway_subscription_id = $20, owners_notified_of_autoscaling = $21,
		    sm_owners_notified_of_autoscaling = $22, expiration_date = $23,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, org.ID, org.Name, org.BillingEmail,
		org.PlanType, org.Status, org.Enabled, org.Seats, org.MaxAutoscaleSeats,
		org.UseSecretsManager, org.SmSeats, org.SmServiceAccounts,
		org.MaxAutoscaleSmSeats, org.UsePolicies, org.UseResetPassword,
		org.UseCustomPermissions, org.FlexibleCollections,
		org.AllowAdminAccessToAllCollectionItems, org.LimitCollectionCreationDeletion,
		nullString(org.GatewayCustomerID), nullString(org.GatewaySubscriptionID),
		org.OwnersNotifiedOfAutoscaling, org.SmOwnersNotifiedOfAutoscaling,
		org.ExpirationDate)
	if err != nil {
		return fmt.Errorf("failed to replace organization: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &NotFoundError{Resource: "organization"}
	}
	return nil
}

// DeleteOrganization hard-deletes an organization. Membership and collection
// records cascade at the schema level.
func (s *PostgresStore) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &NotFoundError{Resource: "organization"}
	}
	return nil
}

const orgUserColumns = `id, organization_id, user_id, email, key, type, status,
	       access_all, access_secrets_manager, permissions, reset_password_key,
	       external_id, created_at, updated_at`

// CreateOrgUser inserts a single membership record
func (s *PostgresStore) CreateOrgUser(ctx context.Context, user *OrgUser) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	permissionsJSON, err := marshalPermissions(user.Permissions)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO organization_users (id, organization_id, user_id, email, key,
			type, status, access_all, access_secrets_manager, permissions,
			reset_password_key, external_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query, user.ID, user.OrganizationID, user.UserID,
		nullString(user.Email), nullString(user.Key), user.Type, user.Status,
		user.AccessAll, user.AccessSecretsManager, permissionsJSON,
		nullString(user.ResetPasswordKey), nullString(user.ExternalID)).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create org user: %w", err)
	}
	return nil
}

// CreateOrgUsers inserts a batch of membership records one by one. Callers
// own compensation if a later insert fails.
func (s *PostgresStore) CreateOrgUsers(ctx context.Context, users []*OrgUser) error {
	for _, user := range users {
		if err := s.CreateOrgUser(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

// GetOrgUser retrieves a membership record by ID
func (s *PostgresStore) GetOrgUser(ctx context.Context, id uuid.UUID) (*OrgUser, error) {
	query := `SELECT ` + orgUserColumns + ` FROM organization_users WHERE id = $1`
	user, err := scanOrgUser(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "member"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get org user: %w", err)
	}
	return user, nil
}

// GetOrgUserByOrganizationAndUser retrieves the membership record linking a
// known user to an organization
func (s *PostgresStore) GetOrgUserByOrganizationAndUser(ctx context.Context, orgID, userID uuid.UUID) (*OrgUser, error) {
	query := `SELECT ` + orgUserColumns + ` FROM organization_users
		WHERE organization_id = $1 AND user_id = $2`
	user, err := scanOrgUser(s.db.QueryRowContext(ctx, query, orgID, userID))
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "member"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get org user: %w", err)
	}
	return user, nil
}

// GetManyOrgUsers retrieves membership records by ID
func (s *PostgresStore) GetManyOrgUsers(ctx context.Context, ids []uuid.UUID) ([]*OrgUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + orgUserColumns + ` FROM organization_users WHERE id = ANY($1)`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get org users: %w", err)
	}
	defer rows.Close()
	return collectOrgUsers(rows)
}

// GetOrgUsersByOrganization retrieves all membership records of an
// organization
func (s *PostgresStore) GetOrgUsersByOrganization(ctx context.Context, orgID uuid.UUID) ([]*OrgUser, error) {
	query := `SELECT ` + orgUserColumns + ` FROM organization_users
		WHERE organization_id = $1
		ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list org users: %w", err)
	}
	defer rows.Close()
	return collectOrgUsers(rows)
}

// GetOrgUsersByOrganizationType retrieves membership records of a given role
func (s *PostgresStore) GetOrgUsersByOrganizationType(ctx context.Context, orgID uuid.UUID, userType UserType) ([]*OrgUser, error) {
	query := `SELECT ` + orgUserColumns + ` FROM organization_users
		WHERE organization_id = $1 AND type = $2`
	rows, err := s.db.QueryContext(ctx, query, orgID, userType)
	if err != nil {
		return nil, fmt.Errorf("failed to list org users by type: %w", err)
	}
	defer rows.Close()
	return collectOrgUsers(rows)
}

// GetOrgUsersByUser retrieves every membership record of a user across
// organizations
func (s *PostgresStore) GetOrgUsersByUser(ctx context.Context, userID uuid.UUID) ([]*OrgUser, error) {
	query := `SELECT ` + orgUserColumns + ` FROM organization_users WHERE user_id = $1`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list org users by user: %w", err)
	}
	defer rows.Close()
	return collectOrgUsers(rows)
}

// ReplaceOrgUser saves the full state of an existing membership record
func (s *PostgresStore) ReplaceOrgUser(ctx context.Context, user *OrgUser) error {
	permissionsJSON, err := marshalPermissions(user.Permissions)
	if err != nil {
		return err
	}
	query := `
		UPDATE organization_users
		SET user_id = $2, email = $3, key = $4, type = $5, status = $6,
		    access_all = $7, access_secrets_manager = $8, permissions = $9,
		    reset_password_key = $10, external_id = $11, updated_at = NOW()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, user.ID, user.UserID,
		nullString(user.Email), nullString(user.Key), user.Type, user.Status,
		user.AccessAll, user.AccessSecretsManager, permissionsJSON,
		nullString(user.ResetPasswordKey), nullString(user.ExternalID))
	if err != nil {
		return fmt.Errorf("failed to replace org user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &NotFoundError{Resource: "member"}
	}
	return nil
}

// ReplaceManyOrgUsers saves a batch of membership records
func (s *PostgresStore) ReplaceManyOrgUsers(ctx context.Context, users []*OrgUser) error {
	for _, user := range users {
		if err := s.ReplaceOrgUser(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

// DeleteOrgUser hard-deletes a membership record
func (s *PostgresStore) DeleteOrgUser(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM organization_users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete org user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &NotFoundError{Resource: "member"}
	}
	return nil
}

// DeleteManyOrgUsers hard-deletes a batch of membership records
func (s *PostgresStore) DeleteManyOrgUsers(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM organization_users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to delete org users: %w", err)
	}
	return nil
}

// DeleteExpiredInvites removes invited membership records older than the
// cutoff. Accepted and confirmed members are never touched.
func (s *PostgresStore) DeleteExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM organization_users WHERE status = $1 AND created_at < $2`,
		UserStatusInvited, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invites: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// RevokeOrgUser marks a membership record revoked
func (s *PostgresStore) RevokeOrgUser(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE organization_users SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, UserStatusRevoked, id)
	if err != nil {
		return fmt.Errorf("failed to revoke org user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &NotFoundError{Resource: "member"}
	}
	return nil
}

// RestoreOrgUser returns a revoked membership record to the given status
func (s *PostgresStore) RestoreOrgUser(ctx context.Context, id uuid.UUID, status UserStatus) error {
	query := `UPDATE organization_users SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to restore org user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &NotFoundError{Resource: "member"}
	}
	return nil
}

// GetOccupiedSeatCount counts non-revoked membership records. Invited
// members occupy seats too.
func (s *PostgresStore) GetOccupiedSeatCount(ctx context.Context, orgID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM organization_users
		WHERE organization_id = $1 AND status != $2`
	var count int
	if err := s.db.QueryRowContext(ctx, query, orgID, UserStatusRevoked).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count occupied seats: %w", err)
	}
	return count, nil
}

// GetOccupiedSmSeatCount counts non-revoked membership records with secrets
// manager access
func (s *PostgresStore) GetOccupiedSmSeatCount(ctx context.Context, orgID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM organization_users
		WHERE organization_id = $1 AND status != $2 AND access_secrets_manager = TRUE`
	var count int
	if err := s.db.QueryRowContext(ctx, query, orgID, UserStatusRevoked).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count occupied sm seats: %w", err)
	}
	return count, nil
}

// SelectKnownEmails returns the subset of emails already present among an
// organization's members, matched case-insensitively. Emails are returned
// lowercased.
func (s *PostgresStore) SelectKnownEmails(ctx context.Context, orgID uuid.UUID, emails []string) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	lowered := make([]string, 0, len(emails))
	for _, email := range emails {
		lowered = append(lowered, strings.ToLower(email))
	}
	query := `
		SELECT DISTINCT LOWER(COALESCE(ou.email, u.email))
		FROM organization_users ou
		LEFT JOIN users u ON ou.user_id = u.id
		WHERE ou.organization_id = $1
		  AND LOWER(COALESCE(ou.email, u.email)) = ANY($2)
	`
	rows, err := s.db.QueryContext(ctx, query, orgID, pq.Array(lowered))
	if err != nil {
		return nil, fmt.Errorf("failed to select known emails: %w", err)
	}
	defer rows.Close()

	var known []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan known email: %w", err)
		}
		known = append(known, email)
	}
	return known, rows.Err()
}

// GetConfirmedOwners retrieves the organization's confirmed owner-role
// members
func (s *PostgresStore) GetConfirmedOwners(ctx context.Context, orgID uuid.UUID) ([]*OrgUser, error) {
	query := `SELECT ` + orgUserColumns + ` FROM organization_users
		WHERE organization_id = $1 AND type = $2 AND status = $3`
	rows, err := s.db.QueryContext(ctx, query, orgID, UserTypeOwner, UserStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmed owners: %w", err)
	}
	defer rows.Close()
	return collectOrgUsers(rows)
}

// GetOwnerEmails returns distinct notification addresses for an
// organization's owner-role members
func (s *PostgresStore) GetOwnerEmails(ctx context.Context, orgID uuid.UUID) ([]string, error) {
	query := `
		SELECT DISTINCT COALESCE(u.email, ou.email)
		FROM organization_users ou
		LEFT JOIN users u ON ou.user_id = u.id
		WHERE ou.organization_id = $1 AND ou.type = $2
		  AND COALESCE(u.email, ou.email) IS NOT NULL
	`
	rows, err := s.db.QueryContext(ctx, query, orgID, UserTypeOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to get owner emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan owner email: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// GetUserEmail returns the account email of a registered user
func (s *PostgresStore) GetUserEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err == sql.ErrNoRows {
		return "", &NotFoundError{Resource: "user"}
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user email: %w", err)
	}
	return email, nil
}

// GetCountByFreeOrganizationAdmin counts the free-plan organizations in
// which the user is a non-revoked admin or owner. Free plans cap a user to
// administering one organization.
func (s *PostgresStore) GetCountByFreeOrganizationAdmin(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM organization_users ou
		JOIN organizations o ON ou.organization_id = o.id
		WHERE ou.user_id = $1
		  AND o.plan_type = $2
		  AND ou.type IN ($3, $4)
		  AND ou.status != $5
	`
	var count int
	err := s.db.QueryRowContext(ctx, query, userID, PlanFree,
		UserTypeOwner, UserTypeAdmin, UserStatusRevoked).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count free org admins: %w", err)
	}
	return count, nil
}

// GetProviderByOrganization retrieves the provider backing an organization,
// if any. Returns nil without error when the org has no provider.
func (s *PostgresStore) GetProviderByOrganization(ctx context.Context, orgID uuid.UUID) (*Provider, error) {
	query := `
		SELECT p.id, p.name, p.type, p.enabled
		FROM providers p
		JOIN provider_organizations po ON po.provider_id = p.id
		WHERE po.organization_id = $1
	`
	provider := &Provider{}
	err := s.db.QueryRowContext(ctx, query, orgID).
		Scan(&provider.ID, &provider.Name, &provider.Type, &provider.Enabled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return provider, nil
}

// GetConfirmedProviderUsers retrieves the confirmed provider operators with
// access to an organization
func (s *PostgresStore) GetConfirmedProviderUsers(ctx context.Context, orgID uuid.UUID) ([]*ProviderUser, error) {
	query := `
		SELECT pu.id, pu.provider_id, pu.user_id, pu.email, pu.status, p.type, p.enabled
		FROM provider_users pu
		JOIN providers p ON pu.provider_id = p.id
		JOIN provider_organizations po ON po.provider_id = p.id
		WHERE po.organization_id = $1 AND pu.status = $2
	`
	rows, err := s.db.QueryContext(ctx, query, orgID, UserStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider users: %w", err)
	}
	defer rows.Close()

	var providerUsers []*ProviderUser
	for rows.Next() {
		pu := &ProviderUser{}
		var email sql.NullString
		if err := rows.Scan(&pu.ID, &pu.ProviderID, &pu.UserID, &email,
			&pu.Status, &pu.ProviderType, &pu.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan provider user: %w", err)
		}
		if email.Valid {
			pu.Email = email.String
		}
		providerUsers = append(providerUsers, pu)
	}
	return providerUsers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrganization(scanner rowScanner) (*Organization, error) {
	org := &Organization{}
	var gatewayCustomerID, gatewaySubscriptionID sql.NullString
	err := scanner.Scan(
		&org.ID, &org.Name, &org.BillingEmail, &org.PlanType, &org.Status,
		&org.Enabled, &org.Seats, &org.MaxAutoscaleSeats, &org.UseSecretsManager,
		&org.SmSeats, &org.SmServiceAccounts, &org.MaxAutoscaleSmSeats,
		&org.UsePolicies, &org.UseResetPassword, &org.UseCustomPermissions,
		&org.FlexibleCollections, &org.AllowAdminAccessToAllCollectionItems,
		&org.LimitCollectionCreationDeletion, &gatewayCustomerID,
		&gatewaySubscriptionID, &org.OwnersNotifiedOfAutoscaling,
		&org.SmOwnersNotifiedOfAutoscaling, &org.ExpirationDate,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if gatewayCustomerID.Valid {
		org.GatewayCustomerID = gatewayCustomerID.String
	}
	if gatewaySubscriptionID.Valid {
		org.GatewaySubscriptionID = gatewaySubscriptionID.String
	}
	return org, nil
}

func scanOrgUser(scanner rowScanner) (*OrgUser, error) {
	user := &OrgUser{}
	var email, key, resetPasswordKey, externalID sql.NullString
	var permissionsJSON []byte
	err := scanner.Scan(
		&user.ID, &user.OrganizationID, &user.UserID, &email, &key,
		&user.Type, &user.Status, &user.AccessAll, &user.AccessSecretsManager,
		&permissionsJSON, &resetPasswordKey, &externalID,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if email.Valid {
		user.Email = email.String
	}
	if key.Valid {
		user.Key = key.String
	}
	if resetPasswordKey.Valid {
		user.ResetPasswordKey = resetPasswordKey.String
	}
	if externalID.Valid {
		user.ExternalID = externalID.String
	}
	if len(permissionsJSON) > 0 {
		perms := &Permissions{}
		if err := json.Unmarshal(permissionsJSON, perms); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
		user.Permissions = perms
	}
	return user, nil
}

func collectOrgUsers(rows *sql.Rows) ([]*OrgUser, error) {
	var users []*OrgUser
	for rows.Next() {
		user, err := scanOrgUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan org user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func marshalPermissions(perms *Permissions) ([]byte, error) {
	if perms == nil {
		return nil, nil
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal permissions: %w", err)
	}
	return data, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
