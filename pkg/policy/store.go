package policy

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore implements policy persistence using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert creates or updates an organization's policy of the given type
func (s *PostgresStore) Upsert(ctx context.Context, policy *Policy) error {
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	query := `
		INSERT INTO policies (id, organization_id, type, enabled, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organization_id, type)
		DO UPDATE SET enabled = EXCLUDED.enabled, data = EXCLUDED.data, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	var data interface{}
	if len(policy.Data) > 0 {
		data = []byte(policy.Data)
	}
	err := s.db.QueryRowContext(ctx, query, policy.ID, policy.OrganizationID,
		policy.Type, policy.Enabled, data).
		Scan(&policy.ID, &policy.CreatedAt, &policy.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert policy: %w", err)
	}
	return nil
}

// GetByOrganization retrieves all policies of an organization
func (s *PostgresStore) GetByOrganization(ctx context.Context, orgID uuid.UUID) ([]*Policy, error) {
	query := `SELECT id, organization_id, type, enabled, data, created_at, updated_at
		FROM policies WHERE organization_id = $1`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var policies []*Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, policy)
	}
	return policies, rows.Err()
}

// GetByOrganizationType retrieves an organization's policy of the given
// type. Returns nil without error when the policy has never been configured.
func (s *PostgresStore) GetByOrganizationType(ctx context.Context, orgID uuid.UUID, policyType Type) (*Policy, error) {
	query := `SELECT id, organization_id, type, enabled, data, created_at, updated_at
		FROM policies WHERE organization_id = $1 AND type = $2`
	policy, err := scanPolicy(s.db.QueryRowContext(ctx, query, orgID, policyType))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	return policy, nil
}

// CountApplicableToUser counts enabled policies of the given type in
// organizations the user actively belongs to, excluding one organization.
// Owners, admins and provider-managed organizations are exempt, matching
// how policies are enforced elsewhere.
func (s *PostgresStore) CountApplicableToUser(ctx context.Context, userID uuid.UUID, policyType Type, excludeOrgID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM policies p
		JOIN organization_users ou ON ou.organization_id = p.organization_id
		WHERE ou.user_id = $1
		  AND p.type = $2
		  AND p.enabled = TRUE
		  AND p.organization_id != $3
		  AND ou.status IN ('accepted', 'confirmed')
		  AND ou.type NOT IN ('owner', 'admin')
		  AND NOT EXISTS (
			SELECT 1 FROM provider_users pu
			JOIN provider_organizations po ON po.provider_id = pu.provider_id
			WHERE pu.user_id = $1 AND po.organization_id = p.organization_id
		  )
	`
	var count int
	err := s.db.QueryRowContext(ctx, query, userID, policyType, excludeOrgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count applicable policies: %w", err)
	}
	return count, nil
}

// GetUserTwoFactorEnabled reports whether a user account has two-step login
// configured
func (s *PostgresStore) GetUserTwoFactorEnabled(ctx context.Context, userID uuid.UUID) (bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx,
		`SELECT two_factor_enabled FROM users WHERE id = $1`, userID).Scan(&enabled)
	if err != nil {
		return false, fmt.Errorf("failed to get two factor state: %w", err)
	}
	return enabled, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPolicy(scanner rowScanner) (*Policy, error) {
	policy := &Policy{}
	var data []byte
	err := scanner.Scan(&policy.ID, &policy.OrganizationID, &policy.Type,
		&policy.Enabled, &data, &policy.CreatedAt, &policy.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		policy.Data = data
	}
	return policy, nil
}
