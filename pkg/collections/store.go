package collections

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements collection persistence using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateCollection inserts a new collection
func (s *PostgresStore) CreateCollection(ctx context.Context, collection *Collection) error {
	if collection.ID == uuid.Nil {
		collection.ID = uuid.New()
	}
	query := `
		INSERT INTO collections (id, organization_id, name, external_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	var externalID sql.NullString
	if collection.ExternalID != "" {
		externalID = sql.NullString{String: collection.ExternalID, Valid: true}
	}
	err := s.db.QueryRowContext(ctx, query, collection.ID, collection.OrganizationID,
		collection.Name, externalID).
		Scan(&collection.CreatedAt, &collection.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// GetCollection retrieves a collection by ID
func (s *PostgresStore) GetCollection(ctx context.Context, id uuid.UUID) (*Collection, error) {
	query := `SELECT id, organization_id, name, external_id, created_at, updated_at
		FROM collections WHERE id = $1`
	collection, err := scanCollection(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return collection, nil
}

// GetCollectionsByOrganization retrieves all collections of an organization
func (s *PostgresStore) GetCollectionsByOrganization(ctx context.Context, orgID uuid.UUID) ([]*Collection, error) {
	query := `SELECT id, organization_id, name, external_id, created_at, updated_at
		FROM collections WHERE organization_id = $1 ORDER BY name ASC`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var result []*Collection
	for rows.Next() {
		collection, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		result = append(result, collection)
	}
	return result, rows.Err()
}

// GetManyByOrgUser retrieves every collection a member can reach, with the
// effective access flags. Direct grants and group grants are merged; the
// most permissive flag combination wins.
func (s *PostgresStore) GetManyByOrgUser(ctx context.Context, orgUserID uuid.UUID) ([]CollectionDetails, error) {
	query := `
		SELECT c.id, c.organization_id, c.name, c.external_id, c.created_at, c.updated_at,
		       BOOL_AND(a.read_only) AS read_only,
		       BOOL_AND(a.hide_passwords) AS hide_passwords,
		       BOOL_OR(a.manage) AS manage
		FROM collections c
		JOIN (
			SELECT collection_id, read_only, hide_passwords, manage
			FROM collection_users
			WHERE organization_user_id = $1
			UNION ALL
			SELECT cg.collection_id, cg.read_only, cg.hide_passwords, cg.manage
			FROM collection_groups cg
			JOIN group_users gu ON gu.group_id = cg.group_id
			WHERE gu.organization_user_id = $1
		) a ON a.collection_id = c.id
		GROUP BY c.id, c.organization_id, c.name, c.external_id, c.created_at, c.updated_at
	`
	rows, err := s.db.QueryContext(ctx, query, orgUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get collections for member: %w", err)
	}
	defer rows.Close()

	var result []CollectionDetails
	for rows.Next() {
		var details CollectionDetails
		var externalID sql.NullString
		if err := rows.Scan(&details.ID, &details.OrganizationID, &details.Name,
			&externalID, &details.CreatedAt, &details.UpdatedAt,
			&details.ReadOnly, &details.HidePasswords, &details.Manage); err != nil {
			return nil, fmt.Errorf("failed to scan collection details: %w", err)
		}
		if externalID.Valid {
			details.ExternalID = externalID.String
		}
		result = append(result, details)
	}
	return result, rows.Err()
}

// GetAccessSelectionsByOrgUser retrieves a member's direct collection grants
func (s *PostgresStore) GetAccessSelectionsByOrgUser(ctx context.Context, orgUserID uuid.UUID) ([]AccessSelection, error) {
	query := `SELECT collection_id, read_only, hide_passwords, manage
		FROM collection_users WHERE organization_user_id = $1`
	rows, err := s.db.QueryContext(ctx, query, orgUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection grants: %w", err)
	}
	defer rows.Close()
	return collectSelections(rows)
}

// GetCollectionWithAccess retrieves a collection plus every member and group
// grant attached to it
func (s *PostgresStore) GetCollectionWithAccess(ctx context.Context, id uuid.UUID) (*CollectionAccessDetails, error) {
	collection, err := s.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}

	details := &CollectionAccessDetails{Collection: *collection}

	userRows, err := s.db.QueryContext(ctx,
		`SELECT organization_user_id, read_only, hide_passwords, manage
		FROM collection_users WHERE collection_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection users: %w", err)
	}
	defer userRows.Close()
	if details.Users, err = collectSelections(userRows); err != nil {
		return nil, err
	}

	groupRows, err := s.db.QueryContext(ctx,
		`SELECT group_id, read_only, hide_passwords, manage
		FROM collection_groups WHERE collection_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection groups: %w", err)
	}
	defer groupRows.Close()
	if details.Groups, err = collectSelections(groupRows); err != nil {
		return nil, err
	}

	return details, nil
}

// ReplaceOrgUserAccess replaces a member's direct collection grants with the
// given set, all within one transaction
func (s *PostgresStore) ReplaceOrgUserAccess(ctx context.Context, orgUserID uuid.UUID, selections []AccessSelection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM collection_users WHERE organization_user_id = $1`, orgUserID); err != nil {
		return fmt.Errorf("failed to clear collection grants: %w", err)
	}

	for _, selection := range selections {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO collection_users (collection_id, organization_user_id, read_only, hide_passwords, manage)
			VALUES ($1, $2, $3, $4, $5)
		`, selection.ID, orgUserID, selection.ReadOnly, selection.HidePasswords, selection.Manage); err != nil {
			return fmt.Errorf("failed to insert collection grant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collection grants: %w", err)
	}
	return nil
}

// DeleteCollection hard-deletes a collection and its grants
func (s *PostgresStore) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOrgUserAccess removes every direct grant of the given members.
// Used when members leave the organization.
func (s *PostgresStore) DeleteOrgUserAccess(ctx context.Context, orgUserIDs []uuid.UUID) error {
	if len(orgUserIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM collection_users WHERE organization_user_id = ANY($1)`,
		pq.Array(orgUserIDs))
	if err != nil {
		return fmt.Errorf("failed to delete collection grants: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCollection(scanner rowScanner) (*Collection, error) {
	collection := &Collection{}
	var externalID sql.NullString
	err := scanner.Scan(&collection.ID, &collection.OrganizationID, &collection.Name,
		&externalID, &collection.CreatedAt, &collection.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if externalID.Valid {
		collection.ExternalID = externalID.String
	}
	return collection, nil
}

func collectSelections(rows *sql.Rows) ([]AccessSelection, error) {
	var selections []AccessSelection
	for rows.Next() {
		var s AccessSelection
		if err := rows.Scan(&s.ID, &s.ReadOnly, &s.HidePasswords, &s.Manage); err != nil {
			return nil, fmt.Errorf("failed to scan access selection: %w", err)
		}
		selections = append(selections, s)
	}
	return selections, rows.Err()
}
