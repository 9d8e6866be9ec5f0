package collections

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all collection migrations. They depend on the
// organization tables and must run after them.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create collections table",
			SQL: `
				CREATE TABLE IF NOT EXISTS collections (
					id UUID PRIMARY KEY,
					organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					external_id VARCHAR(255),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_collections_organization_id ON collections(organization_id);
			`,
		},
		{
			Version:     2,
			Description: "Create groups tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS groups (
					id UUID PRIMARY KEY,
					organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS group_users (
					group_id UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					organization_user_id UUID NOT NULL REFERENCES organization_users(id) ON DELETE CASCADE,
					PRIMARY KEY (group_id, organization_user_id)
				);

				CREATE INDEX idx_groups_organization_id ON groups(organization_id);
				CREATE INDEX idx_group_users_org_user_id ON group_users(organization_user_id);
			`,
		},
		{
			Version:     3,
			Description: "Create collection access tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS collection_users (
					collection_id UUID NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
					organization_user_id UUID NOT NULL REFERENCES organization_users(id) ON DELETE CASCADE,
					read_only BOOLEAN NOT NULL DEFAULT FALSE,
					hide_passwords BOOLEAN NOT NULL DEFAULT FALSE,
					manage BOOLEAN NOT NULL DEFAULT FALSE,
					PRIMARY KEY (collection_id, organization_user_id)
				);

				CREATE TABLE IF NOT EXISTS collection_groups (
					collection_id UUID NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
					group_id UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					read_only BOOLEAN NOT NULL DEFAULT FALSE,
					hide_passwords BOOLEAN NOT NULL DEFAULT FALSE,
					manage BOOLEAN NOT NULL DEFAULT FALSE,
					PRIMARY KEY (collection_id, group_id)
				);

				CREATE INDEX idx_collection_users_org_user_id ON collection_users(organization_user_id);
				CREATE INDEX idx_collection_groups_group_id ON collection_groups(group_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS collection_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM collection_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO collection_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
