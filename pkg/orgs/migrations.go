package orgs

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

// GetMigrations returns all organization migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY,
					email VARCHAR(256) NOT NULL UNIQUE,
					name VARCHAR(255),
					two_factor_enabled BOOLEAN NOT NULL DEFAULT FALSE,
					uses_key_connector BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_users_email_lower ON users(LOWER(email));
			`,
		},
		{
			Version:     2,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					billing_email VARCHAR(256) NOT NULL,
					plan_type VARCHAR(50) NOT NULL,
					status VARCHAR(50) NOT NULL DEFAULT 'created',
					enabled BOOLEAN NOT NULL DEFAULT TRUE,
					seats INT,
					max_autoscale_seats INT,
					use_secrets_manager BOOLEAN NOT NULL DEFAULT FALSE,
					sm_seats INT,
					sm_service_accounts INT,
					max_autoscale_sm_seats INT,
					use_policies BOOLEAN NOT NULL DEFAULT FALSE,
					use_reset_password BOOLEAN NOT NULL DEFAULT FALSE,
					use_custom_permissions BOOLEAN NOT NULL DEFAULT FALSE,
					flexible_collections BOOLEAN NOT NULL DEFAULT FALSE,
					allow_admin_access_to_all_collection_items BOOLEAN NOT NULL DEFAULT TRUE,
					limit_collection_creation_deletion BOOLEAN NOT NULL DEFAULT FALSE,
					gateway_customer_id VARCHAR(255),
					gateway_subscription_id VARCHAR(255),
					owners_notified_of_autoscaling TIMESTAMP,
					sm_owners_notified_of_autoscaling TIMESTAMP,
					expiration_date TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_organizations_plan_type ON organizations(plan_type);
			`,
		},
		{
			Version:     3,
			Description: "Create organization_users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organization_users (
					id UUID PRIMARY KEY,
					organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					user_id UUID REFERENCES users(id) ON DELETE CASCADE,
					email VARCHAR(256),
					key TEXT,
					type VARCHAR(50) NOT NULL,
					status VARCHAR(50) NOT NULL,
					access_all BOOLEAN NOT NULL DEFAULT FALSE,
					access_secrets_manager BOOLEAN NOT NULL DEFAULT FALSE,
					permissions JSONB,
					reset_password_key TEXT,
					external_id VARCHAR(255),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(organization_id, user_id)
				);

				CREATE INDEX idx_org_users_organization_id ON organization_users(organization_id);
				CREATE INDEX idx_org_users_user_id ON organization_users(user_id);
				CREATE INDEX idx_org_users_status ON organization_users(status);
				CREATE INDEX idx_org_users_email_lower ON organization_users(LOWER(email));
			`,
		},
		{
			Version:     4,
			Description: "Create providers tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS providers (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					type VARCHAR(50) NOT NULL DEFAULT 'msp',
					enabled BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS provider_users (
					id UUID PRIMARY KEY,
					provider_id UUID NOT NULL REFERENCES providers(id) ON DELETE CASCADE,
					user_id UUID REFERENCES users(id) ON DELETE CASCADE,
					email VARCHAR(256),
					status VARCHAR(50) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS provider_organizations (
					id UUID PRIMARY KEY,
					provider_id UUID NOT NULL REFERENCES providers(id) ON DELETE CASCADE,
					organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					UNIQUE(provider_id, organization_id)
				);

				CREATE INDEX idx_provider_users_provider_id ON provider_users(provider_id);
				CREATE INDEX idx_provider_orgs_organization_id ON provider_organizations(organization_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS org_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM org_migrations ORDER BY version")
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
			"INSERT INTO org_migrations (version, description) VALUES ($1, $2)",
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
