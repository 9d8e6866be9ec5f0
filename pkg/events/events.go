package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies an auditable event
type Type string

const (
	TypeOrganizationUpdated       Type = "organization_updated"
	TypeOrganizationDeleted       Type = "organization_deleted"
	TypeOrganizationSeatsAdjusted Type = "organization_seats_adjusted"
	TypeUserInvited               Type = "organization_user_invited"
	TypeUserConfirmed             Type = "organization_user_confirmed"
	TypeUserUpdated               Type = "organization_user_updated"
	TypeUserRemoved               Type = "organization_user_removed"
	TypeUserRevoked               Type = "organization_user_revoked"
	TypeUserRestored              Type = "organization_user_restored"
	TypeUserResetPasswordEnroll   Type = "organization_user_reset_password_enrollment"
)

// Event is one audit log entry
type Event struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	// ActingUserID is nil for system-initiated events.
	ActingUserID *uuid.UUID `json:"acting_user_id,omitempty"`
	// TargetID is the entity the event concerns: a member, the org itself.
	TargetID  *uuid.UUID      `json:"target_id,omitempty"`
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Recorder is the write side of the audit log
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// PostgresStore implements audit event persistence using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Record appends an event to the audit log
func (s *PostgresStore) Record(ctx context.Context, event *Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	var data interface{}
	if len(event.Data) > 0 {
		data = []byte(event.Data)
	}
	query := `
		INSERT INTO events (id, organization_id, acting_user_id, target_id, type, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query, event.ID, event.OrganizationID,
		event.ActingUserID, event.TargetID, event.Type, data).
		Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// ListByOrganization retrieves an organization's audit trail, newest first
func (s *PostgresStore) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, organization_id, acting_user_id, target_id, type, data, created_at
		FROM events WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var result []*Event
	for rows.Next() {
		event := &Event{}
		var data []byte
		if err := rows.Scan(&event.ID, &event.OrganizationID, &event.ActingUserID,
			&event.TargetID, &event.Type, &data, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if len(data) > 0 {
			event.Data = data
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
