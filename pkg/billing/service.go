package billing

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/orgs"
)

// Gateway is the payment-provider surface the rest of the system depends
// on. Seat changes always go through here before the organization record is
// updated.
type Gateway interface {
	// CreateCustomer provisions customer and subscription records for a
	// new organization and returns their gateway identifiers.
	CreateCustomer(ctx context.Context, orgID uuid.UUID) (customerID, subscriptionID string, err error)
	// AdjustSeats updates the password manager seat quantity on the
	// organization's subscription and returns a client-side payment secret
	// when the provider requires additional confirmation.
	AdjustSeats(ctx context.Context, org *orgs.Organization, newSeatTotal int) (string, error)
	// AdjustSmSeats updates the secrets manager seat quantity.
	AdjustSmSeats(ctx context.Context, org *orgs.Organization, newSeatTotal int) (string, error)
	// CancelSubscription cancels at the end of the current period.
	CancelSubscription(ctx context.Context, org *orgs.Organization) error
	// ReinstateSubscription reactivates a canceled subscription.
	ReinstateSubscription(ctx context.Context, org *orgs.Organization) error
}

// PostgresGateway records subscription state in the local database and
// stands in for the remote payment provider. Swap in a real provider client
// behind the same interface for production billing.
type PostgresGateway struct {
	db *sql.DB
}

// NewPostgresGateway creates a new PostgresGateway
func NewPostgresGateway(db *sql.DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

// CreateCustomer provisions a customer record for a new organization
func (g *PostgresGateway) CreateCustomer(ctx context.Context, orgID uuid.UUID) (string, string, error) {
	customerID := fmt.Sprintf("cus_%s", orgID)
	subscriptionID := fmt.Sprintf("sub_%s", orgID)
	query := `
		INSERT INTO subscriptions (organization_id, gateway_customer_id, gateway_subscription_id, seats, sm_seats, status)
		VALUES ($1, $2, $3, 0, 0, $4)
		ON CONFLICT (organization_id) DO NOTHING
	`
	_, err := g.db.ExecContext(ctx, query, orgID, customerID, subscriptionID, SubscriptionActive)
	if err != nil {
		return "", "", &GatewayError{Detail: fmt.Errorf("failed to create customer: %w", err)}
	}
	return customerID, subscriptionID, nil
}

// AdjustSeats updates the subscription's password manager seat quantity
func (g *PostgresGateway) AdjustSeats(ctx context.Context, org *orgs.Organization, newSeatTotal int) (string, error) {
	if org.GatewaySubscriptionID == "" {
		return "", &GatewayError{Detail: fmt.Errorf("organization %s has no subscription", org.ID)}
	}
	return g.adjust(ctx, org, "seats", newSeatTotal)
}

// AdjustSmSeats updates the subscription's secrets manager seat quantity
func (g *PostgresGateway) AdjustSmSeats(ctx context.Context, org *orgs.Organization, newSeatTotal int) (string, error) {
	if org.GatewaySubscriptionID == "" {
		return "", &GatewayError{Detail: fmt.Errorf("organization %s has no subscription", org.ID)}
	}
	return g.adjust(ctx, org, "sm_seats", newSeatTotal)
}

func (g *PostgresGateway) adjust(ctx context.Context, org *orgs.Organization, column string, newSeatTotal int) (string, error) {
	query := fmt.Sprintf(`
		UPDATE subscriptions SET %s = $1, updated_at = NOW()
		WHERE organization_id = $2 AND status = $3
	`, column)
	result, err := g.db.ExecContext(ctx, query, newSeatTotal, org.ID, SubscriptionActive)
	if err != nil {
		return "", &GatewayError{Detail: fmt.Errorf("failed to adjust %s: %w", column, err)}
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return "", &GatewayError{Detail: fmt.Errorf("failed to get rows affected: %w", err)}
	}
	if rowsAffected == 0 {
		return "", &GatewayError{Detail: fmt.Errorf("no active subscription for organization %s", org.ID)}
	}
	// A local ledger needs no client-side payment confirmation.
	return "", nil
}

// CancelSubscription marks the subscription canceled
func (g *PostgresGateway) CancelSubscription(ctx context.Context, org *orgs.Organization) error {
	result, err := g.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = $1, updated_at = NOW()
		WHERE organization_id = $2
	`, SubscriptionCanceled, org.ID)
	if err != nil {
		return &GatewayError{Detail: fmt.Errorf("failed to cancel subscription: %w", err)}
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &GatewayError{Detail: fmt.Errorf("failed to get rows affected: %w", err)}
	}
	if rowsAffected == 0 {
		return &GatewayError{Detail: fmt.Errorf("no subscription for organization %s", org.ID)}
	}
	return nil
}

// ReinstateSubscription flips a canceled subscription back to active
func (g *PostgresGateway) ReinstateSubscription(ctx context.Context, org *orgs.Organization) error {
	result, err := g.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = $1, updated_at = NOW()
		WHERE organization_id = $2 AND status = $3
	`, SubscriptionActive, org.ID, SubscriptionCanceled)
	if err != nil {
		return &GatewayError{Detail: fmt.Errorf("failed to reinstate subscription: %w", err)}
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &GatewayError{Detail: fmt.Errorf("failed to get rows affected: %w", err)}
	}
	if rowsAffected == 0 {
		return &GatewayError{Detail: fmt.Errorf("no canceled subscription for organization %s", org.ID)}
	}
	return nil
}

// GetSubscription retrieves the subscription ledger entry for an
// organization
func (g *PostgresGateway) GetSubscription(ctx context.Context, orgID uuid.UUID) (*Subscription, error) {
	query := `
		SELECT organization_id, gateway_customer_id, gateway_subscription_id, seats, sm_seats, status, created_at, updated_at
		FROM subscriptions WHERE organization_id = $1
	`
	sub := &Subscription{}
	err := g.db.QueryRowContext(ctx, query, orgID).Scan(
		&sub.OrganizationID, &sub.GatewayCustomerID, &sub.GatewaySubscriptionID,
		&sub.Seats, &sub.SmSeats, &sub.Status, &sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &orgs.NotFoundError{Resource: "subscription"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// NoopGateway satisfies Gateway without touching any payment provider.
// Self-hosted deployments run against this: organizations get synthetic
// gateway identifiers and seat changes succeed unconditionally.
type NoopGateway struct{}

func (NoopGateway) CreateCustomer(ctx context.Context, orgID uuid.UUID) (string, string, error) {
	return "self-hosted:" + orgID.String(), "self-hosted:" + orgID.String(), nil
}

func (NoopGateway) AdjustSeats(ctx context.Context, org *orgs.Organization, newSeatTotal int) (string, error) {
	return "", nil
}

func (NoopGateway) AdjustSmSeats(ctx context.Context, org *orgs.Organization, newSeatTotal int) (string, error) {
	return "", nil
}

func (NoopGateway) CancelSubscription(ctx context.Context, org *orgs.Organization) error {
	return nil
}

func (NoopGateway) ReinstateSubscription(ctx context.Context, org *orgs.Organization) error {
	return nil
}
