package billing

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Subscription mirrors the payment provider's view of an organization
type Subscription struct {
	OrganizationID        uuid.UUID          `json:"organization_id"`
	GatewayCustomerID     string             `json:"gateway_customer_id"`
	GatewaySubscriptionID string             `json:"gateway_subscription_id"`
	Seats                 int                `json:"seats"`
	SmSeats               int                `json:"sm_seats"`
	Status                SubscriptionStatus `json:"status"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// GatewayError wraps a payment-provider failure. The caller-facing message
// stays generic; Detail is preserved for logging only.
type GatewayError struct {
	Detail error
}

func (e *GatewayError) Error() string {
	return "payment gateway error"
}

func (e *GatewayError) Unwrap() error {
	return e.Detail
}
