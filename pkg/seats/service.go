package seats

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/billing"
	"github.com/covault/covault/pkg/events"
	"github.com/covault/covault/pkg/notify"
	"github.com/covault/covault/pkg/observability"
	"github.com/covault/covault/pkg/orgs"
)

// Store is the slice of organization storage seat accounting depends on
type Store interface {
	ReplaceOrganization(ctx context.Context, org *orgs.Organization) error
	GetOccupiedSeatCount(ctx context.Context, orgID uuid.UUID) (int, error)
	GetOccupiedSmSeatCount(ctx context.Context, orgID uuid.UUID) (int, error)
	GetProviderByOrganization(ctx context.Context, orgID uuid.UUID) (*orgs.Provider, error)
	GetOwnerEmails(ctx context.Context, orgID uuid.UUID) ([]string, error)
}

// Service applies seat deltas to an organization's two seat pools. Every
// change is validated against the plan, pushed to the billing gateway, then
// persisted. There is no locking around the read-validate-write sequence;
// concurrent adjustments against one organization can race.
type Service struct {
	store      Store
	gateway    billing.Gateway
	recorder   events.Recorder
	mailer     notify.Mailer
	logger     *observability.Logger
	selfHosted bool
}

// NewService creates a new seat accounting service
func NewService(store Store, gateway billing.Gateway, recorder events.Recorder, mailer notify.Mailer, logger *observability.Logger, selfHosted bool) *Service {
	return &Service{
		store:      store,
		gateway:    gateway,
		recorder:   recorder,
		mailer:     mailer,
		logger:     logger,
		selfHosted: selfHosted,
	}
}

// AdjustSeats applies a password manager seat delta. Returns the gateway's
// client-side payment secret when confirmation is required.
func (s *Service) AdjustSeats(ctx context.Context, org *orgs.Organization, seatAdjustment int) (string, error) {
	plan := orgs.GetPlan(org.PlanType)
	if plan == nil {
		return "", orgs.NewBadRequestError("Existing plan not found.")
	}
	if org.Seats == nil {
		return "", &orgs.PlanLimitError{Message: "Organization has no seat limit, no need to adjust seats"}
	}
	if org.GatewayCustomerID == "" {
		return "", &orgs.PlanLimitError{Message: "No payment method found."}
	}
	if org.GatewaySubscriptionID == "" {
		return "", &orgs.PlanLimitError{Message: "No subscription found."}
	}
	if !plan.PasswordManager.HasAdditionalSeatsOption {
		return "", &orgs.PlanLimitError{Message: "Plan does not allow additional seats."}
	}

	newSeatTotal := *org.Seats + seatAdjustment
	if plan.PasswordManager.BaseSeats > newSeatTotal {
		return "", &orgs.PlanLimitError{Message: planMinimumSeatsMessage(plan.PasswordManager.BaseSeats)}
	}
	if newSeatTotal <= 0 {
		return "", &orgs.PlanLimitError{Message: "You must have at least 1 seat."}
	}
	additionalSeats := newSeatTotal - plan.PasswordManager.BaseSeats
	if plan.PasswordManager.MaxAdditionalSeats != nil && additionalSeats > *plan.PasswordManager.MaxAdditionalSeats {
		return "", &orgs.PlanLimitError{Message: planMaxAdditionalSeatsMessage(*plan.PasswordManager.MaxAdditionalSeats)}
	}

	if *org.Seats > newSeatTotal {
		occupied, err := s.store.GetOccupiedSeatCount(ctx, org.ID)
		if err != nil {
			return "", err
		}
		if occupied > newSeatTotal {
			return "", &orgs.PlanLimitError{Message: seatsFilledMessage(occupied, newSeatTotal)}
		}
	}

	secret, err := s.gateway.AdjustSeats(ctx, org, newSeatTotal)
	if err != nil {
		return "", err
	}

	org.Seats = &newSeatTotal
	if err := s.store.ReplaceOrganization(ctx, org); err != nil {
		return "", err
	}
	s.record(ctx, org.ID, events.TypeOrganizationSeatsAdjusted)
	return secret, nil
}

// CanScale reports whether the organization may autoscale by seatsToAdd
// password manager seats. A nil return means yes.
func (s *Service) CanScale(ctx context.Context, org *orgs.Organization, seatsToAdd int) error {
	if seatsToAdd < 1 {
		return nil
	}
	if s.selfHosted {
		return &orgs.AutoscaleDisabledError{Reason: "Cannot autoscale on self-hosted instance."}
	}
	provider, err := s.store.GetProviderByOrganization(ctx, org.ID)
	if err != nil {
		return err
	}
	if provider != nil && provider.Type == orgs.ProviderTypeReseller {
		return &orgs.PlanLimitError{Message: "Seat limit has been reached. Contact your provider to purchase additional seats."}
	}
	if org.Seats != nil && org.MaxAutoscaleSeats != nil && *org.Seats+seatsToAdd > *org.MaxAutoscaleSeats {
		return &orgs.PlanLimitError{Message: "Seat limit has been reached."}
	}
	return nil
}

// AutoAddSeats grows the password manager seat pool to fit seatsRequired
// new members. When the growth lands exactly on the autoscale ceiling,
// confirmed owners are told once; the notification timestamp makes the
// alert idempotent.
func (s *Service) AutoAddSeats(ctx context.Context, org *orgs.Organization, seatsRequired int) (string, error) {
	if seatsRequired < 1 || org.Seats == nil {
		return "", nil
	}
	if err := s.CanScale(ctx, org, seatsRequired); err != nil {
		return "", err
	}

	secret, err := s.AdjustSeats(ctx, org, seatsRequired)
	if err != nil {
		return "", err
	}

	if org.MaxAutoscaleSeats != nil && *org.Seats == *org.MaxAutoscaleSeats &&
		org.OwnersNotifiedOfAutoscaling == nil {
		emails, err := s.store.GetOwnerEmails(ctx, org.ID)
		if err != nil {
			return "", err
		}
		if mailErr := s.mailer.SendSeatLimitReached(ctx, org.Name, *org.MaxAutoscaleSeats, emails); mailErr != nil {
			s.logger.WithError(mailErr).WithField("organization_id", org.ID).
				Warn("failed to send seat limit notification")
		}
		now := time.Now().UTC()
		org.OwnersNotifiedOfAutoscaling = &now
		if err := s.store.ReplaceOrganization(ctx, org); err != nil {
			return "", err
		}
	}
	return secret, nil
}

// SeatsRequiredToAdd computes how many password manager seats must be
// purchased before newActiveUsers more members can occupy seats. Zero when
// the plan has no seat limit or enough are free.
func (s *Service) SeatsRequiredToAdd(ctx context.Context, org *orgs.Organization, newActiveUsers int) (int, error) {
	if org.Seats == nil || newActiveUsers < 1 {
		return 0, nil
	}
	occupied, err := s.store.GetOccupiedSeatCount(ctx, org.ID)
	if err != nil {
		return 0, err
	}
	available := *org.Seats - occupied
	if available >= newActiveUsers {
		return 0, nil
	}
	return newActiveUsers - available, nil
}

func (s *Service) record(ctx context.Context, orgID uuid.UUID, eventType events.Type) {
	err := s.recorder.Record(ctx, &events.Event{
		OrganizationID: orgID,
		TargetID:       &orgID,
		Type:           eventType,
	})
	if err != nil {
		s.logger.WithError(err).WithField("organization_id", orgID).
			Warn("failed to record seat event")
	}
}
