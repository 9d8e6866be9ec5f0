package seats

import (
	"context"
	"time"

	"github.com/covault/covault/pkg/events"
	"github.com/covault/covault/pkg/orgs"
)

// Secrets manager seats mirror the password manager accounting path against
// an independent seat pool and ceiling.

// AdjustSmSeats applies a secrets manager seat delta
func (s *Service) AdjustSmSeats(ctx context.Context, org *orgs.Organization, seatAdjustment int) (string, error) {
	plan := orgs.GetPlan(org.PlanType)
	if plan == nil {
		return "", orgs.NewBadRequestError("Existing plan not found.")
	}
	if !org.UseSecretsManager || !plan.SupportsSecretsManager {
		return "", orgs.NewBadRequestError("Organization has no access to Secrets Manager.")
	}
	if org.SmSeats == nil {
		return "", &orgs.PlanLimitError{Message: "Organization has no Secrets Manager seat limit, no need to adjust seats"}
	}
	if org.GatewayCustomerID == "" {
		return "", &orgs.PlanLimitError{Message: "No payment method found."}
	}
	if org.GatewaySubscriptionID == "" {
		return "", &orgs.PlanLimitError{Message: "No subscription found."}
	}
	if !plan.SecretsManager.HasAdditionalSeatsOption {
		return "", &orgs.PlanLimitError{Message: "Plan does not allow additional Secrets Manager seats."}
	}

	newSeatTotal := *org.SmSeats + seatAdjustment
	if plan.SecretsManager.BaseSeats > newSeatTotal {
		return "", &orgs.PlanLimitError{Message: planMinimumSeatsMessage(plan.SecretsManager.BaseSeats)}
	}
	if newSeatTotal <= 0 {
		return "", &orgs.PlanLimitError{Message: "You must have at least 1 seat."}
	}
	additionalSeats := newSeatTotal - plan.SecretsManager.BaseSeats
	if plan.SecretsManager.MaxAdditionalSeats != nil && additionalSeats > *plan.SecretsManager.MaxAdditionalSeats {
		return "", &orgs.PlanLimitError{Message: planMaxAdditionalSeatsMessage(*plan.SecretsManager.MaxAdditionalSeats)}
	}

	if *org.SmSeats > newSeatTotal {
		occupied, err := s.store.GetOccupiedSmSeatCount(ctx, org.ID)
		if err != nil {
			return "", err
		}
		if occupied > newSeatTotal {
			return "", &orgs.PlanLimitError{Message: seatsFilledMessage(occupied, newSeatTotal)}
		}
	}

	secret, err := s.gateway.AdjustSmSeats(ctx, org, newSeatTotal)
	if err != nil {
		return "", err
	}

	org.SmSeats = &newSeatTotal
	if err := s.store.ReplaceOrganization(ctx, org); err != nil {
		return "", err
	}
	s.record(ctx, org.ID, events.TypeOrganizationSeatsAdjusted)
	return secret, nil
}

// CanScaleSm reports whether the organization may autoscale by seatsToAdd
// secrets manager seats
func (s *Service) CanScaleSm(ctx context.Context, org *orgs.Organization, seatsToAdd int) error {
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
	if org.SmSeats != nil && org.MaxAutoscaleSmSeats != nil && *org.SmSeats+seatsToAdd > *org.MaxAutoscaleSmSeats {
		return &orgs.PlanLimitError{Message: "Secrets Manager seat limit has been reached."}
	}
	return nil
}

// AutoAddSmSeats grows the secrets manager seat pool to fit seatsRequired
// new members, notifying owners once at the ceiling
func (s *Service) AutoAddSmSeats(ctx context.Context, org *orgs.Organization, seatsRequired int) (string, error) {
	if seatsRequired < 1 || org.SmSeats == nil {
		return "", nil
	}
	if err := s.CanScaleSm(ctx, org, seatsRequired); err != nil {
		return "", err
	}

	secret, err := s.AdjustSmSeats(ctx, org, seatsRequired)
	if err != nil {
		return "", err
	}

	if org.MaxAutoscaleSmSeats != nil && *org.SmSeats == *org.MaxAutoscaleSmSeats &&
		org.SmOwnersNotifiedOfAutoscaling == nil {
		emails, err := s.store.GetOwnerEmails(ctx, org.ID)
		if err != nil {
			return "", err
		}
		if mailErr := s.mailer.SendSmSeatLimitReached(ctx, org.Name, *org.MaxAutoscaleSmSeats, emails); mailErr != nil {
			s.logger.WithError(mailErr).WithField("organization_id", org.ID).
				Warn("failed to send secrets manager seat limit notification")
		}
		now := time.Now().UTC()
		org.SmOwnersNotifiedOfAutoscaling = &now
		if err := s.store.ReplaceOrganization(ctx, org); err != nil {
			return "", err
		}
	}
	return secret, nil
}

// SmSeatsRequiredToAdd computes how many secrets manager seats must be
// purchased before newActiveUsers more members with secrets manager access
// can occupy seats
func (s *Service) SmSeatsRequiredToAdd(ctx context.Context, org *orgs.Organization, newActiveUsers int) (int, error) {
	if org.SmSeats == nil || newActiveUsers < 1 {
		return 0, nil
	}
	occupied, err := s.store.GetOccupiedSmSeatCount(ctx, org.ID)
	if err != nil {
		return 0, err
	}
	available := *org.SmSeats - occupied
	if available >= newActiveUsers {
		return 0, nil
	}
	return newActiveUsers - available, nil
}
