package membership

import (
	"context"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/collections"
	"github.com/covault/covault/pkg/events"
	"github.com/covault/covault/pkg/orgs"
	"github.com/covault/covault/pkg/policy"
)

// SignUpRequest describes a new organization and its founding owner
type SignUpRequest struct {
	OwnerID           uuid.UUID
	OwnerKey          string
	Name              string
	BillingEmail      string
	PlanType          orgs.PlanType
	AdditionalSeats   int
	MaxAutoscaleSeats *int

	UseSecretsManager         bool
	AdditionalSmSeats         int
	AdditionalServiceAccounts int

	CollectionName string
}

// SignUp provisions a new organization with the requesting user as its
// confirmed owner. New organizations start with per-collection permissions
// enabled.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*orgs.Organization, *orgs.OrgUser, error) {
	plan := orgs.GetPlan(req.PlanType)
	if plan == nil || plan.Disabled {
		return nil, nil, orgs.NewBadRequestError("Plan not found.")
	}
	if err := validatePlanSeats(plan, req); err != nil {
		return nil, nil, err
	}

	count, err := s.policies.CountApplicableToUser(ctx, req.OwnerID, policy.TypeSingleOrg, uuid.Nil)
	if err != nil {
		return nil, nil, err
	}
	if count > 0 {
		return nil, nil, orgs.NewBadRequestError("You may not create an organization. You belong to an organization which has a policy that prohibits you from being a member of any other organization.")
	}
	if req.PlanType == orgs.PlanFree {
		adminCount, err := s.store.GetCountByFreeOrganizationAdmin(ctx, req.OwnerID)
		if err != nil {
			return nil, nil, err
		}
		if adminCount > 0 {
			return nil, nil, orgs.NewBadRequestError("You can only be an admin of one free organization.")
		}
	}

	org := newOrganization(plan, req)
	customerID, subscriptionID, err := s.gateway.CreateCustomer(ctx, org.ID)
	if err != nil {
		return nil, nil, err
	}
	org.GatewayCustomerID = customerID
	org.GatewaySubscriptionID = subscriptionID

	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, nil, err
	}
	ownerID := req.OwnerID
	owner := &orgs.OrgUser{
		ID:                   uuid.New(),
		OrganizationID:       org.ID,
		UserID:               &ownerID,
		Key:                  req.OwnerKey,
		Type:                 orgs.UserTypeOwner,
		Status:               orgs.UserStatusConfirmed,
		AccessSecretsManager: req.UseSecretsManager,
	}
	if err := s.store.CreateOrgUser(ctx, owner); err != nil {
		if delErr := s.store.DeleteOrganization(ctx, org.ID); delErr != nil {
			s.logger.WithError(delErr).WithField("organization_id", org.ID).
				Warn("failed to roll back organization after owner creation error")
		}
		return nil, nil, err
	}

	if req.CollectionName != "" {
		collection := &collections.Collection{
			ID:             uuid.New(),
			OrganizationID: org.ID,
			Name:           req.CollectionName,
		}
		if err := s.collections.CreateCollection(ctx, collection); err != nil {
			s.logger.WithError(err).WithField("organization_id", org.ID).
				Warn("failed to create default collection")
		}
	}

	if err := s.cache.Upsert(ctx, org); err != nil {
		s.logger.WithError(err).WithField("organization_id", org.ID).
			Warn("failed to cache organization abilities")
	}
	return org, owner, nil
}

func validatePlanSeats(plan *orgs.Plan, req SignUpRequest) error {
	if req.AdditionalSeats < 0 {
		return orgs.NewBadRequestError("You can't subtract seats!")
	}
	if !plan.PasswordManager.HasAdditionalSeatsOption && req.AdditionalSeats > 0 {
		return orgs.NewBadRequestError("Plan does not allow additional seats.")
	}
	if plan.PasswordManager.MaxAdditionalSeats != nil && req.AdditionalSeats > *plan.PasswordManager.MaxAdditionalSeats {
		return orgs.NewBadRequestError("Selected plan allows a maximum of %d additional seats.", *plan.PasswordManager.MaxAdditionalSeats)
	}
	if req.UseSecretsManager {
		if !plan.SupportsSecretsManager {
			return orgs.NewBadRequestError("Plan does not allow Secrets Manager.")
		}
		if req.AdditionalSmSeats < 0 {
			return orgs.NewBadRequestError("You can't subtract Secrets Manager seats!")
		}
		if !plan.SecretsManager.HasAdditionalSeatsOption && req.AdditionalSmSeats > 0 {
			return orgs.NewBadRequestError("Plan does not allow additional Secrets Manager seats.")
		}
	}
	return nil
}

func newOrganization(plan *orgs.Plan, req SignUpRequest) *orgs.Organization {
	org := &orgs.Organization{
		ID:                                   uuid.New(),
		Name:                                 req.Name,
		BillingEmail:                         req.BillingEmail,
		PlanType:                             plan.Type,
		Status:                               orgs.OrgStatusCreated,
		Enabled:                              true,
		MaxAutoscaleSeats:                    req.MaxAutoscaleSeats,
		UsePolicies:                          plan.HasPolicies,
		UseResetPassword:                     plan.HasResetPassword,
		UseCustomPermissions:                 plan.HasCustomPermissions,
		FlexibleCollections:                  true,
		AllowAdminAccessToAllCollectionItems: true,
	}
	if plan.PasswordManager.MaxSeats != nil {
		seats := *plan.PasswordManager.MaxSeats
		org.Seats = &seats
	} else {
		seats := plan.PasswordManager.BaseSeats + req.AdditionalSeats
		org.Seats = &seats
	}
	if req.UseSecretsManager {
		org.UseSecretsManager = true
		smSeats := plan.SecretsManager.BaseSeats + req.AdditionalSmSeats
		serviceAccounts := plan.SecretsManager.BaseServiceAccount + req.AdditionalServiceAccounts
		org.SmSeats = &smSeats
		org.SmServiceAccounts = &serviceAccounts
	}
	return org
}

// UpdateOrganization persists organization profile changes and refreshes
// the ability cache
func (s *Service) UpdateOrganization(ctx context.Context, org *orgs.Organization) error {
	if err := s.store.ReplaceOrganization(ctx, org); err != nil {
		return err
	}
	if err := s.cache.Upsert(ctx, org); err != nil {
		s.logger.WithError(err).WithField("organization_id", org.ID).
			Warn("failed to cache organization abilities")
	}
	s.record(ctx, org.ID, nil, org.ID, events.TypeOrganizationUpdated)
	return nil
}

// SetOrganizationEnabled flips the enabled flag, typically from billing
// webhooks when payment lapses or resumes
func (s *Service) SetOrganizationEnabled(ctx context.Context, orgID uuid.UUID, enabled bool) error {
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org.Enabled == enabled {
		return nil
	}
	if enabled && org.GatewaySubscriptionID != "" {
		if err := s.gateway.ReinstateSubscription(ctx, org); err != nil {
			return err
		}
	}
	org.Enabled = enabled
	return s.UpdateOrganization(ctx, org)
}

// UpdateSubscription changes the seat count and autoscale ceiling of a paid
// organization
func (s *Service) UpdateSubscription(ctx context.Context, orgID uuid.UUID, seatAdjustment int, maxAutoscaleSeats *int) error {
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	plan := orgs.GetPlan(org.PlanType)
	if plan == nil {
		return orgs.NewBadRequestError("Existing plan not found.")
	}
	if maxAutoscaleSeats != nil {
		if !plan.PasswordManager.AllowSeatAutoscale {
			return orgs.NewBadRequestError("Your plan does not allow seat autoscaling.")
		}
		newSeats := 0
		if org.Seats != nil {
			newSeats = *org.Seats + seatAdjustment
		}
		if *maxAutoscaleSeats < newSeats {
			return orgs.NewBadRequestError("Cannot set max seat autoscaling below seat count.")
		}
		if plan.PasswordManager.MaxSeats != nil && *maxAutoscaleSeats > *plan.PasswordManager.MaxSeats {
			return orgs.NewBadRequestError("Your plan has a seat limit of %d, but you have specified a max autoscale count of %d. Reduce your max autoscale count.", *plan.PasswordManager.MaxSeats, *maxAutoscaleSeats)
		}
	}

	if seatAdjustment != 0 {
		if _, err := s.seats.AdjustSeats(ctx, org, seatAdjustment); err != nil {
			return err
		}
		refreshed, err := s.store.GetOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		org = refreshed
	}
	if maxAutoscaleSeats != nil {
		org.MaxAutoscaleSeats = maxAutoscaleSeats
		org.OwnersNotifiedOfAutoscaling = nil
		if err := s.store.ReplaceOrganization(ctx, org); err != nil {
			return err
		}
	}
	s.record(ctx, orgID, nil, orgID, events.TypeOrganizationSeatsAdjusted)
	return nil
}

// DeleteOrganization cancels the subscription and removes the organization
// and everything hanging off it
func (s *Service) DeleteOrganization(ctx context.Context, orgID uuid.UUID) error {
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org.GatewaySubscriptionID != "" {
		if err := s.gateway.CancelSubscription(ctx, org); err != nil {
			s.logger.WithError(err).WithField("organization_id", orgID).
				Warn("failed to cancel subscription during organization delete")
		}
	}
	if err := s.store.DeleteOrganization(ctx, orgID); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, orgID); err != nil {
		s.logger.WithError(err).WithField("organization_id", orgID).
			Warn("failed to evict organization abilities from cache")
	}
	s.record(ctx, orgID, nil, orgID, events.TypeOrganizationDeleted)
	return nil
}
