package membership

import (
	"context"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/authz"
	"github.com/covault/covault/pkg/events"
	"github.com/covault/covault/pkg/orgs"
	"github.com/covault/covault/pkg/policy"
)

// DeleteUser removes a member from the organization along with their
// collection access
func (s *Service) DeleteUser(ctx context.Context, p authz.ActingPrincipal, orgID, orgUserID uuid.UUID) error {
	user, err := s.store.GetOrgUser(ctx, orgUserID)
	if err != nil {
		return err
	}
	if user.OrganizationID != orgID {
		return &orgs.NotFoundError{Resource: "organization user"}
	}
	if err := s.checkRemovable(ctx, p, user, "You cannot remove yourself from an organization.", "Only owners can delete other owners."); err != nil {
		return err
	}
	if user.Type == orgs.UserTypeOwner {
		ok, err := s.HasConfirmedOwnersExcept(ctx, orgID, []uuid.UUID{user.ID}, true)
		if err != nil {
			return err
		}
		if !ok {
			return orgs.NewBadRequestError("Organization must have at least one confirmed owner.")
		}
	}
	return s.deleteMember(ctx, p, user)
}

// DeleteUsers removes many members, reporting per-member outcomes. The
// confirmed owner invariant is checked once against the whole batch.
func (s *Service) DeleteUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]BulkResult, error) {
	users, err := s.membersOf(ctx, orgID, orgUserIDs)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(users))
	for i, user := range users {
		ids[i] = user.ID
	}
	ok, err := s.HasConfirmedOwnersExcept(ctx, orgID, ids, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, orgs.NewBadRequestError("Organization must have at least one confirmed owner.")
	}

	results := make([]BulkResult, 0, len(users))
	for _, user := range users {
		if err := s.checkRemovable(ctx, p, user, "You cannot remove yourself from an organization.", "Only owners can delete other owners."); err != nil {
			results = append(results, BulkResult{User: user, Err: err.Error()})
			continue
		}
		if err := s.deleteMember(ctx, p, user); err != nil {
			results = append(results, BulkResult{User: user, Err: err.Error()})
			continue
		}
		results = append(results, BulkResult{User: user})
	}
	return results, nil
}

func (s *Service) deleteMember(ctx context.Context, p authz.ActingPrincipal, user *orgs.OrgUser) error {
	if err := s.store.DeleteOrgUser(ctx, user.ID); err != nil {
		return err
	}
	if err := s.collections.DeleteOrgUserAccess(ctx, []uuid.UUID{user.ID}); err != nil {
		s.logger.WithError(err).WithField("organization_user_id", user.ID).
			Warn("failed to delete member collection access")
	}
	s.record(ctx, user.OrganizationID, actingUserPtr(p), user.ID, events.TypeUserRemoved)
	return nil
}

// RevokeUser suspends a member without deleting their row, so they can
// later be restored with their access intact
func (s *Service) RevokeUser(ctx context.Context, p authz.ActingPrincipal, orgID, orgUserID uuid.UUID) error {
	user, err := s.store.GetOrgUser(ctx, orgUserID)
	if err != nil {
		return err
	}
	if user.OrganizationID != orgID {
		return &orgs.NotFoundError{Resource: "organization user"}
	}
	if user.Status == orgs.UserStatusRevoked {
		return orgs.NewBadRequestError("Already revoked.")
	}
	if err := s.checkRemovable(ctx, p, user, "You cannot revoke yourself.", "Only owners can revoke other owners."); err != nil {
		return err
	}
	ok, err := s.HasConfirmedOwnersExcept(ctx, orgID, []uuid.UUID{user.ID}, true)
	if err != nil {
		return err
	}
	if !ok {
		return orgs.NewBadRequestError("Organization must have at least one confirmed owner.")
	}
	if err := s.store.RevokeOrgUser(ctx, user.ID); err != nil {
		return err
	}
	s.record(ctx, orgID, actingUserPtr(p), user.ID, events.TypeUserRevoked)
	return nil
}

// RevokeUsers revokes many members with per-member outcomes
func (s *Service) RevokeUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]BulkResult, error) {
	users, err := s.membersOf(ctx, orgID, orgUserIDs)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(users))
	for i, user := range users {
		ids[i] = user.ID
	}
	ok, err := s.HasConfirmedOwnersExcept(ctx, orgID, ids, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, orgs.NewBadRequestError("Organization must have at least one confirmed owner.")
	}

	results := make([]BulkResult, 0, len(users))
	for _, user := range users {
		if user.Status == orgs.UserStatusRevoked {
			results = append(results, BulkResult{User: user, Err: "Already revoked."})
			continue
		}
		if err := s.checkRemovable(ctx, p, user, "You cannot revoke yourself.", "Only owners can revoke other owners."); err != nil {
			results = append(results, BulkResult{User: user, Err: err.Error()})
			continue
		}
		if err := s.store.RevokeOrgUser(ctx, user.ID); err != nil {
			results = append(results, BulkResult{User: user, Err: err.Error()})
			continue
		}
		user.Status = orgs.UserStatusRevoked
		s.record(ctx, orgID, actingUserPtr(p), user.ID, events.TypeUserRevoked)
		results = append(results, BulkResult{User: user})
	}
	return results, nil
}

// RestoreUser returns a revoked member to the status they held before
// revocation, re-checking seats and join policies first
func (s *Service) RestoreUser(ctx context.Context, p authz.ActingPrincipal, orgID, orgUserID uuid.UUID) error {
	user, err := s.store.GetOrgUser(ctx, orgUserID)
	if err != nil {
		return err
	}
	if user.OrganizationID != orgID {
		return &orgs.NotFoundError{Resource: "organization user"}
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	return s.restoreMember(ctx, p, org, user)
}

// RestoreUsers restores many members with per-member outcomes
func (s *Service) RestoreUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]BulkResult, error) {
	users, err := s.membersOf(ctx, orgID, orgUserIDs)
	if err != nil {
		return nil, err
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	results := make([]BulkResult, 0, len(users))
	for _, user := range users {
		if err := s.restoreMember(ctx, p, org, user); err != nil {
			results = append(results, BulkResult{User: user, Err: err.Error()})
			continue
		}
		results = append(results, BulkResult{User: user})
	}
	return results, nil
}

func (s *Service) restoreMember(ctx context.Context, p authz.ActingPrincipal, org *orgs.Organization, user *orgs.OrgUser) error {
	if user.Status != orgs.UserStatusRevoked {
		return orgs.NewBadRequestError("Already active.")
	}
	if err := s.checkRemovable(ctx, p, user, "You cannot restore yourself.", "Only owners can restore other owners."); err != nil {
		return err
	}

	required, err := s.seats.SeatsRequiredToAdd(ctx, org, 1)
	if err != nil {
		return err
	}
	if required > 0 {
		if _, err := s.seats.AutoAddSeats(ctx, org, required); err != nil {
			return err
		}
	}
	if user.AccessSecretsManager {
		smRequired, err := s.seats.SmSeatsRequiredToAdd(ctx, org, 1)
		if err != nil {
			return err
		}
		if smRequired > 0 {
			if _, err := s.seats.AutoAddSmSeats(ctx, org, smRequired); err != nil {
				return err
			}
		}
	}

	priorStatus := user.PriorActiveStatus()
	if priorStatus != orgs.UserStatusInvited {
		if err := s.checkRestorePolicies(ctx, org, user); err != nil {
			return err
		}
	}
	if err := s.store.RestoreOrgUser(ctx, user.ID, priorStatus); err != nil {
		return err
	}
	user.Status = priorStatus
	s.record(ctx, org.ID, actingUserPtr(p), user.ID, events.TypeUserRestored)
	return nil
}

func (s *Service) checkRestorePolicies(ctx context.Context, org *orgs.Organization, user *orgs.OrgUser) error {
	twoFactor, err := s.policies.GetByOrganizationType(ctx, org.ID, policy.TypeTwoFactorAuthentication)
	if err != nil {
		return err
	}
	if twoFactor != nil && twoFactor.Enabled {
		enabled, err := s.policies.GetUserTwoFactorEnabled(ctx, *user.UserID)
		if err != nil {
			return err
		}
		if !enabled {
			return orgs.NewBadRequestError("You cannot restore this user until they enable two-step login on their user account.")
		}
	}
	singleOrg, err := s.policies.GetByOrganizationType(ctx, org.ID, policy.TypeSingleOrg)
	if err != nil {
		return err
	}
	if singleOrg != nil && singleOrg.Enabled {
		inOther, err := s.hasOtherActiveMembership(ctx, *user.UserID, org.ID)
		if err != nil {
			return err
		}
		if inOther {
			return orgs.NewBadRequestError("You cannot restore this user until they leave or remove all other organizations.")
		}
	}
	count, err := s.policies.CountApplicableToUser(ctx, *user.UserID, policy.TypeSingleOrg, org.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return orgs.NewBadRequestError("You cannot restore this user because they are a member of another organization which forbids it.")
	}
	return nil
}

// checkRemovable enforces the self and owner guards shared by delete,
// revoke and restore
func (s *Service) checkRemovable(ctx context.Context, p authz.ActingPrincipal, user *orgs.OrgUser, selfMessage, ownerMessage string) error {
	if user.UserID != nil && *user.UserID == p.UserID {
		return orgs.NewBadRequestError("%s", selfMessage)
	}
	if user.Type == orgs.UserTypeOwner && !p.IsOwner() && !p.ProviderUser {
		return orgs.NewBadRequestError("%s", ownerMessage)
	}
	return nil
}

// membersOf loads the requested members that belong to the organization,
// erroring when none do
func (s *Service) membersOf(ctx context.Context, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]*orgs.OrgUser, error) {
	users, err := s.store.GetManyOrgUsers(ctx, orgUserIDs)
	if err != nil {
		return nil, err
	}
	filtered := make([]*orgs.OrgUser, 0, len(users))
	for _, user := range users {
		if user.OrganizationID == orgID {
			filtered = append(filtered, user)
		}
	}
	if len(filtered) == 0 {
		return nil, orgs.NewBadRequestError("Users invalid.")
	}
	return filtered, nil
}
