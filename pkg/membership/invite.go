package membership

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/authz"
	"github.com/covault/covault/pkg/collections"
	"github.com/covault/covault/pkg/events"
	"github.com/covault/covault/pkg/orgs"
)

// InviteRequest describes one batch of invites sharing a role and access
// grant. Emails that already belong to the organization are skipped.
type InviteRequest struct {
	Emails               []string
	Type                 orgs.UserType
	AccessAll            bool
	AccessSecretsManager bool
	Permissions          *orgs.Permissions
	Collections          []collections.AccessSelection
}

// InviteUsers invites the given emails to the organization. The batch is
// all-or-nothing: if any member row cannot be created or seats cannot be
// added, every row and seat change made so far is undone.
func (s *Service) InviteUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, invites []InviteRequest) ([]*orgs.OrgUser, error) {
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	allOwners := true
	for _, invite := range invites {
		if err := validateMemberShape(org, invite.Type, invite.AccessAll, invite.Collections); err != nil {
			return nil, err
		}
		if err := authz.ValidateCustomPermissionsEnabled(org, invite.Type); err != nil {
			return nil, err
		}
		if err := authz.ValidateUserUpdatePermissions(p, invite.Type, nil, invite.Permissions); err != nil {
			return nil, err
		}
		if invite.Type != orgs.UserTypeOwner {
			allOwners = false
		}
	}
	if !allOwners {
		ok, err := s.HasConfirmedOwnersExcept(ctx, orgID, nil, true)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, orgs.NewBadRequestError("Organization must have at least one confirmed owner.")
		}
	}

	var allEmails []string
	for _, invite := range invites {
		allEmails = append(allEmails, invite.Emails...)
	}
	known, err := s.store.SelectKnownEmails(ctx, orgID, allEmails)
	if err != nil {
		return nil, err
	}
	knownSet := make(map[string]bool, len(known))
	for _, email := range known {
		knownSet[email] = true
	}

	var newUsers []*orgs.OrgUser
	accessByUser := make(map[uuid.UUID][]collections.AccessSelection)
	smSeatsNeeded := 0
	for _, invite := range invites {
		for _, email := range invite.Emails {
			lower := strings.ToLower(email)
			if knownSet[lower] {
				continue
			}
			knownSet[lower] = true
			user := &orgs.OrgUser{
				ID:                   uuid.New(),
				OrganizationID:       orgID,
				Email:                email,
				Type:                 invite.Type,
				Status:               orgs.UserStatusInvited,
				AccessAll:            invite.AccessAll,
				AccessSecretsManager: invite.AccessSecretsManager,
				Permissions:          invite.Permissions,
			}
			newUsers = append(newUsers, user)
			if len(invite.Collections) > 0 {
				accessByUser[user.ID] = invite.Collections
			}
			if invite.AccessSecretsManager {
				smSeatsNeeded++
			}
		}
	}
	if len(newUsers) == 0 {
		return nil, nil
	}

	seatsRequired, err := s.seats.SeatsRequiredToAdd(ctx, org, len(newUsers))
	if err != nil {
		return nil, err
	}
	if seatsRequired > 0 {
		if err := s.seats.CanScale(ctx, org, seatsRequired); err != nil {
			return nil, err
		}
	}
	smSeatsRequired := 0
	if smSeatsNeeded > 0 {
		smSeatsRequired, err = s.seats.SmSeatsRequiredToAdd(ctx, org, smSeatsNeeded)
		if err != nil {
			return nil, err
		}
	}

	if err := s.inviteAndScale(ctx, p, org, newUsers, seatsRequired, smSeatsRequired); err != nil {
		return nil, err
	}

	for id, access := range accessByUser {
		if err := s.collections.ReplaceOrgUserAccess(ctx, id, access); err != nil {
			s.logger.WithError(err).WithField("organization_user_id", id).
				Warn("failed to assign invited member collection access")
		}
	}

	for _, user := range newUsers {
		token, err := s.tokens.Issue(user.ID, user.Email)
		if err == nil {
			err = s.mailer.SendInvite(ctx, org.Name, user.Email, token)
		}
		if err != nil {
			s.logger.WithError(err).WithField("email", user.Email).
				Warn("failed to send organization invite")
		}
		s.record(ctx, orgID, actingUserPtr(p), user.ID, events.TypeUserInvited)
	}
	return newUsers, nil
}

// inviteAndScale grows both seat pools and persists the member rows,
// undoing partial work on failure
func (s *Service) inviteAndScale(ctx context.Context, p authz.ActingPrincipal, org *orgs.Organization, newUsers []*orgs.OrgUser, seatsRequired, smSeatsRequired int) error {
	var errs []error
	seatsAdded, smSeatsAdded := 0, 0
	created := false

	if seatsRequired > 0 {
		if _, err := s.seats.AutoAddSeats(ctx, org, seatsRequired); err != nil {
			errs = append(errs, err)
		} else {
			seatsAdded = seatsRequired
		}
	}
	if len(errs) == 0 && smSeatsRequired > 0 {
		if _, err := s.seats.AutoAddSmSeats(ctx, org, smSeatsRequired); err != nil {
			errs = append(errs, err)
		} else {
			smSeatsAdded = smSeatsRequired
		}
	}
	if len(errs) == 0 {
		if err := s.store.CreateOrgUsers(ctx, newUsers); err != nil {
			errs = append(errs, err)
		} else {
			created = true
		}
	}
	if len(errs) == 0 {
		return nil
	}

	if created {
		ids := make([]uuid.UUID, len(newUsers))
		for i, user := range newUsers {
			ids[i] = user.ID
		}
		if err := s.store.DeleteManyOrgUsers(ctx, ids); err != nil {
			errs = append(errs, fmt.Errorf("failed to roll back invited members: %w", err))
		}
	}
	if seatsAdded > 0 {
		if _, err := s.seats.AdjustSeats(ctx, org, -seatsAdded); err != nil {
			errs = append(errs, fmt.Errorf("failed to roll back seat increase: %w", err))
		}
	}
	if smSeatsAdded > 0 {
		if _, err := s.seats.AdjustSmSeats(ctx, org, -smSeatsAdded); err != nil {
			errs = append(errs, fmt.Errorf("failed to roll back secrets manager seat increase: %w", err))
		}
	}
	return &orgs.AggregateError{Message: "One or more errors occurred.", Errs: errs}
}

// ResendInvite sends a fresh invite email to a still invited member
func (s *Service) ResendInvite(ctx context.Context, orgID, orgUserID uuid.UUID) error {
	user, err := s.store.GetOrgUser(ctx, orgUserID)
	if err != nil {
		return err
	}
	if user.OrganizationID != orgID || user.Status != orgs.UserStatusInvited {
		return orgs.NewBadRequestError("User invalid.")
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return err
	}
	return s.mailer.SendInvite(ctx, org.Name, user.Email, token)
}

// ResendInvites resends invites to many members, reporting per-member
// outcomes in input order
func (s *Service) ResendInvites(ctx context.Context, orgID uuid.UUID, orgUserIDs []uuid.UUID) ([]BulkResult, error) {
	users, err := s.store.GetManyOrgUsers(ctx, orgUserIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*orgs.OrgUser, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	results := make([]BulkResult, 0, len(orgUserIDs))
	for _, id := range orgUserIDs {
		user, ok := byID[id]
		if !ok || user.OrganizationID != orgID || user.Status != orgs.UserStatusInvited {
			results = append(results, BulkResult{User: user, Err: "User invalid."})
			continue
		}
		token, err := s.tokens.Issue(user.ID, user.Email)
		if err == nil {
			err = s.mailer.SendInvite(ctx, org.Name, user.Email, token)
		}
		if err != nil {
			results = append(results, BulkResult{User: user, Err: err.Error()})
			continue
		}
		results = append(results, BulkResult{User: user})
	}
	return results, nil
}

// CleanupExpiredInvites removes invites that were never accepted within
// maxAge. Run periodically; freed seats become available immediately since
// occupancy is counted from membership rows.
func (s *Service) CleanupExpiredInvites(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	deleted, err := s.store.DeleteExpiredInvites(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("removed expired invites")
	}
	return deleted, nil
}
