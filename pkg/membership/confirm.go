package membership

import (
	"context"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/authz"
	"github.com/covault/covault/pkg/events"
	"github.com/covault/covault/pkg/orgs"
	"github.com/covault/covault/pkg/policy"
)

// AcceptInvite transitions an invited member to accepted. The token must
// match the invite, and the organization's join policies must allow the
// user in. On success the member row is linked to the user account and
// the stored invite email is cleared.
func (s *Service) AcceptInvite(ctx context.Context, userID, orgUserID uuid.UUID, token string) (*orgs.OrgUser, error) {
	user, err := s.store.GetOrgUser(ctx, orgUserID)
	if err != nil {
		return nil, err
	}
	if user.Status != orgs.UserStatusInvited {
		return nil, orgs.NewBadRequestError("Already accepted.")
	}
	if err := s.tokens.Verify(token, user.ID, user.Email); err != nil {
		return nil, err
	}

	singleOrg, err := s.policies.GetByOrganizationType(ctx, user.OrganizationID, policy.TypeSingleOrg)
	if err != nil {
		return nil, err
	}
	if singleOrg != nil && singleOrg.Enabled {
		inOther, err := s.hasOtherActiveMembership(ctx, userID, user.OrganizationID)
		if err != nil {
			return nil, err
		}
		if inOther {
			return nil, orgs.NewBadRequestError("You may not join this organization until you leave or remove all other organizations.")
		}
	}
	count, err := s.policies.CountApplicableToUser(ctx, userID, policy.TypeSingleOrg, user.OrganizationID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, orgs.NewBadRequestError("You cannot join this organization because you are a member of another organization which forbids it.")
	}

	twoFactor, err := s.policies.GetByOrganizationType(ctx, user.OrganizationID, policy.TypeTwoFactorAuthentication)
	if err != nil {
		return nil, err
	}
	if twoFactor != nil && twoFactor.Enabled {
		enabled, err := s.policies.GetUserTwoFactorEnabled(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !enabled {
			return nil, orgs.NewBadRequestError("You cannot join this organization until you enable two-step login on your user account.")
		}
	}

	user.Status = orgs.UserStatusAccepted
	user.UserID = &userID
	user.Email = ""
	if err := s.store.ReplaceOrgUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ConfirmUser confirms a single accepted member with their encrypted
// organization key
func (s *Service) ConfirmUser(ctx context.Context, p authz.ActingPrincipal, orgID, orgUserID uuid.UUID, key string) (*orgs.OrgUser, error) {
	results, err := s.ConfirmUsers(ctx, p, orgID, map[uuid.UUID]string{orgUserID: key})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, orgs.NewBadRequestError("User not valid.")
	}
	if results[0].Err != "" {
		return nil, orgs.NewBadRequestError("%s", results[0].Err)
	}
	return results[0].User, nil
}

// ConfirmUsers confirms many accepted members at once. Members outside
// the organization or not in the accepted state are silently dropped;
// everything else is reported per member, and the members that pass are
// persisted together.
func (s *Service) ConfirmUsers(ctx context.Context, p authz.ActingPrincipal, orgID uuid.UUID, keys map[uuid.UUID]string) ([]BulkResult, error) {
	ids := make([]uuid.UUID, 0, len(keys))
	for id := range keys {
		ids = append(ids, id)
	}
	users, err := s.store.GetManyOrgUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	selected := make([]*orgs.OrgUser, 0, len(users))
	for _, user := range users {
		if user.OrganizationID == orgID && user.Status == orgs.UserStatusAccepted && user.UserID != nil {
			selected = append(selected, user)
		}
	}
	if len(selected) == 0 {
		return nil, nil
	}

	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	twoFactor, err := s.policies.GetByOrganizationType(ctx, orgID, policy.TypeTwoFactorAuthentication)
	if err != nil {
		return nil, err
	}
	singleOrg, err := s.policies.GetByOrganizationType(ctx, orgID, policy.TypeSingleOrg)
	if err != nil {
		return nil, err
	}

	results := make([]BulkResult, 0, len(selected))
	confirmed := make([]*orgs.OrgUser, 0, len(selected))
	for _, user := range selected {
		errMsg, err := s.checkConfirmable(ctx, org, user, twoFactor, singleOrg)
		if err != nil {
			return nil, err
		}
		if errMsg != "" {
			results = append(results, BulkResult{User: user, Err: errMsg})
			continue
		}
		user.Status = orgs.UserStatusConfirmed
		user.Key = keys[user.ID]
		confirmed = append(confirmed, user)
		results = append(results, BulkResult{User: user})
	}
	if len(confirmed) > 0 {
		if err := s.store.ReplaceManyOrgUsers(ctx, confirmed); err != nil {
			return nil, err
		}
		for _, user := range confirmed {
			s.record(ctx, orgID, actingUserPtr(p), user.ID, events.TypeUserConfirmed)
			s.sendConfirmed(ctx, org, user)
		}
	}
	return results, nil
}

func (s *Service) checkConfirmable(ctx context.Context, org *orgs.Organization, user *orgs.OrgUser, twoFactor, singleOrg *policy.Policy) (string, error) {
	if org.PlanType == orgs.PlanFree && (user.Type == orgs.UserTypeAdmin || user.Type == orgs.UserTypeOwner) {
		count, err := s.store.GetCountByFreeOrganizationAdmin(ctx, *user.UserID)
		if err != nil {
			return "", err
		}
		if count > 0 {
			return "User can only be an admin of one free organization.", nil
		}
	}
	if twoFactor != nil && twoFactor.Enabled {
		enabled, err := s.policies.GetUserTwoFactorEnabled(ctx, *user.UserID)
		if err != nil {
			return "", err
		}
		if !enabled {
			return "User does not have two-step login enabled.", nil
		}
	}
	if singleOrg != nil && singleOrg.Enabled {
		inOther, err := s.hasOtherActiveMembership(ctx, *user.UserID, org.ID)
		if err != nil {
			return "", err
		}
		if inOther {
			return "Cannot confirm this member to the organization until they leave or remove all other organizations.", nil
		}
	}
	count, err := s.policies.CountApplicableToUser(ctx, *user.UserID, policy.TypeSingleOrg, org.ID)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "Cannot confirm this member to the organization because they are in another organization which forbids it.", nil
	}
	return "", nil
}

func (s *Service) hasOtherActiveMembership(ctx context.Context, userID, orgID uuid.UUID) (bool, error) {
	memberships, err := s.store.GetOrgUsersByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, m := range memberships {
		if m.OrganizationID != orgID && m.Status != orgs.UserStatusInvited {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) sendConfirmed(ctx context.Context, org *orgs.Organization, user *orgs.OrgUser) {
	email, err := s.store.GetUserEmail(ctx, *user.UserID)
	if err == nil {
		err = s.mailer.SendConfirmed(ctx, org.Name, email)
	}
	if err != nil {
		s.logger.WithError(err).WithField("organization_user_id", user.ID).
			Warn("failed to send confirmation email")
	}
}
