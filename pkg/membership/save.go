package membership

import (
	"context"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/authz"
	"github.com/covault/covault/pkg/collections"
	"github.com/covault/covault/pkg/events"
	"github.com/covault/covault/pkg/orgs"
	"github.com/covault/covault/pkg/policy"
)

// SaveUser applies role, permission and collection access changes to an
// existing member. Identity fields (user link, email, status, key) are
// never changed through this path.
func (s *Service) SaveUser(ctx context.Context, p authz.ActingPrincipal, user *orgs.OrgUser, access []collections.AccessSelection) error {
	if user.ID == uuid.Nil {
		return orgs.NewBadRequestError("Invite the user first.")
	}
	original, err := s.store.GetOrgUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if original.OrganizationID != user.OrganizationID {
		return &orgs.NotFoundError{Resource: "organization user"}
	}
	if user.Equal(original) {
		return orgs.NewBadRequestError("Please make changes before saving this form.")
	}

	org, err := s.store.GetOrganization(ctx, user.OrganizationID)
	if err != nil {
		return err
	}
	if err := validateMemberShape(org, user.Type, user.AccessAll, access); err != nil {
		return err
	}
	if err := authz.ValidateCustomPermissionsEnabled(org, user.Type); err != nil {
		return err
	}
	if err := authz.ValidateUserUpdatePermissions(p, user.Type, &original.Type, user.Permissions); err != nil {
		return err
	}

	if user.AccessSecretsManager && !original.AccessSecretsManager {
		required, err := s.seats.SmSeatsRequiredToAdd(ctx, org, 1)
		if err != nil {
			return err
		}
		if required > 0 {
			if _, err := s.seats.AutoAddSmSeats(ctx, org, required); err != nil {
				return err
			}
		}
	}

	if original.Type == orgs.UserTypeOwner && user.Type != orgs.UserTypeOwner {
		ok, err := s.HasConfirmedOwnersExcept(ctx, org.ID, []uuid.UUID{user.ID}, true)
		if err != nil {
			return err
		}
		if !ok {
			return orgs.NewBadRequestError("Organization must have at least one confirmed owner.")
		}
	}

	resolved, err := s.resolver.Resolve(ctx, p, org, original, access)
	if err != nil {
		return err
	}

	user.UserID = original.UserID
	user.Email = original.Email
	user.Status = original.Status
	user.Key = original.Key
	user.ResetPasswordKey = original.ResetPasswordKey
	if err := s.store.ReplaceOrgUser(ctx, user); err != nil {
		return err
	}
	if err := s.collections.ReplaceOrgUserAccess(ctx, user.ID, resolved); err != nil {
		return err
	}
	s.record(ctx, org.ID, actingUserPtr(p), user.ID, events.TypeUserUpdated)
	return nil
}

// UpdateResetPasswordEnrollment enrolls the user in, or withdraws them
// from, admin password reset for the organization. An empty key withdraws.
func (s *Service) UpdateResetPasswordEnrollment(ctx context.Context, orgID, userID uuid.UUID, resetPasswordKey string) error {
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if !org.UseResetPassword {
		return orgs.NewBadRequestError("This organization cannot use password reset.")
	}
	resetPolicy, err := s.policies.GetByOrganizationType(ctx, orgID, policy.TypeResetPassword)
	if err != nil {
		return err
	}
	if resetPolicy == nil || !resetPolicy.Enabled {
		return orgs.NewBadRequestError("Organization does not allow password reset enrollment.")
	}
	if resetPasswordKey == "" {
		data, err := resetPolicy.ResetPasswordData()
		if err != nil {
			return err
		}
		if data.AutoEnrollEnabled {
			return orgs.NewBadRequestError("Due to an Enterprise Policy, you are not allowed to withdraw from Password Reset.")
		}
	}

	user, err := s.store.GetOrgUserByOrganizationAndUser(ctx, orgID, userID)
	if err != nil {
		return err
	}
	user.ResetPasswordKey = resetPasswordKey
	if err := s.store.ReplaceOrgUser(ctx, user); err != nil {
		return err
	}
	s.record(ctx, orgID, &userID, user.ID, events.TypeUserResetPasswordEnroll)
	return nil
}
