package authz

import (
	"github.com/google/uuid"

	"github.com/covault/covault/pkg/orgs"
)

// ActingPrincipal carries everything authorization decisions need about the
// caller: identity, the caller's role in the target organization, and the
// caller's permission flags. It is passed explicitly into every operation so
// there is no ambient request state to reach for.
type ActingPrincipal struct {
	// UserID is uuid.Nil for unauthenticated callers.
	UserID uuid.UUID

	// MemberID is the principal's own membership record in the
	// organization, uuid.Nil for provider users and non-members.
	MemberID uuid.UUID

	// OrganizationID the principal's claims were resolved against.
	OrganizationID uuid.UUID

	// Type is nil when the principal is not a member of the organization.
	Type *orgs.UserType

	// Permissions is nil unless the member holds a custom role.
	Permissions *orgs.Permissions

	// ProviderUser is true when the principal administers the organization
	// through a confirmed provider relationship rather than membership.
	ProviderUser bool
}

// NewPrincipal builds an ActingPrincipal from a membership record. A nil
// record yields a principal with no organization claims.
func NewPrincipal(userID uuid.UUID, orgID uuid.UUID, member *orgs.OrgUser, providerUser bool) ActingPrincipal {
	p := ActingPrincipal{
		UserID:         userID,
		OrganizationID: orgID,
		ProviderUser:   providerUser,
	}
	if member != nil && member.Status == orgs.UserStatusConfirmed {
		memberType := member.Type
		p.MemberID = member.ID
		p.Type = &memberType
		p.Permissions = member.Permissions
	}
	return p
}

// Authenticated reports whether the principal carries a real user identity
func (p ActingPrincipal) Authenticated() bool {
	return p.UserID != uuid.Nil
}

// IsOwner reports whether the principal holds the owner role
func (p ActingPrincipal) IsOwner() bool {
	return p.Type != nil && *p.Type == orgs.UserTypeOwner
}

// IsAdminOrOwner reports whether the principal holds the admin or owner role
func (p ActingPrincipal) IsAdminOrOwner() bool {
	return p.Type != nil && (*p.Type == orgs.UserTypeOwner || *p.Type == orgs.UserTypeAdmin)
}

// IsMember reports whether the principal is a confirmed member of the
// organization
func (p ActingPrincipal) IsMember() bool {
	return p.Type != nil
}

func (p ActingPrincipal) perms() orgs.Permissions {
	if p.Permissions == nil {
		return orgs.Permissions{}
	}
	return *p.Permissions
}

// CanManageUsers reports whether the principal may administer memberships
func (p ActingPrincipal) CanManageUsers() bool {
	return p.IsAdminOrOwner() || p.perms().ManageUsers
}

// CanManageGroups reports whether the principal may administer groups
func (p ActingPrincipal) CanManageGroups() bool {
	return p.IsAdminOrOwner() || p.perms().ManageGroups
}
