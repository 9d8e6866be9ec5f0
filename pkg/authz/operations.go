package authz

import (
	"github.com/covault/covault/pkg/orgs"
)

// Operation is the tagged set of organization-level actions the policy
// engine can decide. Each operation maps to one decision function; there is
// no virtual dispatch to follow.
type Operation int

const (
	// OpReadAllCollections lists every collection in the organization.
	OpReadAllCollections Operation = iota
	// OpReadAllCollectionsWithAccess lists collections together with their
	// member and group grants.
	OpReadAllCollectionsWithAccess
	// OpEditAllCollections modifies any collection regardless of grants.
	OpEditAllCollections
	// OpReadAllUsers lists the organization's members.
	OpReadAllUsers
)

func (op Operation) String() string {
	switch op {
	case OpReadAllCollections:
		return "read_all_collections"
	case OpReadAllCollectionsWithAccess:
		return "read_all_collections_with_access"
	case OpEditAllCollections:
		return "edit_all_collections"
	case OpReadAllUsers:
		return "read_all_users"
	}
	return "unknown"
}

var decisions = map[Operation]func(ActingPrincipal, *orgs.Organization) bool{
	OpReadAllCollections:           decideReadAllCollections,
	OpReadAllCollectionsWithAccess: decideReadAllCollectionsWithAccess,
	OpEditAllCollections:           decideEditAllCollections,
	OpReadAllUsers:                 decideReadAllUsers,
}

// Authorize decides whether the principal may perform the operation against
// the organization. Unauthenticated principals and missing organization
// context are always denied.
func Authorize(op Operation, p ActingPrincipal, org *orgs.Organization) error {
	if !p.Authenticated() || org == nil {
		return &orgs.InsufficientPermissionError{Message: "you are not authorized to perform this action"}
	}
	decide, ok := decisions[op]
	if !ok || !decide(p, org) {
		return &orgs.InsufficientPermissionError{Message: "you are not authorized to perform this action"}
	}
	return nil
}

func decideReadAllCollections(p ActingPrincipal, org *orgs.Organization) bool {
	if p.IsAdminOrOwner() {
		return true
	}
	perms := p.perms()
	if perms.EditAnyCollection || perms.DeleteAnyCollection ||
		perms.AccessImportExport || perms.ManageGroups {
		return true
	}
	return p.ProviderUser
}

func decideReadAllCollectionsWithAccess(p ActingPrincipal, org *orgs.Organization) bool {
	if p.IsAdminOrOwner() {
		return true
	}
	perms := p.perms()
	if perms.EditAnyCollection || perms.DeleteAnyCollection || perms.ManageUsers {
		return true
	}
	return p.ProviderUser
}

func decideEditAllCollections(p ActingPrincipal, org *orgs.Organization) bool {
	if p.perms().EditAnyCollection {
		return true
	}
	// Admin edit-all depends on the organization's collection management
	// settings once the per-collection permission regime is active.
	if p.IsAdminOrOwner() &&
		(org.AllowAdminAccessToAllCollectionItems || !org.FlexibleCollections) {
		return true
	}
	return p.ProviderUser
}

func decideReadAllUsers(p ActingPrincipal, org *orgs.Organization) bool {
	if p.IsAdminOrOwner() {
		return true
	}
	perms := p.perms()
	if perms.ManageUsers || perms.ManageGroups || perms.AccessEventLogs {
		return true
	}
	return p.ProviderUser
}
