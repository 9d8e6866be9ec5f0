// Package authz decides what an acting principal may do within an
// organization.
//
// # Overview
//
// Three concerns live here:
//
//   - Operation decisions: a fixed table mapping each named operation
//     (list collections, edit all collections, list members) to one
//     decision function over the principal's role and permission flags.
//   - Role hierarchy: who may create or modify members of which role, and
//     whether a custom-permission grant is a subset of the granter's own
//     flags.
//   - Access resolution: merging client-submitted collection grants with
//     the grants the principal is not allowed to touch, so a restricted
//     admin cannot strip access by omitting entries.
//
// # Acting Principal
//
// Every decision takes an explicit ActingPrincipal value. There is no
// ambient "current user"; handlers build the principal once per request and
// thread it through:
//
//	member, _ := store.GetOrgUserByOrganizationAndUser(ctx, orgID, userID)
//	principal := authz.NewPrincipal(userID, orgID, member, false)
//	if err := authz.Authorize(authz.OpReadAllUsers, principal, org); err != nil {
//		// deny
//	}
//
// # Related Packages
//
//   - pkg/membership: lifecycle flows calling into these checks
//   - pkg/collections: the grant model the resolver operates on
package authz
