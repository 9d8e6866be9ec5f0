// Package orgs provides multi-tenant organization and membership storage for Covault.
//
// # Overview
//
// This package defines the core tenancy model: organizations, their plans,
// and organization users (members). It owns the persistence layer for both,
// plus the provider entities that let managed-service providers administer
// client organizations.
//
// # Membership Lifecycle
//
// A member moves through four statuses:
//
//	invited   - row exists with an email, no linked user account
//	accepted  - invite accepted, user_id linked, awaiting key exchange
//	confirmed - org key delivered; email cleared from the row
//	revoked   - suspended; row retained so the prior status can be restored
//
// The prior active status of a revoked member is not stored. It is
// reconstructed from the shape of the row:
//
//	user := &orgs.OrgUser{...}
//	status := user.PriorActiveStatus() // invited, accepted or confirmed
//
// # Plans
//
// Four plan tiers are defined statically in plans.go. Free and Families
// carry fixed seat counts; Teams and Enterprise start at zero base seats
// and purchase additional seats, optionally autoscaling up to a ceiling:
//
//	plan, err := orgs.GetPlan(org.PlanType)
//	if plan.PasswordManager.AllowSeatAutoscale { ... }
//
// # Seat Occupancy
//
// Every non-revoked member occupies a password manager seat, including
// members still in invited status. Members flagged with secrets manager
// access additionally occupy a seat in that pool:
//
//	count, err := store.GetOccupiedSeatCount(ctx, orgID)
//	smCount, err := store.GetOccupiedSmSeatCount(ctx, orgID)
//
// # Related Packages
//
//   - pkg/seats: seat adjustment and autoscaling on top of this storage
//   - pkg/membership: invite, confirm, revoke and restore flows
//   - pkg/authz: role and permission evaluation over OrgUser records
package orgs
