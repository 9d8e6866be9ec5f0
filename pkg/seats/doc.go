// Package seats implements seat accounting for the password manager and
// secrets manager seat pools.
//
// # Overview
//
// A seat adjustment runs a fixed validation ladder: the plan must sell
// additional seats, a payment method and subscription must be on file, the
// resulting total must respect the plan's base and maximum, and a shrink
// must not drop below the currently occupied seat count. Only then is the
// change pushed to the billing gateway and persisted.
//
// Autoscaling (AutoAddSeats) sits on top: invites and restores that need
// more seats than are free grow the pool automatically, subject to
// CanScale. Self-hosted deployments never autoscale, reseller-backed
// organizations must go through their provider, and MaxAutoscaleSeats caps
// everyone else. The first time an organization lands on its ceiling, its
// owners are emailed exactly once; a timestamp on the organization keeps
// the alert from repeating.
//
// The two seat pools are independent: secrets manager seats have their own
// count, ceiling, notification timestamp and gateway quantity, mirrored in
// secrets_manager.go.
package seats
