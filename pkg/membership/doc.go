// Package membership coordinates the organization and member lifecycle:
// signing up organizations, inviting members, accepting and confirming
// invites, changing roles and collection access, and removing, revoking or
// restoring members.
//
// The Service composes the persistence stores with seat accounting, the
// payment gateway, policy evaluation, authorization checks and outbound
// mail. Lifecycle transitions follow a fixed ladder:
//
//	invited -> accepted -> confirmed
//	any     -> revoked  -> prior status (restore)
//
// Invited members exist only as an email plus a signed invite token.
// Accepting links the member row to a user account and clears the stored
// email; confirming attaches the encrypted organization key, which is the
// point where the member can first read organization data. Restore infers
// the pre-revocation status from which of those fields are populated.
//
// Batch operations (invite, confirm, delete, revoke, restore) report
// per-member outcomes in input order. Invite alone is all-or-nothing: a
// failure after seats were added or rows were written triggers compensating
// deletes and seat reductions, and the caller receives every error that
// occurred along the way.
package membership
