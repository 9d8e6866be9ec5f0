// Package notify dispatches transactional email for invites, confirmations
// and seat-limit alerts.
package notify
