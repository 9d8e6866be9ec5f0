package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer dispatches transactional email. Callers treat dispatch as
// fire-and-forget: failures are logged, never propagated into the operation
// that triggered the mail.
type Mailer interface {
	SendInvite(ctx context.Context, orgName, email, token string) error
	SendConfirmed(ctx context.Context, orgName, email string) error
	SendSeatLimitReached(ctx context.Context, orgName string, maxSeats int, to []string) error
	SendSmSeatLimitReached(ctx context.Context, orgName string, maxSeats int, to []string) error
}

// SMTPMailer sends mail through a plain SMTP relay
type SMTPMailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPMailer creates a new SMTPMailer. auth may be nil for
// unauthenticated relays.
func NewSMTPMailer(addr, from string, auth smtp.Auth) *SMTPMailer {
	return &SMTPMailer{addr: addr, from: from, auth: auth}
}

func (m *SMTPMailer) send(to []string, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.from, strings.Join(to, ", "), subject, body)
	if err := smtp.SendMail(m.addr, m.auth, m.from, to, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// SendInvite emails an organization invite link
func (m *SMTPMailer) SendInvite(ctx context.Context, orgName, email, token string) error {
	subject := fmt.Sprintf("Join %s", orgName)
	body := fmt.Sprintf("You have been invited to join %s.\r\n\r\nUse this token to accept the invitation: %s", orgName, token)
	return m.send([]string{email}, subject, body)
}

// SendConfirmed emails a member that their membership is active
func (m *SMTPMailer) SendConfirmed(ctx context.Context, orgName, email string) error {
	subject := fmt.Sprintf("You have been confirmed to %s", orgName)
	body := fmt.Sprintf("Your membership in %s is now active.", orgName)
	return m.send([]string{email}, subject, body)
}

// SendSeatLimitReached warns owners that the autoscale ceiling was hit
func (m *SMTPMailer) SendSeatLimitReached(ctx context.Context, orgName string, maxSeats int, to []string) error {
	subject := fmt.Sprintf("%s seat limit reached", orgName)
	body := fmt.Sprintf("%s has reached its seat autoscale limit of %d. Raise the limit to keep adding members.", orgName, maxSeats)
	return m.send(to, subject, body)
}

// SendSmSeatLimitReached warns owners that the secrets manager ceiling was
// hit
func (m *SMTPMailer) SendSmSeatLimitReached(ctx context.Context, orgName string, maxSeats int, to []string) error {
	subject := fmt.Sprintf("%s secrets manager seat limit reached", orgName)
	body := fmt.Sprintf("%s has reached its secrets manager seat autoscale limit of %d.", orgName, maxSeats)
	return m.send(to, subject, body)
}

// NoopMailer drops all mail. Used in tests and self-hosted deployments
// without a relay.
type NoopMailer struct{}

func (NoopMailer) SendInvite(ctx context.Context, orgName, email, token string) error { return nil }
func (NoopMailer) SendConfirmed(ctx context.Context, orgName, email string) error     { return nil }
func (NoopMailer) SendSeatLimitReached(ctx context.Context, orgName string, maxSeats int, to []string) error {
	return nil
}
func (NoopMailer) SendSmSeatLimitReached(ctx context.Context, orgName string, maxSeats int, to []string) error {
	return nil
}
