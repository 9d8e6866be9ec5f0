package notify

import (
	"context"
	"time"

	"github.com/covault/covault/pkg/async"
	"github.com/covault/covault/pkg/observability"
)

// sendTimeout bounds how long a background mail send may take
const sendTimeout = 30 * time.Second

// AsyncMailer decorates a Mailer so every send happens on a background
// goroutine. Calls return immediately; failures are logged by the task
// runner instead of surfacing to the caller.
type AsyncMailer struct {
	inner  Mailer
	logger *observability.Logger
}

// NewAsyncMailer creates a new AsyncMailer around an existing Mailer
func NewAsyncMailer(inner Mailer, logger *observability.Logger) *AsyncMailer {
	return &AsyncMailer{inner: inner, logger: logger}
}

func (m *AsyncMailer) SendInvite(ctx context.Context, orgName, email, token string) error {
	async.SafeGo(context.Background(), m.logger, sendTimeout, "invite mail", func(ctx context.Context) error {
		return m.inner.SendInvite(ctx, orgName, email, token)
	})
	return nil
}

func (m *AsyncMailer) SendConfirmed(ctx context.Context, orgName, email string) error {
	async.SafeGo(context.Background(), m.logger, sendTimeout, "confirmation mail", func(ctx context.Context) error {
		return m.inner.SendConfirmed(ctx, orgName, email)
	})
	return nil
}

func (m *AsyncMailer) SendSeatLimitReached(ctx context.Context, orgName string, maxSeats int, to []string) error {
	async.SafeGo(context.Background(), m.logger, sendTimeout, "seat limit mail", func(ctx context.Context) error {
		return m.inner.SendSeatLimitReached(ctx, orgName, maxSeats, to)
	})
	return nil
}

func (m *AsyncMailer) SendSmSeatLimitReached(ctx context.Context, orgName string, maxSeats int, to []string) error {
	async.SafeGo(context.Background(), m.logger, sendTimeout, "secrets manager seat limit mail", func(ctx context.Context) error {
		return m.inner.SendSmSeatLimitReached(ctx, orgName, maxSeats, to)
	})
	return nil
}
