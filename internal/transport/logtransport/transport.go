// Package logtransport implements a transport that records messages in the
// log instead of delivering them.
package logtransport

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lattiq/mailservice/internal/core"
)

// Name is the transport identifier.
const Name = "log"

// Transport writes a summary of every message to a zerolog logger.
// It never fails.
type Transport struct {
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures a Transport.
type Option func(*Transport)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Transport) {
		t.now = now
	}
}

// New creates a log transport.
func New(logger zerolog.Logger, opts ...Option) *Transport {
	t := &Transport{
		logger: logger.With().Str("transport", Name).Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewTransport matches the registry factory signature.
func NewTransport(_ core.ProviderSettings, logger zerolog.Logger) (core.Transport, error) {
	return New(logger), nil
}

// Send logs msg and returns a synthetic message id.
func (t *Transport) Send(_ context.Context, msg *core.Message) (*core.Result, error) {
	id := "log-" + uuid.NewString()

	to := make([]string, len(msg.To))
	for i, addr := range msg.To {
		to[i] = addr.Email
	}

	t.logger.Info().
		Str("message_id", id).
		Str("from", msg.From.String()).
		Strs("to", to).
		Int("cc", len(msg.CC)).
		Int("bcc", len(msg.BCC)).
		Str("subject", msg.Subject).
		Int("html_bytes", len(msg.HTML)).
		Int("text_bytes", len(msg.Text)).
		Int("attachments", len(msg.Attachments)).
		Msg("email not delivered, logged only")

	return &core.Result{
		Success:   true,
		Transport: Name,
		MessageID: id,
		Timestamp: t.now(),
	}, nil
}

// Name implements core.Transport.
func (t *Transport) Name() string {
	return Name
}
