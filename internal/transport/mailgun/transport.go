// Package mailgun delivers messages through the Mailgun API.
package mailgun

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/rs/zerolog"

	"github.com/lattiq/mailservice/internal/core"
)

// Name is the transport identifier.
const Name = "mailgun"

// BaseURLEU is the API base for domains hosted in the EU region.
const BaseURLEU = "https://api.eu.mailgun.net"

// Transport implements core.Transport for Mailgun.
type Transport struct {
	client *mailgun.MailgunImpl
	logger zerolog.Logger
}

// NewTransport creates a Mailgun transport. Recognised keys: api_key,
// domain, base_url (set to BaseURLEU for EU domains).
func NewTransport(settings core.ProviderSettings, logger zerolog.Logger) (core.Transport, error) {
	apiKey := settings.Get("api_key")
	if apiKey == "" {
		return nil, core.NewValidationError("api_key", "Mailgun API key is required")
	}

	domain := settings.Get("domain")
	if domain == "" {
		return nil, core.NewValidationError("domain", "Mailgun domain is required")
	}

	client := mailgun.NewMailgun(domain, apiKey)
	if baseURL := settings.Get("base_url"); baseURL != "" {
		client.SetAPIBase(baseURL)
	}

	return &Transport{
		client: client,
		logger: logger.With().Str("transport", Name).Str("domain", domain).Logger(),
	}, nil
}

// Send implements core.Transport.
func (t *Transport) Send(ctx context.Context, msg *core.Message) (*core.Result, error) {
	message, err := buildMessage(msg)
	if err != nil {
		return nil, err
	}

	mes, id, err := t.client.Send(ctx, message)
	if err != nil {
		t.logger.Warn().Err(err).Msg("mailgun rejected message")
		return nil, core.NewProviderErrorWithCause(Name, "send_failed", err)
	}

	return &core.Result{
		Success:   true,
		Transport: Name,
		MessageID: id,
		Timestamp: time.Now(),
		Metadata: map[string]any{
			"message": mes,
		},
	}, nil
}

// Name implements core.Transport.
func (t *Transport) Name() string {
	return Name
}

func buildMessage(msg *core.Message) (*mailgun.Message, error) {
	message := mailgun.NewMessage(msg.From.String(), msg.Subject, msg.Text, msg.To[0].String())

	for _, to := range msg.To[1:] {
		if err := message.AddRecipient(to.String()); err != nil {
			return nil, core.NewProviderError(Name, "recipient_add_failed", "failed to add recipient "+to.Email+": "+err.Error())
		}
	}
	for _, cc := range msg.CC {
		message.AddCC(cc.String())
	}
	for _, bcc := range msg.BCC {
		message.AddBCC(bcc.String())
	}

	if msg.HTML != "" {
		message.SetHTML(msg.HTML)
	}
	if msg.ReplyTo != nil {
		message.SetReplyTo(msg.ReplyTo.String())
	}

	for key, value := range msg.Headers {
		message.AddHeader(key, value)
	}
	for key, value := range msg.Metadata {
		if err := message.AddVariable(key, value); err != nil {
			return nil, core.NewProviderError(Name, "variable_add_failed", err.Error())
		}
	}

	for _, att := range msg.Attachments {
		if att.Inline {
			name := att.Filename
			if att.ContentID != "" {
				name = att.ContentID
			}
			message.AddReaderInline(name, io.NopCloser(bytes.NewReader(att.Content)))
			continue
		}
		message.AddBufferAttachment(att.Filename, att.Content)
	}

	return message, nil
}
