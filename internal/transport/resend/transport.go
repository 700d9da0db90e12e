// Package resend delivers messages through the Resend API.
package resend

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/resend/resend-go/v3"
	"github.com/rs/zerolog"

	"github.com/lattiq/mailservice/internal/core"
)

// Name is the transport identifier.
const Name = "resend"

// Resend tag names and values accept ASCII letters, digits, underscores and dashes.
var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// Transport implements core.Transport for Resend.
type Transport struct {
	client *resend.Client
	logger zerolog.Logger
}

// NewTransport creates a Resend transport. Recognised keys: api_key, base_url.
func NewTransport(settings core.ProviderSettings, logger zerolog.Logger) (core.Transport, error) {
	apiKey := settings.Get("api_key")
	if apiKey == "" {
		return nil, core.NewValidationError("api_key", "Resend API key is required")
	}

	client := resend.NewClient(apiKey)
	if raw := settings.Get("base_url"); raw != "" {
		u, err := url.Parse(strings.TrimSuffix(raw, "/") + "/")
		if err != nil {
			return nil, core.NewValidationErrorWithValue("base_url", "invalid URL", raw)
		}
		client.BaseURL = u
	}

	return &Transport{
		client: client,
		logger: logger.With().Str("transport", Name).Logger(),
	}, nil
}

// Send implements core.Transport.
func (t *Transport) Send(ctx context.Context, msg *core.Message) (*core.Result, error) {
	resp, err := t.client.Emails.SendWithContext(ctx, buildRequest(msg))
	if err != nil {
		t.logger.Warn().Err(err).Msg("resend rejected message")
		perr := core.NewProviderErrorWithCause(Name, "send_error", err)
		perr.IsTemporary = ctx.Err() == nil && isTemporary(err)
		return nil, perr
	}

	return &core.Result{
		Success:   true,
		Transport: Name,
		MessageID: resp.Id,
		Timestamp: time.Now(),
	}, nil
}

// Name implements core.Transport.
func (t *Transport) Name() string {
	return Name
}

func buildRequest(msg *core.Message) *resend.SendEmailRequest {
	req := &resend.SendEmailRequest{
		From:    msg.From.String(),
		To:      addressList(msg.To),
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Cc:      addressList(msg.CC),
		Bcc:     addressList(msg.BCC),
		Headers: msg.Headers,
	}

	if msg.ReplyTo != nil {
		req.ReplyTo = msg.ReplyTo.String()
	}

	if len(msg.Attachments) > 0 {
		req.Attachments = make([]*resend.Attachment, len(msg.Attachments))
		for i, a := range msg.Attachments {
			req.Attachments[i] = &resend.Attachment{
				Filename:    a.Filename,
				Content:     a.Content,
				ContentType: a.DetectContentType(),
				ContentId:   a.ContentID,
			}
		}
	}

	for name, value := range msg.Metadata {
		if tagPattern.MatchString(name) && tagPattern.MatchString(value) {
			req.Tags = append(req.Tags, resend.Tag{Name: name, Value: value})
		}
	}

	return req
}

func addressList(addrs []core.Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func isTemporary(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "internal server error")
}
