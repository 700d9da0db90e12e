// Package sendgrid delivers messages through the SendGrid v3 mail send API.
package sendgrid

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/lattiq/mailservice/internal/core"
)

// Name is the transport identifier.
const Name = "sendgrid"

const sendEndpoint = "/v3/mail/send"

// Transport implements core.Transport for SendGrid.
type Transport struct {
	apiKey string
	host   string
	logger zerolog.Logger
}

// NewTransport creates a SendGrid transport. Recognised keys: api_key,
// base_url (defaults to the public API host).
func NewTransport(settings core.ProviderSettings, logger zerolog.Logger) (core.Transport, error) {
	apiKey := settings.Get("api_key")
	if apiKey == "" {
		return nil, core.NewValidationError("api_key", "SendGrid API key is required")
	}

	return &Transport{
		apiKey: apiKey,
		host:   settings.Get("base_url"),
		logger: logger.With().Str("transport", Name).Logger(),
	}, nil
}

// Send delivers msg with a single personalization carrying every recipient.
func (t *Transport) Send(ctx context.Context, msg *core.Message) (*core.Result, error) {
	req := sendgrid.GetRequest(t.apiKey, sendEndpoint, t.host)
	req.Method = http.MethodPost
	req.Body = mail.GetRequestBody(buildMessage(msg))

	response, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		perr := core.NewProviderErrorWithCause(Name, "send_error", err)
		perr.IsTemporary = true
		return nil, perr
	}

	if response.StatusCode >= 400 {
		t.logger.Warn().Int("status", response.StatusCode).Msg("sendgrid rejected message")
		return nil, &core.ProviderError{
			Provider:    Name,
			Code:        "api_error",
			Message:     "SendGrid API error: " + response.Body,
			StatusCode:  response.StatusCode,
			IsTemporary: response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= 500,
		}
	}

	messageID := "unknown"
	if ids := http.Header(response.Headers).Values("X-Message-Id"); len(ids) > 0 && ids[0] != "" {
		messageID = ids[0]
	}

	return &core.Result{
		Success:   true,
		Transport: Name,
		MessageID: messageID,
		Timestamp: time.Now(),
		Metadata:  map[string]any{"status_code": response.StatusCode},
	}, nil
}

// Name implements core.Transport.
func (t *Transport) Name() string {
	return Name
}

func buildMessage(msg *core.Message) *mail.SGMailV3 {
	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(msg.From.Name, msg.From.Email))
	message.Subject = msg.Subject

	p := mail.NewPersonalization()
	for _, a := range msg.To {
		p.AddTos(mail.NewEmail(a.Name, a.Email))
	}
	for _, a := range msg.CC {
		p.AddCCs(mail.NewEmail(a.Name, a.Email))
	}
	for _, a := range msg.BCC {
		p.AddBCCs(mail.NewEmail(a.Name, a.Email))
	}
	message.AddPersonalizations(p)

	// SendGrid requires text/plain before text/html.
	if msg.Text != "" {
		message.AddContent(mail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		message.AddContent(mail.NewContent("text/html", msg.HTML))
	}

	if msg.ReplyTo != nil {
		message.SetReplyTo(mail.NewEmail(msg.ReplyTo.Name, msg.ReplyTo.Email))
	}

	for key, value := range msg.Headers {
		message.SetHeader(key, value)
	}
	for key, value := range msg.Metadata {
		message.SetCustomArg(key, value)
	}

	for _, att := range msg.Attachments {
		a := mail.NewAttachment()
		a.SetFilename(att.Filename)
		a.SetType(att.DetectContentType())
		a.SetContent(base64.StdEncoding.EncodeToString(att.Content))
		if att.Inline {
			a.SetDisposition("inline")
			a.SetContentID(contentID(att))
		} else {
			a.SetDisposition("attachment")
		}
		message.AddAttachment(a)
	}

	return message
}

func contentID(att core.Attachment) string {
	if att.ContentID != "" {
		return att.ContentID
	}
	return fmt.Sprintf("att-%s", att.Filename)
}
