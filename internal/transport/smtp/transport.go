// Package smtp delivers messages to an SMTP relay using go-mail.
package smtp

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/lattiq/mailservice/internal/core"
)

// Name is the transport identifier.
const Name = "smtp"

const (
	defaultPort    = 587
	defaultTimeout = 30 * time.Second
)

// Transport implements core.Transport for an SMTP relay.
type Transport struct {
	host     string
	port     int
	username string
	password string
	secure   bool
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewTransport creates an SMTP transport from settings. Recognised keys:
// host, port, username, password, secure, timeout.
func NewTransport(settings core.ProviderSettings, logger zerolog.Logger) (core.Transport, error) {
	host := settings.Get("host")
	if host == "" {
		return nil, core.NewValidationError("host", "SMTP host is required")
	}

	port := defaultPort
	if raw := settings.Get("port"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p <= 0 || p > 65535 {
			return nil, core.NewValidationErrorWithValue("port", "invalid port number", raw)
		}
		port = p
	}

	secure := false
	if raw := settings.Get("secure"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, core.NewValidationErrorWithValue("secure", "must be a boolean", raw)
		}
		secure = b
	}

	timeout := defaultTimeout
	if raw := settings.Get("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, core.NewValidationErrorWithValue("timeout", "invalid duration", raw)
		}
		timeout = d
	}

	return &Transport{
		host:     host,
		port:     port,
		username: settings.Get("username"),
		password: settings.Get("password"),
		secure:   secure,
		timeout:  timeout,
		logger:   logger.With().Str("transport", Name).Logger(),
	}, nil
}

// Send builds a MIME message and delivers it in a single SMTP session.
func (t *Transport) Send(ctx context.Context, msg *core.Message) (*core.Result, error) {
	m, id, err := t.buildMsg(msg)
	if err != nil {
		return nil, core.NewProviderErrorWithCause(Name, "message_build_error", err)
	}

	client, err := mail.NewClient(t.host, t.clientOptions()...)
	if err != nil {
		return nil, core.NewProviderErrorWithCause(Name, "client_error", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		t.logger.Error().Err(err).Str("host", t.host).Int("port", t.port).Msg("smtp delivery failed")
		perr := core.NewProviderErrorWithCause(Name, "send_error", err)
		perr.IsTemporary = true
		return nil, perr
	}

	t.logger.Debug().Str("message_id", id).Int("recipients", msg.TotalRecipients()).Msg("smtp delivery accepted")

	return &core.Result{
		Success:   true,
		Transport: Name,
		MessageID: id,
		Timestamp: time.Now(),
	}, nil
}

// Name implements core.Transport.
func (t *Transport) Name() string {
	return Name
}

func (t *Transport) buildMsg(msg *core.Message) (*mail.Msg, string, error) {
	m := mail.NewMsg()

	if err := m.From(msg.From.String()); err != nil {
		return nil, "", fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(addressList(msg.To)...); err != nil {
		return nil, "", fmt.Errorf("invalid to address: %w", err)
	}
	if len(msg.CC) > 0 {
		if err := m.Cc(addressList(msg.CC)...); err != nil {
			return nil, "", fmt.Errorf("invalid cc address: %w", err)
		}
	}
	if len(msg.BCC) > 0 {
		if err := m.Bcc(addressList(msg.BCC)...); err != nil {
			return nil, "", fmt.Errorf("invalid bcc address: %w", err)
		}
	}
	if msg.ReplyTo != nil {
		if err := m.ReplyTo(msg.ReplyTo.String()); err != nil {
			return nil, "", fmt.Errorf("invalid reply-to address: %w", err)
		}
	}

	m.Subject(msg.Subject)

	switch {
	case msg.HTML != "" && msg.Text != "":
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	case msg.HTML != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
	}

	for key, value := range msg.Headers {
		m.SetGenHeader(mail.Header(key), value)
	}

	id := uuid.NewString() + "@" + t.host
	m.SetGenHeader(mail.HeaderMessageID, "<"+id+">")

	for _, att := range msg.Attachments {
		opts := []mail.FileOption{mail.WithFileContentType(mail.ContentType(att.DetectContentType()))}
		var err error
		if att.Inline {
			err = m.EmbedReader(inlineName(att), bytes.NewReader(att.Content), opts...)
		} else {
			err = m.AttachReader(att.Filename, bytes.NewReader(att.Content), opts...)
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to attach file %s: %w", att.Filename, err)
		}
	}

	return m, id, nil
}

// clientOptions picks the TLS mode from the port unless secure forces SSL.
func (t *Transport) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(t.port),
		mail.WithTimeout(t.timeout),
	}

	switch {
	case t.secure || t.port == 465:
		opts = append(opts, mail.WithSSL())
	case t.port == 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if t.username != "" && t.password != "" {
		opts = append(opts,
			mail.WithUsername(t.username),
			mail.WithPassword(t.password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}

	return opts
}

func addressList(addrs []core.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

// inlineName is the file name go-mail uses as the Content-ID of embeds.
func inlineName(att core.Attachment) string {
	if att.ContentID != "" {
		return att.ContentID
	}
	return att.Filename
}
