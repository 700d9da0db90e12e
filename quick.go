package mailservice

import (
	"context"
	"fmt"
	"maps"
	"reflect"

	"github.com/go-viper/mapstructure/v2"

	"github.com/lattiq/mailservice/internal/layout"
)

// SendOption adjusts a request built by SendEmail or SendTemplateEmail.
type SendOption func(*SendRequest)

// WithCC adds carbon-copy recipients.
func WithCC(addrs ...string) SendOption {
	return func(r *SendRequest) {
		r.CC = append(r.CC, addrs...)
	}
}

// WithBCC adds blind carbon-copy recipients.
func WithBCC(addrs ...string) SendOption {
	return func(r *SendRequest) {
		r.BCC = append(r.BCC, addrs...)
	}
}

// WithReplyTo sets the reply-to address.
func WithReplyTo(addr string) SendOption {
	return func(r *SendRequest) {
		r.ReplyTo = addr
	}
}

// WithFrom overrides the sender address and display name.
func WithFrom(addr, name string) SendOption {
	return func(r *SendRequest) {
		r.From = addr
		r.FromName = name
	}
}

// WithSubject sets an explicit subject, which wins over a template subject.
func WithSubject(subject string) SendOption {
	return func(r *SendRequest) {
		r.Subject = subject
	}
}

// WithAttachments adds attachments.
func WithAttachments(atts ...Attachment) SendOption {
	return func(r *SendRequest) {
		r.Attachments = append(r.Attachments, atts...)
	}
}

// WithOrderID sets the identifier used for duplicate suppression.
func WithOrderID(id string) SendOption {
	return func(r *SendRequest) {
		r.OrderID = id
	}
}

// WithRecipient personalises the greeting and template context.
func WithRecipient(name, email string) SendOption {
	return func(r *SendRequest) {
		r.Recipient = &Recipient{Name: name, Email: email}
	}
}

// WithRequestThemeColor overrides the layout color for one request.
func WithRequestThemeColor(color string) SendOption {
	return func(r *SendRequest) {
		r.ThemeColor = color
	}
}

// WithHeader adds a custom message header.
func WithHeader(key, value string) SendOption {
	return func(r *SendRequest) {
		if r.Headers == nil {
			r.Headers = make(map[string]string)
		}
		r.Headers[key] = value
	}
}

// WithMetadata attaches transport metadata such as tags or custom arguments.
func WithMetadata(key, value string) SendOption {
	return func(r *SendRequest) {
		if r.Metadata == nil {
			r.Metadata = make(map[string]string)
		}
		r.Metadata[key] = value
	}
}

// SendEmail sends with the second argument interpreted by the type of
// content:
//
//   - string or []byte: subjectOrTemplate is the subject and content the body,
//     sent as HTML when it looks like markup and as text otherwise.
//   - map, struct or nil: subjectOrTemplate names a template and content is
//     its data. Struct fields are keyed by their json tag.
func (s *Service) SendEmail(ctx context.Context, to []string, subjectOrTemplate string, content any, opts ...SendOption) (*Result, error) {
	req := &SendRequest{To: to}

	switch c := content.(type) {
	case string:
		req.Subject = subjectOrTemplate
		setBody(req, c)
	case []byte:
		req.Subject = subjectOrTemplate
		setBody(req, string(c))
	default:
		data, err := templateData(content)
		if err != nil {
			return nil, NewValidationErrorWithValue("content", err.Error(), fmt.Sprintf("%T", content))
		}
		req.Template = subjectOrTemplate
		req.TemplateData = data
	}

	for _, opt := range opts {
		opt(req)
	}
	return s.Send(ctx, req)
}

// SendTemplateEmail renders the named template with data and sends it.
func (s *Service) SendTemplateEmail(ctx context.Context, to []string, template string, data map[string]any, opts ...SendOption) (*Result, error) {
	req := &SendRequest{
		To:           to,
		Template:     template,
		TemplateData: maps.Clone(data),
	}
	for _, opt := range opts {
		opt(req)
	}
	return s.Send(ctx, req)
}

func setBody(req *SendRequest, body string) {
	if layout.LooksLikeHTML(body) {
		req.HTML = body
		return
	}
	req.Text = body
}

// templateData converts maps and structs to template data.
func templateData(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	if m, ok := v.(map[string]any); ok {
		return maps.Clone(m), nil
	}

	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Map, reflect.Struct:
	case reflect.Invalid:
		return map[string]any{}, nil
	default:
		return nil, fmt.Errorf("unsupported content type %T", v)
	}

	out := make(map[string]any)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, err
	}
	return out, nil
}
