package mailservice

import (
	"strings"

	"github.com/lattiq/mailservice/internal/core"
	"github.com/lattiq/mailservice/internal/layout"
)

// SendRequest is a logical request to send one email.
//
// Exactly one content source wins, highest first: HTML, Body, Text, then the
// rendered Template. Subject follows the same rule: Subject, the template
// subject, then a default built from the brand name.
type SendRequest struct {
	// To lists the primary recipients as "user@host" or "Name <user@host>".
	// At least one is required.
	To  []string `json:"to"`
	CC  []string `json:"cc,omitempty"`
	BCC []string `json:"bcc,omitempty"`

	Subject string `json:"subject,omitempty"`

	// Text is plain text. It is escaped before being embedded in the layout.
	Text string `json:"text,omitempty"`

	// HTML is an HTML fragment embedded in the layout verbatim.
	HTML string `json:"html,omitempty"`

	// Body is treated as HTML when it contains a tag character, else as text.
	Body string `json:"body,omitempty"`

	// Template names a template as "folder/file" or a bare name.
	Template     string         `json:"template,omitempty"`
	TemplateData map[string]any `json:"template_data,omitempty"`

	// Recipient personalises the greeting and template context. Defaults to
	// the first To address.
	Recipient *Recipient `json:"recipient,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`

	// From overrides the configured sender address.
	From     string `json:"from,omitempty"`
	FromName string `json:"from_name,omitempty"`

	// ReplyTo defaults to the brand support address.
	ReplyTo string `json:"reply_to,omitempty"`

	// ThemeColor overrides the configured layout color.
	ThemeColor string `json:"theme_color,omitempty"`

	// OrderID identifies the logical request for duplicate suppression.
	OrderID string `json:"order_id,omitempty"`

	Headers  map[string]string `json:"headers,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// content is the outcome of priority resolution for one request.
type content struct {
	// fragment is the HTML handed to the layout.
	fragment string

	// text replaces the layout's derived text rendition when set.
	text string

	subject string
}

// resolveContent applies the content and subject priority rules. tmpl is the
// rendered template, nil when none was requested or it was not found. missing
// reports that a template was requested but not found, which permits
// subject-only rendering.
func resolveContent(req *SendRequest, tmpl *core.Rendered, tmplHasText bool, missing bool, brandName string) (content, error) {
	var out content

	out.subject = strings.TrimSpace(req.Subject)
	if out.subject == "" && tmpl != nil {
		out.subject = tmpl.Subject
	}
	if out.subject == "" {
		if brandName == "" {
			brandName = DefaultBrandName
		}
		out.subject = "Message from " + brandName
	}

	var html, text string
	switch {
	case req.HTML != "":
		html = req.HTML
		text = req.Text
	case req.Body != "":
		if strings.Contains(req.Body, "<") {
			html = req.Body
			text = req.Text
		} else {
			text = req.Body
		}
	case req.Text != "":
		text = req.Text
	case tmpl != nil:
		html = tmpl.HTML
		if tmplHasText || html == "" {
			text = tmpl.Text
		}
	}

	switch {
	case html != "":
		out.fragment = html
		out.text = strings.TrimSpace(text)
	case strings.TrimSpace(text) != "":
		out.fragment = layout.TextToHTML(text)
		out.text = strings.TrimSpace(text)
	case missing:
		out.fragment = layout.EscapeHTML(out.subject)
		out.text = out.subject
	default:
		return content{}, &ContentRequiredError{Template: req.Template}
	}

	return out, nil
}
