// Package layout wraps message content in the shared HTML envelope and
// derives the plain-text rendition that travels alongside it.
package layout

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/lattiq/mailservice/internal/core"
)

// DefaultThemeColor is used when no valid theme color is supplied.
const DefaultThemeColor = "#667eea"

var reThemeColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)

// Input is everything the compositor needs to build one message body.
type Input struct {
	// Content is an HTML fragment inserted verbatim into the body.
	Content string

	Subject    string
	Brand      core.Brand
	Recipient  *core.Recipient
	ThemeColor string
}

// Compositor renders the shared envelope. It is safe for concurrent use.
type Compositor struct {
	tmpl     *template.Template
	now      func() time.Time
	sanitize *bluemonday.Policy
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithClock sets the clock used for the footer year.
func WithClock(now func() time.Time) Option {
	return func(c *Compositor) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSanitizer filters content through policy before it is embedded.
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(c *Compositor) {
		c.sanitize = policy
	}
}

// WithUGCSanitizer filters content through bluemonday's user generated content policy.
func WithUGCSanitizer() Option {
	return WithSanitizer(bluemonday.UGCPolicy())
}

// New creates a Compositor.
func New(opts ...Option) *Compositor {
	c := &Compositor{
		tmpl: template.Must(template.New("layout").Parse(documentTemplate)),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type view struct {
	Subject      string
	BrandName    string
	SupportEmail string
	Greeting     string
	Content      template.HTML
	ThemeColor   template.CSS
	Year         int
}

// Compose builds the HTML document and its text rendition. Identical inputs
// and clock readings always yield identical output.
func (c *Compositor) Compose(in Input) (core.Rendered, error) {
	content := in.Content
	if c.sanitize != nil {
		content = c.sanitize.Sanitize(content)
	}

	v := view{
		Subject:      in.Subject,
		BrandName:    in.Brand.Name,
		SupportEmail: in.Brand.SupportEmail,
		Greeting:     "Hello,",
		Content:      template.HTML(content), // #nosec G203 -- caller content is embedded verbatim
		ThemeColor:   template.CSS(ThemeColor(in.ThemeColor)),
		Year:         c.now().Year(),
	}
	if in.Recipient != nil && in.Recipient.Name != "" {
		v.Greeting = fmt.Sprintf("Hello %s,", in.Recipient.Name)
	}

	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, v); err != nil {
		return core.Rendered{}, fmt.Errorf("layout: render document: %w", err)
	}

	text := HTMLToText(content)
	if text == "" {
		text = in.Subject
	}

	return core.Rendered{
		HTML:    buf.String(),
		Text:    text,
		Subject: in.Subject,
	}, nil
}

// ThemeColor returns color when it is a #rgb or #rrggbb value, else the default.
func ThemeColor(color string) string {
	if reThemeColor.MatchString(color) {
		return color
	}
	return DefaultThemeColor
}

const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Subject}}</title>
<style>
body { margin: 0; padding: 0; background-color: #f4f4f7; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; color: #333333; line-height: 1.6; }
.email-wrapper { max-width: 600px; margin: 0 auto; padding: 24px 16px; }
.email-container { background-color: #ffffff; border-radius: 8px; overflow: hidden; box-shadow: 0 2px 8px rgba(0, 0, 0, 0.05); }
.email-header { background-color: {{.ThemeColor}}; color: #ffffff; padding: 32px 24px; text-align: center; }
.email-header h1 { margin: 0; font-size: 24px; font-weight: 600; }
.email-header p { margin: 8px 0 0; font-size: 16px; opacity: 0.9; }
.email-body { padding: 32px 24px; }
.greeting { font-size: 16px; margin: 0 0 16px; }
.content-body a { color: {{.ThemeColor}}; }
.button { display: inline-block; padding: 12px 24px; background-color: {{.ThemeColor}}; color: #ffffff !important; text-decoration: none; border-radius: 6px; font-weight: 600; }
.email-footer { padding: 24px; text-align: center; font-size: 12px; color: #8a8a9a; }
.email-footer a { color: {{.ThemeColor}}; }
</style>
</head>
<body>
<div class="email-wrapper">
<div class="email-container">
<div class="email-header">
<h1>{{.BrandName}}</h1>
<p>{{.Subject}}</p>
</div>
<div class="email-body">
<p class="greeting">{{.Greeting}}</p>
<div class="content-body">
{{.Content}}
</div>
</div>
</div>
<div class="email-footer">
<p>&copy; {{.Year}} {{.BrandName}}. All rights reserved.</p>
{{- if .SupportEmail}}
<p>Need help? Contact <a href="mailto:{{.SupportEmail}}">{{.SupportEmail}}</a></p>
{{- end}}
<p>This is an automated message. Please do not reply to this email.</p>
</div>
</div>
</body>
</html>
`
