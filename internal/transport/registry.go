// Package transport selects and constructs the delivery transport named by
// configuration, falling back to the log transport when the named one cannot
// be used.
package transport

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lattiq/mailservice/internal/core"
	"github.com/lattiq/mailservice/internal/transport/logtransport"
	"github.com/lattiq/mailservice/internal/transport/mailgun"
	"github.com/lattiq/mailservice/internal/transport/resend"
	"github.com/lattiq/mailservice/internal/transport/sendgrid"
	"github.com/lattiq/mailservice/internal/transport/ses"
	"github.com/lattiq/mailservice/internal/transport/smtp"
)

// Transport names.
const (
	Log      = logtransport.Name
	SMTP     = smtp.Name
	SendGrid = sendgrid.Name
	Resend   = resend.Name
	SES      = ses.Name
	Mailgun  = mailgun.Name
)

// Fallback reasons reported in Outcome.
const (
	ReasonUnknown            = "unknown_transport"
	ReasonMissingCredentials = "missing_credentials"
	ReasonConstructFailed    = "construct_failed"
)

// Factory constructs a transport from its settings.
type Factory func(settings core.ProviderSettings, logger zerolog.Logger) (core.Transport, error)

type entry struct {
	required []string
	factory  Factory
}

// Selection names the transport to use and carries its settings.
type Selection struct {
	Name     string
	Settings core.ProviderSettings
}

// Outcome describes how a selection was resolved.
type Outcome struct {
	Requested string
	Selected  string
	Reason    string
	Err       error
}

// FellBack reports whether the requested transport was replaced.
func (o Outcome) FellBack() bool {
	return o.Reason != ""
}

// Registry maps transport names to their credential requirements and factories.
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Default returns a registry with every built-in transport.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Log, nil, logtransport.NewTransport)
	r.Register(SMTP, []string{"host", "username", "password"}, smtp.NewTransport)
	r.Register(SendGrid, []string{"api_key"}, sendgrid.NewTransport)
	r.Register(Resend, []string{"api_key"}, resend.NewTransport)
	r.Register(SES, []string{"region"}, ses.NewTransport)
	r.Register(Mailgun, []string{"api_key", "domain"}, mailgun.NewTransport)
	return r
}

// Register adds or replaces a transport.
func (r *Registry) Register(name string, required []string, factory Factory) {
	r.entries[strings.ToLower(name)] = entry{required: required, factory: factory}
}

// Names returns the registered transport names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Required returns the settings the named transport cannot work without.
func (r *Registry) Required(name string) ([]string, bool) {
	e, ok := r.entries[strings.ToLower(name)]
	return e.required, ok
}

// Normalize lower-cases and trims a transport name. An empty name means the
// log transport.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Log
	}
	return name
}

// Build constructs the named transport without falling back. The returned
// transport validates every message before delivery.
func (r *Registry) Build(sel Selection, logger zerolog.Logger) (t core.Transport, err error) {
	name := Normalize(sel.Name)

	e, ok := r.entries[name]
	if !ok {
		return nil, &UnknownError{Name: sel.Name}
	}

	settings := sel.Settings
	if settings == nil {
		settings = core.ProviderSettings{}
	}
	if missing := settings.Missing(e.required...); len(missing) > 0 {
		return nil, &UnavailableError{Transport: name, Missing: missing}
	}

	defer func() {
		if rec := recover(); rec != nil {
			t = nil
			err = &UnavailableError{Transport: name, Cause: fmt.Errorf("panic: %v", rec)}
		}
	}()

	built, err := e.factory(settings, logger)
	if err != nil {
		return nil, &UnavailableError{Transport: name, Cause: err}
	}
	if built == nil {
		return nil, &UnavailableError{Transport: name, Cause: fmt.Errorf("factory returned no transport")}
	}

	return Validating(built), nil
}

// Select builds the selected transport, falling back to the log transport on
// an unknown name, missing credentials or a construction failure. Selection
// never fails; the outcome explains any fallback and is logged at warn.
func (r *Registry) Select(sel Selection, logger zerolog.Logger) (core.Transport, Outcome) {
	requested := Normalize(sel.Name)
	out := Outcome{Requested: requested, Selected: requested}

	t, err := r.Build(sel, logger)
	if err == nil {
		return t, out
	}

	out.Err = err
	out.Selected = Log
	switch e := err.(type) {
	case *UnknownError:
		out.Reason = ReasonUnknown
	case *UnavailableError:
		if len(e.Missing) > 0 {
			out.Reason = ReasonMissingCredentials
		} else {
			out.Reason = ReasonConstructFailed
		}
	default:
		out.Reason = ReasonConstructFailed
	}

	logger.Warn().
		Err(err).
		Str("requested", requested).
		Str("reason", out.Reason).
		Msg("transport unavailable, falling back to log transport")

	return Validating(logtransport.New(logger)), out
}
