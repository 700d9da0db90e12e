package mailservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/lattiq/mailservice/internal/core"
	"github.com/lattiq/mailservice/internal/guard"
	"github.com/lattiq/mailservice/internal/layout"
	"github.com/lattiq/mailservice/internal/telemetry"
	"github.com/lattiq/mailservice/internal/templates"
	"github.com/lattiq/mailservice/internal/transport"
)

const tracerName = "github.com/lattiq/mailservice"

// Service resolves, renders and delivers mail requests.
// All methods are safe for concurrent use.
type Service struct {
	opts     options
	logger   zerolog.Logger
	tracer   trace.Tracer
	layout   Layout
	guard    *guard.Guard
	metrics  *telemetry.Metrics
	registry *transport.Registry

	// init deduplicates concurrent lazy initialisation of config and transport.
	init singleflight.Group

	mu        sync.RWMutex
	state     *state
	transport Transport
	outcome   transport.Outcome
	closed    bool

	// generation advances on Reset; initialisation started under an older
	// generation does not store its result.
	generation uint64
}

// state is everything derived from one resolved configuration.
type state struct {
	config *Config
	loader *templates.Loader
}

// New creates a Service. Configuration is resolved on the first send unless
// supplied with WithConfig; a supplied configuration that fails validation is
// an error. The Service must be closed when no longer needed.
func New(opts ...Option) (*Service, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	initial := DefaultConfig()
	if o.config != nil {
		initial = o.config.Clone()
	}
	for _, mutate := range o.mutators {
		mutate(&initial)
	}
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	tp := o.tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	s := &Service{
		opts:     o,
		logger:   o.logger.With().Str("component", "mailservice").Logger(),
		tracer:   tp.Tracer(tracerName),
		layout:   o.layout,
		registry: o.registry,
	}

	if s.layout == nil {
		s.layout = layout.New(layout.WithClock(o.now))
	}
	if !o.noGuard {
		s.guard = guard.New(o.guardStore, o.retention)
	}
	if o.registerer != nil {
		s.metrics = telemetry.NewMetrics(o.registerer)
	}
	if o.transport != nil {
		s.transport = transport.Validating(o.transport)
		s.outcome = transport.Outcome{Requested: o.transport.Name(), Selected: o.transport.Name()}
	}

	return s, nil
}

// Send resolves content for req, wraps it in the layout and delivers it
// through the active transport. A request identical to one sent within the
// guard retention window returns a successful duplicate result without
// contacting the transport.
func (s *Service) Send(ctx context.Context, req *SendRequest) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "mailservice.Service.Send")
	defer span.End()

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		span.RecordError(ErrServiceClosed)
		span.SetStatus(codes.Error, ErrServiceClosed.Error())
		return nil, ErrServiceClosed
	}

	if req == nil {
		err := NewValidationError("request", "request is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	to, err := core.ParseAddressList("to", req.To)
	if err == nil && len(to) == 0 {
		err = NewValidationError("to", "at least one recipient required")
	}
	if err != nil {
		s.metrics.Rejected(s.currentTransportName())
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("mailservice.to", to[0].Email),
		attribute.Int("mailservice.recipients", len(req.To)+len(req.CC)+len(req.BCC)),
		attribute.String("mailservice.template", req.Template),
	)

	fingerprint, acquired := s.acquire(ctx, req, to[0])
	if fingerprint != "" && !acquired {
		s.metrics.Duplicate()
		span.SetAttributes(attribute.Bool("mailservice.duplicate", true))
		span.SetStatus(codes.Ok, "duplicate suppressed")
		s.logger.Info().
			Str("to", to[0].Email).
			Str("subject", req.Subject).
			Str("order_id", req.OrderID).
			Msg("duplicate send suppressed")
		return &Result{
			Success:   true,
			Duplicate: true,
			Transport: s.expectedTransportName(),
			Timestamp: s.opts.now(),
		}, nil
	}

	res, err := s.deliver(ctx, span, req, to)
	if err != nil {
		if acquired {
			s.release(ctx, fingerprint)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("mailservice.transport", res.Transport),
		attribute.String("mailservice.message_id", res.MessageID),
	)
	span.SetStatus(codes.Ok, "email sent successfully")
	return res, nil
}

func (s *Service) deliver(ctx context.Context, span trace.Span, req *SendRequest, to []Address) (*Result, error) {
	st := s.resolveState(ctx)
	cfg := st.config

	msg, err := s.compose(ctx, st, req, to)
	if err != nil {
		return nil, err
	}

	t := s.activeTransport(ctx, cfg)
	name := t.Name()
	span.SetAttributes(attribute.String("mailservice.transport", name))

	start := time.Now()
	res, err := t.Send(ctx, msg)
	took := time.Since(start)

	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			s.metrics.Rejected(name)
			return nil, err
		}
		s.metrics.ObserveSend(name, telemetry.OutcomeFailed, took)
		s.logger.Error().
			Err(err).
			Str("transport", name).
			Str("to", to[0].Email).
			Bool("temporary", IsTemporary(err)).
			Msg("delivery failed")
		return nil, &DeliveryError{Transport: name, Cause: err}
	}

	s.metrics.ObserveSend(name, telemetry.OutcomeSent, took)

	if res == nil {
		res = &Result{Success: true}
	}
	if res.Transport == "" {
		res.Transport = name
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = s.opts.now()
	}

	s.logger.Debug().
		Str("transport", res.Transport).
		Str("message_id", res.MessageID).
		Int("recipients", msg.TotalRecipients()).
		Msg("email sent")

	return res, nil
}

// compose turns a request into a validated-shape outbound message.
func (s *Service) compose(ctx context.Context, st *state, req *SendRequest, to []Address) (*Message, error) {
	cfg := st.config
	brand := cfg.brand()

	cc, err := core.ParseAddressList("cc", req.CC)
	if err != nil {
		return nil, err
	}
	bcc, err := core.ParseAddressList("bcc", req.BCC)
	if err != nil {
		return nil, err
	}

	recipient := req.Recipient
	if recipient == nil {
		recipient = &Recipient{Name: to[0].Name, Email: to[0].Email}
	}

	var (
		rendered *Rendered
		hasText  bool
		missing  bool
	)
	if req.Template != "" {
		unit := st.loader.Load(ctx, req.Template)
		if unit == nil {
			missing = true
			s.metrics.TemplateMiss(req.Template)
		} else {
			out, err := unit.Render(templates.Context{
				Data:      req.TemplateData,
				Brand:     brand,
				Recipient: *recipient,
			})
			if err != nil {
				return nil, NewTemplateError(req.Template, "render", err.Error(), err)
			}
			rendered = &out
			hasText = unit.Text != nil
		}
	}

	c, err := resolveContent(req, rendered, hasText, missing, brand.Name)
	if err != nil {
		return nil, err
	}

	theme := req.ThemeColor
	if theme == "" {
		theme = cfg.Brand.ThemeColor
	}

	out, err := s.layout.Compose(LayoutInput{
		Content:    c.fragment,
		Subject:    c.subject,
		Brand:      brand,
		Recipient:  recipient,
		ThemeColor: theme,
	})
	if err != nil {
		return nil, fmt.Errorf("compose layout: %w", err)
	}
	if c.text != "" {
		out.Text = c.text
	}

	from, err := s.sender(cfg, req)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		From:        from,
		To:          to,
		CC:          cc,
		BCC:         bcc,
		Subject:     out.Subject,
		Text:        out.Text,
		HTML:        out.HTML,
		Attachments: req.Attachments,
		Headers:     maps.Clone(req.Headers),
		Metadata:    maps.Clone(req.Metadata),
	}

	switch {
	case req.ReplyTo != "":
		addr, err := core.ParseAddress(req.ReplyTo)
		if err != nil {
			return nil, NewValidationErrorWithValue("reply_to", "invalid email address", req.ReplyTo)
		}
		msg.ReplyTo = &addr
	case cfg.Brand.SupportEmail != "":
		msg.ReplyTo = &Address{Email: cfg.Brand.SupportEmail}
	}

	return msg, nil
}

func (s *Service) sender(cfg *Config, req *SendRequest) (Address, error) {
	raw := req.From
	if raw == "" {
		raw = cfg.Transport.FromAddress
	}
	addr, err := core.ParseAddress(raw)
	if err != nil {
		return Address{}, NewValidationErrorWithValue("from", "invalid email address", raw)
	}

	switch {
	case req.FromName != "":
		addr.Name = req.FromName
	case addr.Name == "":
		addr.Name = cfg.Transport.FromName
	}
	return addr, nil
}

// acquire registers the request fingerprint. It returns an empty fingerprint
// when the guard is disabled or its store failed.
func (s *Service) acquire(ctx context.Context, req *SendRequest, first Address) (string, bool) {
	if s.guard == nil {
		return "", false
	}

	fp, ok, err := s.guard.Acquire(ctx, guard.Key{
		OrderID:   req.OrderID,
		Recipient: first.Email,
		Subject:   req.Subject,
		Template:  req.Template,
		Content:   req.HTML + "\x00" + req.Body + "\x00" + req.Text,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("duplicate guard unavailable, sending without suppression")
		return "", false
	}
	return fp, ok
}

func (s *Service) release(ctx context.Context, fingerprint string) {
	if err := s.guard.Release(context.WithoutCancel(ctx), fingerprint); err != nil {
		s.logger.Warn().Err(err).Msg("failed to release duplicate guard")
	}
}

// resolveState returns the memoised configuration, loading it on first use.
// It never fails: any loader problem yields the default configuration.
func (s *Service) resolveState(ctx context.Context) *state {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()
	if st != nil {
		return st
	}

	v, _, _ := s.init.Do("config", func() (any, error) {
		s.mu.RLock()
		st := s.state
		gen := s.generation
		s.mu.RUnlock()
		if st != nil {
			return st, nil
		}

		cfg := s.loadConfig(context.WithoutCancel(ctx))
		st = &state{
			config: cfg,
			loader: templates.NewLoader(s.resolver(cfg), s.logger),
		}

		s.mu.Lock()
		if s.generation == gen {
			s.state = st
		}
		s.mu.Unlock()
		return st, nil
	})
	return v.(*state)
}

func (s *Service) loadConfig(ctx context.Context) (cfg *Config) {
	finish := func(c Config) *Config {
		for _, mutate := range s.opts.mutators {
			mutate(&c)
		}
		return &c
	}

	if s.opts.config != nil {
		return finish(s.opts.config.Clone())
	}

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Warn().Interface("panic", rec).Msg("config loader panicked, using defaults")
			cfg = finish(DefaultConfig())
		}
	}()

	loader := s.opts.loader
	if loader == nil {
		loader = NewFileConfigLoader()
	}

	loaded, err := loader.Load(ctx)
	switch {
	case err != nil:
		ev := s.logger.Warn()
		if errors.Is(err, ErrConfigNotFound) {
			ev = s.logger.Debug()
		}
		ev.Err(err).Msg("configuration unavailable, using defaults")
		return finish(DefaultConfig())
	case loaded == nil:
		s.logger.Warn().Msg("config loader returned no configuration, using defaults")
		return finish(DefaultConfig())
	}

	c := finish(loaded.Clone())
	if err := c.Validate(); err != nil {
		s.logger.Warn().Err(err).Msg("loaded configuration is invalid, using defaults")
		return finish(DefaultConfig())
	}
	return c
}

func (s *Service) resolver(cfg *Config) TemplateResolver {
	if s.opts.resolver != nil {
		return s.opts.resolver
	}

	dir := cfg.Templates.Directory
	if dir == "" {
		return templates.Builtin()
	}
	return templates.Chain(templates.NewFSResolver(os.DirFS(dir)), templates.Builtin())
}

// activeTransport returns the transport singleton, selecting it on first use.
func (s *Service) activeTransport(ctx context.Context, cfg *Config) Transport {
	s.mu.RLock()
	t := s.transport
	s.mu.RUnlock()
	if t != nil {
		return t
	}

	v, _, _ := s.init.Do("transport", func() (any, error) {
		s.mu.RLock()
		t := s.transport
		gen := s.generation
		s.mu.RUnlock()
		if t != nil {
			return t, nil
		}

		t, out := s.registry.Select(cfg.selection(), s.opts.logger)
		if out.FellBack() {
			s.metrics.Fallback(out.Requested, out.Reason)
		} else {
			s.logger.Debug().Str("transport", out.Selected).Msg("transport selected")
		}

		s.mu.Lock()
		if s.generation == gen {
			s.transport = t
			s.outcome = out
		}
		s.mu.Unlock()
		return t, nil
	})
	return v.(Transport)
}

func (s *Service) currentTransportName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.transport == nil {
		return ""
	}
	return s.transport.Name()
}

// expectedTransportName names the transport a send would use without
// selecting one: the active transport, else the requested or configured name.
func (s *Service) expectedTransportName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.transport != nil:
		return s.transport.Name()
	case s.outcome.Requested != "":
		return s.outcome.Requested
	case s.state != nil:
		return transport.Normalize(s.state.config.Transport.Name)
	}
	return ""
}

// Config returns a copy of the resolved configuration, loading it if needed.
func (s *Service) Config(ctx context.Context) Config {
	return s.resolveState(ctx).config.Clone()
}

// TransportName returns the name of the active transport, selecting it if
// needed. After a fallback this is "log", not the requested name.
func (s *Service) TransportName(ctx context.Context) string {
	return s.activeTransport(ctx, s.resolveState(ctx).config).Name()
}

// AvailableTransports lists the transport names the service can select,
// sorted.
func (s *Service) AvailableTransports() []string {
	return s.registry.Names()
}

// TransportOutcome reports how the active transport was selected. It is the
// zero Outcome until the first send or TransportName call.
func (s *Service) TransportOutcome() transport.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome
}

// Reset drops the resolved configuration, template cache and transport so
// the next send resolves them again. A transport supplied with WithTransport
// is kept.
func (s *Service) Reset() {
	s.mu.Lock()
	s.generation++
	s.state = nil
	if s.opts.transport == nil {
		s.transport = nil
		s.outcome = transport.Outcome{}
	}
	s.mu.Unlock()

	s.init.Forget("config")
	s.init.Forget("transport")
}

// Close stops guard timers and closes the active transport. Sends after
// Close fail with ErrServiceClosed. Close is idempotent.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	t := s.transport
	s.mu.Unlock()

	var errs []error
	if s.guard != nil {
		if err := s.guard.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close guard: %w", err))
		}
	}
	if c, ok := t.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
	}
	return errors.Join(errs...)
}
