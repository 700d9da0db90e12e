package mailservice

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/lattiq/mailservice/internal/guard"
	"github.com/lattiq/mailservice/internal/transport"
	"github.com/lattiq/mailservice/internal/transport/mailgun"
)

// Option is a functional option for configuring the Service.
type Option func(*options)

type options struct {
	config     *Config
	loader     ConfigLoader
	mutators   []func(*Config)
	resolver   TemplateResolver
	layout     Layout
	transport  Transport
	registry   *transport.Registry
	guardStore guard.Store
	retention  time.Duration
	noGuard    bool
	logger     zerolog.Logger
	registerer prometheus.Registerer
	tracer     trace.TracerProvider
	now        func() time.Time
}

func defaultOptions() options {
	return options{
		logger:   zerolog.Nop(),
		registry: transport.Default(),
		now:      time.Now,
	}
}

// WithConfig supplies the configuration directly. No loader is consulted.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		c := cfg.Clone()
		o.config = &c
	}
}

// WithConfigLoader sets the source consulted on the first send when no
// configuration was supplied with WithConfig.
func WithConfigLoader(loader ConfigLoader) Option {
	return func(o *options) {
		o.loader = loader
	}
}

// WithTemplateResolver replaces the default template resolver, which reads
// the configured template directory and then the built-in templates.
func WithTemplateResolver(r TemplateResolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithLayout replaces the default layout compositor.
func WithLayout(l Layout) Option {
	return func(o *options) {
		o.layout = l
	}
}

// WithTransport uses t instead of selecting a transport from configuration.
// Messages are still validated before they reach t.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithTransportFactory registers a custom transport under name. The factory
// is only called when every required setting is present.
func WithTransportFactory(name string, required []string, factory transport.Factory) Option {
	return func(o *options) {
		o.registry.Register(name, required, factory)
	}
}

// WithGuardStore shares duplicate fingerprints through store, for example a
// Redis store used by several processes.
func WithGuardStore(store GuardStore) Option {
	return func(o *options) {
		o.guardStore = store
	}
}

// WithGuardRetention sets how long a fingerprint suppresses repeats.
// Default: 10 minutes.
func WithGuardRetention(d time.Duration) Option {
	return func(o *options) {
		o.retention = d
	}
}

// WithoutDuplicateGuard disables duplicate suppression.
func WithoutDuplicateGuard() Option {
	return func(o *options) {
		o.noGuard = true
	}
}

// WithLogger sets the logger. Default: zerolog.Nop().
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics registers the service metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithTracerProvider sets the tracer provider. Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = tp
	}
}

// WithClock sets the clock used for result timestamps and the layout year.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// withMutator applies fn to the configuration once it has been resolved.
func withMutator(fn func(*Config)) Option {
	return func(o *options) {
		o.mutators = append(o.mutators, fn)
	}
}

// WithTransportName selects the transport and its settings.
func WithTransportName(name string, settings ProviderSettings) Option {
	return withMutator(func(c *Config) {
		c.Transport.Name = name
		c.Transport.Settings = settings
	})
}

// WithSender sets the default sender.
func WithSender(address, name string) Option {
	return withMutator(func(c *Config) {
		c.Transport.FromAddress = address
		c.Transport.FromName = name
	})
}

// WithBrand sets the brand shown in the layout.
func WithBrand(name, supportEmail string) Option {
	return withMutator(func(c *Config) {
		c.Brand.Name = name
		c.Brand.SupportEmail = supportEmail
	})
}

// WithThemeColor sets the layout accent color.
func WithThemeColor(color string) Option {
	return withMutator(func(c *Config) {
		c.Brand.ThemeColor = color
	})
}

// WithTemplateDirectory sets the root of the filesystem template tree.
func WithTemplateDirectory(dir string) Option {
	return withMutator(func(c *Config) {
		c.Templates.Directory = dir
	})
}

// WithSES selects Amazon SES using the default AWS credential chain.
func WithSES(region string) Option {
	return WithTransportName(transport.SES, ProviderSettings{
		"region": region,
	})
}

// WithSESCredentials selects Amazon SES with explicit credentials.
func WithSESCredentials(region, accessKey, secretKey string) Option {
	return WithTransportName(transport.SES, ProviderSettings{
		"region":     region,
		"access_key": accessKey,
		"secret_key": secretKey,
	})
}

// WithSendGrid selects SendGrid.
func WithSendGrid(apiKey string) Option {
	return WithTransportName(transport.SendGrid, ProviderSettings{
		"api_key": apiKey,
	})
}

// WithResend selects Resend.
func WithResend(apiKey string) Option {
	return WithTransportName(transport.Resend, ProviderSettings{
		"api_key": apiKey,
	})
}

// WithMailgun selects Mailgun.
func WithMailgun(apiKey, domain string) Option {
	return WithTransportName(transport.Mailgun, ProviderSettings{
		"api_key": apiKey,
		"domain":  domain,
	})
}

// WithMailgunEU selects Mailgun for a domain hosted in the EU region.
func WithMailgunEU(apiKey, domain string) Option {
	return WithTransportName(transport.Mailgun, ProviderSettings{
		"api_key":  apiKey,
		"domain":   domain,
		"base_url": mailgun.BaseURLEU,
	})
}

// WithSMTP selects an SMTP relay with authentication.
func WithSMTP(host, port, username, password string) Option {
	return WithTransportName(transport.SMTP, ProviderSettings{
		"host":     host,
		"port":     port,
		"username": username,
		"password": password,
	})
}
