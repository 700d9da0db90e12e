package mailservice

import (
	"context"

	"github.com/lattiq/mailservice/internal/core"
	"github.com/lattiq/mailservice/internal/guard"
	"github.com/lattiq/mailservice/internal/layout"
	"github.com/lattiq/mailservice/internal/templates"
)

// Type aliases to re-export internal types for the public API.
type (
	Transport        = core.Transport
	ProviderSettings = core.ProviderSettings
	Message          = core.Message
	Address          = core.Address
	Attachment       = core.Attachment
	Recipient        = core.Recipient
	Brand            = core.Brand
	Rendered         = core.Rendered
	Result           = core.Result
	ValidationError  = core.ValidationError
	ProviderError    = core.ProviderError

	TemplateUnit     = templates.Unit
	TemplateRef      = templates.Ref
	TemplateContext  = templates.Context
	TemplateResolver = templates.Resolver
	RenderFunc       = templates.RenderFunc
	ResolverFunc     = templates.ResolverFunc
	MapResolver      = templates.MapResolver

	LayoutInput = layout.Input

	GuardStore = guard.Store
)

// Constructors and helpers re-exported from internal packages.
var (
	NewValidationError          = core.NewValidationError
	NewValidationErrorWithValue = core.NewValidationErrorWithValue
	NewProviderError            = core.NewProviderError
	NewTemporaryProviderError   = core.NewTemporaryProviderError
	IsTemporary                 = core.IsTemporary
	ParseAddress                = core.ParseAddress

	NewFSResolver    = templates.NewFSResolver
	BuiltinTemplates = templates.Builtin
	ChainResolvers   = templates.Chain
	ParseTemplate    = templates.ParseName

	NewMemoryGuardStore = guard.NewMemoryStore
	NewRedisGuardStore  = guard.NewRedisStore

	HTMLToText = layout.HTMLToText
	EscapeHTML = layout.EscapeHTML
)

// Public interfaces for the mail service.
type (
	// Mailer sends logical mail requests.
	// All methods are safe for concurrent use.
	Mailer interface {
		// Send resolves, renders and delivers one request.
		Send(ctx context.Context, req *SendRequest) (*Result, error)

		// Close releases resources. Sends after Close fail with ErrServiceClosed.
		Close() error
	}

	// Layout wraps resolved content in the message envelope and derives the
	// plain-text rendition.
	Layout interface {
		Compose(in LayoutInput) (Rendered, error)
	}

	// ConfigLoader produces the service configuration. Returning an error or
	// a nil config makes the service fall back to DefaultConfig.
	ConfigLoader interface {
		Load(ctx context.Context) (*Config, error)
	}
)

// ConfigLoaderFunc adapts a function to ConfigLoader.
type ConfigLoaderFunc func(ctx context.Context) (*Config, error)

// Load implements ConfigLoader.
func (f ConfigLoaderFunc) Load(ctx context.Context) (*Config, error) {
	return f(ctx)
}

var _ Mailer = (*Service)(nil)
