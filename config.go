package mailservice

import (
	"maps"
	"strings"

	"github.com/lattiq/mailservice/internal/core"
	"github.com/lattiq/mailservice/internal/layout"
	"github.com/lattiq/mailservice/internal/transport"
)

// Config holds the complete mail service configuration.
// A loaded Config is never mutated by the service.
type Config struct {
	// Transport selects the delivery backend and the default sender.
	Transport TransportConfig `mapstructure:"transport" yaml:"transport" json:"transport"`

	// Brand is shown in the layout header and footer.
	Brand BrandConfig `mapstructure:"brand" yaml:"brand" json:"brand"`

	// Templates configures the filesystem template resolver.
	Templates TemplateConfig `mapstructure:"templates" yaml:"templates" json:"templates"`
}

// TransportConfig contains transport-specific settings.
type TransportConfig struct {
	// Name is one of log, smtp, sendgrid, resend, ses or mailgun.
	Name string `mapstructure:"name" yaml:"name" json:"name"`

	// FromAddress is the default sender address.
	FromAddress string `mapstructure:"from_address" yaml:"from_address" json:"from_address"`

	// FromName is the default sender display name.
	FromName string `mapstructure:"from_name" yaml:"from_name" json:"from_name"`

	// Settings holds credentials and connection settings under fixed keys
	// such as api_key, domain, region, host, port, username and password.
	Settings ProviderSettings `mapstructure:"settings" yaml:"settings" json:"settings"`
}

// BrandConfig describes the sending organisation.
type BrandConfig struct {
	Name         string `mapstructure:"name" yaml:"name" json:"name"`
	SupportEmail string `mapstructure:"support_email" yaml:"support_email" json:"support_email"`

	// ThemeColor is a #rgb or #rrggbb color used by the layout.
	ThemeColor string `mapstructure:"theme_color" yaml:"theme_color" json:"theme_color"`
}

// TemplateConfig contains template resolver configuration.
type TemplateConfig struct {
	// Directory is the root of the <folder>/<file>.<ext> template tree.
	Directory string `mapstructure:"directory" yaml:"directory" json:"directory"`
}

// Default configuration values.
const (
	DefaultTransport         = transport.Log
	DefaultFromAddress       = "noreply@example.com"
	DefaultFromName          = "System"
	DefaultBrandName         = "Our Service"
	DefaultSupportEmail      = "support@example.com"
	DefaultTemplateDirectory = "mail/templates"
)

// DefaultConfig returns the configuration used when none can be loaded: the
// log transport and placeholder sender and brand details.
func DefaultConfig() Config {
	return Config{
		Transport: TransportConfig{
			Name:        DefaultTransport,
			FromAddress: DefaultFromAddress,
			FromName:    DefaultFromName,
			Settings:    ProviderSettings{},
		},
		Brand: BrandConfig{
			Name:         DefaultBrandName,
			SupportEmail: DefaultSupportEmail,
			ThemeColor:   layout.DefaultThemeColor,
		},
		Templates: TemplateConfig{
			Directory: DefaultTemplateDirectory,
		},
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.Transport.Settings = maps.Clone(c.Transport.Settings)
	if out.Transport.Settings == nil {
		out.Transport.Settings = ProviderSettings{}
	}
	return out
}

// Validate checks if the configuration is valid and complete. Transport
// names are not checked here; unknown names fall back to the log transport.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Transport.FromAddress) == "" {
		return &ValidationError{
			Field:   "transport.from_address",
			Message: "from address is required",
		}
	}

	if _, err := core.ParseAddress(c.Transport.FromAddress); err != nil {
		return &ValidationError{
			Field:   "transport.from_address",
			Message: "invalid email address",
			Value:   c.Transport.FromAddress,
		}
	}

	if c.Brand.SupportEmail != "" {
		if _, err := core.ParseAddress(c.Brand.SupportEmail); err != nil {
			return &ValidationError{
				Field:   "brand.support_email",
				Message: "invalid email address",
				Value:   c.Brand.SupportEmail,
			}
		}
	}

	if c.Brand.ThemeColor != "" && layout.ThemeColor(c.Brand.ThemeColor) != c.Brand.ThemeColor {
		return &ValidationError{
			Field:   "brand.theme_color",
			Message: "theme color must be #rgb or #rrggbb",
			Value:   c.Brand.ThemeColor,
		}
	}

	return nil
}

func (c *Config) brand() core.Brand {
	return core.Brand{Name: c.Brand.Name, SupportEmail: c.Brand.SupportEmail}
}

func (c *Config) selection() transport.Selection {
	return transport.Selection{Name: c.Transport.Name, Settings: c.Transport.Settings}
}
