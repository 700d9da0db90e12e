package mailservice

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, for example
// MAILSERVICE_TRANSPORT_NAME or MAILSERVICE_TRANSPORT_SETTINGS_API_KEY.
const EnvPrefix = "MAILSERVICE"

// settingKeys are the transport settings that can be set from the environment.
var settingKeys = []string{
	"api_key", "domain", "region", "access_key", "secret_key", "session_token",
	"host", "port", "username", "password", "secure", "timeout",
	"base_url", "configuration_set",
}

// FileConfigLoader reads configuration from a file and the environment.
//
// Without an explicit file it looks for mailservice.{yaml,yml,json,toml} in
// the search paths. Values from MAILSERVICE_* variables override the file,
// and the result is merged over DefaultConfig. A .env file is loaded first
// when present; existing variables are not overwritten.
type FileConfigLoader struct {
	file        string
	searchPaths []string
	envFiles    []string
}

// FileLoaderOption configures a FileConfigLoader.
type FileLoaderOption func(*FileConfigLoader)

// ConfigFile reads path instead of searching for a config file.
func ConfigFile(path string) FileLoaderOption {
	return func(l *FileConfigLoader) {
		l.file = path
	}
}

// SearchPaths sets the directories searched for mailservice.*.
// Default: the working directory and ./config.
func SearchPaths(dirs ...string) FileLoaderOption {
	return func(l *FileConfigLoader) {
		l.searchPaths = dirs
	}
}

// EnvFiles sets the dotenv files loaded before reading. Default: .env.
func EnvFiles(paths ...string) FileLoaderOption {
	return func(l *FileConfigLoader) {
		l.envFiles = paths
	}
}

// NewFileConfigLoader creates a FileConfigLoader.
func NewFileConfigLoader(opts ...FileLoaderOption) *FileConfigLoader {
	l := &FileConfigLoader{
		searchPaths: []string{".", "config"},
		envFiles:    []string{".env"},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements ConfigLoader. It returns an error wrapping
// ErrConfigNotFound when neither a config file nor any MAILSERVICE_*
// variable exists.
func (l *FileConfigLoader) Load(_ context.Context) (*Config, error) {
	for _, f := range l.envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigError{Source: f, Cause: err}
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys() {
		_ = v.BindEnv(key)
	}

	source := l.file
	if l.file != "" {
		v.SetConfigFile(l.file)
	} else {
		v.SetConfigName("mailservice")
		for _, dir := range l.searchPaths {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
			if !hasEnvOverrides() {
				return nil, &ConfigError{Source: source, Cause: ErrConfigNotFound}
			}
			source = "environment"
		default:
			return nil, &ConfigError{Source: source, Cause: err}
		}
	} else {
		source = v.ConfigFileUsed()
	}

	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return nil, &ConfigError{Source: source, Cause: err}
	}

	cfg := DefaultConfig()
	if err := mergo.Merge(&cfg, loaded, mergo.WithOverride); err != nil {
		return nil, &ConfigError{Source: source, Cause: err}
	}
	if cfg.Transport.Settings == nil {
		cfg.Transport.Settings = ProviderSettings{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Source: source, Cause: errors.Join(ErrInvalidConfiguration, err)}
	}
	return &cfg, nil
}

// WithConfigFile loads configuration from path on the first send.
func WithConfigFile(path string) Option {
	return WithConfigLoader(NewFileConfigLoader(ConfigFile(path)))
}

func envKeys() []string {
	keys := []string{
		"transport.name",
		"transport.from_address",
		"transport.from_name",
		"brand.name",
		"brand.support_email",
		"brand.theme_color",
		"templates.directory",
	}
	for _, k := range settingKeys {
		keys = append(keys, "transport.settings."+k)
	}
	return keys
}

func hasEnvOverrides() bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, EnvPrefix+"_") {
			return true
		}
	}
	return false
}
