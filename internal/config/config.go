package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	DefaultWorkspace = "."

	// StateDir holds everything specbook writes inside a workspace
	StateDir = ".specbook"

	ProviderClaudeCLI = "claude-cli"
	ProviderAnthropic = "anthropic"
)

// Workspace returns the workspace path from SPECBOOK_WORKSPACE env var,
// falling back to DefaultWorkspace.
func Workspace() string {
	if env := os.Getenv("SPECBOOK_WORKSPACE"); env != "" {
		return env
	}
	return DefaultWorkspace
}

// Config is the per-workspace configuration
type Config struct {
	Workspace string `mapstructure:"-"`

	Objects  string         `mapstructure:"objects" validate:"required"`
	Mapping  string         `mapstructure:"mapping" validate:"required"`
	Provider ProviderConfig `mapstructure:"provider"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProviderConfig selects and tunes the AI provider
type ProviderConfig struct {
	Name      string        `mapstructure:"name" validate:"oneof=claude-cli anthropic"`
	Model     string        `mapstructure:"model"`
	Binary    string        `mapstructure:"binary"`
	MaxTokens int           `mapstructure:"maxTokens" validate:"gte=1"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Retries   int           `mapstructure:"retries" validate:"gte=1,lte=10"`
	APIKeyEnv string        `mapstructure:"apiKeyEnv" validate:"required_if=Name anthropic"`
}

// ScanConfig bounds what the scanner sends to the provider
type ScanConfig struct {
	Ignore       []string `mapstructure:"ignore"`
	MaxFiles     int      `mapstructure:"maxFiles" validate:"gte=0"`
	DetectBinary bool     `mapstructure:"detectBinary"`
	HistoryKeep  int      `mapstructure:"historyKeep" validate:"gte=0"`
}

// LoggingConfig configures the slog handler
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
	Stderr bool   `mapstructure:"stderr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("objects", filepath.Join(StateDir, "objects.yaml"))
	v.SetDefault("mapping", filepath.Join(StateDir, "mapping.json"))

	v.SetDefault("provider.name", ProviderClaudeCLI)
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.binary", "claude")
	v.SetDefault("provider.maxTokens", 16000)
	v.SetDefault("provider.timeout", 10*time.Minute)
	v.SetDefault("provider.retries", 3)
	v.SetDefault("provider.apiKeyEnv", "ANTHROPIC_API_KEY")

	v.SetDefault("scan.ignore", []string{})
	v.SetDefault("scan.maxFiles", 2000)
	v.SetDefault("scan.detectBinary", true)
	v.SetDefault("scan.historyKeep", 50)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.stderr", false)
}

// Load reads <workspace>/.specbook/config.yaml if present, applies SPECBOOK_*
// environment overrides (SPECBOOK_PROVIDER_NAME, SPECBOOK_LOGGING_LEVEL, ...)
// and validates the result
func Load(workspace string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(workspace, StateDir))

	v.SetEnvPrefix("SPECBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Workspace = workspace

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against its constraints
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// resolve makes p absolute against the workspace
func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Workspace, p)
}

// ObjectsPath returns the feature tree file location
func (c *Config) ObjectsPath() string {
	return c.resolve(c.Objects)
}

// MappingPath returns the mapping index location
func (c *Config) MappingPath() string {
	return c.resolve(c.Mapping)
}

// LogPath returns the log file location
func (c *Config) LogPath() string {
	return filepath.Join(c.Workspace, StateDir, "logs", "specbook.log")
}

// APIKey reads the provider key from the configured environment variable
func (c *Config) APIKey() string {
	return os.Getenv(c.Provider.APIKeyEnv)
}
