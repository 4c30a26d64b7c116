package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "ZENJOURNAL"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultDatabasePath     = "zenjournal.db"
	defaultLogLevel         = "info"
	defaultTokenTTLMinutes  = 60 * 24 * 7
	defaultTimezone         = "Local"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultTokenIssuer      = "zenjournal"
	defaultTokenAudience    = "zenjournal-api"
	defaultAllowedOrigin    = "*"
	minSigningSecretLength  = 16
	maxTokenTTLMinutes      = 60 * 24 * 90
	allowedOriginsSeparator = ","
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	DatabasePath   string
	LogLevel       string
	SigningSecret  string
	TokenIssuer    string
	TokenAudience  string
	TokenTTL       time.Duration
	Timezone       string
	Location       *time.Location
	AllowedOrigins []string
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string
}

// InsightsEnabled reports whether an LLM key was configured.
func (c AppConfig) InsightsEnabled() bool {
	return strings.TrimSpace(c.OpenAIAPIKey) != ""
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", defaultAllowedOrigin)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("token.issuer", defaultTokenIssuer)
	configViper.SetDefault("token.audience", defaultTokenAudience)
	configViper.SetDefault("journal.timezone", defaultTimezone)
	configViper.SetDefault("openai.model", defaultOpenAIModel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabasePath:   configViper.GetString("database.path"),
		LogLevel:       configViper.GetString("log.level"),
		SigningSecret:  configViper.GetString("auth.signing_secret"),
		TokenIssuer:    configViper.GetString("token.issuer"),
		TokenAudience:  configViper.GetString("token.audience"),
		TokenTTL:       time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		Timezone:       strings.TrimSpace(configViper.GetString("journal.timezone")),
		AllowedOrigins: splitOrigins(configViper.GetString("http.allowed_origins")),
		OpenAIAPIKey:   configViper.GetString("openai.api_key"),
		OpenAIModel:    configViper.GetString("openai.model"),
		OpenAIBaseURL:  configViper.GetString("openai.base_url"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return AppConfig{}, fmt.Errorf("journal.timezone %q is invalid: %w", cfg.Timezone, err)
	}
	cfg.Location = location

	return cfg, nil
}

// LoadStorage parses only what the offline maintenance commands need.
func LoadStorage(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		DatabasePath: configViper.GetString("database.path"),
		LogLevel:     configViper.GetString("log.level"),
	}
	if strings.TrimSpace(cfg.DatabasePath) == "" {
		return AppConfig{}, fmt.Errorf("database.path is required")
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if len(c.SigningSecret) < minSigningSecretLength {
		return fmt.Errorf("auth.signing_secret must be at least %d bytes", minSigningSecretLength)
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.TokenTTL <= 0 || c.TokenTTL > maxTokenTTLMinutes*time.Minute {
		return fmt.Errorf("token.ttl_minutes must be between 1 and %d", maxTokenTTLMinutes)
	}
	if strings.TrimSpace(c.TokenIssuer) == "" || strings.TrimSpace(c.TokenAudience) == "" {
		return fmt.Errorf("token.issuer and token.audience are required")
	}
	if c.Timezone == "" {
		return fmt.Errorf("journal.timezone is required")
	}
	return nil
}

func splitOrigins(raw string) []string {
	origins := make([]string, 0)
	for _, part := range strings.Split(raw, allowedOriginsSeparator) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
