package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "a-very-long-signing-secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected address %s", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("unexpected database path %s", cfg.DatabasePath)
	}
	if cfg.TokenTTL != time.Duration(defaultTokenTTLMinutes)*time.Minute {
		t.Fatalf("unexpected token ttl %s", cfg.TokenTTL)
	}
	if cfg.Location == nil {
		t.Fatalf("expected a resolved location")
	}
	if cfg.InsightsEnabled() {
		t.Fatalf("expected insights to be disabled without an api key")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected allowed origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ZENJOURNAL_AUTH_SIGNING_SECRET", "env-signing-secret-value")
	t.Setenv("ZENJOURNAL_JOURNAL_TIMEZONE", "America/Mexico_City")
	t.Setenv("ZENJOURNAL_TOKEN_TTL_MINUTES", "15")
	t.Setenv("ZENJOURNAL_OPENAI_API_KEY", "sk-test")
	t.Setenv("ZENJOURNAL_HTTP_ALLOWED_ORIGINS", "http://localhost:3000, https://zen.example")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.Location.String() != "America/Mexico_City" {
		t.Fatalf("unexpected location %s", cfg.Location)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Fatalf("unexpected token ttl %s", cfg.TokenTTL)
	}
	if !cfg.InsightsEnabled() {
		t.Fatalf("expected insights to be enabled")
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://zen.example" {
		t.Fatalf("unexpected allowed origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	testCases := []struct {
		name     string
		settings map[string]any
		message  string
	}{
		{name: "missing-secret", settings: map[string]any{}, message: "auth.signing_secret is required"},
		{name: "short-secret", settings: map[string]any{"auth.signing_secret": "short"}, message: "at least"},
		{name: "zero-ttl", settings: map[string]any{"auth.signing_secret": "a-very-long-signing-secret", "token.ttl_minutes": 0}, message: "token.ttl_minutes"},
		{name: "bad-timezone", settings: map[string]any{"auth.signing_secret": "a-very-long-signing-secret", "journal.timezone": "Mars/Olympus"}, message: "journal.timezone"},
		{name: "empty-database", settings: map[string]any{"auth.signing_secret": "a-very-long-signing-secret", "database.path": " "}, message: "database.path"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			for key, value := range testCase.settings {
				configViper.Set(key, value)
			}
			_, err := Load(configViper)
			if err == nil || !strings.Contains(err.Error(), testCase.message) {
				t.Fatalf("expected error containing %q, got %v", testCase.message, err)
			}
		})
	}
}
