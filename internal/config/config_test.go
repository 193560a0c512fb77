package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_URL", "postgres://localhost/gateway")
	t.Setenv("GATEWAY_URL", "https://sms.example.org")
}

func mustPanic(t *testing.T, contains string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic containing %q, got none", contains)
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, contains) {
			t.Fatalf("expected panic containing %q, got: %v", contains, r)
		}
	}()
	fn()
}

func TestLoadAll_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Fatalf("expected default address :8080, got %q", cfg.Server.Address)
	}
	if cfg.Gateway.PullInterval != 60*time.Second {
		t.Fatalf("expected default pull interval 60s, got %v", cfg.Gateway.PullInterval)
	}
	if cfg.Gateway.InboxInterval != 600*time.Second {
		t.Fatalf("expected default inbox interval 600s, got %v", cfg.Gateway.InboxInterval)
	}
	if cfg.Gateway.DeviceName == "" {
		t.Fatalf("expected device name to default to the hostname")
	}
	if cfg.Registration.Mode != "anonymous" {
		t.Fatalf("expected anonymous registration by default, got %q", cfg.Registration.Mode)
	}
	if cfg.Redis.Enabled {
		t.Fatalf("expected redis disabled without REDIS_ADDR")
	}
}

func TestLoadAll_RedisEnabledByAddr(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_TTL_SECONDS", "60")

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}

	if !cfg.Redis.Enabled {
		t.Fatalf("expected redis enabled")
	}
	if cfg.Redis.Address != "localhost:6379" {
		t.Fatalf("unexpected redis address %q", cfg.Redis.Address)
	}
	if cfg.Redis.TTL != time.Minute {
		t.Fatalf("expected TTL 60s, got %v", cfg.Redis.TTL)
	}
}

func TestLoadAll_MissingRequired(t *testing.T) {
	t.Setenv("GATEWAY_URL", "https://sms.example.org")

	mustPanic(t, "POSTGRES_URL", func() { _, _ = LoadAll() })
}

func TestLoadAll_CredentialsModeRequiresLoginAndPassword(t *testing.T) {
	setRequired(t)
	t.Setenv("REGISTRATION_MODE", "credentials")

	mustPanic(t, "REGISTRATION_LOGIN", func() { _, _ = LoadAll() })

	t.Setenv("REGISTRATION_LOGIN", "user")
	t.Setenv("REGISTRATION_PASSWORD", "secret")

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}
	if cfg.Registration.Login != "user" {
		t.Fatalf("expected login carried, got %q", cfg.Registration.Login)
	}
}

func TestLoadAll_CodeModeRequiresCode(t *testing.T) {
	setRequired(t)
	t.Setenv("REGISTRATION_MODE", "code")

	mustPanic(t, "REGISTRATION_CODE", func() { _, _ = LoadAll() })
}

func TestLoadAll_UnknownModeRejected(t *testing.T) {
	setRequired(t)
	t.Setenv("REGISTRATION_MODE", "magic")

	mustPanic(t, "unknown REGISTRATION_MODE", func() { _, _ = LoadAll() })
}

func TestLoadAll_InvalidIntervalRejected(t *testing.T) {
	setRequired(t)
	t.Setenv("PULL_INTERVAL_SECONDS", "0")

	mustPanic(t, "PULL_INTERVAL_SECONDS", func() { _, _ = LoadAll() })
}
