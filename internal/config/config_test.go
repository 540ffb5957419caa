package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalConfig = `
[server]
public_host = "voice.example.com"

[auth]
secret = "s3cret"

[twilio]
account_sid = "AC123"
auth_token = "token"
`

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.STT.SampleRate != 8000 {
		t.Errorf("expected default sample rate 8000, got %d", cfg.STT.SampleRate)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected default model, got %q", cfg.LLM.Model)
	}
	if cfg.Bridge.InactivityTimeoutSec != 30 {
		t.Errorf("expected default inactivity timeout, got %d", cfg.Bridge.InactivityTimeoutSec)
	}
	if got := cfg.Auth.TokenTTLDuration(); got != 5*time.Minute {
		t.Errorf("expected 5m token TTL, got %s", got)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig+`
[bridge]
inactivity_timeout_sec = 45

[tts]
voice = "tr-TR-AhmetNeural"
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Bridge.InactivityTimeoutSec != 45 {
		t.Errorf("expected overridden inactivity timeout, got %d", cfg.Bridge.InactivityTimeoutSec)
	}
	if cfg.TTS.Voice != "tr-TR-AhmetNeural" {
		t.Errorf("expected overridden voice, got %q", cfg.TTS.Voice)
	}
	// Defaults survive alongside overrides.
	if cfg.TTS.Region != "westeurope" {
		t.Errorf("expected default region, got %q", cfg.TTS.Region)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing public host", func(c *Config) { c.Server.PublicHost = "" }},
		{"missing secret", func(c *Config) { c.Auth.Secret = "" }},
		{"zero token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
		{"missing twilio credentials", func(c *Config) { c.Twilio.AuthToken = "" }},
		{"zero sample rate", func(c *Config) { c.STT.SampleRate = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Server.PublicHost = "voice.example.com"
			cfg.Auth.Secret = "s3cret"
			cfg.Twilio.AccountSID = "AC123"
			cfg.Twilio.AuthToken = "token"

			if err := cfg.Validate(); err != nil {
				t.Fatalf("baseline config should validate: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
