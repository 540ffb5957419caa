package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level application configuration, decoded from TOML and
// passed by reference into every component constructor. Nothing reads
// configuration ambiently after startup.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
	Auth    AuthConfig    `toml:"auth"`
	Twilio  TwilioConfig  `toml:"twilio"`
	STT     STTConfig     `toml:"stt"`
	LLM     LLMConfig     `toml:"llm"`
	TTS     TTSConfig     `toml:"tts"`
	Bridge  BridgeConfig  `toml:"bridge"`
	Storage StorageConfig `toml:"storage"`
}

// BridgeConfig represents per-call session loop configuration
type BridgeConfig struct {
	PollTimeoutSec       int    `toml:"poll_timeout_sec"`
	InactivityTimeoutSec int    `toml:"inactivity_timeout_sec"`
	Greeting             string `toml:"greeting"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	PublicHost         string   `toml:"public_host"` // externally reachable hostname for webhook/stream URLs
	MaxConnections     int      `toml:"max_connections"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	ReadTimeoutSec     int      `toml:"read_timeout_sec"`
	WriteTimeoutSec    int      `toml:"write_timeout_sec"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// AuthConfig represents the stream access token configuration
type AuthConfig struct {
	Secret   string `toml:"secret"`
	Issuer   string `toml:"issuer"`
	TokenTTL int    `toml:"token_ttl_sec"`
}

// TwilioConfig represents the telephony provider configuration
type TwilioConfig struct {
	AccountSID  string `toml:"account_sid"`
	AuthToken   string `toml:"auth_token"`
	PhoneNumber string `toml:"phone_number"`
	SkipVerify  bool   `toml:"skip_verify"` // disables request signature validation (local dev only)
	TimeoutSec  int    `toml:"timeout_sec"`
}

// STTConfig represents the streaming transcription configuration
type STTConfig struct {
	APIKey          string `toml:"api_key"`
	URL             string `toml:"url"`
	SampleRate      int    `toml:"sample_rate"`
	Language        string `toml:"language"`
	HelloTimeoutSec int    `toml:"hello_timeout_sec"`
	DrainTimeoutMs  int    `toml:"drain_timeout_ms"`
	DrainMaxIters   int    `toml:"drain_max_iters"`
}

// LLMConfig represents the response generator configuration
type LLMConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
	TimeoutSec  int     `toml:"timeout_sec"`
}

// TTSConfig represents the speech synthesis configuration
type TTSConfig struct {
	SubscriptionKey string `toml:"subscription_key"`
	Region          string `toml:"region"`
	Voice           string `toml:"voice"`
	Rate            string `toml:"rate"`
	Language        string `toml:"language"`
	TimeoutSec      int    `toml:"timeout_sec"`
}

// StorageConfig represents call record and event log storage configuration
type StorageConfig struct {
	DBPath      string `toml:"db_path"`
	CallLogPath string `toml:"call_log_path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8000,
			MaxConnections:     64,
			CORSAllowedOrigins: []string{"*"},
			ReadTimeoutSec:     30,
			WriteTimeoutSec:    30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   "call_system.log",
		},
		Auth: AuthConfig{
			Issuer:   "ai-voice",
			TokenTTL: 300,
		},
		Twilio: TwilioConfig{
			TimeoutSec: 15,
		},
		STT: STTConfig{
			URL:             "wss://api.assemblyai.com/v2/realtime/ws",
			SampleRate:      8000,
			Language:        "tr",
			HelloTimeoutSec: 2,
			DrainTimeoutMs:  100,
			DrainMaxIters:   10,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   150,
			Temperature: 0.4,
			TimeoutSec:  30,
		},
		TTS: TTSConfig{
			Region:     "westeurope",
			Voice:      "tr-TR-EmelNeural",
			Rate:       "-5%",
			Language:   "tr-TR",
			TimeoutSec: 60,
		},
		Bridge: BridgeConfig{
			PollTimeoutSec:       1,
			InactivityTimeoutSec: 30,
			Greeting:             "Merhaba, ben su arıtma cihazınızın bakım asistanıyım. Size nasıl yardımcı olabilirim?",
		},
		Storage: StorageConfig{
			DBPath:      "voicebridge.db",
			CallLogPath: "callslog",
		},
	}
}

// LoadConfig loads the configuration from the given TOML file, applying
// defaults for anything the file leaves unset.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for missing or inconsistent values
func (c *Config) Validate() error {
	if c.Server.PublicHost == "" {
		return fmt.Errorf("server.public_host is required for webhook and stream URLs")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_sec must be positive")
	}
	if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
		return fmt.Errorf("twilio.account_sid and twilio.auth_token are required")
	}
	if c.STT.SampleRate <= 0 {
		return fmt.Errorf("stt.sample_rate must be positive")
	}
	return nil
}

// TokenTTLDuration returns the access token lifetime as a duration
func (c *AuthConfig) TokenTTLDuration() time.Duration {
	return time.Duration(c.TokenTTL) * time.Second
}
