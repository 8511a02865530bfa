// Package config reads runtime configuration from the environment. The
// service consumes these values but does not own them: credentials may live
// in SSM instead of the environment, and all names here are deployment
// detail.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Bot credentials, read directly from the environment. Leave empty and
	// set ParamPrefix to defer to SSM instead.
	BotToken string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `env:"TELEGRAM_CHAT_ID"`

	// ParamPrefix is the SSM path prefix holding the telegram-bot
	// credentials parameter. Takes precedence over the env credentials.
	ParamPrefix string `env:"PARAM_PREFIX"`

	// StateTable names the DynamoDB table for sessions and rate windows.
	// Empty selects the in-memory store, which is per-instance only.
	StateTable string `env:"STATE_TABLE"`

	// WebhookSecret, when set, must match the platform's
	// X-Telegram-Bot-Api-Secret-Token header on inbound updates.
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// PublicBaseURL is the externally reachable base URL used by the dev
	// server to register the webhook at startup.
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	RateLimitCapacity int           `env:"RATE_LIMIT_CAPACITY" envDefault:"10"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`

	// Debug exposes internal error detail in responses. Never enable in
	// production.
	Debug bool `env:"DEBUG"`
}

// Load parses and validates configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RateLimitWindow <= 0 {
		return errors.New("config: rate limit window must be positive")
	}
	if c.RateLimitCapacity <= 0 {
		return errors.New("config: rate limit capacity must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: session TTL must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("config: sweep interval must be positive")
	}
	return nil
}

// CredentialsFromEnv reports whether the bot credentials are fully present
// in the environment.
func (c Config) CredentialsFromEnv() bool {
	return c.BotToken != "" && c.ChatID != ""
}
