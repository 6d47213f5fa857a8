package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath   = "config.toml"
	DefaultHTTPAddr     = ":8080"
	DefaultJWTExpiresIn = "24h"
	DefaultPGHost       = "127.0.0.1"
	DefaultPGPort       = 5432
	DefaultPGUser       = "postgres"
	DefaultPGDatabase   = "botdeck"
	DefaultPGSSLMode    = "disable"

	DefaultProcessorModel  = "gpt-4o-mini"
	DefaultRequestTimeout  = 15
	DefaultHistoryLimit    = 10
	DefaultRefreshSchedule = "@every 15m"
	DefaultRefreshWindow   = "30m"

	DefaultSlackTokenURL       = "https://slack.com/api/oauth.v2.access"
	DefaultGoHighLevelTokenURL = "https://services.leadconnectorhq.com/oauth/token"
	DefaultGoHighLevelAPIBase  = "https://services.leadconnectorhq.com"
)

type Config struct {
	Log         LogConfig         `toml:"log"`
	Server      ServerConfig      `toml:"server"`
	Admin       AdminConfig       `toml:"admin"`
	Auth        AuthConfig        `toml:"auth"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Processor   ProcessorConfig   `toml:"processor"`
	Credentials CredentialsConfig `toml:"credentials"`
	Slack       SlackConfig       `toml:"slack"`
	GoHighLevel GoHighLevelConfig `toml:"gohighlevel"`
	Discord     DiscordConfig     `toml:"discord"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

type AdminConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type PostgresConfig struct {
	Host     string `toml:"host" validate:"required"`
	Port     int    `toml:"port" validate:"min=1,max=65535"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database" validate:"required"`
	SSLMode  string `toml:"sslmode"`
}

// ProcessorConfig configures the default LLM-backed message processor.
type ProcessorConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	// SystemPrompt leads every model call when set.
	SystemPrompt string `toml:"system_prompt"`
	// HistoryLimit bounds how many stored messages are replayed per turn.
	HistoryLimit int `toml:"history_limit" validate:"min=1"`
}

// CredentialsConfig controls the proactive token refresh sweep.
type CredentialsConfig struct {
	// RefreshSchedule is a cron spec for the expiry sweep.
	RefreshSchedule string `toml:"refresh_schedule"`
	// RefreshWindow is how close to expiry a credential must be to refresh.
	RefreshWindow string `toml:"refresh_window"`
	// RequestTimeoutSeconds applies to all outbound platform API calls.
	RequestTimeoutSeconds int `toml:"request_timeout_seconds" validate:"min=1"`
}

type SlackConfig struct {
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	SigningSecret string `toml:"signing_secret"`
	TokenURL      string `toml:"token_url"`
	// AppToken enables Socket Mode inbound when set (xapp- token).
	AppToken string `toml:"app_token"`
}

type GoHighLevelConfig struct {
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	TokenURL      string `toml:"token_url"`
	APIBase       string `toml:"api_base"`
	WebhookSecret string `toml:"webhook_secret"`
}

type DiscordConfig struct {
	Enabled bool `toml:"enabled"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Processor: ProcessorConfig{
			Model:        DefaultProcessorModel,
			HistoryLimit: DefaultHistoryLimit,
		},
		Credentials: CredentialsConfig{
			RefreshSchedule:       DefaultRefreshSchedule,
			RefreshWindow:         DefaultRefreshWindow,
			RequestTimeoutSeconds: DefaultRequestTimeout,
		},
		Slack: SlackConfig{
			TokenURL: DefaultSlackTokenURL,
		},
		GoHighLevel: GoHighLevelConfig{
			TokenURL: DefaultGoHighLevelTokenURL,
			APIBase:  DefaultGoHighLevelAPIBase,
		},
	}
	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("stat config %s: %w", path, err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// DSN renders the Postgres connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}
