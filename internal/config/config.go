// Package config loads the application configuration.
//
// Sources, lowest precedence first:
//  1. built-in defaults (setDefaults)
//  2. an optional YAML/TOML/JSON file passed as path to Load
//  3. environment variables, optionally seeded from a .env file
//
// Environment names are the upper-cased key with dots replaced by
// underscores: database.dsn → DATABASE_DSN.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the whole application configuration. See setDefaults for the
// default of every key.
type Config struct {
	Port        int    `mapstructure:"port"`
	Env         string `mapstructure:"env"`
	FrontendURL string `mapstructure:"frontend_url"`

	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Auth0    Auth0Config    `mapstructure:"auth0"`
	AI       AIConfig       `mapstructure:"ai"`
	Tracking TrackingConfig `mapstructure:"tracking"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig selects the gorm dialector. Driver is "postgres" or
// "sqlite".
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

// RedisConfig enables event publishing when URL is set.
type RedisConfig struct {
	// URL empty disables event publishing.
	URL     string `mapstructure:"url"`
	Channel string `mapstructure:"channel"`
}

// JWTConfig signs locally issued tokens.
type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	Issuer string        `mapstructure:"issuer"`
}

// Auth0Config enables Auth0 token verification when Domain is set, and
// the login redirect when the client credentials are set too.
type Auth0Config struct {
	// Domain empty disables Auth0 token verification.
	Domain   string `mapstructure:"domain"`
	Audience string `mapstructure:"audience"`
	// ClientID/ClientSecret enable the server-side login flow.
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CallbackURL  string `mapstructure:"callback_url"`
	// EmailClaim is a namespaced custom claim consulted when the access
	// token has no plain "email" claim.
	EmailClaim string `mapstructure:"email_claim"`
}

// Enabled reports whether Auth0 bearer tokens should be accepted.
func (a Auth0Config) Enabled() bool { return a.Domain != "" }

// LoginEnabled reports whether the redirect login flow can be offered.
func (a Auth0Config) LoginEnabled() bool {
	return a.Enabled() && a.ClientID != "" && a.ClientSecret != ""
}

// IssuerURL is the token issuer Auth0 uses for the tenant.
func (a Auth0Config) IssuerURL() string {
	return "https://" + strings.TrimSuffix(a.Domain, "/") + "/"
}

// AIConfig configures the classifier. An empty APIKey disables it.
type AIConfig struct {
	// APIKey empty disables classification; anonymous complaints then get
	// the default sentiment/language and no agency.
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	Model               string        `mapstructure:"model"`
	Timeout             time.Duration `mapstructure:"timeout"`
	AutoAssignThreshold float64       `mapstructure:"auto_assign_threshold"`
}

// TrackingConfig sets the tracking code prefix, e.g. "CMP".
type TrackingConfig struct {
	Prefix string `mapstructure:"prefix"`
}

var trackingPrefixPattern = regexp.MustCompile(`^[A-Z]+$`)

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("env", "development")
	v.SetDefault("frontend_url", "http://localhost:5173")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=complaints port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel", "complaints.events")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("jwt.issuer", "civic-complaints")

	v.SetDefault("auth0.domain", "")
	v.SetDefault("auth0.audience", "")
	v.SetDefault("auth0.client_id", "")
	v.SetDefault("auth0.client_secret", "")
	v.SetDefault("auth0.callback_url", "http://localhost:8080/api/auth/auth0/callback")
	v.SetDefault("auth0.email_claim", "")

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout", 25*time.Second)
	v.SetDefault("ai.auto_assign_threshold", 80.0)

	v.SetDefault("tracking.prefix", "CMP")
}

// Load reads configuration from defaults, the optional file at path and
// the environment, then validates all of it. A missing .env file is not
// an error.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation. Callers that only need part of the
// configuration validate that part themselves (see ValidateDatabase).
func Read(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", slog.String("error", err.Error()))
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	cfg.Tracking.Prefix = strings.ToUpper(strings.TrimSpace(cfg.Tracking.Prefix))
	return &cfg, nil
}

// Validate checks the invariants the server relies on.
func (c *Config) Validate() error {
	errs := c.databaseErrors()

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if len(c.JWT.Secret) < 16 {
		errs = append(errs, errors.New("jwt secret must be at least 16 characters"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("jwt ttl must be positive"))
	}
	if !trackingPrefixPattern.MatchString(c.Tracking.Prefix) {
		errs = append(errs, fmt.Errorf("tracking prefix %q must be upper-case letters only", c.Tracking.Prefix))
	}
	if c.AI.Timeout <= 0 {
		errs = append(errs, errors.New("ai timeout must be positive"))
	}
	if c.Auth0.Enabled() && c.Auth0.Audience == "" {
		errs = append(errs, errors.New("auth0 audience is required when auth0 domain is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ValidateDatabase checks only the database section. The admin CLI talks
// to the database and never signs tokens, so it does not need JWT_SECRET.
func (c *Config) ValidateDatabase() error {
	if errs := c.databaseErrors(); len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) databaseErrors() []error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	return errs
}

// SlogLevel maps Log.Level to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger: JSON when Log.Format is "json",
// text otherwise.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
