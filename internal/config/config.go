package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the runtime configuration for the gateway, loaded from
// environment variables with an optional .env file for local development.
type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	MLLPEnabled bool   `mapstructure:"MLLP_ENABLED"`
	MLLPAddr    string `mapstructure:"MLLP_ADDR"`

	HoldMaxMinutes int `mapstructure:"HOLD_MAX_MINUTES"`

	AuthSecret   string `mapstructure:"AUTH_SECRET"`
	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`

	CORSOrigins    string `mapstructure:"CORS_ORIGINS"`
	AllowedOrigins []string
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MLLP_ENABLED", true)
	v.SetDefault("MLLP_ADDR", ":2575")
	v.SetDefault("HOLD_MAX_MINUTES", 30)
	v.SetDefault("CORS_ORIGINS", "*")

	for _, key := range []string{
		"PORT", "ENV",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"MLLP_ENABLED", "MLLP_ADDR",
		"HOLD_MAX_MINUTES",
		"AUTH_SECRET", "AUTH_ISSUER", "AUTH_AUDIENCE",
		"CORS_ORIGINS",
	} {
		_ = v.BindEnv(key)
	}

	// A missing .env file is fine; env vars still apply.
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.AllowedOrigins = splitOrigins(cfg.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.MLLPEnabled && c.MLLPAddr == "" {
		return fmt.Errorf("MLLP_ADDR is required when MLLP_ENABLED is true")
	}
	if c.HoldMaxMinutes <= 0 {
		return fmt.Errorf("HOLD_MAX_MINUTES must be positive")
	}
	if !c.IsDev() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required outside development")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
