package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the oracle
type Config struct {
	App  AppConfig  `mapstructure:"app"`
	DB   DBConfig   `mapstructure:"db"`
	Auth AuthConfig `mapstructure:"auth"`
	Peg  PegConfig  `mapstructure:"peg"`
	Hub  HubConfig  `mapstructure:"hub"`
	Seed SeedConfig `mapstructure:"seed"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret        string `mapstructure:"jwt_secret"`
	AdminSecret      string `mapstructure:"admin_secret"`
	TokenTTLMinutes  int    `mapstructure:"token_ttl_minutes"`
	WriteLimitPerMin int    `mapstructure:"write_limit_per_min"`
}

type PegConfig struct {
	// Sources is a ;-separated list of token|url|jsonPath|scale tuples.
	Sources         string `mapstructure:"sources"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
}

type HubConfig struct {
	QueueSize        int `mapstructure:"queue_size"`
	HeartbeatSeconds int `mapstructure:"heartbeat_seconds"`
}

type SeedConfig struct {
	// Tokens is a ;-separated list of token|symbol|mantissa|scale|decimals
	// tuples written at startup with actor "seed". Optional.
	Tokens string `mapstructure:"tokens"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Load .env into the system environment first (if it exists), so the
	// variables below are visible as real env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("db.path", "./oracle.sqlite")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.admin_secret", "")
	v.SetDefault("auth.token_ttl_minutes", 60)
	v.SetDefault("auth.write_limit_per_min", 60)

	v.SetDefault("peg.sources", "")
	v.SetDefault("peg.interval_seconds", 15)

	v.SetDefault("hub.queue_size", 64)
	v.SetDefault("hub.heartbeat_seconds", 25)

	v.SetDefault("seed.tokens", "")

	// Map dot-notation to underscores (e.g., "auth.jwt_secret" -> "AUTH_JWT_SECRET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind env vars so flat vars land in the nested structs
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "db.path")
	bindEnv(v, "auth.jwt_secret", "auth.admin_secret", "auth.token_ttl_minutes", "auth.write_limit_per_min")
	bindEnv(v, "peg.sources", "peg.interval_seconds")
	bindEnv(v, "hub.queue_size", "hub.heartbeat_seconds")
	bindEnv(v, "seed.tokens")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}
	if cfg.Auth.AdminSecret == "" {
		return nil, fmt.Errorf("auth.admin_secret is required")
	}
	if cfg.Auth.WriteLimitPerMin <= 0 {
		return nil, fmt.Errorf("auth.write_limit_per_min must be positive")
	}

	return &cfg, nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
