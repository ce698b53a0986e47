// Package config loads the clinic service configuration from YAML with
// environment-variable fallbacks.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	Router    RouterConfig    `yaml:"router"`
	Database  DatabaseConfig  `yaml:"database"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Reminders RemindersConfig `yaml:"reminders"`
}

// ServerConfig tunes the HTTP listener.
type ServerConfig struct {
	Addr      string  `yaml:"addr"`
	BaseURL   string  `yaml:"base_url"`
	GlobalRPS float64 `yaml:"global_rps"`
	ClientRPS float64 `yaml:"client_rps"`
	Burst     int     `yaml:"burst"`
}

// ProviderConfig selects and configures the model provider.
type ProviderConfig struct {
	Name        string  `yaml:"name"` // groq, openai, gemini, mock
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// RouterConfig tunes turn execution.
type RouterConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

// DatabaseConfig locates the clinic database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SessionsConfig selects session persistence.
type SessionsConfig struct {
	Backend string      `yaml:"backend"` // memory or redis
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	TTLHours int    `yaml:"ttl_hours"`
}

// TTL converts the configured session lifetime.
func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLHours) * time.Hour
}

// SMTPConfig configures outbound mail. Empty credentials switch mail
// delivery to log-only.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// RemindersConfig controls the day-before reminder scan.
type RemindersConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8080",
			BaseURL:   "http://localhost:8080",
			GlobalRPS: 50,
			ClientRPS: 5,
			Burst:     10,
		},
		Provider: ProviderConfig{
			Name:        "groq",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.3,
		},
		Router:   RouterConfig{MaxIterations: 10},
		Database: DatabaseConfig{Path: "careswarm.db"},
		Sessions: SessionsConfig{Backend: "memory"},
		Reminders: RemindersConfig{
			Enabled:  true,
			Schedule: "0 18 * * *",
		},
	}
}

// Load reads the YAML file at path if it exists, layers environment
// overrides on top, and validates. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills unset values from the environment.
func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "CARESWARM_ADDR")
	setString(&c.Server.BaseURL, "CARESWARM_BASE_URL")
	setString(&c.Provider.Name, "CARESWARM_PROVIDER")
	setString(&c.Provider.Model, "CARESWARM_MODEL")
	setString(&c.Provider.BaseURL, "CARESWARM_PROVIDER_BASE_URL")
	setString(&c.Database.Path, "CARESWARM_DB_PATH")
	setString(&c.Sessions.Backend, "CARESWARM_SESSION_BACKEND")
	setString(&c.Sessions.Redis.Addr, "REDIS_ADDR")
	setString(&c.Sessions.Redis.Password, "REDIS_PASSWORD")
	setString(&c.SMTP.Host, "SMTP_HOST")
	setString(&c.SMTP.Username, "SMTP_USERNAME")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.SMTP.From, "SMTP_FROM")
	if c.SMTP.Port == 0 {
		if port, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil {
			c.SMTP.Port = port
		}
	}

	// The API key is env-first: prefer provider-specific variables over
	// whatever the file carries.
	switch c.Provider.Name {
	case "groq":
		overrideString(&c.Provider.APIKey, "GROQ_API_KEY")
	case "openai":
		overrideString(&c.Provider.APIKey, "OPENAI_API_KEY")
	case "gemini":
		overrideString(&c.Provider.APIKey, "GEMINI_API_KEY")
	}
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Provider.Name {
	case "groq", "openai", "gemini":
		if c.Provider.APIKey == "" {
			return fmt.Errorf("provider %q requires an api key", c.Provider.Name)
		}
	case "mock":
		// No credentials needed.
	default:
		return fmt.Errorf("unknown provider %q", c.Provider.Name)
	}
	if c.Provider.Model == "" && c.Provider.Name != "mock" {
		return fmt.Errorf("provider.model is required")
	}
	switch c.Sessions.Backend {
	case "memory":
	case "redis":
		if c.Sessions.Redis.Addr == "" {
			return fmt.Errorf("sessions.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Sessions.Backend)
	}
	if c.Router.MaxIterations < 0 {
		return fmt.Errorf("router.max_iterations must not be negative")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

// ProviderOptions returns the provider factory configuration map.
func (c *Config) ProviderOptions() map[string]any {
	return map[string]any{
		"api_key":  c.Provider.APIKey,
		"base_url": c.Provider.BaseURL,
	}
}

func setString(dst *string, key string) {
	if *dst == "" {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
