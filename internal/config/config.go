package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. ACORN_DISCORD_CLIENT_SECRET.
const EnvPrefix = "ACORN_"

type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Discord   DiscordConfig   `yaml:"discord" envPrefix:"DISCORD_"`
	Storage   StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
}

type ServerConfig struct {
	Host           string        `yaml:"host" env:"HOST"`
	Port           int           `yaml:"port" env:"PORT"`
	BaseURL        string        `yaml:"base_url" env:"BASE_URL"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	TrustedProxies []string      `yaml:"trusted_proxies" env:"TRUSTED_PROXIES" envSeparator:","`
}

type DatabaseConfig struct {
	Driver       string        `yaml:"driver" env:"DRIVER"`
	Path         string        `yaml:"path" env:"PATH"`
	URL          string        `yaml:"url" env:"URL"`
	MaxOpenConns int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	QueryTimeout time.Duration `yaml:"query_timeout" env:"QUERY_TIMEOUT"`
}

type AuthConfig struct {
	StateSecret   string        `yaml:"state_secret" env:"STATE_SECRET"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

type DiscordConfig struct {
	ClientID     string `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"CLIENT_SECRET"`
	RedirectURI  string `yaml:"redirect_uri" env:"REDIRECT_URI"`
	APIBaseURL   string `yaml:"api_base_url" env:"API_BASE_URL"`
}

type StorageConfig struct {
	Driver         string   `yaml:"driver" env:"DRIVER"`
	Root           string   `yaml:"root" env:"ROOT"`
	UploadMaxBytes int64    `yaml:"upload_max_bytes" env:"UPLOAD_MAX_BYTES"`
	S3             S3Config `yaml:"s3" envPrefix:"S3_"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" env:"USE_SSL"`
}

// Requests per minute per client IP.
type RateLimitConfig struct {
	Auth int `yaml:"auth" env:"AUTH"`
	Mods int `yaml:"mods" env:"MODS"`
}

// Load reads the YAML file at path (skipped when path is empty), applies
// ACORN_* environment overrides, validates and fills defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	return env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix})
}

func (c *Config) validate() error {
	if c.Auth.StateSecret == "" {
		return fmt.Errorf("auth.state_secret is required")
	}
	if len(c.Auth.StateSecret) < 32 {
		return fmt.Errorf("auth.state_secret must be at least 32 characters")
	}
	if c.Discord.ClientID == "" {
		return fmt.Errorf("discord.client_id is required")
	}
	if c.Discord.ClientSecret == "" {
		return fmt.Errorf("discord.client_secret is required")
	}
	if c.Discord.RedirectURI == "" {
		return fmt.Errorf("discord.redirect_uri is required")
	}

	switch strings.ToLower(c.Database.Driver) {
	case "", "sqlite":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "", "local":
	case "s3":
		if c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.endpoint and storage.s3.bucket are required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	if c.Storage.UploadMaxBytes < 0 {
		return fmt.Errorf("storage.upload_max_bytes must be >= 0")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/acorn.db"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.QueryTimeout == 0 {
		c.Database.QueryTimeout = 5 * time.Second
	}

	if c.Auth.SweepInterval == 0 {
		c.Auth.SweepInterval = time.Minute
	}

	if c.Discord.APIBaseURL == "" {
		c.Discord.APIBaseURL = "https://discord.com/api/v10"
	}

	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "./data/mods"
	}
	if c.Storage.UploadMaxBytes == 0 {
		c.Storage.UploadMaxBytes = 16 << 20
	}

	if c.RateLimit.Auth == 0 {
		c.RateLimit.Auth = 20
	}
	if c.RateLimit.Mods == 0 {
		c.RateLimit.Mods = 30
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
