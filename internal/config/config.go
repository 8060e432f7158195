package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Smartlead SmartleadConfig `yaml:"smartlead"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Drafts    DraftsConfig    `yaml:"drafts"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the relational store connection settings
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds redis settings for advisory locks
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// SmartleadConfig holds Smartlead API configuration
type SmartleadConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	WorkspaceID     string `yaml:"workspace_id"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	RetryAfterCapMs int    `yaml:"retry_after_cap_ms"`
}

// Timeout returns the configured timeout as a duration
func (c SmartleadConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SnapshotConfig holds snapshot workflow settings
type SnapshotConfig struct {
	LockTTLSeconds     int `yaml:"lock_ttl_seconds"`
	DefaultMaxContacts int `yaml:"default_max_contacts"`
}

// LockTTL returns the refresh lock TTL as a duration
func (c SnapshotConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// DraftsConfig holds draft template rendering settings
type DraftsConfig struct {
	TemplateDir string `yaml:"template_dir"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Smartlead.BaseURL == "" {
		cfg.Smartlead.BaseURL = "https://server.smartlead.ai/api/v1"
	}
	if cfg.Smartlead.TimeoutSeconds == 0 {
		cfg.Smartlead.TimeoutSeconds = 30
	}
	if cfg.Smartlead.RetryAfterCapMs == 0 {
		cfg.Smartlead.RetryAfterCapMs = 5000
	}
	if cfg.Snapshot.LockTTLSeconds == 0 {
		cfg.Snapshot.LockTTLSeconds = 120
	}
	if cfg.Snapshot.DefaultMaxContacts == 0 {
		cfg.Snapshot.DefaultMaxContacts = 5000
	}
	if cfg.Drafts.TemplateDir == "" {
		cfg.Drafts.TemplateDir = "templates"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env
// vars, so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if apiKey := os.Getenv("SMARTLEAD_API_KEY"); apiKey != "" {
		cfg.Smartlead.APIKey = apiKey
	}
	if baseURL := os.Getenv("SMARTLEAD_BASE_URL"); baseURL != "" {
		cfg.Smartlead.BaseURL = baseURL
	}
	if workspaceID := os.Getenv("SMARTLEAD_WORKSPACE_ID"); workspaceID != "" {
		cfg.Smartlead.WorkspaceID = workspaceID
	}
	if capMs := os.Getenv("SMARTLEAD_RETRY_AFTER_CAP_MS"); capMs != "" {
		if parsed, err := strconv.Atoi(capMs); err == nil && parsed > 0 {
			cfg.Smartlead.RetryAfterCapMs = parsed
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}

	return cfg, nil
}
