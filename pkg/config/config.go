package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for drugovery.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, signing keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// MigrationsPath is the directory holding the SQL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`

	Auth     AuthConfig     `yaml:"auth"`
	CORS     CORSConfig     `yaml:"cors"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Oracle   OracleConfig   `yaml:"oracle"`
	ChEMBL   ChEMBLConfig   `yaml:"chembl"`
	Batch    BatchConfig    `yaml:"batch"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT signatures are validated.
	// Set to false for local development; the token subject is still used as the actor.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWTSecret is the HS256 signing key for access tokens.
	JWTSecret string `yaml:"-" env:"JWT_SECRET"` // Secret - not in YAML
}

// CORSConfig holds the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOriginsStr string   `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:3000,http://localhost:8000"`
	AllowedOrigins    []string `yaml:"-"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"postgres"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"drugdiscovery"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis configuration for the batch job status store.
// Leave Host empty to keep job status in memory.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// OracleConfig points at the remote prediction service.
type OracleConfig struct {
	BaseURL string        `yaml:"base_url" env:"ORACLE_BASE_URL" env-default:"http://localhost:5001"`
	Timeout time.Duration `yaml:"timeout" env:"ORACLE_TIMEOUT" env-default:"30s"`
}

// ChEMBLConfig points at the ChEMBL data API used for compound imports.
type ChEMBLConfig struct {
	BaseURL string        `yaml:"base_url" env:"CHEMBL_API_URL" env-default:"https://www.ebi.ac.uk/chembl/api/data"`
	Timeout time.Duration `yaml:"timeout" env:"CHEMBL_TIMEOUT" env-default:"10s"`
}

// BatchConfig controls batch prediction throughput.
type BatchConfig struct {
	// MaxConcurrentJobs is how many batch jobs may run at once.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" env:"BATCH_MAX_CONCURRENT_JOBS" env-default:"2"`
	// ItemConcurrency bounds parallel oracle calls within one job.
	ItemConcurrency int `yaml:"item_concurrency" env:"BATCH_ITEM_CONCURRENCY" env-default:"8"`
	// JobTTL is how long finished job status is retained in Redis.
	JobTTL time.Duration `yaml:"job_ttl" env:"BATCH_JOB_TTL" env-default:"24h"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	cfg.parseComplexFields()
	cfg.resolveServiceHosts()

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if err := cfg.validateAuth(); err != nil {
		return nil, fmt.Errorf("invalid auth configuration: %w", err)
	}

	if cfg.Batch.MaxConcurrentJobs < 1 {
		cfg.Batch.MaxConcurrentJobs = 1
	}
	if cfg.Batch.ItemConcurrency < 1 {
		cfg.Batch.ItemConcurrency = 1
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() {
	c.CORS.AllowedOrigins = parseList(c.CORS.AllowedOriginsStr)
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// validateAuth refuses to verify tokens without a signing key.
func (c *Config) validateAuth() error {
	if c.Auth.EnableVerification && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set when auth verification is enabled")
	}
	return nil
}

// parseList splits a comma-separated value, dropping blanks.
func parseList(value string) []string {
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as required by golang-migrate.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// Addr returns the Redis host:port address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
