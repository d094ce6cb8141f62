package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "HEARTH_"

// Config is the root configuration for the hearth server.
// Values come from defaults, then an optional YAML file, then HEARTH_* environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Session   SessionConfig   `yaml:"session"`
	OIDC      OIDCConfig      `yaml:"oidc"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Redis     RedisConfig     `yaml:"redis"`
	Weather   WeatherConfig   `yaml:"weather"`
	Vault     VaultConfig     `yaml:"vault"`
	Storage   StorageConfig   `yaml:"storage"`
	Email     EmailConfig     `yaml:"email"`
	Push      PushConfig      `yaml:"push"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Backup    BackupConfig    `yaml:"backup"`
}

type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	BaseURL      string `yaml:"base_url"`
	ReadTimeout  int    `yaml:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout"`
	IdleTimeout  int    `yaml:"idle_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	Secret        string `yaml:"secret"`
	TTLHours      int    `yaml:"ttl_hours"`
	SecureCookies bool   `yaml:"secure_cookies"`
}

// OIDCConfig configures federated sign-in. Sign-in is disabled when IssuerURL is empty.
type OIDCConfig struct {
	IssuerURL    string   `yaml:"issuer_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

type RateLimitConfig struct {
	Backend       string `yaml:"backend"`
	Requests      int    `yaml:"requests"`
	WindowSeconds int    `yaml:"window_seconds"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WeatherConfig struct {
	APIKey          string `yaml:"api_key"`
	Units           string `yaml:"units"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
}

// VaultConfig holds the base64 master key for vault content encryption.
// An empty key stores content unencrypted.
type VaultConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
}

type StorageConfig struct {
	Backend  string   `yaml:"backend"`
	LocalDir string   `yaml:"local_dir"`
	S3       S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type EmailConfig struct {
	PostmarkToken string `yaml:"postmark_token"`
	From          string `yaml:"from"`
}

type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subject         string `yaml:"subject"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// BackupConfig schedules encrypted database snapshots into document storage.
// Schedule is a standard five-field cron expression.
type BackupConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Passphrase string `yaml:"passphrase"`
	Schedule   string `yaml:"schedule"`
	Retain     int    `yaml:"retain"`
}

// Load reads configuration from path (optional), applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg, os.Getenv); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			BaseURL:      "http://localhost:8080",
			ReadTimeout:  5,
			WriteTimeout: 10,
			IdleTimeout:  120,
		},
		Database: DatabaseConfig{Path: "hearth.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Session:  SessionConfig{TTLHours: 24 * 30},
		OIDC:     OIDCConfig{Scopes: []string{"openid", "email", "profile"}},
		RateLimit: RateLimitConfig{
			Backend:       "memory",
			Requests:      100,
			WindowSeconds: 60,
		},
		Redis:   RedisConfig{Addr: "localhost:6379"},
		Weather: WeatherConfig{Units: "imperial", CacheTTLMinutes: 10},
		Vault:   VaultConfig{MaxUploadMB: 10},
		Storage: StorageConfig{Backend: "local", LocalDir: "data/documents"},
		Email:   EmailConfig{From: "hearth@localhost"},
		Metrics: MetricsConfig{Enabled: true},
		Backup:  BackupConfig{Schedule: "0 3 * * *", Retain: 7},
	}
}

type override struct {
	key string
	set func(v string) error
}

func str(dst *string) func(string) error {
	return func(v string) error { *dst = v; return nil }
}

func num(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func flag(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	overrides := []override{
		{"SERVER_HOST", str(&cfg.Server.Host)},
		{"SERVER_PORT", num(&cfg.Server.Port)},
		{"SERVER_BASE_URL", str(&cfg.Server.BaseURL)},
		{"DATABASE_PATH", str(&cfg.Database.Path)},
		{"LOGGING_LEVEL", str(&cfg.Logging.Level)},
		{"LOGGING_FORMAT", str(&cfg.Logging.Format)},
		{"SESSION_SECRET", str(&cfg.Session.Secret)},
		{"SESSION_TTL_HOURS", num(&cfg.Session.TTLHours)},
		{"SESSION_SECURE_COOKIES", flag(&cfg.Session.SecureCookies)},
		{"OIDC_ISSUER_URL", str(&cfg.OIDC.IssuerURL)},
		{"OIDC_CLIENT_ID", str(&cfg.OIDC.ClientID)},
		{"OIDC_CLIENT_SECRET", str(&cfg.OIDC.ClientSecret)},
		{"OIDC_REDIRECT_URL", str(&cfg.OIDC.RedirectURL)},
		{"RATELIMIT_BACKEND", str(&cfg.RateLimit.Backend)},
		{"RATELIMIT_REQUESTS", num(&cfg.RateLimit.Requests)},
		{"RATELIMIT_WINDOW_SECONDS", num(&cfg.RateLimit.WindowSeconds)},
		{"REDIS_ADDR", str(&cfg.Redis.Addr)},
		{"REDIS_PASSWORD", str(&cfg.Redis.Password)},
		{"REDIS_DB", num(&cfg.Redis.DB)},
		{"WEATHER_API_KEY", str(&cfg.Weather.APIKey)},
		{"WEATHER_UNITS", str(&cfg.Weather.Units)},
		{"VAULT_ENCRYPTION_KEY", str(&cfg.Vault.EncryptionKey)},
		{"VAULT_MAX_UPLOAD_MB", num(&cfg.Vault.MaxUploadMB)},
		{"STORAGE_BACKEND", str(&cfg.Storage.Backend)},
		{"STORAGE_LOCAL_DIR", str(&cfg.Storage.LocalDir)},
		{"STORAGE_S3_ENDPOINT", str(&cfg.Storage.S3.Endpoint)},
		{"STORAGE_S3_REGION", str(&cfg.Storage.S3.Region)},
		{"STORAGE_S3_BUCKET", str(&cfg.Storage.S3.Bucket)},
		{"STORAGE_S3_ACCESS_KEY", str(&cfg.Storage.S3.AccessKey)},
		{"STORAGE_S3_SECRET_KEY", str(&cfg.Storage.S3.SecretKey)},
		{"EMAIL_POSTMARK_TOKEN", str(&cfg.Email.PostmarkToken)},
		{"EMAIL_FROM", str(&cfg.Email.From)},
		{"PUSH_VAPID_PUBLIC_KEY", str(&cfg.Push.VAPIDPublicKey)},
		{"PUSH_VAPID_PRIVATE_KEY", str(&cfg.Push.VAPIDPrivateKey)},
		{"PUSH_SUBJECT", str(&cfg.Push.Subject)},
		{"METRICS_ENABLED", flag(&cfg.Metrics.Enabled)},
		{"BACKUP_ENABLED", flag(&cfg.Backup.Enabled)},
		{"BACKUP_PASSPHRASE", str(&cfg.Backup.Passphrase)},
		{"BACKUP_SCHEDULE", str(&cfg.Backup.Schedule)},
		{"BACKUP_RETAIN", num(&cfg.Backup.Retain)},
	}

	for _, o := range overrides {
		v := getenv(EnvPrefix + o.key)
		if v == "" {
			continue
		}
		if err := o.set(v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, o.key, err)
		}
	}
	if v := getenv(EnvPrefix + "OIDC_SCOPES"); v != "" {
		cfg.OIDC.Scopes = strings.Fields(strings.ReplaceAll(v, ",", " "))
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Session.Secret == "" {
		errs = append(errs, "session.secret is required (set HEARTH_SESSION_SECRET environment variable)")
	} else if len(c.Session.Secret) < 32 {
		errs = append(errs, "session.secret must be at least 32 characters")
	}
	if c.Session.TTLHours <= 0 {
		errs = append(errs, "session.ttl_hours must be positive")
	}
	if c.OIDC.IssuerURL != "" && (c.OIDC.ClientID == "" || c.OIDC.RedirectURL == "") {
		errs = append(errs, "oidc.client_id and oidc.redirect_url are required when oidc.issuer_url is set")
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required for the redis rate limit backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("ratelimit.backend %q must be memory or redis", c.RateLimit.Backend))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.WindowSeconds <= 0 {
		errs = append(errs, "ratelimit.requests and ratelimit.window_seconds must be positive")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			errs = append(errs, "storage.local_dir is required for the local storage backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, "storage.s3.bucket is required for the s3 storage backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.backend %q must be local or s3", c.Storage.Backend))
	}
	if c.Backup.Enabled {
		if len(c.Backup.Passphrase) < 12 {
			errs = append(errs, "backup.passphrase must be at least 12 characters when backups are enabled")
		}
		if _, err := cron.ParseStandard(c.Backup.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("backup.schedule: %v", err))
		}
		if c.Backup.Retain < 1 {
			errs = append(errs, "backup.retain must be at least 1")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeout) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeout) * time.Second
}

func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Server.IdleTimeout) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

func (c *Config) WeatherCacheTTL() time.Duration {
	return time.Duration(c.Weather.CacheTTLMinutes) * time.Minute
}
