package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/docgate/internal/docgate/service"
	"github.com/aussiebroadwan/docgate/pkg/cryptox"
	"github.com/aussiebroadwan/docgate/pkg/jwtx"
	"github.com/aussiebroadwan/docgate/pkg/ratelimit"
	"gopkg.in/yaml.v3"
)

const (
	minTokenSecret = jwtx.MinSecretSize
	minPepper      = 16
	minAdminKey    = 24
)

type Config struct {
	Env                  string        `yaml:"env"`        // dev, staging, prod (default: dev)
	LogLevel             string        `yaml:"log_level"`  // debug, info, warn, error (default: info)
	LogFormat            string        `yaml:"log_format"` // json, text (default: json)
	Port                 int           `yaml:"port"`       // default: 8080
	ShutdownGracePeriod  time.Duration `yaml:"shutdown_grace_period"`
	HousekeepingInterval time.Duration `yaml:"housekeeping_interval"`
	DatabaseFile         string        `yaml:"database_file"`   // default: ./docgate.db
	PublicBaseURL        string        `yaml:"public_base_url"` // prefix of handed out download links
	TrustProxyHeaders    bool          `yaml:"trust_proxy_headers"`
	StoreTimeout         time.Duration `yaml:"store_timeout"` // bounds each record, blob and counter call

	Secrets   SecretsConfig   `yaml:"secrets"`
	Tokens    TokensConfig    `yaml:"tokens"`
	Documents DocumentsConfig `yaml:"documents"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Blob      BlobConfig      `yaml:"blob"`
}

// SecretsConfig values accept a "base64:" or "hex:" prefix, see cryptox.ParseSecret.
type SecretsConfig struct {
	MasterKey      string `yaml:"master_key"`
	TokenSecret    string `yaml:"token_secret"`
	PasswordPepper string `yaml:"password_pepper"`
	AdminAPIKey    string `yaml:"admin_api_key"`
}

type TokensConfig struct {
	Issuer      string        `yaml:"issuer"`
	CustomerTTL time.Duration `yaml:"customer_ttl"`
	AdminTTL    time.Duration `yaml:"admin_ttl"`
}

type DocumentsConfig struct {
	CipherVersion       uint16   `yaml:"cipher_version"`
	MaxFileSize         int64    `yaml:"max_file_size"`
	AllowedContentTypes []string `yaml:"allowed_content_types"`
}

type RateLimitConfig struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	Window           time.Duration `yaml:"window"`
	Lockout          time.Duration `yaml:"lockout"`
	ProgressiveDelay string        `yaml:"progressive_delay"` // none, linear, exponential
	BaseDelay        time.Duration `yaml:"base_delay"`
	MaxDelay         time.Duration `yaml:"max_delay"`

	Store string      `yaml:"store"` // memory, redis
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type BlobConfig struct {
	Driver string      `yaml:"driver"` // memory, minio, s3
	Minio  MinioConfig `yaml:"minio"`
	S3     S3Config    `yaml:"s3"`
}

type MinioConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// DefaultConfig returns every setting that has a safe default. Secrets
// have none.
func DefaultConfig() Config {
	download := ratelimit.DefaultPolicy("download")

	return Config{
		Env:                  "dev",
		LogLevel:             "info",
		LogFormat:            "json",
		Port:                 8080,
		ShutdownGracePeriod:  10 * time.Second,
		HousekeepingInterval: 5 * time.Minute,
		DatabaseFile:         "docgate.db",
		PublicBaseURL:        "http://localhost:8080",
		StoreTimeout:         2 * time.Second,
		Tokens: TokensConfig{
			Issuer:      "docgate",
			CustomerTTL: jwtx.DefaultCustomerTTL,
			AdminTTL:    jwtx.DefaultAdminTTL,
		},
		Documents: DocumentsConfig{
			CipherVersion:       cryptox.DefaultVersion,
			MaxFileSize:         service.DefaultMaxFileSize,
			AllowedContentTypes: append([]string(nil), service.DefaultAllowedContentTypes...),
		},
		RateLimit: RateLimitConfig{
			MaxAttempts:      download.MaxAttempts,
			Window:           download.Window,
			Lockout:          download.Lockout,
			ProgressiveDelay: download.Delay.String(),
			BaseDelay:        download.BaseDelay,
			MaxDelay:         download.MaxDelay,
			Store:            "memory",
			Redis:            RedisConfig{Addr: "localhost:6379"},
		},
		Blob: BlobConfig{
			Driver: "memory",
			Minio:  MinioConfig{Bucket: "docgate", Region: "us-east-1"},
			S3:     S3Config{Bucket: "docgate", Region: "us-east-1"},
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file named by
// DOCGATE_CONFIG_FILE if any, then environment variables, and validates it.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("DOCGATE_CONFIG_FILE"); path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func (c *Config) loadFromEnv() error {
	var e envReader

	e.stringVar("ENV", &c.Env)
	e.stringVar("LOG_LEVEL", &c.LogLevel)
	e.stringVar("LOG_FORMAT", &c.LogFormat)
	e.intVar("PORT", &c.Port)
	e.durationVar("SHUTDOWN_GRACE_PERIOD", &c.ShutdownGracePeriod)
	e.durationVar("HOUSEKEEPING_INTERVAL", &c.HousekeepingInterval)
	e.stringVar("DOCGATE_DATABASE_FILE", &c.DatabaseFile)
	e.stringVar("DOCGATE_PUBLIC_BASE_URL", &c.PublicBaseURL)
	e.boolVar("DOCGATE_TRUST_PROXY_HEADERS", &c.TrustProxyHeaders)
	e.durationVar("DOCGATE_STORE_TIMEOUT", &c.StoreTimeout)

	e.stringVar("DOCGATE_MASTER_KEY", &c.Secrets.MasterKey)
	e.stringVar("DOCGATE_TOKEN_SECRET", &c.Secrets.TokenSecret)
	e.stringVar("DOCGATE_PASSWORD_PEPPER", &c.Secrets.PasswordPepper)
	e.stringVar("DOCGATE_ADMIN_API_KEY", &c.Secrets.AdminAPIKey)

	e.stringVar("DOCGATE_TOKEN_ISSUER", &c.Tokens.Issuer)
	e.durationVar("DOCGATE_CUSTOMER_TOKEN_TTL", &c.Tokens.CustomerTTL)
	e.durationVar("DOCGATE_ADMIN_TOKEN_TTL", &c.Tokens.AdminTTL)

	e.uint16Var("DOCGATE_CIPHER_VERSION", &c.Documents.CipherVersion)
	e.int64Var("DOCGATE_MAX_FILE_SIZE", &c.Documents.MaxFileSize)
	e.listVar("DOCGATE_ALLOWED_CONTENT_TYPES", &c.Documents.AllowedContentTypes)

	e.intVar("DOCGATE_RATELIMIT_MAX_ATTEMPTS", &c.RateLimit.MaxAttempts)
	e.minutesVar("DOCGATE_RATELIMIT_WINDOW_MINUTES", &c.RateLimit.Window)
	e.minutesVar("DOCGATE_RATELIMIT_LOCKOUT_MINUTES", &c.RateLimit.Lockout)
	e.stringVar("DOCGATE_RATELIMIT_PROGRESSIVE_DELAY", &c.RateLimit.ProgressiveDelay)
	e.durationVar("DOCGATE_RATELIMIT_BASE_DELAY", &c.RateLimit.BaseDelay)
	e.durationVar("DOCGATE_RATELIMIT_MAX_DELAY", &c.RateLimit.MaxDelay)
	e.stringVar("DOCGATE_RATELIMIT_STORE", &c.RateLimit.Store)
	e.stringVar("DOCGATE_REDIS_ADDR", &c.RateLimit.Redis.Addr)
	e.stringVar("DOCGATE_REDIS_PASSWORD", &c.RateLimit.Redis.Password)
	e.intVar("DOCGATE_REDIS_DB", &c.RateLimit.Redis.DB)

	e.stringVar("DOCGATE_BLOB_DRIVER", &c.Blob.Driver)
	e.stringVar("DOCGATE_MINIO_ENDPOINT", &c.Blob.Minio.Endpoint)
	e.stringVar("DOCGATE_MINIO_ACCESS_KEY_ID", &c.Blob.Minio.AccessKeyID)
	e.stringVar("DOCGATE_MINIO_SECRET_ACCESS_KEY", &c.Blob.Minio.SecretAccessKey)
	e.boolVar("DOCGATE_MINIO_USE_SSL", &c.Blob.Minio.UseSSL)
	e.stringVar("DOCGATE_MINIO_BUCKET", &c.Blob.Minio.Bucket)
	e.stringVar("DOCGATE_MINIO_REGION", &c.Blob.Minio.Region)
	e.stringVar("DOCGATE_S3_BUCKET", &c.Blob.S3.Bucket)
	e.stringVar("DOCGATE_S3_REGION", &c.Blob.S3.Region)
	e.stringVar("DOCGATE_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	e.stringVar("DOCGATE_S3_ACCESS_KEY_ID", &c.Blob.S3.AccessKeyID)
	e.stringVar("DOCGATE_S3_SECRET_ACCESS_KEY", &c.Blob.S3.SecretAccessKey)
	e.boolVar("DOCGATE_S3_USE_PATH_STYLE", &c.Blob.S3.UsePathStyle)

	return errors.Join(e.errs...)
}

// Validate rejects configurations the service must not start with.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := c.MasterKey(); err != nil {
		add("DOCGATE_MASTER_KEY: %w", err)
	}
	if _, err := c.TokenSecret(); err != nil {
		add("DOCGATE_TOKEN_SECRET: %w", err)
	}
	if _, err := c.Pepper(); err != nil {
		add("DOCGATE_PASSWORD_PEPPER: %w", err)
	}
	if len(c.Secrets.AdminAPIKey) < minAdminKey {
		add("DOCGATE_ADMIN_API_KEY: must be at least %d characters", minAdminKey)
	}

	if !cryptox.SupportedVersion(c.Documents.CipherVersion) {
		add("DOCGATE_CIPHER_VERSION: unsupported version %d", c.Documents.CipherVersion)
	}
	if c.Documents.MaxFileSize <= 0 {
		add("DOCGATE_MAX_FILE_SIZE: must be positive")
	}
	if len(c.Documents.AllowedContentTypes) == 0 {
		add("DOCGATE_ALLOWED_CONTENT_TYPES: must not be empty")
	}

	if c.Tokens.Issuer == "" {
		add("DOCGATE_TOKEN_ISSUER: must not be empty")
	}
	for name, ttl := range map[string]time.Duration{
		"DOCGATE_CUSTOMER_TOKEN_TTL": c.Tokens.CustomerTTL,
		"DOCGATE_ADMIN_TOKEN_TTL":    c.Tokens.AdminTTL,
	} {
		if ttl <= 0 || ttl > service.MaxTokenTTL {
			add("%s: must be between 1s and %s", name, service.MaxTokenTTL)
		}
	}

	if _, err := c.DownloadPolicy(); err != nil {
		add("DOCGATE_RATELIMIT: %w", err)
	}
	switch c.RateLimit.Store {
	case "memory":
	case "redis":
		if c.RateLimit.Redis.Addr == "" {
			add("DOCGATE_REDIS_ADDR: required for the redis rate limit store")
		}
	default:
		add("DOCGATE_RATELIMIT_STORE: unknown store %q", c.RateLimit.Store)
	}

	switch c.Blob.Driver {
	case "memory":
		if c.Env == "prod" {
			add("DOCGATE_BLOB_DRIVER: memory driver is not allowed in prod")
		}
	case "minio":
		if c.Blob.Minio.Endpoint == "" || c.Blob.Minio.Bucket == "" {
			add("DOCGATE_MINIO_ENDPOINT and DOCGATE_MINIO_BUCKET are required for the minio driver")
		}
	case "s3":
		if c.Blob.S3.Bucket == "" || c.Blob.S3.Region == "" {
			add("DOCGATE_S3_BUCKET and DOCGATE_S3_REGION are required for the s3 driver")
		}
	default:
		add("DOCGATE_BLOB_DRIVER: unknown driver %q", c.Blob.Driver)
	}

	if c.Port <= 0 || c.Port > 65535 {
		add("PORT: out of range")
	}
	if c.StoreTimeout <= 0 {
		add("DOCGATE_STORE_TIMEOUT: must be positive")
	}
	if c.DatabaseFile == "" {
		add("DOCGATE_DATABASE_FILE: must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (c Config) MasterKey() ([]byte, error) {
	return cryptox.ParseSecret(c.Secrets.MasterKey, cryptox.MinMasterKeySize)
}

func (c Config) TokenSecret() ([]byte, error) {
	return cryptox.ParseSecret(c.Secrets.TokenSecret, minTokenSecret)
}

func (c Config) Pepper() ([]byte, error) {
	return cryptox.ParseSecret(c.Secrets.PasswordPepper, minPepper)
}

// DownloadPolicy is the failed-download policy, keyed per client IP. It
// always fails closed.
func (c Config) DownloadPolicy() (ratelimit.Policy, error) {
	delay, err := ratelimit.ParseDelayMode(c.RateLimit.ProgressiveDelay)
	if err != nil {
		return ratelimit.Policy{}, err
	}

	p := ratelimit.Policy{
		Action:      "download",
		MaxAttempts: c.RateLimit.MaxAttempts,
		Window:      c.RateLimit.Window,
		Lockout:     c.RateLimit.Lockout,
		Delay:       delay,
		BaseDelay:   c.RateLimit.BaseDelay,
		MaxDelay:    c.RateLimit.MaxDelay,
		FailMode:    ratelimit.FailClosed,
	}
	return p, p.Validate()
}

// AdminAuthPolicy bounds wrong admin key presentations per client IP.
func (c Config) AdminAuthPolicy() ratelimit.Policy {
	return ratelimit.Policy{
		Action:      "admin-auth",
		MaxAttempts: 5,
		Window:      15 * time.Minute,
		Lockout:     time.Hour,
		FailMode:    ratelimit.FailClosed,
	}
}

// envReader applies set environment variables and collects parse errors,
// so a typo fails startup instead of silently keeping the default.
type envReader struct {
	errs []error
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (e *envReader) stringVar(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) intVar(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) int64Var(key string, dst *int64) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) uint16Var(key string, dst *uint16) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = uint16(n)
}

func (e *envReader) boolVar(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = b
}

// durationVar accepts Go durations ("90s", "1h") or a bare number of minutes.
func (e *envReader) durationVar(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	minutes, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, errors.New("not a duration"))
		return
	}
	*dst = time.Duration(minutes) * time.Minute
}

func (e *envReader) minutesVar(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	minutes, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = time.Duration(minutes) * time.Minute
}

func (e *envReader) listVar(key string, dst *[]string) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	var out []string
	for item := range strings.SplitSeq(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
