package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
)

// DevJWTSecret is the JWT_SECRET default. It is rejected in production.
const DevJWTSecret = "dev-secret"

// Config holds application configuration.
type Config struct {
	Env             string   `env:"ENV" envDefault:"dev"`
	Port            string   `env:"PORT" envDefault:"8080"`
	CORSAllowOrigin []string `env:"CORS_ALLOW_ORIGINS" envDefault:"http://localhost:5173"`

	AIAPIURL     string        `env:"AI_API_URL" envDefault:"http://localhost:8000"`
	AIAPITimeout time.Duration `env:"AI_API_TIMEOUT" envDefault:"30s"`

	MaxUploadBytes    int64    `env:"MAX_UPLOAD_BYTES" envDefault:"5242880"`
	AllowedExtensions []string `env:"ALLOWED_EXTENSIONS" envDefault:".pdf,.doc,.docx,.txt"`

	Cache     CacheConfig
	RateLimit RateLimitConfig

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDir   string `env:"LOG_DIR"`

	DatabaseURL string `env:"DATABASE_URL"`

	ObjectStoreType string `env:"OBJECT_STORE" envDefault:"local"`
	LocalStoreDir   string `env:"LOCAL_STORE_DIR" envDefault:"./data"`
	AWSRegion       string `env:"AWS_REGION"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3Prefix        string `env:"S3_PREFIX"`
	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3AccessKey     string `env:"S3_ACCESS_KEY"`
	S3SecretKey     string `env:"S3_SECRET_KEY"`
	SSEKMSKeyID     string `env:"SSE_KMS_KEY_ID"`

	JWTSecret      string        `env:"JWT_SECRET" envDefault:"dev-secret"`
	JWTTTL         time.Duration `env:"JWT_TTL" envDefault:"168h"`
	OTPTTL         time.Duration `env:"OTP_TTL" envDefault:"10m"`
	OTPMaxAttempts int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
	AdminEmails    []string      `env:"ADMIN_EMAILS"`

	SMTP               SMTPConfig
	ContactNotifyEmail string `env:"CONTACT_NOTIFY_EMAIL"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
	UIRedirectURL      string `env:"UI_REDIRECT_URL"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// CacheConfig selects and tunes the job status store.
type CacheConfig struct {
	Backend       string        `env:"CACHE_BACKEND" envDefault:"memory"`
	StatusTTL     time.Duration `env:"JOB_STATUS_TTL" envDefault:"1h"`
	ResultTTL     time.Duration `env:"JOB_RESULT_TTL" envDefault:"24h"`
	SweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL" envDefault:"5m"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
}

// RateLimitConfig holds the fixed-window limits per route group.
type RateLimitConfig struct {
	APIMax       int           `env:"RATE_LIMIT_API_MAX" envDefault:"300"`
	APIWindow    time.Duration `env:"RATE_LIMIT_API_WINDOW" envDefault:"15m"`
	UploadMax    int           `env:"RATE_LIMIT_UPLOAD_MAX" envDefault:"10"`
	UploadWindow time.Duration `env:"RATE_LIMIT_UPLOAD_WINDOW" envDefault:"15m"`
	LoginMax     int           `env:"RATE_LIMIT_LOGIN_MAX" envDefault:"5"`
	LoginWindow  time.Duration `env:"RATE_LIMIT_LOGIN_WINDOW" envDefault:"15m"`
	OTPMax       int           `env:"RATE_LIMIT_OTP_MAX" envDefault:"3"`
	OTPWindow    time.Duration `env:"RATE_LIMIT_OTP_WINDOW" envDefault:"10m"`
}

// SMTPConfig configures outbound mail. An empty Host selects the log mailer.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"no-reply@localhost"`
}

// Load reads configuration from environment variables with sensible defaults.
// A value that fails to parse is an error; Load never substitutes defaults for it.
func Load() (Config, error) {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, errors.Wrap(err, "parse configuration")
	}
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that are unsafe for the configured environment.
func (c Config) Validate() error {
	if c.Env != "production" {
		return nil
	}
	var problems []string
	if secret := strings.TrimSpace(c.JWTSecret); secret == "" || secret == DevJWTSecret {
		problems = append(problems, "JWT_SECRET must be set to a non-default value")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if len(problems) > 0 {
		return errors.Newf("invalid production configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Defaults returns a Config populated only from envDefault tags.
func Defaults() Config {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: map[string]string{}})
	if err != nil {
		panic(err)
	}
	cfg.Sanitize()
	return cfg
}

// Sanitize normalizes enum-like values and clamps nonsensical numbers back to defaults.
func (c *Config) Sanitize() {
	c.Env = normalizeEnv(c.Env)
	c.ObjectStoreType = normalizeStoreType(c.ObjectStoreType)
	c.Cache.Backend = normalizeCacheBackend(c.Cache.Backend)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.AIAPIURL = strings.TrimRight(strings.TrimSpace(c.AIAPIURL), "/")
	c.CORSAllowOrigin = trimAll(c.CORSAllowOrigin)
	c.AdminEmails = lowerAll(trimAll(c.AdminEmails))

	exts := trimAll(c.AllowedExtensions)
	for i, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[i] = ext
	}
	c.AllowedExtensions = exts

	if c.AIAPITimeout <= 0 {
		c.AIAPITimeout = 30 * time.Second
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 5 << 20
	}
	if c.Cache.StatusTTL <= 0 {
		c.Cache.StatusTTL = time.Hour
	}
	if c.Cache.ResultTTL <= 0 {
		c.Cache.ResultTTL = 24 * time.Hour
	}
	if c.Cache.SweepInterval <= 0 {
		c.Cache.SweepInterval = 5 * time.Minute
	}
	if c.OTPMaxAttempts <= 0 {
		c.OTPMaxAttempts = 5
	}
}

func trimAll(in []string) []string {
	var out []string
	for _, p := range in {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	for i := range in {
		in[i] = strings.ToLower(in[i])
	}
	return in
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeCacheBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "redis":
		return "redis"
	default:
		return "memory"
	}
}
