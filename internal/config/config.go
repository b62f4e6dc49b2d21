package config // package config loads application configuration from environment variables

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable named by its mapstructure tag.
type Config struct {
	Env            string `mapstructure:"APP_ENV"`  // development, test or production
	Port           string `mapstructure:"APP_PORT"` // HTTP port to listen on
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPass         string `mapstructure:"DB_PASS"` // empty allowed
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBName         string `mapstructure:"DB_NAME"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	AccessTTLMin   int    `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	RefreshTTLDays int    `mapstructure:"REFRESH_TOKEN_TTL_DAYS"`
	BcryptCost     int    `mapstructure:"BCRYPT_COST"`

	ResetTokenTTL time.Duration `mapstructure:"RESET_TOKEN_TTL"`
	FrontendURL   string        `mapstructure:"FRONTEND_URL"`
	CORSOrigins   []string      `mapstructure:"CORS_ORIGINS"`

	// ReviewRequireAssociation restricts reviews to doctors associated with
	// the screening's patient. Off by default: any doctor may review.
	ReviewRequireAssociation bool `mapstructure:"REVIEW_REQUIRE_ASSOCIATION"`

	AnalysisTimeout time.Duration `mapstructure:"ANALYSIS_TIMEOUT"`
	UploadMaxBytes  int64         `mapstructure:"UPLOAD_MAX_BYTES"`

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"` // empty: notifications are delivered inline
	ReviewAuditLog string `mapstructure:"REVIEW_AUDIT_LOG"`

	Redis   RedisConfig   `mapstructure:",squash"`
	SMTP    SMTPConfig    `mapstructure:",squash"`
	Gemini  GeminiConfig  `mapstructure:",squash"`
	Archive ArchiveConfig `mapstructure:",squash"`

	AuthRateLimit   RateLimitConfig `mapstructure:"-"`
	UploadRateLimit RateLimitConfig `mapstructure:"-"`
	Cache           CacheConfig     `mapstructure:"-"`

	Seed SeedConfig `mapstructure:",squash"`
}

// SMTPConfig configures outbound mail. An empty host selects the no-op mailer.
type SMTPConfig struct {
	Host     string `mapstructure:"SMTP_HOST"`
	Port     int    `mapstructure:"SMTP_PORT"`
	Username string `mapstructure:"SMTP_USER"`
	Password string `mapstructure:"SMTP_PASS"`
	From     string `mapstructure:"MAIL_FROM"`
	FromName string `mapstructure:"MAIL_FROM_NAME"`
}

// GeminiConfig configures the document analyzer.
type GeminiConfig struct {
	APIKey  string `mapstructure:"GEMINI_API_KEY"`
	Model   string `mapstructure:"GEMINI_MODEL"`
	BaseURL string `mapstructure:"GEMINI_BASE_URL"`
}

// ArchiveConfig configures the optional S3 copy of uploaded exam documents.
type ArchiveConfig struct {
	Bucket string `mapstructure:"EXAM_ARCHIVE_BUCKET"`
	Prefix string `mapstructure:"EXAM_ARCHIVE_PREFIX"`
}

// SeedConfig holds the credentials of the administrator created by `seed`.
type SeedConfig struct {
	AdminEmail    string `mapstructure:"SEED_ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"SEED_ADMIN_PASSWORD"`
	AdminName     string `mapstructure:"SEED_ADMIN_NAME"`
}

var defaults = map[string]any{
	"APP_ENV":                    "development",
	"APP_PORT":                   "8080",
	"LOG_LEVEL":                  "info",
	"DB_PORT":                    "3306",
	"ACCESS_TOKEN_TTL_MIN":       60,
	"REFRESH_TOKEN_TTL_DAYS":     7,
	"BCRYPT_COST":                10,
	"RESET_TOKEN_TTL":            "1h",
	"FRONTEND_URL":               "http://localhost:5173",
	"CORS_ORIGINS":               "http://localhost:5173",
	"REVIEW_REQUIRE_ASSOCIATION": false,
	"ANALYSIS_TIMEOUT":           "30s",
	"UPLOAD_MAX_BYTES":           10 << 20,
	"REDIS_ADDR":                 "localhost:6379",
	"REDIS_DB":                   0,
	"SMTP_PORT":                  587,
	"MAIL_FROM":                  "noreply@triagify.com",
	"MAIL_FROM_NAME":             "Triagify",
	"GEMINI_MODEL":               "gemini-1.5-flash",
	"GEMINI_BASE_URL":            "https://generativelanguage.googleapis.com/v1beta",
	"EXAM_ARCHIVE_PREFIX":        "exams",
	"REVIEW_AUDIT_LOG":           "logs/review-audit.log",
	"SEED_ADMIN_EMAIL":           "admin@triagify.com",
	"SEED_ADMIN_NAME":            "Administrator",
}

var bound = []string{
	"DB_USER", "DB_PASS", "DB_HOST", "DB_NAME", "JWT_SECRET", "RABBITMQ_URL",
	"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_TLS",
	"SMTP_HOST", "SMTP_USER", "SMTP_PASS", "GEMINI_API_KEY",
	"EXAM_ARCHIVE_BUCKET", "SEED_ADMIN_PASSWORD",
}

// Load reads configuration from the process environment. Required variables
// that are missing produce an error naming them.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	for _, k := range bound {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	cfg.AuthRateLimit = loadRateLimit(v, "RATE_LIMIT", 20, 3*time.Second)
	cfg.UploadRateLimit = loadRateLimit(v, "UPLOAD_RATE_LIMIT", 5, 12*time.Second)
	cfg.Cache = loadCache(v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the variables without a sensible default are set.
func (c *Config) Validate() error {
	var missing []string
	for k, val := range map[string]string{
		"DB_USER":    c.DBUser,
		"DB_HOST":    c.DBHost,
		"DB_NAME":    c.DBName,
		"JWT_SECRET": c.JWTSecret,
	} {
		if val == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if c.AccessTTLMin <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL_MIN must be positive, got %d", c.AccessTTLMin)
	}
	if c.AnalysisTimeout <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT must be positive, got %s", c.AnalysisTimeout)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}
