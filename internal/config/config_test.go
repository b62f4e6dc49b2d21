package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "triagify")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_NAME", "triagify")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.AccessTTLMin != 60 {
		t.Errorf("expected 60 minute tokens, got %d", cfg.AccessTTLMin)
	}
	if cfg.ResetTokenTTL != time.Hour {
		t.Errorf("expected 1h reset tokens, got %s", cfg.ResetTokenTTL)
	}
	if cfg.ReviewRequireAssociation {
		t.Error("review association check should be off by default")
	}
	if cfg.SMTP.From != "noreply@triagify.com" || cfg.SMTP.Port != 587 {
		t.Errorf("unexpected smtp defaults: %+v", cfg.SMTP)
	}
	if !cfg.AuthRateLimit.Enabled || cfg.AuthRateLimit.Capacity != 20 {
		t.Errorf("unexpected auth rate limit: %+v", cfg.AuthRateLimit)
	}
	if cfg.UploadRateLimit.Prefix != "rl:upload_rate_limit" {
		t.Errorf("unexpected upload prefix %q", cfg.UploadRateLimit.Prefix)
	}
	if !cfg.Cache.Methods["GET"] {
		t.Error("expected GET to be cached")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_PORT", "9000")
	t.Setenv("REVIEW_REQUIRE_ASSOCIATION", "true")
	t.Setenv("ANALYSIS_TIMEOUT", "5s")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("UPLOAD_RATE_LIMIT_CAPACITY", "2")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9000" || !cfg.ReviewRequireAssociation || cfg.AnalysisTimeout != 5*time.Second {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.UploadRateLimit.Capacity != 2 {
		t.Errorf("expected upload capacity 2, got %d", cfg.UploadRateLimit.Capacity)
	}
	if got := cfg.Redis.Address(); got != "cache:6380" {
		t.Errorf("expected cache:6380, got %s", got)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing variables")
	}
	if !strings.Contains(err.Error(), "DB_HOST") || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Errorf("error should name missing variables: %v", err)
	}
}
