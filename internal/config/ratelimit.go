package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RateLimitConfig configures one Redis token bucket. Each profile reads its
// variables under its own prefix, e.g. RATE_LIMIT_CAPACITY or
// UPLOAD_RATE_LIMIT_CAPACITY.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

func loadRateLimit(v *viper.Viper, prefix string, capacity int, every time.Duration) RateLimitConfig {
	key := func(s string) string { return prefix + "_" + s }
	v.SetDefault(key("ENABLED"), true)
	v.SetDefault(key("CAPACITY"), capacity)
	v.SetDefault(key("REFILL_TOKENS"), 1)
	v.SetDefault(key("REFILL_INTERVAL"), every)
	v.SetDefault(key("TTL"), 10*time.Minute)
	v.SetDefault(key("KEY_STRATEGY"), "ip_route")
	v.SetDefault(key("DEBUG"), false)

	def := RateLimitConfig{
		Enabled:        v.GetBool(key("ENABLED")),
		Capacity:       v.GetInt(key("CAPACITY")),
		RefillTokens:   v.GetInt(key("REFILL_TOKENS")),
		RefillInterval: v.GetDuration(key("REFILL_INTERVAL")),
		TTL:            v.GetDuration(key("TTL")),
		KeyStrategy:    v.GetString(key("KEY_STRATEGY")),
		Prefix:         "rl:" + strings.ToLower(prefix),
		Debug:          v.GetBool(key("DEBUG")),
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	if minTTL := 5 * def.RefillInterval; def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}
