// Package config reads the faceitfinder settings out of viper and checks
// them.
package config

import (
	"fmt"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
	"github.com/vscltools/faceitfinder/pkg/cache"
	"github.com/vscltools/faceitfinder/pkg/hostsite"
	"github.com/vscltools/faceitfinder/pkg/platforms/faceit"
	"github.com/vscltools/faceitfinder/pkg/platforms/opendota"
	"github.com/vscltools/faceitfinder/pkg/polling"
	"github.com/vscltools/faceitfinder/pkg/resolver"
	"github.com/vscltools/faceitfinder/pkg/whttp"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Proxy       string
	HTTPTimeout time.Duration

	RetryAttempts  int `validate:"required|min:1|max:10"`
	RetryBaseDelay time.Duration

	FaceitBaseURL     string `validate:"required|fullUrl"`
	FaceitGame        string `validate:"required"`
	FaceitSearchLimit int    `validate:"required|min:1|max:100"`
	OpenDotaBaseURL   string `validate:"required|fullUrl"`

	AccountLabels []string

	CacheTTL      time.Duration
	CacheBackend  string `validate:"required|in:sqlite,redis,memory"`
	CacheDBPath   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int `validate:"min:0|max:15"`
	RedisPrefix   string

	BatchSize  int `validate:"required|min:1|max:20"`
	BatchPause time.Duration
	// StepDelay below zero turns the pause off.
	StepDelay time.Duration

	Listen   string `validate:"required"`
	Username string
	Password string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("proxy", "")
	v.SetDefault("http.timeout", whttp.DEFAULT_TIMEOUT)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", 500*time.Millisecond)

	v.SetDefault("faceit.base_url", faceit.FACEIT_API_BASE)
	v.SetDefault("faceit.game", faceit.DEFAULT_GAME)
	v.SetDefault("faceit.search_limit", faceit.DEFAULT_SEARCH_LIMIT)
	v.SetDefault("opendota.base_url", opendota.OPENDOTA_API_BASE)

	v.SetDefault("host.account_labels", hostsite.DefaultAccountLabels)

	v.SetDefault("cache.ttl", cache.DefaultTTL)
	v.SetDefault("cache.backend", BackendSQLite)
	v.SetDefault("cache.dbpath", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "faceitfinder:")

	v.SetDefault("pacing.batch_size", polling.DefaultBatchSize)
	v.SetDefault("pacing.batch_pause", polling.DefaultBatchPause)
	v.SetDefault("pacing.step_delay", resolver.DefaultStepDelay)

	v.SetDefault("server.listen", "127.0.0.1:8787")
	v.SetDefault("server.username", "")
	v.SetDefault("server.password", "")
}

// Load builds a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Proxy:       v.GetString("proxy"),
		HTTPTimeout: v.GetDuration("http.timeout"),

		RetryAttempts:  v.GetInt("retry.max_attempts"),
		RetryBaseDelay: v.GetDuration("retry.base_delay"),

		FaceitBaseURL:     v.GetString("faceit.base_url"),
		FaceitGame:        v.GetString("faceit.game"),
		FaceitSearchLimit: v.GetInt("faceit.search_limit"),
		OpenDotaBaseURL:   v.GetString("opendota.base_url"),

		AccountLabels: v.GetStringSlice("host.account_labels"),

		CacheTTL:      v.GetDuration("cache.ttl"),
		CacheBackend:  v.GetString("cache.backend"),
		CacheDBPath:   v.GetString("cache.dbpath"),
		RedisAddr:     v.GetString("redis.addr"),
		RedisPassword: v.GetString("redis.password"),
		RedisDB:       v.GetInt("redis.db"),
		RedisPrefix:   v.GetString("redis.prefix"),

		BatchSize:  v.GetInt("pacing.batch_size"),
		BatchPause: v.GetDuration("pacing.batch_pause"),
		StepDelay:  v.GetDuration("pacing.step_delay"),

		Listen:   v.GetString("server.listen"),
		Username: v.GetString("server.username"),
		Password: v.GetString("server.password"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	val := validate.Struct(c)
	if !val.Validate() {
		return fmt.Errorf("invalid config: %s", val.Errors.Error())
	}

	durations := map[string]time.Duration{
		"http.timeout":       c.HTTPTimeout,
		"retry.base_delay":   c.RetryBaseDelay,
		"cache.ttl":          c.CacheTTL,
		"pacing.batch_pause": c.BatchPause,
	}
	for key, d := range durations {
		if d < 0 {
			return fmt.Errorf("invalid config: %s must not be negative", key)
		}
	}
	if c.CacheTTL == 0 {
		return fmt.Errorf("invalid config: cache.ttl must be positive")
	}
	if c.CacheBackend == BackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("invalid config: redis.addr is required for the redis backend")
	}
	return nil
}

func (c *Config) RetryPolicy() whttp.RetryPolicy {
	return whttp.RetryPolicy{MaxAttempts: c.RetryAttempts, BaseDelay: c.RetryBaseDelay}
}
