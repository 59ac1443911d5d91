package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads and parses the TOML configuration file, applying defaults and
// validation.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absCache, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	cfg.CacheDir = absCache

	absData, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = absData

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 4873)
	v.SetDefault("RegistryURL", "https://registry.npmjs.org")
	v.SetDefault("ChangesFeedURL", "https://replicate.npmjs.com/_changes")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("CacheDir", "./cache")
	v.SetDefault("DataDir", "./data")
	v.SetDefault("PrefetchEnabled", true)
	v.SetDefault("PrefetchConcurrency", 5)
	v.SetDefault("PrefetchMaxPackages", 200)
	v.SetDefault("SyncConcurrency", 5)
	v.SetDefault("SyncPageLimit", 1000)
	v.SetDefault("PollInterval", "10s")
	v.SetDefault("MaxBackoff", "5m")
	v.SetDefault("ShutdownGrace", "5s")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StatsLogPath", "")
}

func applyDefaults(c *Config) {
	if c.ListenPort == 0 {
		c.ListenPort = 4873
	}
	if c.RegistryURL == "" {
		c.RegistryURL = "https://registry.npmjs.org"
	}
	if c.ChangesFeedURL == "" {
		c.ChangesFeedURL = "https://replicate.npmjs.com/_changes"
	}
	if c.UpstreamTimeout.DurationValue() == 0 {
		c.UpstreamTimeout = Duration(30 * time.Second)
	}
	if c.CacheDir == "" {
		c.CacheDir = "./cache"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.PrefetchConcurrency <= 0 {
		c.PrefetchConcurrency = 5
	}
	if c.PrefetchMaxPackages <= 0 {
		c.PrefetchMaxPackages = 200
	}
	if c.SyncConcurrency <= 0 {
		c.SyncConcurrency = 5
	}
	if c.SyncPageLimit <= 0 {
		c.SyncPageLimit = 1000
	}
	if c.PollInterval.DurationValue() == 0 {
		c.PollInterval = Duration(10 * time.Second)
	}
	if c.MaxBackoff.DurationValue() == 0 {
		c.MaxBackoff = Duration(5 * time.Minute)
	}
	if c.ShutdownGrace.DurationValue() == 0 {
		c.ShutdownGrace = Duration(5 * time.Second)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("cannot parse duration field: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("unsupported duration type: %T", v)
		}
	}
}
