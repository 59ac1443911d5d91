package config

import (
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := testConfigPath(t, "valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PollInterval.DurationValue() == 0 {
		t.Fatalf("PollInterval should have a default value")
	}
	if cfg.CacheDir == "" {
		t.Fatalf("CacheDir should be preserved")
	}
	if cfg.ListenPort != 4873 {
		t.Fatalf("ListenPort should be parsed from file, got %d", cfg.ListenPort)
	}
	if cfg.PrefetchConcurrency != 5 {
		t.Fatalf("PrefetchConcurrency should default to 5, got %d", cfg.PrefetchConcurrency)
	}
}

func TestValidateRejectsBadScheme(t *testing.T) {
	cfgPath := testConfigPath(t, "missing.toml")

	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("invalid registry scheme should return an error")
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("out-of-range ListenPort should error")
	}
}

func TestValidateRequiresPositiveConcurrency(t *testing.T) {
	cfg := validConfig()
	cfg.PrefetchConcurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("zero PrefetchConcurrency should error")
	}
}

func TestValidateRequiresHTTPUpstream(t *testing.T) {
	cfg := validConfig()
	cfg.ChangesFeedURL = "not-a-url"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("non-http changes feed URL should error")
	}
}

func validConfig() *Config {
	return &Config{
		ListenPort:          4873,
		RegistryURL:         "https://registry.npmjs.org",
		ChangesFeedURL:      "https://replicate.npmjs.com/_changes",
		UpstreamTimeout:     Duration(30 * time.Second),
		CacheDir:            "./cache",
		DataDir:             "./data",
		PrefetchConcurrency: 5,
		PrefetchMaxPackages: 200,
		SyncConcurrency:     5,
		SyncPageLimit:       1000,
		PollInterval:        Duration(10 * time.Second),
		MaxBackoff:          Duration(5 * time.Minute),
		ShutdownGrace:       Duration(5 * time.Second),
	}
}
