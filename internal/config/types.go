package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration provides flexible decoding, accepting either a Go duration string
// or a bare integer number of seconds.
type Duration time.Duration

// UnmarshalText lets viper decode "30s", "5m", or a plain integer of seconds.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue returns the underlying time.Duration.
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt supports decimal or 0x-prefixed hex strings.
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// Config is the whole of the runtime configuration, parsed from a single
// TOML file. There is one proxy per process, fronting one upstream registry.
type Config struct {
	ListenPort int `mapstructure:"ListenPort"`

	RegistryURL     string   `mapstructure:"RegistryURL"`
	ChangesFeedURL  string   `mapstructure:"ChangesFeedURL"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`

	CacheDir string `mapstructure:"CacheDir"`
	DataDir  string `mapstructure:"DataDir"`

	PrefetchEnabled     bool `mapstructure:"PrefetchEnabled"`
	PrefetchConcurrency int  `mapstructure:"PrefetchConcurrency"`
	PrefetchMaxPackages int  `mapstructure:"PrefetchMaxPackages"`

	SyncConcurrency int      `mapstructure:"SyncConcurrency"`
	SyncPageLimit   int      `mapstructure:"SyncPageLimit"`
	PollInterval    Duration `mapstructure:"PollInterval"`
	MaxBackoff      Duration `mapstructure:"MaxBackoff"`
	ShutdownGrace   Duration `mapstructure:"ShutdownGrace"`

	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	StatsLogPath string `mapstructure:"StatsLogPath"`
}
