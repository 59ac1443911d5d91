package config

import (
	"errors"
	"net/url"
)

// Validate performs semantic checks so an invalid config never reaches startup.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "must be in 1-65535")
	}
	if c.CacheDir == "" {
		return newFieldError("CacheDir", "must not be empty")
	}
	if c.DataDir == "" {
		return newFieldError("DataDir", "must not be empty")
	}
	if err := validateUpstream(c.RegistryURL); err != nil {
		return newFieldError("RegistryURL", err.Error())
	}
	if err := validateUpstream(c.ChangesFeedURL); err != nil {
		return newFieldError("ChangesFeedURL", err.Error())
	}
	if c.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "must be greater than 0")
	}
	if c.PrefetchConcurrency <= 0 {
		return newFieldError("PrefetchConcurrency", "must be greater than 0")
	}
	if c.PrefetchMaxPackages <= 0 {
		return newFieldError("PrefetchMaxPackages", "must be greater than 0")
	}
	if c.SyncConcurrency <= 0 {
		return newFieldError("SyncConcurrency", "must be greater than 0")
	}
	if c.SyncPageLimit <= 0 {
		return newFieldError("SyncPageLimit", "must be greater than 0")
	}
	if c.PollInterval.DurationValue() <= 0 {
		return newFieldError("PollInterval", "must be greater than 0")
	}
	if c.MaxBackoff.DurationValue() <= 0 {
		return newFieldError("MaxBackoff", "must be greater than 0")
	}

	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("missing upstream URL")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("only http/https upstreams are supported: " + raw)
	}
	if parsed.Host == "" {
		return errors.New("upstream missing host: " + raw)
	}
	return nil
}
