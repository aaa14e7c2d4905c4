package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/spilink/internal/link"
	"github.com/danmuck/spilink/internal/transport"
)

func applyBridge(meta toml.MetaData, raw bridgeFile, cfg *transport.Config, level *string) error {
	if meta.IsDefined("addr") {
		cfg.Address = strings.TrimSpace(raw.Addr)
	}
	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
	} {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := parseDuration(d.key, d.raw)
		if err != nil {
			return err
		}
		*d.dst = v
	}
	if meta.IsDefined("security_mode") {
		cfg.SecurityMode = transport.SecurityMode(strings.TrimSpace(raw.SecurityMode))
	}
	if meta.IsDefined("tls_enabled") {
		cfg.TLS.Enabled = raw.TLSEnabled
	}
	if meta.IsDefined("tls_mutual") {
		cfg.TLS.Mutual = raw.TLSMutual
	}
	if meta.IsDefined("tls_cert_file") {
		cfg.TLS.CertFile = strings.TrimSpace(raw.TLSCertFile)
	}
	if meta.IsDefined("tls_key_file") {
		cfg.TLS.KeyFile = strings.TrimSpace(raw.TLSKeyFile)
	}
	if meta.IsDefined("tls_ca_file") {
		cfg.TLS.CAFile = strings.TrimSpace(raw.TLSCAFile)
	}
	if meta.IsDefined("tls_server_name") {
		cfg.TLS.ServerName = strings.TrimSpace(raw.TLSServerName)
	}
	if meta.IsDefined("log_level") {
		*level = strings.TrimSpace(raw.LogLevel)
	}
	return nil
}

func applyLink(meta toml.MetaData, raw clientFile, cfg *link.Config) error {
	if meta.IsDefined("max_idle_polls") {
		cfg.MaxIdlePolls = raw.MaxIdlePolls
	}
	if meta.IsDefined("idle_backoff") {
		v, err := parseDuration("idle_backoff", raw.IdleBackoff)
		if err != nil {
			return err
		}
		cfg.IdleBackoff.InitialDelay = v
	}
	if meta.IsDefined("idle_backoff_max") {
		v, err := parseDuration("idle_backoff_max", raw.IdleBackoffMax)
		if err != nil {
			return err
		}
		cfg.IdleBackoff.MaxDelay = v
	}
	if meta.IsDefined("idle_backoff_multiplier") {
		cfg.IdleBackoff.Multiplier = raw.IdleBackoffFactor
	}
	if meta.IsDefined("idle_backoff_jitter") {
		cfg.IdleBackoff.Jitter = raw.IdleBackoffJitter
	}
	if meta.IsDefined("max_message_size") {
		cfg.MaxMessageSize = raw.MaxMessageSize
	}
	return nil
}

// IntervalDuration returns the parsed publish interval.
func (c SimConfig) IntervalDuration() time.Duration {
	d, _ := parseDuration("interval", c.Interval)
	return d
}

func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must not be negative", key)
	}
	return d, nil
}
