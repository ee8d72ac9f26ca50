// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Config holds the client configuration.
type Config struct {
	// Mode is the operating mode: strict or dev.
	Mode string `toml:"mode"`

	// ServiceURL is the base URL of the share service.
	// Example: "https://share.example.com"
	ServiceURL string `toml:"service_url"`

	// OutboundHTTP configuration.
	OutboundHTTP OutboundHTTPConfig `toml:"outbound_http"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging"`
}

// OutboundHTTPConfig holds outbound HTTP client settings.
type OutboundHTTPConfig struct {
	// SSRFMode is "strict" (block private/loopback targets) or "off".
	SSRFMode string `toml:"ssrf_mode"`

	// TimeoutMS is the total request timeout in milliseconds.
	TimeoutMS int `toml:"timeout_ms"`

	// ConnectTimeoutMS is the dial timeout in milliseconds.
	ConnectTimeoutMS int `toml:"connect_timeout_ms"`

	// MaxResponseBytes bounds response bodies read from the service.
	MaxResponseBytes int64 `toml:"max_response_bytes"`

	// InsecureSkipVerify disables TLS certificate verification (dev only).
	InsecureSkipVerify bool `toml:"insecure_skip_verify"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`

	// Format is "json" or "text".
	Format string `toml:"format"`
}

// validateEnums validates enum-like config fields.
func validateEnums(cfg *Config) error {
	switch cfg.OutboundHTTP.SSRFMode {
	case "strict", "off":
	default:
		return fmt.Errorf("invalid outbound_http.ssrf_mode %q: must be one of strict, off", cfg.OutboundHTTP.SSRFMode)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of debug, info, warn, error", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format %q: must be one of json, text", cfg.Logging.Format)
	}

	return nil
}

// validateServiceURL checks the service_url config value when set.
// Must be an absolute URL with http/https scheme and a host; a base path is
// allowed, userinfo, query, and fragment are not. Whitespace is rejected,
// not trimmed.
func validateServiceURL(cfg *Config) error {
	if cfg.ServiceURL == "" {
		return nil
	}

	raw := cfg.ServiceURL

	if raw != strings.TrimSpace(raw) {
		return fmt.Errorf("invalid service_url %q: must not contain leading or trailing whitespace", raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid service_url %q: %w", raw, err)
	}

	if !u.IsAbs() {
		return fmt.Errorf("invalid service_url %q: must be an absolute URL with http or https scheme", raw)
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("invalid service_url %q: scheme must be http or https, got %q", raw, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("invalid service_url %q: must include a host", raw)
	}

	if u.User != nil {
		return fmt.Errorf("invalid service_url %q: must not include userinfo", raw)
	}

	if u.RawQuery != "" {
		return fmt.Errorf("invalid service_url %q: must not include a query string", raw)
	}

	if u.Fragment != "" {
		return fmt.Errorf("invalid service_url %q: must not include a fragment", raw)
	}

	return nil
}
