// Package config loads and validates the DomainGuard configuration.
//
// Configuration is a YAML file resolved from (in order) an explicit flag,
// the DOMAINGUARD_CONFIG environment variable, or built-in defaults when
// neither names a file. Individual environment variables override file
// values, which keeps container deployments flag-free.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ModeMemory and ModeHostsFile are the recognized filter backend modes.
const (
	ModeMemory    = "memory"
	ModeHostsFile = "hostsfile"
)

// ResolveConfigPath picks the config file path: explicit flag first, then
// the DOMAINGUARD_CONFIG environment variable. Empty means defaults only.
func ResolveConfigPath(flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv("DOMAINGUARD_CONFIG"))
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Filter: FilterConfig{
			Mode:            ModeMemory,
			RedirectIP:      "0.0.0.0",
			RefreshInterval: "24h",
			FetchTimeout:    "60s",
		},
		Database: DatabaseConfig{Path: "domainguard.db"},
		DNS: DNSConfig{
			Enabled:  true,
			Host:     "0.0.0.0",
			Port:     1053,
			Upstream: []string{"8.8.8.8"},

			UpstreamTimeout: "3s",
		},
		Logging: LoggingConfig{
			Level:            "INFO",
			StructuredFormat: "json",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
		},
	}
}

// Load reads the YAML file at path (defaults only when path is empty),
// applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes the configuration and rejects incoherent settings.
func (cfg *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(cfg.Filter.Mode)) {
	case "", ModeMemory:
		cfg.Filter.Mode = ModeMemory
	case ModeHostsFile:
		cfg.Filter.Mode = ModeHostsFile
		if cfg.Filter.ArtifactPath == "" {
			return errors.New("filter.artifact_path is required in hostsfile mode")
		}
	default:
		return fmt.Errorf("filter.mode must be %q or %q", ModeMemory, ModeHostsFile)
	}

	if cfg.Filter.RedirectIP == "" {
		cfg.Filter.RedirectIP = "0.0.0.0"
	}
	if cfg.Filter.RefreshInterval == "" {
		cfg.Filter.RefreshInterval = "24h"
	}
	if _, err := time.ParseDuration(cfg.Filter.RefreshInterval); err != nil {
		return fmt.Errorf("filter.refresh_interval: %w", err)
	}
	if cfg.Filter.FetchTimeout == "" {
		cfg.Filter.FetchTimeout = "60s"
	}
	if _, err := time.ParseDuration(cfg.Filter.FetchTimeout); err != nil {
		return fmt.Errorf("filter.fetch_timeout: %w", err)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "domainguard.db"
	}

	if cfg.DNS.Enabled {
		if cfg.DNS.Host == "" {
			cfg.DNS.Host = "0.0.0.0"
		}
		if cfg.DNS.Port <= 0 || cfg.DNS.Port > 65535 {
			return errors.New("dns.port must be 1..65535")
		}
		if len(cfg.DNS.Upstream) == 0 {
			cfg.DNS.Upstream = []string{"8.8.8.8"}
		}
		// Strict-order failover caps out at three upstreams.
		if len(cfg.DNS.Upstream) > 3 {
			cfg.DNS.Upstream = cfg.DNS.Upstream[:3]
		}
		if cfg.DNS.UpstreamTimeout == "" {
			cfg.DNS.UpstreamTimeout = "3s"
		}
		if _, err := time.ParseDuration(cfg.DNS.UpstreamTimeout); err != nil {
			return fmt.Errorf("dns.upstream_timeout: %w", err)
		}
		ws, ok := parseWorkers(cfg.DNS.WorkersRaw)
		if !ok {
			return fmt.Errorf("dns.workers: %q is not a count or \"auto\"", cfg.DNS.WorkersRaw)
		}
		cfg.DNS.Workers = ws
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "json"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}

	if cfg.API.Enabled {
		if cfg.API.Host == "" {
			cfg.API.Host = "0.0.0.0"
		}
		if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
			return errors.New("api.port must be 1..65535")
		}
	}

	return nil
}

// RefreshIntervalDuration returns the validated refresh interval.
func (cfg *Config) RefreshIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(cfg.Filter.RefreshInterval)
	return d
}

// FetchTimeoutDuration returns the validated fetch timeout.
func (cfg *Config) FetchTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(cfg.Filter.FetchTimeout)
	return d
}

// UpstreamTimeoutDuration returns the validated upstream exchange timeout.
func (cfg *Config) UpstreamTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(cfg.DNS.UpstreamTimeout)
	return d
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOMAINGUARD_FILTER_MODE"); v != "" {
		cfg.Filter.Mode = v
	}
	if v := os.Getenv("DOMAINGUARD_ARTIFACT_PATH"); v != "" {
		cfg.Filter.ArtifactPath = v
	}
	if v := os.Getenv("DOMAINGUARD_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("DOMAINGUARD_HOST"); v != "" {
		cfg.DNS.Host = v
	}
	if v := os.Getenv("DOMAINGUARD_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DNS.Port = n
		}
	}
	if v := os.Getenv("DOMAINGUARD_WORKERS"); v != "" {
		cfg.DNS.WorkersRaw = v
	}
	if v := os.Getenv("DOMAINGUARD_UPSTREAM_SERVERS"); v != "" {
		servers := strings.Split(v, ",")
		cfg.DNS.Upstream = cfg.DNS.Upstream[:0]
		for _, s := range servers {
			if s = strings.TrimSpace(s); s != "" {
				cfg.DNS.Upstream = append(cfg.DNS.Upstream, s)
			}
		}
	}
	if v := os.Getenv("DOMAINGUARD_DNS_ENABLED"); v != "" {
		cfg.DNS.Enabled = envBool(v, cfg.DNS.Enabled)
	}
	if v := os.Getenv("DOMAINGUARD_API_ENABLED"); v != "" {
		cfg.API.Enabled = envBool(v, cfg.API.Enabled)
	}
	if v := os.Getenv("DOMAINGUARD_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToUpper(v)
	}
}

func envBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
