package config

import (
	"strconv"
	"strings"
)

// WorkersMode specifies how the DNS front-end worker count is determined.
type WorkersMode int

const (
	// WorkersAuto sizes the listener pool from available CPUs.
	WorkersAuto WorkersMode = iota
	// WorkersFixed uses a specific listener count.
	WorkersFixed
)

// WorkerSetting represents the workers configuration.
type WorkerSetting struct {
	Mode  WorkersMode
	Value int
}

// String returns the string representation of the worker setting.
func (w WorkerSetting) String() string {
	if w.Mode == WorkersAuto {
		return "auto"
	}
	return strconv.Itoa(w.Value)
}

func parseWorkers(raw string) (WorkerSetting, bool) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" || raw == "auto" {
		return WorkerSetting{Mode: WorkersAuto}, true
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return WorkerSetting{Mode: WorkersFixed, Value: n}, true
	}
	return WorkerSetting{}, false
}

// FilterConfig selects the filtering backend and its knobs.
type FilterConfig struct {
	// Mode is "memory" (in-process interception) or "hostsfile"
	// (generated hosts-format artifact).
	Mode            string `yaml:"mode"`
	ArtifactPath    string `yaml:"artifact_path"`
	RedirectIP      string `yaml:"redirect_ip"`
	RefreshInterval string `yaml:"refresh_interval"`
	FetchTimeout    string `yaml:"fetch_timeout"`
}

// DatabaseConfig locates the SQLite state file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DNSConfig contains the DNS front-end settings.
type DNSConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	Workers    WorkerSetting `yaml:"-"`
	WorkersRaw string        `yaml:"workers"`
	Upstream   []string      `yaml:"upstream"`
	// UpstreamTimeout bounds one forwarded exchange (e.g. "3s").
	UpstreamTimeout string `yaml:"upstream_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level            string            `yaml:"level"`
	Structured       bool              `yaml:"structured"`
	StructuredFormat string            `yaml:"structured_format"`
	IncludePID       bool              `yaml:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields,omitempty"`
}

// APIConfig contains management API settings.
//
// Note: APIKey is a secret and is never echoed back by API endpoints.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// Config is the root configuration structure.
type Config struct {
	Filter   FilterConfig   `yaml:"filter"`
	Database DatabaseConfig `yaml:"database"`
	DNS      DNSConfig      `yaml:"dns"`
	Logging  LoggingConfig  `yaml:"logging"`
	API      APIConfig      `yaml:"api"`
}
