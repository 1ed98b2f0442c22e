package models

import "time"

// FilterStatsResponse contains the aggregate filtering statistics.
type FilterStatsResponse struct {
	DomainsBlocked  int    `json:"domains_blocked"`
	RequestsBlocked uint64 `json:"requests_blocked"`
	RequestsAllowed uint64 `json:"requests_allowed"`
	ActiveSources   int    `json:"active_sources"`
	CustomRules     int    `json:"custom_rules"`
}

// ServerStatsResponse contains runtime statistics.
type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	GoRoutines    int       `json:"goroutines"`
	MemoryAllocMB float64   `json:"memory_alloc_mb"`
	NumCPU        int       `json:"num_cpu"`

	// Host-level figures, best effort.
	SystemMemUsedPct float64 `json:"system_mem_used_pct,omitempty"`
	SystemUptimeSec  uint64  `json:"system_uptime_sec,omitempty"`

	FilterStats *FilterStatsResponse `json:"filter_stats,omitempty"`
}
