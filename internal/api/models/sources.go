package models

// Source describes one configured blocklist source.
type Source struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	Enabled     bool    `json:"enabled"`
	DomainCount int     `json:"domain_count"`
	LastUpdated *string `json:"last_updated,omitempty"`
}

// SourcesResponse contains all configured sources.
type SourcesResponse struct {
	Sources []Source `json:"sources"`
	Count   int      `json:"count"`
}

// AddSourceRequest registers a new blocklist source.
type AddSourceRequest struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
	URL  string `json:"url" binding:"required,url"`
}

// SourceEnabledRequest toggles a source on or off.
type SourceEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// RefreshResponse reports the outcome of a refresh-all run.
type RefreshResponse struct {
	Status string   `json:"status"`
	Failed []string `json:"failed,omitempty"`
}
