package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Stats is the single aggregate statistics row.
type Stats struct {
	DomainsBlocked  int
	RequestsBlocked uint64
	RequestsAllowed uint64
	ActiveSources   int
	CustomRules     int
	LastUpdated     *time.Time
}

// GetStats reads the statistics row.
func (db *DB) GetStats() (Stats, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var s Stats
	var last sql.NullString
	err := db.conn.QueryRow(`
		SELECT domains_blocked, requests_blocked, requests_allowed,
		       active_sources, custom_rules, last_updated
		FROM stats WHERE id = 1
	`).Scan(&s.DomainsBlocked, &s.RequestsBlocked, &s.RequestsAllowed,
		&s.ActiveSources, &s.CustomRules, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	s.LastUpdated = parseTime(last)
	return s, nil
}

// PutStats overwrites the statistics row.
func (db *DB) PutStats(s Stats) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		UPDATE stats SET
			domains_blocked = ?, requests_blocked = ?, requests_allowed = ?,
			active_sources = ?, custom_rules = ?, last_updated = ?
		WHERE id = 1
	`, s.DomainsBlocked, s.RequestsBlocked, s.RequestsAllowed,
		s.ActiveSources, s.CustomRules, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}
	return nil
}
