package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Source is one named blocklist origin.
type Source struct {
	ID          string
	Name        string
	URL         string
	Enabled     bool
	LastUpdated *time.Time
	DomainCount int
	ETag        string
}

// InsertSource registers a new source. The enabled flag is stored as
// given (bootstrap seeding enables one source; user-added sources start
// disabled). A duplicate id is an invariant violation and fails fast.
func (db *DB) InsertSource(s Source) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(
		"INSERT INTO sources (id, name, url, enabled, etag) VALUES (?, ?, ?, ?, ?)",
		s.ID, s.Name, s.URL, s.Enabled, s.ETag,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: %s", ErrDuplicateID, s.ID)
		}
		return fmt.Errorf("failed to insert source %s: %w", s.ID, err)
	}
	return nil
}

// GetSource returns one source by id.
func (db *DB) GetSource(id string) (Source, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(
		"SELECT id, name, url, enabled, last_updated, domain_count, etag FROM sources WHERE id = ?",
		id,
	)
	s, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Source{}, fmt.Errorf("%w: source %s", ErrNotFound, id)
	}
	if err != nil {
		return Source{}, fmt.Errorf("failed to get source %s: %w", id, err)
	}
	return s, nil
}

// ListSources returns all sources ordered by name.
func (db *DB) ListSources() ([]Source, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(
		"SELECT id, name, url, enabled, last_updated, domain_count, etag FROM sources ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sources: %w", err)
	}
	return sources, nil
}

// SetSourceEnabled flips the enabled flag.
func (db *DB) SetSourceEnabled(id string, enabled bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec("UPDATE sources SET enabled = ? WHERE id = ?", enabled, id)
	if err != nil {
		return fmt.Errorf("failed to update source %s: %w", id, err)
	}
	return db.requireRow(res, id)
}

// DeleteSource removes source metadata; its domain contributions cascade.
func (db *DB) DeleteSource(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec("DELETE FROM sources WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete source %s: %w", id, err)
	}
	return db.requireRow(res, id)
}

// ReplaceSourceDomains atomically replaces one source's contribution:
// delete-by-source then bulk insert, plus metadata update, in a single
// transaction. Either the whole replacement lands or none of it does.
func (db *DB) ReplaceSourceDomains(id string, domains []string, etag string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM source_domains WHERE source_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear domains for source %s: %w", id, err)
	}

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO source_domains (source_id, domain) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare domain insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range domains {
		if _, err := stmt.Exec(id, d); err != nil {
			return fmt.Errorf("failed to insert domain %s for source %s: %w", d, id, err)
		}
	}

	res, err := tx.Exec(
		"UPDATE sources SET last_updated = ?, domain_count = ?, etag = ? WHERE id = ?",
		formatTime(time.Now()), len(domains), etag, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update source %s metadata: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: source %s", ErrNotFound, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit replacement for source %s: %w", id, err)
	}
	return nil
}

// DomainsForSource returns one source's stored contribution.
func (db *DB) DomainsForSource(id string) ([]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.queryDomains("SELECT domain FROM source_domains WHERE source_id = ?", id)
}

// EnabledDomains returns the union of all enabled sources' domains,
// deduplicated by the query.
func (db *DB) EnabledDomains() ([]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.queryDomains(`
		SELECT DISTINCT sd.domain
		FROM source_domains sd
		JOIN sources s ON s.id = sd.source_id
		WHERE s.enabled = 1
	`)
}

// DistinctDomainCount counts distinct domains across enabled sources.
func (db *DB) DistinctDomainCount() (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var n int
	err := db.conn.QueryRow(`
		SELECT COUNT(DISTINCT sd.domain)
		FROM source_domains sd
		JOIN sources s ON s.id = sd.source_id
		WHERE s.enabled = 1
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count domains: %w", err)
	}
	return n, nil
}

func (db *DB) queryDomains(query string, args ...any) ([]string, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating domains: %w", err)
	}
	return domains, nil
}

func (db *DB) requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: source %s", ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(r rowScanner) (Source, error) {
	var s Source
	var last sql.NullString
	if err := r.Scan(&s.ID, &s.Name, &s.URL, &s.Enabled, &last, &s.DomainCount, &s.ETag); err != nil {
		return Source{}, err
	}
	s.LastUpdated = parseTime(last)
	return s, nil
}
