package database

import "fmt"

// defaultSources is the bootstrap source set seeded into a fresh
// database. All are disabled except the first, so a new install filters
// usefully out of the box without fetching every list.
var defaultSources = []Source{
	{
		ID:      "stevenblack-unified",
		Name:    "StevenBlack Unified",
		URL:     "https://raw.githubusercontent.com/StevenBlack/hosts/master/hosts",
		Enabled: true,
	},
	{
		ID:   "adaway",
		Name: "AdAway",
		URL:  "https://adaway.org/hosts.txt",
	},
	{
		ID:   "pgl-yoyo",
		Name: "Peter Lowe's Ad and tracking servers",
		URL:  "https://pgl.yoyo.org/adservers/serverlist.php?hostformat=hosts&mimetype=plaintext",
	},
	{
		ID:   "someonewhocares",
		Name: "Dan Pollock's hosts",
		URL:  "https://someonewhocares.org/hosts/zero/hosts",
	},
}

// SeedDefaults inserts the bootstrap sources into an empty database.
// A database that already has sources is left untouched.
func (db *DB) SeedDefaults() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM sources").Scan(&n); err != nil {
		return fmt.Errorf("failed to count sources: %w", err)
	}
	if n > 0 {
		return nil
	}

	stmt, err := db.conn.Prepare(
		"INSERT INTO sources (id, name, url, enabled, etag) VALUES (?, ?, ?, ?, '')",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare source seed: %w", err)
	}
	defer stmt.Close()

	for _, s := range defaultSources {
		if _, err := stmt.Exec(s.ID, s.Name, s.URL, s.Enabled); err != nil {
			return fmt.Errorf("failed to seed source %s: %w", s.ID, err)
		}
	}
	return nil
}
