package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jroosing/domainguard/internal/rules"
)

// InsertRule stores a custom override rule.
func (db *DB) InsertRule(r rules.CustomRule) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(
		"INSERT INTO custom_rules (id, domain, action, app_id, enabled, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		r.ID, r.Domain, r.Action.String(), r.AppID, r.Enabled, formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule %s: %w", r.ID, err)
	}
	return nil
}

// ListRules returns all stored rules, newest first.
func (db *DB) ListRules() ([]rules.CustomRule, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(
		"SELECT id, domain, action, app_id, enabled, created_at FROM custom_rules ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var out []rules.CustomRule
	for rows.Next() {
		var r rules.CustomRule
		var action string
		var created sql.NullString
		if err := rows.Scan(&r.ID, &r.Domain, &action, &r.AppID, &r.Enabled, &created); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.Action, err = rules.ParseAction(action)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		if t := parseTime(created); t != nil {
			r.CreatedAt = *t
		} else {
			r.CreatedAt = time.Time{}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return out, nil
}

// SetRuleEnabled flips one rule's enabled flag.
func (db *DB) SetRuleEnabled(id string, enabled bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec("UPDATE custom_rules SET enabled = ? WHERE id = ?", enabled, id)
	if err != nil {
		return fmt.Errorf("failed to update rule %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: rule %s", ErrNotFound, id)
	}
	return nil
}

// DeleteRule removes one rule.
func (db *DB) DeleteRule(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec("DELETE FROM custom_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: rule %s", ErrNotFound, id)
	}
	return nil
}

// RuleCount counts enabled rules.
func (db *DB) RuleCount() (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM custom_rules WHERE enabled = 1").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return n, nil
}
