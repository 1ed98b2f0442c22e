// Package engine exposes the filtering capability set behind a backend
// strategy: the same decision logic can drive an in-memory interception
// path or a generated system hosts-file artifact.
package engine

import (
	"context"
	"errors"

	"github.com/jroosing/domainguard/internal/database"
	"github.com/jroosing/domainguard/internal/rules"
)

// ErrBadMode reports a backend initialized with an incompatible
// configuration. This is a programming/configuration error, not a
// transient condition, and is never swallowed.
var ErrBadMode = errors.New("incompatible backend configuration")

// Backend is the capability set shared by both filtering modes.
//
// ShouldBlock is the hot query path: pure in-memory, never suspends,
// never fails outward. Everything else is the management path and may
// block on network or storage.
type Backend interface {
	// Initialize prepares the backend from persisted state.
	Initialize(ctx context.Context) error

	// LoadBlocklists refreshes every enabled source. Per-source failures
	// are isolated; the returned error aggregates them after all sources
	// have been attempted.
	LoadBlocklists(ctx context.Context) error

	// ShouldBlock resolves one query.
	ShouldBlock(domain, appID string) rules.Decision

	// ApplyChanges is the explicit commit point: after it returns nil,
	// the matcher, persisted domain set, any derived artifact, and the
	// statistics row are mutually consistent.
	ApplyChanges(ctx context.Context) error

	// Revert withdraws the backend's effect (stop filtering / restore
	// the pristine artifact).
	Revert(ctx context.Context) error

	// Statistics returns the aggregate statistics snapshot.
	Statistics() (database.Stats, error)
}
