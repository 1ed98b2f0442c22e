package engine

import (
	"context"
	"errors"

	"github.com/jroosing/domainguard/internal/blocklist"
	"github.com/jroosing/domainguard/internal/database"
	"github.com/jroosing/domainguard/internal/matcher"
	"github.com/jroosing/domainguard/internal/rules"
)

// MemoryBackend serves decisions straight from the live matcher and rule
// set. This is the interception-path mode: queries are answered in-memory
// and changes take effect on the next snapshot swap.
type MemoryBackend struct {
	manager *blocklist.Manager
}

// NewMemoryBackend wraps an aggregation manager.
func NewMemoryBackend(m *blocklist.Manager) (*MemoryBackend, error) {
	if m == nil {
		return nil, ErrBadMode
	}
	return &MemoryBackend{manager: m}, nil
}

func (b *MemoryBackend) Initialize(ctx context.Context) error {
	return b.manager.Bootstrap(ctx)
}

func (b *MemoryBackend) LoadBlocklists(ctx context.Context) error {
	failed := b.manager.RefreshAll(ctx)
	errs := make([]error, 0, len(failed))
	for _, f := range failed {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

func (b *MemoryBackend) ShouldBlock(domain, appID string) rules.Decision {
	return b.manager.Resolver().Decide(domain, appID)
}

func (b *MemoryBackend) ApplyChanges(ctx context.Context) error {
	return b.manager.ApplyChanges(ctx)
}

// Revert stops filtering: an empty snapshot allows everything while the
// persisted state stays intact for the next Initialize.
func (b *MemoryBackend) Revert(context.Context) error {
	b.manager.Resolver().SwapMatcher(matcher.New())
	b.manager.Resolver().SwapRules(rules.NewSet(nil))
	return nil
}

func (b *MemoryBackend) Statistics() (database.Stats, error) {
	return b.manager.Stats()
}

var _ Backend = (*MemoryBackend)(nil)
