// Package blocklist owns the lifecycle of the aggregated blocklist: the
// source registry, fetch/parse/insert orchestration, and the consistency
// of the live matcher with persisted state.
//
// Consistency model: the live matcher always equals the union of every
// enabled source's persisted domains plus global block-action custom
// rules. Insert-only growth (a per-source refresh) mutates the live trie
// in place, which is safe under concurrent reads. Anything that shrinks
// the set (disable, delete) goes through Rebuild, which builds a fresh
// trie aside and swaps one pointer, so concurrent queries observe either
// the old or the new state and never a half-populated tree.
package blocklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jroosing/domainguard/internal/database"
	"github.com/jroosing/domainguard/internal/hostlist"
	"github.com/jroosing/domainguard/internal/matcher"
	"github.com/jroosing/domainguard/internal/metrics"
	"github.com/jroosing/domainguard/internal/rules"
)

// Store is the persistence collaborator the manager needs. *database.DB
// satisfies it; tests substitute fakes.
type Store interface {
	InsertSource(s database.Source) error
	GetSource(id string) (database.Source, error)
	ListSources() ([]database.Source, error)
	SetSourceEnabled(id string, enabled bool) error
	DeleteSource(id string) error
	ReplaceSourceDomains(id string, domains []string, etag string) error
	DomainsForSource(id string) ([]string, error)
	EnabledDomains() ([]string, error)
	DistinctDomainCount() (int, error)
	ListRules() ([]rules.CustomRule, error)
	RuleCount() (int, error)
	GetStats() (database.Stats, error)
	PutStats(s database.Stats) error
}

// Manager coordinates sources, the persistence collaborator, and the
// resolver's matcher/rule snapshots. State mutations are serialized by a
// mutex; network fetches run outside it so independent refreshes overlap
// and management reads never wait on a slow source. The query path never
// passes through here.
type Manager struct {
	logger   *slog.Logger
	store    Store
	fetcher  Fetcher
	resolver *rules.Resolver

	mu sync.Mutex // serializes management-path mutations
}

// NewManager wires the manager. All dependencies are required.
func NewManager(store Store, fetcher Fetcher, resolver *rules.Resolver, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger, store: store, fetcher: fetcher, resolver: resolver}
}

// Resolver exposes the resolver for the query path and API wiring.
func (m *Manager) Resolver() *rules.Resolver {
	return m.resolver
}

// Bootstrap loads persisted state into memory at startup: restores the
// statistics counters, materializes the rule set, and builds the first
// matcher snapshot.
func (m *Manager) Bootstrap(ctx context.Context) error {
	stats, err := m.store.GetStats()
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	m.resolver.RestoreCounters(stats.RequestsBlocked, stats.RequestsAllowed)

	if err := m.ReloadRules(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := m.Rebuild(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return nil
}

// AddSource registers a new, disabled-by-default source. A duplicate id
// is a caller error and fails fast.
func (m *Manager) AddSource(id, name, url string) error {
	if id == "" || url == "" {
		return errors.New("source id and url are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.InsertSource(database.Source{ID: id, Name: name, URL: url}); err != nil {
		return err
	}
	m.logger.Info("source added", "source", id, "url", url)
	return m.updateStatsLocked()
}

// Refresh fetches, parses, and atomically replaces one source's
// contribution. The fetch and parse run without the management lock so
// refreshes of independent sources overlap; only the replace-and-commit
// step is serialized. An empty fetch or parse result fails the refresh
// without touching the source's previous state: a refresh that produced
// nothing must not blank out a previously-good list. Cancellation is
// honored only before the replace-and-commit step.
func (m *Manager) Refresh(ctx context.Context, sourceID string) error {
	start := time.Now()

	src, err := m.store.GetSource(sourceID)
	if err != nil {
		return err
	}
	res, etag, err := m.fetchAndParse(ctx, src)
	if err != nil || res == nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commitRefreshLocked(ctx, sourceID, res, etag, start)
}

// refreshLocked is Refresh for callers that already hold m.mu (Toggle's
// enable-with-no-domains path). The fetch runs under the lock there; a
// single interactive toggle does not need to overlap anything.
func (m *Manager) refreshLocked(ctx context.Context, sourceID string) error {
	start := time.Now()

	src, err := m.store.GetSource(sourceID)
	if err != nil {
		return err
	}
	res, etag, err := m.fetchAndParse(ctx, src)
	if err != nil || res == nil {
		return err
	}
	return m.commitRefreshLocked(ctx, sourceID, res, etag, start)
}

// fetchAndParse is the lock-free half of a refresh. A nil result with a
// nil error means the source reported not-modified.
func (m *Manager) fetchAndParse(ctx context.Context, src database.Source) (*hostlist.Result, string, error) {
	body, etag, err := m.fetcher.Fetch(ctx, src.URL, src.ETag)
	if errors.Is(err, ErrNotModified) {
		m.logger.Debug("source unchanged", "source", src.ID)
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("source %s: %w", src.ID, err)
	}
	defer body.Close()

	res, perr := hostlist.Parse(body, src.ID)
	if perr != nil {
		return nil, "", fmt.Errorf("source %s: %w", src.ID, perr)
	}
	if len(res.Domains) == 0 {
		return nil, "", fmt.Errorf("source %s: fetch produced no usable domains (%d lines, %d skipped)",
			src.ID, res.TotalLines, res.SkippedLines)
	}
	for _, diag := range res.Diagnostics {
		m.logger.Debug("parse anomaly", "source", src.ID, "detail", diag)
	}
	return res, etag, nil
}

// commitRefreshLocked replaces the source's persisted contribution and
// grows the live matcher. Caller holds m.mu.
func (m *Manager) commitRefreshLocked(ctx context.Context, sourceID string, res *hostlist.Result, etag string, start time.Time) error {
	// Point of no return. A cancelled refresh must never leave a
	// half-updated contribution behind.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("source %s: refresh cancelled: %w", sourceID, err)
	}

	// The source may have been toggled or deleted while the fetch was in
	// flight; commit against its current state.
	src, err := m.store.GetSource(sourceID)
	if err != nil {
		return err
	}

	if err := m.store.ReplaceSourceDomains(sourceID, res.Domains, etag); err != nil {
		return fmt.Errorf("source %s: %w", sourceID, err)
	}

	// Insert-only growth of the live snapshot is safe under concurrent
	// reads. Stale entries from the source's previous contribution linger
	// until the next Rebuild, which only ever over-blocks, never
	// under-blocks.
	if src.Enabled {
		if t := m.resolver.Matcher(); t != nil {
			for _, d := range res.Domains {
				t.Insert(d)
			}
		}
	}

	metrics.ObserveRefresh(sourceID, time.Since(start))
	m.logger.Info("source refreshed",
		"source", sourceID,
		"domains", len(res.Domains),
		"lines", res.TotalLines,
		"skipped", res.SkippedLines,
	)
	return m.updateStatsLocked()
}

// SourceError pairs a source id with its isolated failure.
type SourceError struct {
	SourceID string
	Err      error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.SourceID, e.Err)
}

// RefreshAll refreshes every enabled source concurrently. Failures are
// isolated per source and reported together; one bad source never aborts
// the rest of the batch.
func (m *Manager) RefreshAll(ctx context.Context) []SourceError {
	sources, err := m.store.ListSources()
	if err != nil {
		return []SourceError{{SourceID: "*", Err: err}}
	}

	type outcome struct {
		id  string
		err error
	}

	var wg sync.WaitGroup
	results := make(chan outcome, len(sources))
	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			results <- outcome{id: id, err: m.Refresh(ctx, id)}
		}(src.ID)
	}
	wg.Wait()
	close(results)

	var failed []SourceError
	for r := range results {
		if r.err != nil {
			m.logger.Warn("refresh failed", "source", r.id, "error", r.err)
			metrics.RecordRefreshFailure(r.id)
			failed = append(failed, SourceError{SourceID: r.id, Err: r.err})
		}
	}
	return failed
}

// Toggle enables or disables a source. Enabling a source that has never
// contributed domains triggers an immediate refresh; its stored domains
// are then folded into the live matcher in place. Disabling shrinks the
// set, which requires a full rebuild.
func (m *Manager) Toggle(ctx context.Context, sourceID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, err := m.store.GetSource(sourceID)
	if err != nil {
		return err
	}
	if err := m.store.SetSourceEnabled(sourceID, enabled); err != nil {
		return err
	}
	m.logger.Info("source toggled", "source", sourceID, "enabled", enabled)

	if !enabled {
		return m.rebuildLocked(ctx)
	}

	if src.DomainCount == 0 {
		if err := m.refreshLocked(ctx, sourceID); err != nil {
			return err
		}
	}
	domains, err := m.store.DomainsForSource(sourceID)
	if err != nil {
		return err
	}
	if t := m.resolver.Matcher(); t != nil {
		for _, d := range domains {
			t.Insert(d)
		}
	}
	return m.updateStatsLocked()
}

// DeleteSource removes the source and cascades its stored contribution.
// The live matcher still contains the deleted domains until the next
// Rebuild; the matcher cannot remove individual domains by design.
func (m *Manager) DeleteSource(ctx context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.DeleteSource(sourceID); err != nil {
		return err
	}
	m.logger.Info("source deleted", "source", sourceID)
	return m.rebuildLocked(ctx)
}

// Rebuild constructs a fresh matcher from all enabled sources' persisted
// domains plus global block-action custom rules, then swaps it in as one
// atomic snapshot. This is the only safe way to reflect deletions or
// disables.
func (m *Manager) Rebuild(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rebuildLocked(ctx)
}

func (m *Manager) rebuildLocked(ctx context.Context) error {
	start := time.Now()

	domains, err := m.store.EnabledDomains()
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	fresh := matcher.New()
	for _, d := range domains {
		fresh.Insert(d)
	}
	if rs := m.resolver.Rules(); rs != nil {
		// Fold global block rules into the matcher so the hot path takes
		// the trie fast path for them too.
		for _, d := range rs.BlockedGlobalDomains() {
			fresh.Insert(d)
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rebuild cancelled: %w", err)
	}

	m.resolver.SwapMatcher(fresh)
	m.logger.Info("matcher rebuilt",
		"domains", fresh.Count(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return m.updateStatsLocked()
}

// ReloadRules materializes the stored custom rules into a fresh immutable
// set and swaps it into the resolver. Called after any rule mutation.
func (m *Manager) ReloadRules(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloadRulesLocked(ctx)
}

func (m *Manager) reloadRulesLocked(_ context.Context) error {
	all, err := m.store.ListRules()
	if err != nil {
		return fmt.Errorf("reload rules: %w", err)
	}
	m.resolver.SwapRules(rules.NewSet(all))
	m.logger.Info("rules reloaded", "enabled", m.resolver.Rules().Len())
	return m.updateStatsLocked()
}

// ApplyChanges is the explicit commit point: it re-materializes rules,
// rebuilds the matcher, and writes statistics, leaving all three mutually
// consistent before returning.
func (m *Manager) ApplyChanges(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.reloadRulesLocked(ctx); err != nil {
		return err
	}
	return m.rebuildLocked(ctx)
}

// Sources returns the registry snapshot for display.
func (m *Manager) Sources() ([]database.Source, error) {
	return m.store.ListSources()
}

// Stats returns the current statistics row, with the live counters
// flushed first.
func (m *Manager) Stats() (database.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateStatsLocked(); err != nil {
		return database.Stats{}, err
	}
	return m.store.GetStats()
}

// updateStatsLocked recomputes the aggregate statistics row from the
// store and the resolver's live counters.
func (m *Manager) updateStatsLocked() error {
	blocked, allowed := m.resolver.Counters()

	domainCount, err := m.store.DistinctDomainCount()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	ruleCount, err := m.store.RuleCount()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	sources, err := m.store.ListSources()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	active := 0
	for _, s := range sources {
		if s.Enabled {
			active++
		}
	}

	metrics.SetBlockedDomains(domainCount)
	metrics.SetActiveSources(active)

	return m.store.PutStats(database.Stats{
		DomainsBlocked:  domainCount,
		RequestsBlocked: blocked,
		RequestsAllowed: allowed,
		ActiveSources:   active,
		CustomRules:     ruleCount,
	})
}
