package rules

import (
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jroosing/domainguard/internal/matcher"
	"github.com/jroosing/domainguard/internal/metrics"
)

// decisionCacheSize bounds the LRU of recent decisions. The cache is an
// accelerator only; correctness never depends on it, and it is flushed
// wholesale whenever a snapshot is swapped.
const decisionCacheSize = 4096

// Reason strings carried on decisions.
const (
	ReasonCustomRule     = "custom rule"
	ReasonBlocklistMatch = "matched blocklist"
	ReasonNotBlocked     = "not in blocklist"
	ReasonNotInitialized = "filter not initialized"
)

// AggregateListID identifies the aggregated blocklist matcher on
// decisions it produced.
const AggregateListID = "blocklist"

// Resolver answers the hot query path. It holds no durable state: it
// reads an atomically swapped matcher snapshot and an atomically swapped
// rule set, so Decide never blocks on I/O and never fails outward.
type Resolver struct {
	logger *slog.Logger

	trie    atomic.Pointer[matcher.Trie]
	ruleSet atomic.Pointer[Set]

	cache *lru.Cache[string, Decision]

	blocked atomic.Uint64
	allowed atomic.Uint64
}

// NewResolver creates a resolver with no matcher or rules loaded yet.
// Until snapshots are installed it degrades to allowing everything.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, Decision](decisionCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic("rules: building decision cache: " + err.Error())
	}
	return &Resolver{logger: logger, cache: cache}
}

// SwapMatcher installs a new matcher snapshot. Concurrent Decide calls
// observe either the previous or the new snapshot, never a mix.
func (r *Resolver) SwapMatcher(t *matcher.Trie) {
	r.trie.Store(t)
	r.cache.Purge()
}

// Matcher returns the current snapshot, or nil before initialization.
func (r *Resolver) Matcher() *matcher.Trie {
	return r.trie.Load()
}

// SwapRules installs a new materialized rule set wholesale.
func (r *Resolver) SwapRules(s *Set) {
	r.ruleSet.Store(s)
	r.cache.Purge()
}

// Rules returns the current rule set, or nil before initialization.
func (r *Resolver) Rules() *Set {
	return r.ruleSet.Load()
}

// Decide resolves one query. appID may be empty when the owning
// application is unknown. Every call increments exactly one of the
// blocked/allowed counters; increments are atomic under contention.
func (r *Resolver) Decide(domain, appID string) Decision {
	domain = matcher.Canonical(domain)

	key := appID + "\x00" + domain
	if d, ok := r.cache.Get(key); ok {
		r.count(d.Action)
		return d
	}

	d := r.decide(domain, appID)
	r.cache.Add(key, d)
	r.count(d.Action)
	return d
}

func (r *Resolver) decide(domain, appID string) Decision {
	if rs := r.ruleSet.Load(); rs != nil && domain != "" {
		if appID != "" {
			if rule, ok := rs.ForApp(appID, domain); ok {
				return Decision{Action: rule.Action, Reason: ReasonCustomRule, MatchedRule: rule.ID}
			}
		}
		if rule, ok := rs.Global(domain); ok {
			return Decision{Action: rule.Action, Reason: ReasonCustomRule, MatchedRule: rule.ID}
		}
	}

	t := r.trie.Load()
	if t == nil {
		// Degrade safely: the caller is a packet-processing loop that
		// cannot tolerate failures out of the hot path.
		return Decision{Action: ActionAllow, Reason: ReasonNotInitialized}
	}

	if t.Matches(domain) {
		return Decision{Action: ActionBlock, Reason: ReasonBlocklistMatch, MatchedList: AggregateListID}
	}
	return Decision{Action: ActionAllow, Reason: ReasonNotBlocked}
}

func (r *Resolver) count(a Action) {
	// The counter pair tracks served vs intercepted queries, so a
	// redirect counts as blocked: the original answer was withheld.
	if a == ActionAllow {
		r.allowed.Add(1)
	} else {
		r.blocked.Add(1)
	}
	metrics.RecordDecision(a.String())
}

// Counters returns the running blocked/allowed totals.
func (r *Resolver) Counters() (blocked, allowed uint64) {
	return r.blocked.Load(), r.allowed.Load()
}

// RestoreCounters seeds the totals from persisted statistics at startup.
func (r *Resolver) RestoreCounters(blocked, allowed uint64) {
	r.blocked.Store(blocked)
	r.allowed.Store(allowed)
}
