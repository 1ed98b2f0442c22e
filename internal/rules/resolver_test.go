package rules

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/domainguard/internal/matcher"
)

func newTestResolver(blocked ...string) *Resolver {
	r := NewResolver(nil)
	trie := matcher.New()
	for _, d := range blocked {
		trie.Insert(d)
	}
	r.SwapMatcher(trie)
	return r
}

func TestResolver_Precedence(t *testing.T) {
	const domain = "ads.example.com"
	const app = "com.vendor.app"

	appBlock := NewCustomRule(domain, ActionBlock, app)
	globalAllow := NewCustomRule(domain, ActionAllow, "")

	tests := []struct {
		name       string
		rules      []CustomRule
		inMatcher  bool
		appID      string
		wantAction Action
		wantReason string
		wantRule   string
	}{
		{
			name:       "app rule beats global rule for that app",
			rules:      []CustomRule{appBlock, globalAllow},
			appID:      app,
			wantAction: ActionBlock,
			wantReason: ReasonCustomRule,
			wantRule:   appBlock.ID,
		},
		{
			name:       "other app falls through to global rule",
			rules:      []CustomRule{appBlock, globalAllow},
			appID:      "com.other.app",
			wantAction: ActionAllow,
			wantReason: ReasonCustomRule,
			wantRule:   globalAllow.ID,
		},
		{
			name:       "no app id falls through to global rule",
			rules:      []CustomRule{appBlock, globalAllow},
			appID:      "",
			wantAction: ActionAllow,
			wantReason: ReasonCustomRule,
			wantRule:   globalAllow.ID,
		},
		{
			name:       "no custom rules falls through to matcher hit",
			rules:      nil,
			inMatcher:  true,
			appID:      app,
			wantAction: ActionBlock,
			wantReason: ReasonBlocklistMatch,
		},
		{
			name:       "no custom rules and matcher miss allows",
			rules:      nil,
			appID:      app,
			wantAction: ActionAllow,
			wantReason: ReasonNotBlocked,
		},
		{
			name:       "global allow overrides matcher hit",
			rules:      []CustomRule{globalAllow},
			inMatcher:  true,
			appID:      "",
			wantAction: ActionAllow,
			wantReason: ReasonCustomRule,
			wantRule:   globalAllow.ID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r *Resolver
			if tt.inMatcher {
				r = newTestResolver(domain)
			} else {
				r = newTestResolver()
			}
			r.SwapRules(NewSet(tt.rules))

			d := r.Decide(domain, tt.appID)
			assert.Equal(t, tt.wantAction, d.Action)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, tt.wantRule, d.MatchedRule)
		})
	}
}

func TestResolver_CustomRuleIsExactMatchOnly(t *testing.T) {
	r := newTestResolver()
	rule := NewCustomRule("ads.example.com", ActionBlock, "")
	r.SwapRules(NewSet([]CustomRule{rule}))

	// The override covers exactly its domain, not subdomains.
	assert.Equal(t, ActionBlock, r.Decide("ads.example.com", "").Action)
	assert.Equal(t, ActionAllow, r.Decide("sub.ads.example.com", "").Action)
}

func TestResolver_DisabledRuleIgnored(t *testing.T) {
	r := newTestResolver()
	rule := NewCustomRule("ads.example.com", ActionBlock, "")
	rule.Enabled = false
	r.SwapRules(NewSet([]CustomRule{rule}))

	d := r.Decide("ads.example.com", "")
	assert.Equal(t, ActionAllow, d.Action)
	assert.Equal(t, ReasonNotBlocked, d.Reason)
}

func TestResolver_RedirectRule(t *testing.T) {
	r := newTestResolver()
	rule := NewCustomRule("cdn.example.com", ActionRedirect, "")
	r.SwapRules(NewSet([]CustomRule{rule}))

	d := r.Decide("cdn.example.com", "")
	assert.Equal(t, ActionRedirect, d.Action)
	assert.Equal(t, rule.ID, d.MatchedRule)
}

func TestResolver_UninitializedDegradesToAllow(t *testing.T) {
	r := NewResolver(nil)

	d := r.Decide("anything.example.com", "some.app")
	assert.Equal(t, ActionAllow, d.Action)
	assert.Equal(t, ReasonNotInitialized, d.Reason)
}

func TestResolver_MatcherSuffixSemanticsStillApply(t *testing.T) {
	r := newTestResolver("*.tracker.net")

	assert.Equal(t, ActionBlock, r.Decide("tracker.net", "").Action)
	assert.Equal(t, ActionBlock, r.Decide("deep.sub.tracker.net", "").Action)
	assert.Equal(t, ActionAllow, r.Decide("tracker.org", "").Action)
}

func TestResolver_Counters(t *testing.T) {
	r := newTestResolver("blocked.example.com")

	const blockedCalls = 7
	const allowedCalls = 5
	for i := 0; i < blockedCalls; i++ {
		r.Decide("blocked.example.com", "")
	}
	for i := 0; i < allowedCalls; i++ {
		r.Decide("fine.example.com", "")
	}

	blocked, allowed := r.Counters()
	assert.Equal(t, uint64(blockedCalls), blocked)
	assert.Equal(t, uint64(allowedCalls), allowed)
}

func TestResolver_Counters_RedirectCountsAsBlocked(t *testing.T) {
	r := newTestResolver()
	redirect := NewCustomRule("cdn.example.com", ActionRedirect, "")
	r.SwapRules(NewSet([]CustomRule{redirect}))

	d := r.Decide("cdn.example.com", "")
	require.Equal(t, ActionRedirect, d.Action)

	blocked, allowed := r.Counters()
	assert.Equal(t, uint64(1), blocked, "a redirect withholds the real answer")
	assert.Equal(t, uint64(0), allowed)
}

func TestResolver_Counters_Concurrent(t *testing.T) {
	r := newTestResolver("blocked.example.com")

	const workers = 8
	const perWorker = 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if i%2 == 0 {
					r.Decide("blocked.example.com", "")
				} else {
					r.Decide("fine.example.com", "")
				}
			}
		}(w)
	}
	wg.Wait()

	blocked, allowed := r.Counters()
	assert.Equal(t, uint64(workers*perWorker/2), blocked)
	assert.Equal(t, uint64(workers*perWorker/2), allowed)
}

func TestResolver_SwapInvalidatesCache(t *testing.T) {
	r := newTestResolver()
	assert.Equal(t, ActionAllow, r.Decide("ads.example.com", "").Action)

	trie := matcher.New()
	trie.Insert("ads.example.com")
	r.SwapMatcher(trie)

	// The cached allow from the old snapshot must not survive the swap.
	assert.Equal(t, ActionBlock, r.Decide("ads.example.com", "").Action)
}

func TestResolver_RestoreCounters(t *testing.T) {
	r := newTestResolver("blocked.example.com")
	r.RestoreCounters(100, 200)

	r.Decide("blocked.example.com", "")
	blocked, allowed := r.Counters()
	assert.Equal(t, uint64(101), blocked)
	assert.Equal(t, uint64(200), allowed)
}

func TestResolver_ConcurrentDecideDuringSwap(t *testing.T) {
	// Build two known-good snapshots; concurrent readers must observe one
	// of exactly these two states, never a partially populated tree.
	pre := matcher.New()
	pre.Insert("a.example.com")
	pre.Insert("b.example.com")

	post := matcher.New()
	post.Insert("a.example.com")
	post.Insert("b.example.com")
	for i := 0; i < 2000; i++ {
		post.Insert(fmt.Sprintf("h%d.bulk.net", i))
	}

	r := NewResolver(nil)
	r.SwapMatcher(pre)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// Present in both snapshots: must always block.
				d := r.Decide("a.example.com", "")
				assert.Equal(t, ActionBlock, d.Action)
				// Present only post-swap: must be consistent per snapshot.
				d = r.Decide("h1500.bulk.net", "")
				if d.Action == ActionBlock {
					assert.Equal(t, ReasonBlocklistMatch, d.Reason)
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			r.SwapMatcher(post)
		} else {
			r.SwapMatcher(pre)
		}
	}
	close(stop)
	wg.Wait()
}

func TestSet_Len(t *testing.T) {
	set := NewSet([]CustomRule{
		NewCustomRule("a.example.com", ActionBlock, ""),
		NewCustomRule("a.example.com", ActionAllow, "com.app"),
		{ID: "x", Domain: "off.example.com", Action: ActionBlock, Enabled: false},
	})
	assert.Equal(t, 2, set.Len())
}

func TestSet_BlockedGlobalDomains(t *testing.T) {
	set := NewSet([]CustomRule{
		NewCustomRule("blockme.example.com", ActionBlock, ""),
		NewCustomRule("allowme.example.com", ActionAllow, ""),
		NewCustomRule("scoped.example.com", ActionBlock, "com.app"),
	})
	assert.Equal(t, []string{"blockme.example.com"}, set.BlockedGlobalDomains())
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{"allow", ActionAllow, false},
		{"BLOCK", ActionBlock, false},
		{" redirect ", ActionRedirect, false},
		{"drop", ActionAllow, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAction(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func BenchmarkResolver_Decide(b *testing.B) {
	r := newTestResolver("ads.example.com", "*.tracker.net")
	r.SwapRules(NewSet([]CustomRule{
		NewCustomRule("cdn.example.com", ActionAllow, ""),
	}))

	queries := []string{"ads.example.com", "fine.example.org", "x.tracker.net", "cdn.example.com"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Decide(queries[i%len(queries)], "")
	}
}
