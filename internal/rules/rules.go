// Package rules layers user-authored override rules on top of the
// aggregated blocklist and produces the per-query block decision.
//
// Precedence, first match wins:
//  1. an enabled rule scoped to the requesting application, for the exact
//     queried domain
//  2. an enabled global rule for the exact queried domain
//  3. the aggregated blocklist matcher (suffix/wildcard semantics)
//
// Custom-rule lookup is exact string equality on the canonical domain.
// A rule for "ads.example.com" does not cover "sub.ads.example.com" even
// though a blocklist wildcard entry would. That asymmetry is deliberate
// and load-bearing; do not "fix" it here.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jroosing/domainguard/internal/matcher"
)

// Action is the filtering outcome for a domain.
type Action int

const (
	// ActionAllow lets the query through.
	ActionAllow Action = iota
	// ActionBlock refuses the query.
	ActionBlock
	// ActionRedirect answers the query with a configured target instead.
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionBlock:
		return "block"
	case ActionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// ParseAction converts a stored action string back to an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow":
		return ActionAllow, nil
	case "block":
		return ActionBlock, nil
	case "redirect":
		return ActionRedirect, nil
	default:
		return ActionAllow, fmt.Errorf("unknown action %q", s)
	}
}

// Decision is the value object returned per query. Produced fresh per
// call, never mutated afterwards, never persisted.
type Decision struct {
	Action      Action
	Reason      string
	MatchedList string // blocklist identifier when the matcher decided
	MatchedRule string // custom rule id when an override decided
}

// CustomRule is a user-authored override. AppID is empty for global
// scope; otherwise the rule binds to one application identifier.
type CustomRule struct {
	ID        string
	Domain    string
	Action    Action
	AppID     string
	Enabled   bool
	CreatedAt time.Time
}

// NewCustomRule builds a rule with a generated id and the domain
// canonicalized, enabled by default.
func NewCustomRule(domain string, action Action, appID string) CustomRule {
	return CustomRule{
		ID:        uuid.NewString(),
		Domain:    matcher.Canonical(domain),
		Action:    action,
		AppID:     strings.TrimSpace(appID),
		Enabled:   true,
		CreatedAt: time.Now(),
	}
}

// Set is an immutable materialized view of the enabled custom rules,
// indexed for exact-domain lookup. The resolver swaps whole Sets; a Set
// is never mutated after construction.
type Set struct {
	app    map[string]CustomRule // appID \x00 domain
	global map[string]CustomRule // domain
}

// NewSet indexes the enabled rules. Disabled rules are dropped. When
// duplicates collide on the same scope and domain, the first one wins.
func NewSet(all []CustomRule) *Set {
	s := &Set{
		app:    make(map[string]CustomRule),
		global: make(map[string]CustomRule),
	}
	for _, r := range all {
		if !r.Enabled {
			continue
		}
		domain := matcher.Canonical(r.Domain)
		if domain == "" {
			continue
		}
		if r.AppID == "" {
			if _, dup := s.global[domain]; !dup {
				s.global[domain] = r
			}
			continue
		}
		key := appKey(r.AppID, domain)
		if _, dup := s.app[key]; !dup {
			s.app[key] = r
		}
	}
	return s
}

// ForApp returns the rule scoped to appID for the exact domain.
func (s *Set) ForApp(appID, domain string) (CustomRule, bool) {
	r, ok := s.app[appKey(appID, domain)]
	return r, ok
}

// Global returns the global-scope rule for the exact domain.
func (s *Set) Global(domain string) (CustomRule, bool) {
	r, ok := s.global[domain]
	return r, ok
}

// Len reports how many enabled rules are indexed.
func (s *Set) Len() int {
	return len(s.app) + len(s.global)
}

// BlockedGlobalDomains returns the domains of global block rules, used by
// the aggregation manager to fold them into the matcher on rebuild.
func (s *Set) BlockedGlobalDomains() []string {
	var out []string
	for domain, r := range s.global {
		if r.Action == ActionBlock {
			out = append(out, domain)
		}
	}
	return out
}

func appKey(appID, domain string) string {
	return appID + "\x00" + domain
}
