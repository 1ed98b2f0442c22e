// Package matcher implements the in-memory domain matching engine: a
// label-reversed prefix tree over domain name labels with exact-domain and
// wildcard-subtree membership.
//
// Data structure:
//
// Domains are stored with labels in reverse order so that shared suffixes
// collapse into one path. "ads.example.com" is stored as
// ["com", "example", "ads"], and every *.example.com entry shares the
// ["com", "example"] prefix.
//
// A node flagged wildcard marks its entire subtree as blocked: inserting
// "*.example.com" flags the node reached after ["com", "example"], which
// covers example.com and every subdomain at any depth.
//
// Performance:
//
// Lookup cost is O(k) where k is the number of labels in the query
// (typically <= 5), independent of how many domains are loaded. This is
// what keeps matching viable at 100,000+ entries.
//
// Thread safety:
//
// A Trie is safe for concurrent reads and for concurrent insert-only
// growth (guarded by an RWMutex). Operations that shrink the set must
// build a fresh Trie aside and swap it atomically; see
// internal/blocklist.
package matcher

import (
	"slices"
	"sort"
	"strings"
	"sync"
)

// Wildcard is the label that marks "this node and everything below it".
const Wildcard = "*"

// Trie is the domain matching engine.
type Trie struct {
	mu   sync.RWMutex
	root *node
	size int // exact-terminal domains; wildcard flags are not counted
}

// node represents one label position. Children are keyed by label; most
// nodes have very few children, so a small map wins over anything fancier.
type node struct {
	children map[string]*node
	terminal bool // an exact domain ends here
	wildcard bool // the whole subtree below here is blocked
}

func newNode() *node {
	return &node{children: make(map[string]*node, 4)}
}

// New creates an empty Trie.
func New() *Trie {
	return &Trie{root: newNode()}
}

// Insert adds a domain to the set. The domain is lowercased, split on
// dots, and walked in reverse label order. A literal "*" label flags the
// node reached so far as wildcard and stops insertion; any labels after
// the first "*" are discarded. Inserting the same domain twice is a no-op
// beyond the terminal flags.
//
// A bare "*" flags the root itself, blocking everything. That is a legal
// (if unusual) outcome, not an error.
func (t *Trie) Insert(domain string) {
	domain = Canonical(domain)
	if domain == "" {
		return
	}

	labels := reversedLabels(domain)

	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.root
	for _, label := range labels {
		if label == Wildcard {
			n.wildcard = true
			return
		}
		child, ok := n.children[label]
		if !ok {
			child = newNode()
			n.children[label] = child
		}
		n = child
	}

	if !n.terminal {
		t.size++
	}
	n.terminal = true
}

// Matches reports whether the domain is covered by the set, either as an
// exact entry or through a wildcard ancestor. Matching is case-insensitive
// and suffix-based: "example.com" alone does not cover its subdomains,
// "*.example.com" covers example.com and its entire subtree.
func (t *Trie) Matches(domain string) bool {
	domain = Canonical(domain)
	if domain == "" {
		return false
	}

	labels := reversedLabels(domain)

	t.mu.RLock()
	defer t.mu.RUnlock()

	n := t.root
	if n.wildcard {
		return true
	}
	for _, label := range labels {
		child, ok := n.children[label]
		if !ok {
			return false
		}
		n = child
		if n.wildcard {
			return true
		}
	}
	return n.terminal
}

// Count returns the number of exact-terminal domains stored. Wildcard
// flags represent an unbounded set and are not counted.
func (t *Trie) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Clear resets the Trie to empty. Used before a full rebuild; there is no
// per-domain removal, since shared paths and wildcard flags make targeted
// deletion ambiguous.
func (t *Trie) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = newNode()
	t.size = 0
}

// Enumerate reconstructs every stored entry top-down: concrete terminal
// domains as-is, wildcard nodes as "*."-prefixed markers (a root wildcard
// enumerates as "*"). Output is sorted for stable diagnostics. This walks
// the whole tree and is for debugging, not the query path.
func (t *Trie) Enumerate() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []string
	if t.root.wildcard {
		out = append(out, Wildcard)
	}
	out = t.root.enumerate(nil, out)
	sort.Strings(out)
	return out
}

func (n *node) enumerate(reversed []string, out []string) []string {
	for label, child := range n.children {
		path := append(slices.Clone(reversed), label)
		name := joinForward(path)
		if child.terminal {
			out = append(out, name)
		}
		if child.wildcard {
			out = append(out, Wildcard+"."+name)
		}
		out = child.enumerate(path, out)
	}
	return out
}

// joinForward turns a reversed label path back into a dotted domain.
func joinForward(reversed []string) string {
	forward := make([]string, len(reversed))
	for i, label := range reversed {
		forward[len(reversed)-1-i] = label
	}
	return strings.Join(forward, ".")
}

// Canonical lowercases a domain and strips surrounding whitespace and any
// trailing dot.
func Canonical(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	return strings.TrimSuffix(domain, ".")
}

// reversedLabels splits a domain into labels in reverse order:
// "ads.example.com" -> ["com", "example", "ads"].
func reversedLabels(domain string) []string {
	labels := strings.Split(domain, ".")
	n := len(labels)
	for i := range n / 2 {
		labels[i], labels[n-1-i] = labels[n-1-i], labels[i]
	}
	return labels
}
