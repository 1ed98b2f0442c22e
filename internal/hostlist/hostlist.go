// Package hostlist parses hosts-file formatted blocklist text into a
// canonical, deduplicated domain set with per-source accounting.
//
// The input contract is the de facto hosts blocklist format: one
// "<redirect-ip> <hostname>" pair per line, `#` comments, trailing tokens
// ignored. The format is treated as fixed external input, not something
// this package defines.
package hostlist

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxDiagnostics bounds how many per-line skip messages are retained per
// source, so pathological input cannot grow memory without bound.
const maxDiagnostics = 10

// maxHostnameLen is the DNS limit on a full hostname.
const maxHostnameLen = 253

// blockingTargets is the fixed allow-list of redirect addresses that mark
// a hosts line as a block/redirect entry. Anything else (a real IP) means
// the line is a plain hosts mapping, not a blocklist row, and is skipped.
var blockingTargets = map[string]struct{}{
	"0.0.0.0":         {},
	"127.0.0.1":       {},
	"::":              {},
	"::1":             {},
	"0:0:0:0:0:0:0:0": {},
	"0:0:0:0:0:0:0:1": {},
}

// Result is the outcome of parsing one source.
type Result struct {
	SourceID     string
	Domains      []string // canonical, deduplicated, first-seen order
	TotalLines   int
	ValidLines   int
	SkippedLines int
	Diagnostics  []string // first few skip/error messages, capped
}

// Parse reads hosts-format text and extracts validated, lowercased
// hostnames. Malformed lines are counted as skipped, never as failures;
// only a stream read error aborts, and even then the accumulated partial
// result is returned alongside the error.
func Parse(r io.Reader, sourceID string) (*Result, error) {
	res := &Result{SourceID: sourceID}
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	// Some blocklists carry very long lines.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		res.TotalLines++
		line := scanner.Text()

		domain, reason := parseLine(line)
		if reason == reasonBlank {
			continue
		}
		if reason != "" {
			res.skip(res.TotalLines, reason)
			continue
		}

		res.ValidLines++
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		res.Domains = append(res.Domains, domain)
	}

	if err := scanner.Err(); err != nil {
		msg := fmt.Sprintf("read aborted after line %d: %v", res.TotalLines, err)
		res.Diagnostics = append(res.Diagnostics, msg)
		return res, fmt.Errorf("reading source %s: %w", sourceID, err)
	}

	return res, nil
}

// ParseString is a convenience wrapper for in-memory content.
func ParseString(s, sourceID string) (*Result, error) {
	return Parse(strings.NewReader(s), sourceID)
}

func (r *Result) skip(lineNo int, reason string) {
	r.SkippedLines++
	if len(r.Diagnostics) < maxDiagnostics {
		r.Diagnostics = append(r.Diagnostics, fmt.Sprintf("line %d: %s", lineNo, reason))
	}
}

// Skip reasons. reasonBlank marks empty/comment lines, which are neither
// valid nor counted as skipped.
const (
	reasonBlank = "\x00blank"
)

// parseLine extracts the hostname from one hosts line. It returns the
// canonical hostname and an empty reason on success, or an empty hostname
// and the reason the line was not usable.
func parseLine(line string) (string, string) {
	// Inline comments end the significant part of the line.
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", reasonBlank
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "not a redirect-target/hostname pair"
	}

	target, host := fields[0], fields[1]
	if _, ok := blockingTargets[target]; !ok {
		return "", fmt.Sprintf("redirect target %q is not a blocking address", target)
	}

	host = strings.ToLower(strings.TrimSuffix(host, "."))
	switch {
	case strings.HasPrefix(host, "local"):
		return "", fmt.Sprintf("local hostname %q excluded", host)
	case !strings.Contains(host, "."):
		return "", fmt.Sprintf("hostname %q has no dot", host)
	case len(host) > maxHostnameLen:
		return "", "hostname exceeds 253 characters"
	case strings.Contains(host, "*"):
		return "", fmt.Sprintf("hostname %q contains a wildcard", host)
	case hasEmptyLabel(host):
		return "", fmt.Sprintf("hostname %q has an empty label", host)
	}

	return host, ""
}

func hasEmptyLabel(host string) bool {
	for _, label := range strings.Split(host, ".") {
		if label == "" {
			return true
		}
	}
	return false
}
