package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jroosing/domainguard/internal/blocklist"
	"github.com/jroosing/domainguard/internal/database"
	"github.com/jroosing/domainguard/internal/rules"
)

// Header and footer markers delimiting the generated section when the
// artifact is appended to an existing hosts file.
const (
	artifactHeader = "# --- domainguard generated block, do not edit ---"
	artifactFooter = "# --- end domainguard generated block ---"
)

// HostsFileBackend renders the aggregated block set into a hosts-format
// file artifact. Changes are staged to a temporary file and committed by
// an atomic rename in ApplyChanges, so the artifact is never observed
// half-written. The original file content is preserved once, at first
// apply, so Revert can restore it.
type HostsFileBackend struct {
	manager      *blocklist.Manager
	artifactPath string
	redirectIP   string
}

// NewHostsFileBackend builds the artifact-writing backend. An empty
// artifact path is an incompatible configuration and fails fast.
func NewHostsFileBackend(m *blocklist.Manager, artifactPath, redirectIP string) (*HostsFileBackend, error) {
	if m == nil || artifactPath == "" {
		return nil, fmt.Errorf("%w: hostsfile backend needs a manager and artifact path", ErrBadMode)
	}
	if redirectIP == "" {
		redirectIP = "0.0.0.0"
	}
	return &HostsFileBackend{manager: m, artifactPath: artifactPath, redirectIP: redirectIP}, nil
}

func (b *HostsFileBackend) Initialize(ctx context.Context) error {
	if dir := filepath.Dir(b.artifactPath); dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("%w: artifact directory: %v", ErrBadMode, err)
		}
	}
	return b.manager.Bootstrap(ctx)
}

func (b *HostsFileBackend) LoadBlocklists(ctx context.Context) error {
	failed := b.manager.RefreshAll(ctx)
	errs := make([]error, 0, len(failed))
	for _, f := range failed {
		errs = append(errs, f)
	}
	if len(errs) > 0 {
		joined := make([]string, len(errs))
		for i, e := range errs {
			joined[i] = e.Error()
		}
		return fmt.Errorf("load blocklists: %s", strings.Join(joined, "; "))
	}
	return nil
}

// ShouldBlock shares the same decision logic as the memory mode; the
// artifact is a derived projection, not a separate truth.
func (b *HostsFileBackend) ShouldBlock(domain, appID string) rules.Decision {
	return b.manager.Resolver().Decide(domain, appID)
}

// ApplyChanges re-materializes snapshots, renders the artifact to a
// staged temp file, and renames it into place. The rename is the commit;
// a failure before it leaves the previous artifact untouched.
func (b *HostsFileBackend) ApplyChanges(ctx context.Context) error {
	if err := b.manager.ApplyChanges(ctx); err != nil {
		return err
	}
	if err := b.preserveOriginal(); err != nil {
		return err
	}

	content, err := b.render()
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.artifactPath)
	tmp, err := os.CreateTemp(dir, ".domainguard-*")
	if err != nil {
		return fmt.Errorf("staging artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing staged artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing staged artifact: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("apply cancelled before commit: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.artifactPath); err != nil {
		return fmt.Errorf("committing artifact: %w", err)
	}
	return nil
}

// Revert restores the preserved original artifact, or removes the
// generated one when there was no original.
func (b *HostsFileBackend) Revert(context.Context) error {
	orig := b.originalPath()
	if _, err := os.Stat(orig); err == nil {
		if err := os.Rename(orig, b.artifactPath); err != nil {
			return fmt.Errorf("restoring original artifact: %w", err)
		}
		return nil
	}
	if err := os.Remove(b.artifactPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing generated artifact: %w", err)
	}
	return nil
}

func (b *HostsFileBackend) Statistics() (database.Stats, error) {
	return b.manager.Stats()
}

func (b *HostsFileBackend) originalPath() string {
	return b.artifactPath + ".orig"
}

// preserveOriginal keeps the pre-existing artifact content once, before
// the first generated write. Already-preserved or absent originals are
// left alone.
func (b *HostsFileBackend) preserveOriginal() error {
	orig := b.originalPath()
	if _, err := os.Stat(orig); err == nil {
		return nil
	}
	content, err := os.ReadFile(b.artifactPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading existing artifact: %w", err)
	}
	if strings.Contains(string(content), artifactHeader) {
		// Already a generated file; nothing pristine to preserve.
		return nil
	}
	if err := os.WriteFile(orig, content, 0o644); err != nil {
		return fmt.Errorf("preserving original artifact: %w", err)
	}
	return nil
}

// render produces the hosts-format artifact: every enumerable concrete
// domain from the current matcher snapshot, one redirect line each.
// Wildcard markers cannot be expressed in a hosts file and are skipped.
func (b *HostsFileBackend) render() (string, error) {
	t := b.manager.Resolver().Matcher()
	if t == nil {
		return "", fmt.Errorf("%w: no matcher snapshot loaded", ErrBadMode)
	}

	var sb strings.Builder
	sb.WriteString(artifactHeader + "\n")
	for _, entry := range t.Enumerate() {
		if strings.Contains(entry, "*") {
			continue
		}
		sb.WriteString(b.redirectIP)
		sb.WriteByte(' ')
		sb.WriteString(entry)
		sb.WriteByte('\n')
	}
	sb.WriteString(artifactFooter + "\n")
	return sb.String(), nil
}

var _ Backend = (*HostsFileBackend)(nil)
