package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroosing/domainguard/internal/rules"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_SeedsDefaults(t *testing.T) {
	db := openTestDB(t)

	sources, err := db.ListSources()
	require.NoError(t, err)
	require.NotEmpty(t, sources)

	enabled := 0
	for _, s := range sources {
		if s.Enabled {
			enabled++
		}
	}
	// Exactly one bootstrap source ships enabled.
	assert.Equal(t, 1, enabled)
}

func TestInsertSource_DuplicateIDFails(t *testing.T) {
	db := openTestDB(t)

	s := Source{ID: "custom-1", Name: "Custom", URL: "https://example.com/hosts"}
	require.NoError(t, db.InsertSource(s))

	err := db.InsertSource(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestGetSource_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetSource("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceSourceDomains(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.InsertSource(Source{ID: "s1", Name: "S1", URL: "https://example.com/a"}))

	require.NoError(t, db.ReplaceSourceDomains("s1", []string{"a.example.com", "b.example.com"}, `"etag-1"`))

	domains, err := db.DomainsForSource("s1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.example.com", "b.example.com"}, domains)

	src, err := db.GetSource("s1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.DomainCount)
	assert.Equal(t, `"etag-1"`, src.ETag)
	assert.NotNil(t, src.LastUpdated)

	// A replacement swaps the whole contribution, never appends.
	require.NoError(t, db.ReplaceSourceDomains("s1", []string{"c.example.com"}, ""))
	domains, err = db.DomainsForSource("s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c.example.com"}, domains)
}

func TestReplaceSourceDomains_UnknownSource(t *testing.T) {
	db := openTestDB(t)
	err := db.ReplaceSourceDomains("ghost", []string{"a.example.com"}, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnabledDomains_UnionOfEnabledSourcesOnly(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.InsertSource(Source{ID: "on", Name: "On", URL: "u", Enabled: true}))
	require.NoError(t, db.InsertSource(Source{ID: "off", Name: "Off", URL: "u"}))

	require.NoError(t, db.ReplaceSourceDomains("on", []string{"shared.example.com", "only-on.example.com"}, ""))
	require.NoError(t, db.ReplaceSourceDomains("off", []string{"shared.example.com", "only-off.example.com"}, ""))

	domains, err := db.EnabledDomains()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"shared.example.com", "only-on.example.com"}, domains)

	n, err := db.DistinctDomainCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDeleteSource_CascadesDomains(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.InsertSource(Source{ID: "s1", Name: "S1", URL: "u", Enabled: true}))
	require.NoError(t, db.ReplaceSourceDomains("s1", []string{"a.example.com"}, ""))

	require.NoError(t, db.DeleteSource("s1"))

	domains, err := db.DomainsForSource("s1")
	require.NoError(t, err)
	assert.Empty(t, domains)

	_, err = db.GetSource("s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRules_RoundTrip(t *testing.T) {
	db := openTestDB(t)

	r := rules.NewCustomRule("Ads.Example.COM", rules.ActionRedirect, "com.vendor.app")
	require.NoError(t, db.InsertRule(r))

	stored, err := db.ListRules()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, r.ID, stored[0].ID)
	assert.Equal(t, "ads.example.com", stored[0].Domain)
	assert.Equal(t, rules.ActionRedirect, stored[0].Action)
	assert.Equal(t, "com.vendor.app", stored[0].AppID)
	assert.True(t, stored[0].Enabled)

	require.NoError(t, db.SetRuleEnabled(r.ID, false))
	stored, err = db.ListRules()
	require.NoError(t, err)
	assert.False(t, stored[0].Enabled)

	n, err := db.RuleCount()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, db.DeleteRule(r.ID))
	assert.ErrorIs(t, db.DeleteRule(r.ID), ErrNotFound)
}

func TestStats_RoundTrip(t *testing.T) {
	db := openTestDB(t)

	s, err := db.GetStats()
	require.NoError(t, err)
	assert.Zero(t, s.RequestsBlocked)

	err = db.PutStats(Stats{
		DomainsBlocked:  120000,
		RequestsBlocked: 42,
		RequestsAllowed: 58,
		ActiveSources:   2,
		CustomRules:     3,
	})
	require.NoError(t, err)

	s, err = db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 120000, s.DomainsBlocked)
	assert.Equal(t, uint64(42), s.RequestsBlocked)
	assert.Equal(t, uint64(58), s.RequestsAllowed)
	assert.Equal(t, 2, s.ActiveSources)
	assert.Equal(t, 3, s.CustomRules)
	assert.NotNil(t, s.LastUpdated)
}

func TestOpen_Reopen_NoReseed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.DeleteSource("adaway"))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.GetSource("adaway")
	assert.ErrorIs(t, err, ErrNotFound)
}
