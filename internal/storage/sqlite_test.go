package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disruptiq/internal/report"
	"disruptiq/internal/signal"
)

func TestSQLiteStore_SaveReport_RoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	r := testReport("/repo", "a:0000000000000001", "b:0000000000000002")
	id, err := store.SaveReport(ctx, r)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	scans, err := store.ListScans(ctx, "/repo", 0)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, id, scans[0].ID)
	assert.Equal(t, "main", scans[0].Branch)
	assert.Equal(t, 2, scans[0].Findings)
	assert.Equal(t, 5.5, scans[0].RiskScore)
	assert.True(t, scans[0].Complete)

	ids, err := store.SignalIDs(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:0000000000000001", "b:0000000000000002"}, ids)
}

func TestSQLiteStore_LatestDiff(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	_, err = store.LatestDiff(ctx, "/repo")
	assert.Error(t, err)

	first, err := store.SaveReport(ctx, testReport("/repo", "a:0000000000000001", "b:0000000000000002"))
	require.NoError(t, err)
	_, err = store.SaveReport(ctx, testReport("/other", "z:0000000000000009"))
	require.NoError(t, err)
	second, err := store.SaveReport(ctx, testReport("/repo", "b:0000000000000002", "c:0000000000000003"))
	require.NoError(t, err)

	diff, err := store.LatestDiff(ctx, "/repo")
	require.NoError(t, err)
	assert.Equal(t, first, diff.Previous)
	assert.Equal(t, second, diff.Current)
	assert.Equal(t, []string{"c:0000000000000003"}, diff.New)
	assert.Equal(t, []string{"a:0000000000000001"}, diff.Fixed)

	all, err := store.ListScans(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, second, all[0].ID, "newest first")

	_, err = store.Diff(ctx, first, "missing")
	assert.Error(t, err)
}

func TestDiffIDs(t *testing.T) {
	added, fixed := DiffIDs([]string{"b", "a"}, []string{"c", "a", "c"})
	assert.Equal(t, []string{"c"}, added)
	assert.Equal(t, []string{"b"}, fixed)

	added, fixed = DiffIDs(nil, nil)
	assert.Empty(t, added)
	assert.Empty(t, fixed)
}

func testReport(root string, ids ...string) *report.Report {
	r := &report.Report{
		Metadata: report.Metadata{Root: root, ScanDate: "2026-01-01T00:00:00Z", Branch: "main"},
		Summary:  report.Summary{Findings: len(ids), RiskScore: 5.5, Complete: true},
	}
	for i, id := range ids {
		r.Signals = append(r.Signals, signal.Signal{
			ID: id, Type: signal.TypeSecret, DetectorID: "secret_v1",
			File: "a.py", Line: i + 1, Severity: signal.SeverityHigh, Confidence: 0.9,
		})
	}
	return r
}
