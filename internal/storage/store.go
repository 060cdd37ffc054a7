package storage

import (
	"context"
	"sort"

	"disruptiq/internal/report"
)

// Scan is one recorded run.
type Scan struct {
	ID         string
	Root       string
	CommitHash string
	Branch     string
	ScanDate   string
	RiskScore  float64
	Findings   int
	Complete   bool
}

// ScanDiff lists signal ids that appeared or disappeared between two scans.
type ScanDiff struct {
	Previous string
	Current  string
	New      []string
	Fixed    []string
}

// HistoryStore persists finished reports so runs can be compared.
type HistoryStore interface {
	// SaveReport records r and returns the new scan id.
	SaveReport(ctx context.Context, r *report.Report) (string, error)

	// ListScans returns scans newest first. An empty root lists every root.
	ListScans(ctx context.Context, root string, limit int) ([]Scan, error)

	// SignalIDs returns the sorted signal ids of one scan.
	SignalIDs(ctx context.Context, scanID string) ([]string, error)

	// Diff compares two recorded scans.
	Diff(ctx context.Context, prevID, curID string) (*ScanDiff, error)

	Close() error
}

// DiffIDs computes new and fixed ids. Both inputs may be unsorted.
func DiffIDs(prev, cur []string) (added, fixed []string) {
	before := make(map[string]bool, len(prev))
	for _, id := range prev {
		before[id] = true
	}
	after := make(map[string]bool, len(cur))
	for _, id := range cur {
		after[id] = true
		if !before[id] {
			added = append(added, id)
		}
	}
	for id := range before {
		if !after[id] {
			fixed = append(fixed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(fixed)
	return dedupe(added), fixed
}

func dedupe(ids []string) []string {
	out := ids[:0]
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		out = append(out, id)
	}
	return out
}
