package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"disruptiq/internal/report"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			root TEXT,
			commit_hash TEXT,
			branch TEXT,
			scan_date TEXT,
			risk_score REAL,
			findings INTEGER,
			complete INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS signals (
			scan_id TEXT,
			id TEXT,
			type TEXT,
			detector_id TEXT,
			file TEXT,
			line INTEGER,
			severity TEXT,
			confidence REAL,
			PRIMARY KEY (scan_id, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scans_root ON scans(root, seq);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveReport(ctx context.Context, r *report.Report) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM scans").Scan(&seq); err != nil {
		return "", fmt.Errorf("failed to allocate scan sequence: %w", err)
	}

	scanID := uuid.NewString()
	sum := r.Summary
	meta := r.Metadata
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scans (id, seq, root, commit_hash, branch, scan_date, risk_score, findings, complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, scanID, seq, meta.Root, meta.CommitHash, meta.Branch, meta.ScanDate, sum.RiskScore, sum.Findings, sum.Complete); err != nil {
		return "", fmt.Errorf("failed to insert scan: %w", err)
	}

	// Signal ids are unique within a report; ignore repeats anyway.
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO signals (scan_id, id, type, detector_id, file, line, severity, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scan_id, id) DO NOTHING
	`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, sig := range r.Signals {
		if _, err := stmt.ExecContext(ctx, scanID, sig.ID, sig.Type, sig.DetectorID, sig.File, sig.Line, string(sig.Severity), sig.Confidence); err != nil {
			return "", fmt.Errorf("failed to insert signal %s: %w", sig.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return scanID, nil
}

func (s *SQLiteStore) ListScans(ctx context.Context, root string, limit int) ([]Scan, error) {
	query := "SELECT id, root, commit_hash, branch, scan_date, risk_score, findings, complete FROM scans"
	var args []any
	if root != "" {
		query += " WHERE root = ?"
		args = append(args, root)
	}
	query += " ORDER BY seq DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		var sc Scan
		if err := rows.Scan(&sc.ID, &sc.Root, &sc.CommitHash, &sc.Branch, &sc.ScanDate, &sc.RiskScore, &sc.Findings, &sc.Complete); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, sc)
	}
	return scans, rows.Err()
}

func (s *SQLiteStore) SignalIDs(ctx context.Context, scanID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM signals WHERE scan_id = ? ORDER BY id", scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Diff(ctx context.Context, prevID, curID string) (*ScanDiff, error) {
	for _, id := range []string{prevID, curID} {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scans WHERE id = ?", id).Scan(&n); err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("unknown scan %q", id)
		}
	}

	prev, err := s.SignalIDs(ctx, prevID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan %s: %w", prevID, err)
	}
	cur, err := s.SignalIDs(ctx, curID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan %s: %w", curID, err)
	}

	added, fixed := DiffIDs(prev, cur)
	return &ScanDiff{Previous: prevID, Current: curID, New: added, Fixed: fixed}, nil
}

// LatestDiff compares the two most recent scans of root.
func (s *SQLiteStore) LatestDiff(ctx context.Context, root string) (*ScanDiff, error) {
	scans, err := s.ListScans(ctx, root, 2)
	if err != nil {
		return nil, err
	}
	if len(scans) < 2 {
		return nil, fmt.Errorf("need at least two scans of %q, have %d", root, len(scans))
	}
	return s.Diff(ctx, scans[1].ID, scans[0].ID)
}

var _ HistoryStore = (*SQLiteStore)(nil)
