// Package auditstore persists the pipeline's audit trail in a local SQLite
// database: one row per run plus the corrections and hold discrepancies
// recorded during it. The JSON artifacts answer "what is the state now";
// the audit store answers "what changed, when, and in which run".
package auditstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/epfab/asmtrack/pkg/model"
)

const schemaVersion = 1

// Run statuses.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
)

// Config locates the audit database.
type Config struct {
	// Path is a local filesystem path. ":memory:" opens an in-memory
	// database.
	Path string
}

// Store is the audit database handle.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the audit database.
//
// Local files get WAL and a busy timeout with a single connection, matching
// predictable CLI behavior over throughput.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("audit store path is required")
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create audit store dir: %w", err)
		}
		dsn = "file:" + filepath.Clean(path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit store: %w", err)
	}

	if dsn != ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		var journalMode string
		if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
		var busyTimeout int
		if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&busyTimeout); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO audit_meta (id, schema_version, created_at) VALUES (1, ?, ?);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			stats_json TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS corrections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			wo TEXT NOT NULL,
			field TEXT NOT NULL,
			original TEXT,
			corrected TEXT,
			kind TEXT NOT NULL,
			noted_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_corrections_run ON corrections(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_corrections_wo ON corrections(wo);`,
		`CREATE TABLE IF NOT EXISTS hold_discrepancies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			wo TEXT NOT NULL,
			side TEXT NOT NULL,
			order_no TEXT,
			noted_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_hold_discrepancies_run ON hold_discrepancies(run_id);`,
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, stmt := range stmts {
		if i == 1 {
			if _, err := s.db.ExecContext(ctx, stmt, schemaVersion, now); err != nil {
				return fmt.Errorf("init schema meta: %w", err)
			}
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// BeginRun records the start of a pipeline run.
func (s *Store) BeginRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, status) VALUES (?, ?, ?)`,
		runID, startedAt.UTC().Format(time.RFC3339Nano), RunStatusRunning)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun records the run outcome. Stats may be nil.
func (s *Store) FinishRun(ctx context.Context, runID, status string, endedAt time.Time, stats any) error {
	var statsJSON sql.NullString
	if stats != nil {
		buf, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("encode run stats: %w", err)
		}
		statsJSON = sql.NullString{String: string(buf), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, ended_at = ?, stats_json = ? WHERE run_id = ?`,
		status, endedAt.UTC().Format(time.RFC3339Nano), statsJSON, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("finish run: unknown run %s", runID)
	}
	return nil
}

// RecordCorrections appends the sanitizer's corrections for a run.
func (s *Store) RecordCorrections(ctx context.Context, runID string, corrections []model.Correction) error {
	if len(corrections) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record corrections: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO corrections (run_id, wo, field, original, corrected, kind, noted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("record corrections: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range corrections {
		if _, err := stmt.ExecContext(ctx, runID, c.WorkOrder, c.Field, c.Original, c.Corrected, c.Kind, now); err != nil {
			return fmt.Errorf("record correction %s/%s: %w", c.WorkOrder, c.Field, err)
		}
	}
	return tx.Commit()
}

// RecordDiscrepancy appends the hold discrepancy sets for a run.
func (s *Store) RecordDiscrepancy(ctx context.Context, runID string, d model.HoldDiscrepancy) error {
	if len(d.DatabaseOnly) == 0 && len(d.FileOnly) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record discrepancy: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	insert := func(wos []string, side string) error {
		for _, wo := range wos {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO hold_discrepancies (run_id, wo, side, order_no, noted_at)
				 VALUES (?, ?, ?, ?, ?)`,
				runID, wo, side, d.OrderNumbers[wo], now)
			if err != nil {
				return fmt.Errorf("record discrepancy %s: %w", wo, err)
			}
		}
		return nil
	}
	if err := insert(d.DatabaseOnly, "db_only"); err != nil {
		return err
	}
	if err := insert(d.FileOnly, "file_only"); err != nil {
		return err
	}
	return tx.Commit()
}

// RunSummary is one row from the runs table.
type RunSummary struct {
	RunID     string
	StartedAt time.Time
	EndedAt   *time.Time
	Status    string
	StatsJSON string
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, ended_at, status, COALESCE(stats_json, '')
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started string
		var ended sql.NullString
		if err := rows.Scan(&r.RunID, &started, &ended, &r.Status, &r.StatsJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			r.StartedAt = t
		}
		if ended.Valid {
			if t, err := time.Parse(time.RFC3339Nano, ended.String); err == nil {
				r.EndedAt = &t
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CorrectionsForRun returns the corrections recorded for one run in
// insertion order.
func (s *Store) CorrectionsForRun(ctx context.Context, runID string) ([]model.Correction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT wo, field, COALESCE(original, ''), COALESCE(corrected, ''), kind
		 FROM corrections WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Correction
	for rows.Next() {
		var c model.Correction
		if err := rows.Scan(&c.WorkOrder, &c.Field, &c.Original, &c.Corrected, &c.Kind); err != nil {
			return nil, fmt.Errorf("scan correction: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
