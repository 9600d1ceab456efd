// Package audit keeps a SQLite log of what each consolidation run decided:
// which documents were kept, how methylation labels were tallied, and which
// variant spellings were rewritten. Nothing stored here is read back to
// influence a run.
package audit

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mci-report-consolidator/internal/ingest"
	"github.com/mci-report-consolidator/pkg/methylation"
	"github.com/mci-report-consolidator/pkg/variant"
)

// ErrNoRun is returned when a record is written before BeginRun.
var ErrNoRun = errors.New("audit run not started")

// RunInfo describes the inputs of a run.
type RunInfo struct {
	InputDirs    []string
	OutputPrefix string
	OutputFormat string
}

// RunSummary is recorded when a run finishes.
type RunSummary struct {
	Files    int
	Subjects int
	Failed   int
	Status   string
}

// Run statuses.
const (
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// SQLiteStore is the audit log. It implements ingest.DecisionRecorder and
// methylation.FrequencyReporter.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	runID  string
	logger *logrus.Logger
}

var (
	_ ingest.DecisionRecorder       = (*SQLiteStore)(nil)
	_ methylation.FrequencyReporter = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens or creates the audit database at dbPath.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	store, err := newStore(db, dbPath, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func newStore(db *sql.DB, dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db, dbPath: dbPath, logger: logger}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		input_dirs TEXT NOT NULL DEFAULT '',
		output_prefix TEXT NOT NULL DEFAULT '',
		output_format TEXT NOT NULL DEFAULT '',
		files INTEGER NOT NULL DEFAULT 0,
		subjects INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ingest_decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		path TEXT NOT NULL,
		subject_id TEXT DEFAULT '',
		report_type TEXT DEFAULT '',
		byte_size INTEGER NOT NULL DEFAULT 0,
		decision TEXT NOT NULL,
		reason TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS methylation_frequencies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		signature TEXT NOT NULL,
		literal TEXT NOT NULL,
		count INTEGER NOT NULL,
		canonical INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS variant_rewrites (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		field TEXT NOT NULL,
		original TEXT NOT NULL,
		canonical TEXT NOT NULL,
		count INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_run ON ingest_decisions(run_id);
	CREATE INDEX IF NOT EXISTS idx_decisions_subject ON ingest_decisions(subject_id);
	CREATE INDEX IF NOT EXISTS idx_frequencies_run ON methylation_frequencies(run_id);
	CREATE INDEX IF NOT EXISTS idx_rewrites_run ON variant_rewrites(run_id);
	`

	_, err := db.Exec(schema)
	return err
}

// BeginRun starts a new run and returns its identifier. Every record
// written afterwards belongs to this run.
func (s *SQLiteStore) BeginRun(info RunInfo) (string, error) {
	id := uuid.New().String()
	dirs, err := jsonAPI.MarshalToString(info.InputDirs)
	if err != nil {
		return "", fmt.Errorf("failed to encode input dirs: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, started_at, input_dirs, output_prefix, output_format, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, time.Now().UTC(), dirs, info.OutputPrefix, info.OutputFormat, RunStatusRunning)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	s.runID = id
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"run_id":  id,
			"db_path": s.dbPath,
		}).Info("Audit run started")
	}
	return id, nil
}

// FinishRun stores the outcome of the current run.
func (s *SQLiteStore) FinishRun(summary RunSummary) error {
	if s.runID == "" {
		return ErrNoRun
	}
	_, err := s.db.Exec(`
		UPDATE runs SET finished_at = ?, files = ?, subjects = ?, failed = ?, status = ?
		WHERE id = ?
	`, time.Now().UTC(), summary.Files, summary.Subjects, summary.Failed, summary.Status, s.runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// RunID returns the identifier of the current run, or "".
func (s *SQLiteStore) RunID() string {
	return s.runID
}

// RecordDecision implements ingest.DecisionRecorder.
func (s *SQLiteStore) RecordDecision(entry ingest.DecisionEntry) error {
	if s.runID == "" {
		return ErrNoRun
	}
	_, err := s.db.Exec(`
		INSERT INTO ingest_decisions (run_id, path, subject_id, report_type, byte_size, decision, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.runID, entry.Path, entry.SubjectID, string(entry.ReportType), entry.ByteSize, string(entry.Decision), entry.Reason)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

// ReportFrequencies implements methylation.FrequencyReporter. The table is
// written in one transaction.
func (s *SQLiteStore) ReportFrequencies(table methylation.FrequencyTable) error {
	if s.runID == "" {
		return ErrNoRun
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, g := range table.Groups {
		for _, lc := range g.Literals {
			if _, err := tx.Exec(`
				INSERT INTO methylation_frequencies (run_id, signature, literal, count, canonical)
				VALUES (?, ?, ?, ?, ?)
			`, s.runID, g.Signature, lc.Literal, lc.Count, lc.Literal == g.Canonical); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to insert frequency: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit frequencies: %w", err)
	}
	return nil
}

// RecordVariantRewrites stores the distinct spelling changes of a variant
// canonicalization pass in one transaction.
func (s *SQLiteStore) RecordVariantRewrites(report variant.Report) error {
	if s.runID == "" {
		return ErrNoRun
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, rw := range report.Rewrites {
		if _, err := tx.Exec(`
			INSERT INTO variant_rewrites (run_id, field, original, canonical, count)
			VALUES (?, ?, ?, ?, ?)
		`, s.runID, rw.Field, rw.Original, rw.Canonical, rw.Count); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert rewrite: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rewrites: %w", err)
	}
	return nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
