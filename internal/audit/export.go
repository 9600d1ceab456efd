package audit

import (
	"database/sql"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mci-report-consolidator/internal/domain"
	"github.com/mci-report-consolidator/internal/ingest"
	"github.com/mci-report-consolidator/pkg/methylation"
	"github.com/mci-report-consolidator/pkg/variant"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Run is one stored run with everything recorded under it.
type Run struct {
	ID           string                       `json:"id"`
	StartedAt    time.Time                    `json:"started_at"`
	FinishedAt   *time.Time                   `json:"finished_at,omitempty"`
	InputDirs    []string                     `json:"input_dirs"`
	OutputPrefix string                       `json:"output_prefix"`
	OutputFormat string                       `json:"output_format"`
	Files        int                          `json:"files"`
	Subjects     int                          `json:"subjects"`
	Failed       int                          `json:"failed"`
	Status       string                       `json:"status"`
	Decisions    []ingest.DecisionEntry       `json:"decisions"`
	Frequencies  []methylation.SignatureGroup `json:"methylation_frequencies"`
	Rewrites     []variant.Rewrite            `json:"variant_rewrites"`
}

// Export is the JSON document written by ExportJSON.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Runs       []*Run    `json:"runs"`
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	run := &Run{}
	var finished sql.NullTime
	var dirs string
	err := s.Scan(
		&run.ID, &run.StartedAt, &finished, &dirs, &run.OutputPrefix, &run.OutputFormat,
		&run.Files, &run.Subjects, &run.Failed, &run.Status,
	)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	if dirs != "" {
		if err := jsonAPI.UnmarshalFromString(dirs, &run.InputDirs); err != nil {
			return nil, fmt.Errorf("failed to decode input dirs: %w", err)
		}
	}
	return run, nil
}

// Runs returns every stored run, oldest first, with its records.
func (s *SQLiteStore) Runs() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, input_dirs, output_prefix, output_format,
			files, subjects, failed, status
		FROM runs
		ORDER BY started_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, run := range runs {
		if run.Decisions, err = s.decisions(run.ID); err != nil {
			return nil, err
		}
		if run.Frequencies, err = s.frequencies(run.ID); err != nil {
			return nil, err
		}
		if run.Rewrites, err = s.rewrites(run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *SQLiteStore) decisions(runID string) ([]ingest.DecisionEntry, error) {
	rows, err := s.db.Query(`
		SELECT path, subject_id, report_type, byte_size, decision, reason
		FROM ingest_decisions WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var out []ingest.DecisionEntry
	for rows.Next() {
		var e ingest.DecisionEntry
		var rt, decision string
		if err := rows.Scan(&e.Path, &e.SubjectID, &rt, &e.ByteSize, &decision, &e.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		e.ReportType = domain.ReportType(rt)
		e.Decision = domain.Decision(decision)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) frequencies(runID string) ([]methylation.SignatureGroup, error) {
	rows, err := s.db.Query(`
		SELECT signature, literal, count, canonical
		FROM methylation_frequencies WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query frequencies: %w", err)
	}
	defer rows.Close()

	var out []methylation.SignatureGroup
	index := map[string]int{}
	for rows.Next() {
		var sig string
		var lc methylation.LiteralCount
		var canonical bool
		if err := rows.Scan(&sig, &lc.Literal, &lc.Count, &canonical); err != nil {
			return nil, fmt.Errorf("failed to scan frequency: %w", err)
		}
		i, ok := index[sig]
		if !ok {
			i = len(out)
			index[sig] = i
			out = append(out, methylation.SignatureGroup{Signature: sig})
		}
		out[i].Literals = append(out[i].Literals, lc)
		if canonical {
			out[i].Canonical = lc.Literal
		}
	}
	return out, rows.Err()
}

func (s *SQLiteStore) rewrites(runID string) ([]variant.Rewrite, error) {
	rows, err := s.db.Query(`
		SELECT field, original, canonical, count
		FROM variant_rewrites WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewrites: %w", err)
	}
	defer rows.Close()

	var out []variant.Rewrite
	for rows.Next() {
		var rw variant.Rewrite
		if err := rows.Scan(&rw.Field, &rw.Original, &rw.Canonical, &rw.Count); err != nil {
			return nil, fmt.Errorf("failed to scan rewrite: %w", err)
		}
		out = append(out, rw)
	}
	return out, rows.Err()
}

// ExportJSON writes every stored run to writer.
func (s *SQLiteStore) ExportJSON(writer io.Writer) error {
	runs, err := s.Runs()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(runs),
		Runs:       runs,
	}

	encoder := jsonAPI.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
