// Package ingest discovers report documents, classifies them and keeps one
// document per (subject, report type).
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mci-report-consolidator/internal/domain"
	"github.com/mci-report-consolidator/pkg/document"
)

// DecisionEntry describes what happened to one input file.
type DecisionEntry struct {
	Path       string            `json:"path"`
	SubjectID  string            `json:"subject_id,omitempty"`
	ReportType domain.ReportType `json:"report_type,omitempty"`
	ByteSize   int64             `json:"byte_size"`
	Decision   domain.Decision   `json:"decision"`
	Reason     string            `json:"reason,omitempty"`
}

// DecisionRecorder receives every ingestion decision, for auditing.
type DecisionRecorder interface {
	RecordDecision(entry DecisionEntry) error
}

// Stats counts the outcome of an ingestion run.
type Stats struct {
	Files          int `json:"files"`
	Added          int `json:"added"`
	Replaced       int `json:"replaced"`
	Duplicates     int `json:"duplicates"`
	KeptLarger     int `json:"kept_larger"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`
	DuplicateKeys  int `json:"duplicate_keys"`
	UnreadableDirs int `json:"unreadable_dirs"`
}

// Ingestor reads report documents from directories into a BundleSet.
type Ingestor struct {
	logger   *logrus.Logger
	recorder DecisionRecorder
}

// NewIngestor creates an ingestor. recorder may be nil.
func NewIngestor(logger *logrus.Logger, recorder DecisionRecorder) *Ingestor {
	return &Ingestor{
		logger:   logger,
		recorder: recorder,
	}
}

// Discover lists the *.json files of each directory, non-recursively, in
// directory order then name order. Unreadable directories are logged and
// skipped; their errors are joined into the returned error.
func (in *Ingestor) Discover(dirs []string) ([]string, error) {
	files, errs := in.discover(dirs)
	return files, errors.Join(errs...)
}

func (in *Ingestor) discover(dirs []string) ([]string, []error) {
	var files []string
	var errs []error
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			in.logger.WithFields(logrus.Fields{
				"dir":   dir,
				"error": err.Error(),
			}).Warn("Skipping unreadable input directory")
			errs = append(errs, fmt.Errorf("read %s: %w", dir, err))
			continue
		}
		found := 0
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
				continue
			}
			files = append(files, filepath.Join(dir, name))
			found++
		}
		in.logger.WithFields(logrus.Fields{
			"dir":   dir,
			"files": found,
		}).Debug("Discovered report documents")
	}
	return files, errs
}

// Run ingests every discovered document. Per-file failures are logged and
// recorded; they never abort the run.
func (in *Ingestor) Run(dirs []string) (*BundleSet, Stats) {
	files, errs := in.discover(dirs)
	stats := Stats{UnreadableDirs: len(errs)}

	set := NewBundleSet()
	for _, path := range files {
		stats.Files++
		entry := in.ingestFile(set, path, &stats)
		in.count(&stats, entry.Decision)
		in.record(entry)
	}

	in.logger.WithFields(logrus.Fields{
		"files":       stats.Files,
		"subjects":    set.Len(),
		"added":       stats.Added,
		"replaced":    stats.Replaced,
		"duplicates":  stats.Duplicates,
		"kept_larger": stats.KeptLarger,
		"skipped":     stats.Skipped,
		"failed":      stats.Failed,
	}).Info("Report documents ingested")

	return set, stats
}

func (in *Ingestor) ingestFile(set *BundleSet, path string, stats *Stats) DecisionEntry {
	entry := DecisionEntry{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		perr := domain.NewPipelineError(domain.ErrUnreadableFile, "cannot read report document", path, err)
		in.logger.WithFields(logrus.Fields{
			"file":  path,
			"error": perr.Error(),
		}).Error("File's data will be missing from outputs")
		entry.Decision = domain.DecisionFailed
		entry.Reason = perr.Error()
		return entry
	}
	entry.ByteSize = int64(len(data))

	doc, err := document.Parse(data, func(at, original, renamed string) {
		stats.DuplicateKeys++
		in.logger.WithFields(logrus.Fields{
			"file":     path,
			"path":     at,
			"original": original,
			"renamed":  renamed,
		}).Warn("Deduplicated repeated key")
	})
	if err != nil {
		perr := domain.NewPipelineError(domain.ErrParse, "cannot parse report document", path, err)
		in.logger.WithFields(logrus.Fields{
			"file":  path,
			"error": perr.Error(),
		}).Error("File's data will be missing from outputs")
		entry.Decision = domain.DecisionFailed
		entry.Reason = perr.Error()
		return entry
	}

	subject, reportType, err := Classify(path, doc)
	entry.SubjectID = subject
	entry.ReportType = reportType
	if err != nil {
		entry.Decision = domain.DecisionSkipped
		entry.Reason = err.Error()
		var perr *domain.PipelineError
		if errors.As(err, &perr) && perr.Code == domain.ErrUnsupportedReportType {
			in.logger.WithFields(logrus.Fields{
				"file":    path,
				"subject": subject,
				"reason":  perr.Message,
			}).Warn("Unknown report type, skipping")
		} else {
			in.logger.WithFields(logrus.Fields{
				"file": path,
			}).Info("Skipping unrecognized document")
		}
		return entry
	}

	entry.Decision = set.Add(&domain.RawDocument{
		Path:       path,
		ByteSize:   entry.ByteSize,
		Content:    doc,
		SubjectID:  subject,
		ReportType: reportType,
	})

	fields := logrus.Fields{
		"file":        path,
		"subject":     subject,
		"report_type": reportType,
		"bytes":       entry.ByteSize,
	}
	switch entry.Decision {
	case domain.DecisionAdded:
		in.logger.WithFields(fields).Debug("Processing report document")
	case domain.DecisionDuplicate:
		in.logger.WithFields(fields).Info("Document is duplicated, keeping the first one seen")
	case domain.DecisionKeptLarger:
		in.logger.WithFields(fields).Info("New document is smaller, keeping the retained one")
	case domain.DecisionReplaced:
		in.logger.WithFields(fields).Info("Overwriting retained document with larger version")
	}
	return entry
}

func (in *Ingestor) count(stats *Stats, d domain.Decision) {
	switch d {
	case domain.DecisionAdded:
		stats.Added++
	case domain.DecisionReplaced:
		stats.Replaced++
	case domain.DecisionDuplicate:
		stats.Duplicates++
	case domain.DecisionKeptLarger:
		stats.KeptLarger++
	case domain.DecisionSkipped:
		stats.Skipped++
	case domain.DecisionFailed:
		stats.Failed++
	}
}

func (in *Ingestor) record(entry DecisionEntry) {
	if in.recorder == nil {
		return
	}
	if err := in.recorder.RecordDecision(entry); err != nil {
		in.logger.WithFields(logrus.Fields{
			"file":  entry.Path,
			"error": err.Error(),
		}).Warn("Failed to record ingestion decision")
	}
}
