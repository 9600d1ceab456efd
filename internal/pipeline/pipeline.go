// Package pipeline runs a full consolidation: ingest, extract, canonicalize
// and write.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mci-report-consolidator/internal/audit"
	"github.com/mci-report-consolidator/internal/dictionary"
	"github.com/mci-report-consolidator/internal/domain"
	"github.com/mci-report-consolidator/internal/extract"
	"github.com/mci-report-consolidator/internal/ingest"
	"github.com/mci-report-consolidator/internal/output"
	"github.com/mci-report-consolidator/pkg/methylation"
	"github.com/mci-report-consolidator/pkg/variant"
)

// Result is everything a run produced.
type Result struct {
	RunID       string
	Ingest      ingest.Stats
	Records     []domain.FlatRecord
	Variants    variant.Report
	Methylation methylation.FrequencyTable
	Outputs     []string
}

// Pipeline holds the loaded reference data and sinks of one run.
type Pipeline struct {
	cfg       *domain.Config
	logger    *logrus.Logger
	dict      *dictionary.Dictionary
	reference *methylation.Reference
	extractor domain.RecordExtractor
	store     *audit.SQLiteStore
	summaries io.Writer
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithSummaryOutput sets where frequency and rewrite tables are printed
// when audit.print_frequencies is on. Defaults to stdout.
func WithSummaryOutput(w io.Writer) Option {
	return func(p *Pipeline) {
		if w != nil {
			p.summaries = w
		}
	}
}

// New loads the data dictionary and methylation reference and opens the
// audit store when enabled. Failures here are configuration errors.
func New(cfg *domain.Config, logger *logrus.Logger, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:       cfg,
		logger:    logger,
		reference: methylation.EmptyReference(),
		summaries: os.Stdout,
	}
	for _, opt := range opts {
		opt(p)
	}

	dict, err := dictionary.Load(cfg.Reference.DataDictionary, logger)
	if err != nil {
		return nil, domain.NewPipelineError(domain.ErrConfig, "failed to load data dictionary", cfg.Reference.DataDictionary, err)
	}
	p.dict = dict

	if path := cfg.Reference.MethylationV11; path != "" {
		ref, err := methylation.LoadReference(path)
		if err != nil {
			return nil, domain.NewPipelineError(domain.ErrConfig, "failed to load methylation reference", path, err)
		}
		logger.WithFields(logrus.Fields{
			"path":    path,
			"entries": ref.Len(),
		}).Info("Methylation reference loaded")
		p.reference = ref
	}

	p.extractor = extract.NewExtractor(p.reference, logger)

	if cfg.Audit.Enabled {
		store, err := audit.NewSQLiteStore(cfg.Audit.DBPath, logger)
		if err != nil {
			return nil, domain.NewPipelineError(domain.ErrConfig, "failed to open audit database", cfg.Audit.DBPath, err)
		}
		p.store = store
	}

	return p, nil
}

// Close releases the audit store.
func (p *Pipeline) Close() error {
	if p.store == nil {
		return nil
	}
	return p.store.Close()
}

// Run executes every stage in order. ctx is checked between stages; a
// cancelled run writes no output.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	if p.store != nil {
		id, err := p.store.BeginRun(audit.RunInfo{
			InputDirs:    p.cfg.Input.Dirs,
			OutputPrefix: p.cfg.Output.Prefix,
			OutputFormat: p.cfg.Output.Format,
		})
		if err != nil {
			p.logger.WithError(err).Warn("Failed to start audit run, continuing without audit")
			p.store.Close()
			p.store = nil
		}
		result.RunID = id
	}

	err := p.run(ctx, result)
	p.finish(result, err)
	if err != nil {
		return result, err
	}

	p.logger.WithFields(logrus.Fields{
		"subjects": len(result.Records),
		"files":    result.Ingest.Files,
		"failed":   result.Ingest.Failed,
		"outputs":  result.Outputs,
		"duration": time.Since(start).String(),
	}).Info("Consolidation completed")
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, result *Result) error {
	var recorder ingest.DecisionRecorder
	if p.store != nil {
		recorder = p.store
	}
	bundles, stats := ingest.NewIngestor(p.logger, recorder).Run(p.cfg.Input.Dirs)
	result.Ingest = stats
	if err := ctx.Err(); err != nil {
		return err
	}

	records := make([]domain.FlatRecord, 0, bundles.Len())
	for _, subject := range bundles.Subjects() {
		rec := p.extractor.Extract(bundles.Get(subject))
		records = append(records, ReplaceBlankFields(rec, p.cfg.Output.BlankFieldIndicator))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	records, result.Variants = variant.NewCanonicalizer(p.cfg.Canonicalize.VariantFields, p.logger).Canonicalize(records)
	if p.store != nil {
		if err := p.store.RecordVariantRewrites(result.Variants); err != nil {
			p.logger.WithError(err).Warn("Failed to record variant rewrites")
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	records, result.Methylation = methylation.NewCanonicalizer(
		p.cfg.Canonicalize.MethylationFields,
		p.logger,
		p.frequencyOptions()...,
	).Canonicalize(records)
	if p.cfg.Audit.PrintFrequencies {
		output.RenderVariantRewrites(p.summaries, result.Variants)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	result.Records = records
	written, err := output.NewWriter(p.cfg.Output, p.dict, p.logger).Write(records)
	result.Outputs = written
	return err
}

func (p *Pipeline) frequencyOptions() []methylation.Option {
	opts := []methylation.Option{
		methylation.WithSignatureCacheSize(p.cfg.Canonicalize.SignatureCacheSize),
		methylation.WithReporter(methylation.NewLogReporter(p.logger)),
	}
	if p.store != nil {
		opts = append(opts, methylation.WithReporter(p.store))
	}
	if p.cfg.Audit.PrintFrequencies {
		opts = append(opts, methylation.WithReporter(output.NewTableReporter(p.summaries)))
	}
	return opts
}

func (p *Pipeline) finish(result *Result, runErr error) {
	if p.store == nil {
		return
	}
	status := audit.RunStatusCompleted
	if runErr != nil {
		status = audit.RunStatusFailed
	}
	err := p.store.FinishRun(audit.RunSummary{
		Files:    result.Ingest.Files,
		Subjects: len(result.Records),
		Failed:   result.Ingest.Failed,
		Status:   status,
	})
	if err != nil {
		p.logger.WithError(err).Warn("Failed to finish audit run")
	}
}

// ReplaceBlankFields returns a copy of rec in which every empty string is
// replaced by indicator, marking fields that were present but blank.
func ReplaceBlankFields(rec domain.FlatRecord, indicator string) domain.FlatRecord {
	out := rec.Clone()
	for k, v := range out {
		if s, ok := v.(string); ok && s == "" {
			out[k] = indicator
		}
	}
	return out
}

// Describe summarizes a result for the command line.
func Describe(r *Result) string {
	return fmt.Sprintf("%d subjects from %d files (%d failed), %d variant rewrites, %d methylation labels",
		len(r.Records), r.Ingest.Files, r.Ingest.Failed, len(r.Variants.Rewrites), r.Methylation.Observations())
}
