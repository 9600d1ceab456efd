// Package methylation normalizes methylation classification labels across a
// cohort and maps lab class codes to display strings.
package methylation

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/mci-report-consolidator/internal/domain"
)

// DefaultSignatureCacheSize bounds the memoized signature table.
const DefaultSignatureCacheSize = 1024

// Canonicalizer rewrites methylation label fields so that every spelling of
// one label becomes the spelling used most often in the cohort.
type Canonicalizer struct {
	fields     []string
	logger     *logrus.Logger
	reporters  []FrequencyReporter
	signatures *lru.Cache[string, string]
}

// Option configures a Canonicalizer.
type Option func(*Canonicalizer)

// WithReporter adds a sink for the frequency table of each pass.
func WithReporter(r FrequencyReporter) Option {
	return func(c *Canonicalizer) {
		if r != nil {
			c.reporters = append(c.reporters, r)
		}
	}
}

// WithSignatureCacheSize sets the number of memoized signatures.
func WithSignatureCacheSize(size int) Option {
	return func(c *Canonicalizer) {
		if cache, err := lru.New[string, string](size); err == nil {
			c.signatures = cache
		}
	}
}

// NewCanonicalizer creates a canonicalizer for the given record fields.
func NewCanonicalizer(fields []string, logger *logrus.Logger, opts ...Option) *Canonicalizer {
	if len(fields) == 0 {
		fields = domain.DefaultMethylationFields
	}
	c := &Canonicalizer{
		fields: append([]string(nil), fields...),
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.signatures == nil {
		// Only fails for a non-positive size.
		c.signatures, _ = lru.New[string, string](DefaultSignatureCacheSize)
	}
	return c
}

func (c *Canonicalizer) signature(label string) string {
	if sig, ok := c.signatures.Get(label); ok {
		return sig
	}
	sig := Signature(label)
	c.signatures.Add(label, sig)
	return sig
}

// Canonicalize returns a rewritten copy of records together with the
// frequency table the choice was made from. The input is left untouched.
// Values that normalize to the empty string carry no signal; they are
// neither counted nor rewritten.
func (c *Canonicalizer) Canonicalize(records []domain.FlatRecord) ([]domain.FlatRecord, FrequencyTable) {
	t := newTally()
	for _, rec := range records {
		for _, field := range c.fields {
			if label, ok := c.candidate(rec, field); ok {
				t.add(c.signature(label), label)
			}
		}
	}
	table := t.table()

	canonical := make(map[string]string, len(table.Groups))
	for _, g := range table.Groups {
		canonical[g.Signature] = Capitalize(g.Canonical)
	}

	out := domain.CloneRecords(records)
	rewritten := 0
	for _, rec := range out {
		for _, field := range c.fields {
			label, ok := c.candidate(rec, field)
			if !ok {
				continue
			}
			target := canonical[c.signature(label)]
			if rec[field] == target {
				continue
			}
			if c.logger != nil {
				c.logger.WithFields(logrus.Fields{
					"field":     field,
					"original":  rec[field],
					"canonical": target,
				}).Debug("Methylation label rewritten")
			}
			rec[field] = target
			rewritten++
		}
	}

	for _, r := range c.reporters {
		if err := r.ReportFrequencies(table); err != nil && c.logger != nil {
			c.logger.WithError(err).Warn("Failed to report methylation label frequencies")
		}
	}

	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"fields":       c.fields,
			"observations": table.Observations(),
			"signatures":   len(table.Groups),
			"rewrites":     rewritten,
		}).Info("Methylation labels canonicalized")
	}

	return out, table
}

// candidate returns the normalized label of a field, if it carries one.
func (c *Canonicalizer) candidate(rec domain.FlatRecord, field string) (string, bool) {
	if rec == nil {
		return "", false
	}
	value, ok := rec.StringField(field)
	if !ok {
		return "", false
	}
	label := Normalize(value)
	if label == "" {
		return "", false
	}
	return label, true
}
