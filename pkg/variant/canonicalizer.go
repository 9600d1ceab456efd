// Package variant normalizes the spelling of sequence variants across a cohort.
//
// Tumor/normal reports from different pipeline versions describe the same
// variant with different protein-change notation (one-letter vs three-letter
// amino acids, with or without the reference residue). Each variant string is
// "gene transcript nucleotide-change protein-change"; the first three tokens
// locate the variant and the last one describes it.
package variant

import (
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/mci-report-consolidator/internal/domain"
)

// Separator joins multiple variants inside one record field.
const Separator = ";"

// maxLocusTokens is the number of leading tokens forming the locus part.
const maxLocusTokens = 3

// Canonicalizer rewrites variant fields so that every variant at the same
// locus carries the same protein-change spelling.
type Canonicalizer struct {
	fields []string
	logger *logrus.Logger
}

// Rewrite records one distinct spelling change applied by a pass.
type Rewrite struct {
	Field     string `json:"field"`
	Original  string `json:"original"`
	Canonical string `json:"canonical"`
	Count     int    `json:"count"`
}

// Report summarizes one canonicalization pass.
type Report struct {
	DistinctVariants int       `json:"distinct_variants"`
	Classes          int       `json:"classes"`
	Rewrites         []Rewrite `json:"rewrites"`
}

// NewCanonicalizer creates a canonicalizer for the given record fields.
func NewCanonicalizer(fields []string, logger *logrus.Logger) *Canonicalizer {
	if len(fields) == 0 {
		fields = domain.DefaultVariantFields
	}
	return &Canonicalizer{
		fields: append([]string(nil), fields...),
		logger: logger,
	}
}

// equivalenceClass groups the variants sharing one locus part.
type equivalenceClass struct {
	members   []string
	canonical string
	length    int
}

// table is rebuilt on every pass; nothing survives between calls.
type table struct {
	classes map[string]*equivalenceClass
	seen    map[string]struct{}
	order   []string
}

func newTable() *table {
	return &table{
		classes: make(map[string]*equivalenceClass),
		seen:    make(map[string]struct{}),
	}
}

// observe adds a distinct protein-change spelling to its locus class. The
// longest spelling wins; among equal lengths the one observed last wins.
func (t *table) observe(raw string) {
	if _, dup := t.seen[raw]; dup {
		return
	}
	locus, protein, ok := Split(raw)
	if !ok {
		return
	}
	t.seen[raw] = struct{}{}

	class, exists := t.classes[locus]
	if !exists {
		class = &equivalenceClass{length: -1}
		t.classes[locus] = class
		t.order = append(t.order, locus)
	}
	class.members = append(class.members, protein)
	if n := utf8.RuneCountInString(protein); n >= class.length {
		class.canonical = protein
		class.length = n
	}
}

// Canonicalize returns a rewritten copy of records. The input slice and its
// records are left untouched, and the output has the same length.
func (c *Canonicalizer) Canonicalize(records []domain.FlatRecord) ([]domain.FlatRecord, Report) {
	t := newTable()
	for _, rec := range records {
		for _, field := range c.fields {
			value, ok := c.candidate(rec, field)
			if !ok {
				continue
			}
			for _, v := range strings.Split(value, Separator) {
				t.observe(v)
			}
		}
	}

	out := domain.CloneRecords(records)
	rewrites := make(map[[3]string]*Rewrite)
	var order [][3]string

	for _, rec := range out {
		for _, field := range c.fields {
			value, ok := c.candidate(rec, field)
			if !ok {
				continue
			}
			parts := strings.Split(value, Separator)
			for i, v := range parts {
				canonical := t.rewrite(v)
				if canonical == v {
					continue
				}
				key := [3]string{field, v, canonical}
				if rw, seen := rewrites[key]; seen {
					rw.Count++
				} else {
					rewrites[key] = &Rewrite{Field: field, Original: v, Canonical: canonical, Count: 1}
					order = append(order, key)
				}
				parts[i] = canonical
			}
			rec[field] = strings.Join(parts, Separator)
		}
	}

	report := Report{
		DistinctVariants: len(t.seen),
		Classes:          len(t.classes),
	}
	for _, key := range order {
		rw := rewrites[key]
		report.Rewrites = append(report.Rewrites, *rw)
		if c.logger != nil {
			c.logger.WithFields(logrus.Fields{
				"field":     rw.Field,
				"original":  rw.Original,
				"canonical": rw.Canonical,
				"count":     rw.Count,
			}).Debug("Variant notation rewritten")
		}
	}

	if c.logger != nil {
		c.logger.WithFields(logrus.Fields{
			"fields":            c.fields,
			"distinct_variants": report.DistinctVariants,
			"locus_classes":     report.Classes,
			"rewrites":          len(report.Rewrites),
		}).Info("Variant notation canonicalized")
	}

	return out, report
}

// candidate returns a field value worth canonicalizing. Values of one
// character or less carry no variant (blank placeholders such as ".").
func (c *Canonicalizer) candidate(rec domain.FlatRecord, field string) (string, bool) {
	if rec == nil {
		return "", false
	}
	value, ok := rec.StringField(field)
	if !ok || len(value) <= 1 {
		return "", false
	}
	return value, true
}

func (t *table) rewrite(raw string) string {
	locus, _, ok := Split(raw)
	if !ok {
		return raw
	}
	class, exists := t.classes[locus]
	if !exists {
		return raw
	}
	return Join(locus, class.canonical)
}

// Split separates a variant string into its locus part (at most the first
// three tokens before the last) and its protein-change part (the last token).
func Split(raw string) (locus, protein string, ok bool) {
	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		return "", "", false
	}
	protein = tokens[len(tokens)-1]
	lead := tokens[:len(tokens)-1]
	if len(lead) > maxLocusTokens {
		lead = lead[:maxLocusTokens]
	}
	return strings.Join(lead, " "), protein, true
}

// Join is the inverse of Split.
func Join(locus, protein string) string {
	if locus == "" {
		return protein
	}
	return locus + " " + protein
}
