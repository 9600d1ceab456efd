// Package extract turns the retained documents of one subject into a flat
// record. Each report schema has its own mapping; a field the mapping expects
// but the document lacks is logged and left unset.
package extract

import (
	"github.com/sirupsen/logrus"

	"github.com/mci-report-consolidator/internal/domain"
	"github.com/mci-report-consolidator/pkg/document"
	"github.com/mci-report-consolidator/pkg/methylation"
)

// Extractor maps subject bundles to flat records.
type Extractor struct {
	logger    *logrus.Logger
	reference *methylation.Reference
}

// NewExtractor creates an extractor. reference resolves raw v11 methylation
// codes; nil behaves like an empty reference.
func NewExtractor(reference *methylation.Reference, logger *logrus.Logger) *Extractor {
	if reference == nil {
		reference = methylation.EmptyReference()
	}
	return &Extractor{
		logger:    logger,
		reference: reference,
	}
}

// Extract builds the record of one subject. Documents are applied in a fixed
// order: registry, tumor/normal, one methylation source, Archer. For the
// shared molecular fields the first document applied wins.
func (e *Extractor) Extract(bundle *domain.SubjectBundle) domain.FlatRecord {
	rec := domain.FlatRecord{}

	if doc := bundle.Get(domain.COG); doc != nil {
		e.extractCOG(e.source(doc), rec)
	}
	if doc := bundle.Get(domain.TUMOR_NORMAL); doc != nil {
		e.extractTumorNormal(e.source(doc), rec)
	}

	switch {
	case bundle.Has(domain.METHYL_IGM):
		e.extractMethylation(e.source(bundle.Get(domain.METHYL_IGM)), rec)
	case bundle.Has(domain.METHYL_V12):
		e.extractMethylation(e.source(bundle.Get(domain.METHYL_V12)), rec)
	default:
		if doc := bundle.Get(domain.METHYL_V11_RAW); doc != nil {
			e.extractRawV11(e.source(doc), rec)
		}
		if doc := bundle.Get(domain.METHYL_V11); doc != nil {
			e.extractMethylation(e.source(doc), rec)
		}
	}

	if doc := bundle.Get(domain.ARCHER_FUSION); doc != nil {
		e.extractArcher(e.source(doc), rec)
	}

	rec[domain.SampleField] = bundle.SubjectID
	return rec
}

func (e *Extractor) source(doc *domain.RawDocument) *source {
	return &source{
		logger: e.logger,
		doc:    doc,
		root:   doc.Content,
	}
}

// source reads fields from one document, logging every expected field
// that turns out to be absent or of the wrong kind.
type source struct {
	logger *logrus.Logger
	doc    *domain.RawDocument
	root   *document.Value
}

func (s *source) fields() logrus.Fields {
	return logrus.Fields{
		"subject":     s.doc.SubjectID,
		"report_type": s.doc.ReportType,
		"file":        s.doc.Path,
	}
}

func (s *source) missing(err error) {
	if s.logger == nil {
		return
	}
	s.logger.WithFields(s.fields()).WithField("error", err.Error()).Warn("Missing expected field")
}

// lookup resolves keys below v, logging a failure.
func (s *source) lookup(v *document.Value, keys ...string) (*document.Value, bool) {
	found, err := v.Lookup(keys...)
	if err != nil {
		s.missing(err)
		return nil, false
	}
	return found, true
}

// optional resolves keys below v without logging.
func optional(v *document.Value, keys ...string) (*document.Value, bool) {
	found, err := v.Lookup(keys...)
	if err != nil {
		return nil, false
	}
	return found, true
}

// text reads a string or number field. An explicit null reads as "".
func (s *source) text(v *document.Value, keys ...string) (string, bool) {
	found, ok := s.lookup(v, keys...)
	if !ok {
		return "", false
	}
	if found.IsNull() {
		return "", true
	}
	str, err := found.Text()
	if err != nil {
		s.missing(err)
		return "", false
	}
	return str, true
}

func (s *source) array(v *document.Value, keys ...string) ([]*document.Value, bool) {
	found, ok := s.lookup(v, keys...)
	if !ok {
		return nil, false
	}
	arr, err := found.Array()
	if err != nil {
		s.missing(err)
		return nil, false
	}
	return arr, true
}

// texts reads an array of strings, skipping elements of other kinds.
func (s *source) texts(v *document.Value, keys ...string) ([]string, bool) {
	arr, ok := s.array(v, keys...)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		str, err := el.Text()
		if err != nil {
			s.missing(err)
			continue
		}
		out = append(out, str)
	}
	return out, true
}

// scalar reads a field as a record value: strings stay strings, numbers
// become float64 and null becomes nil.
func (s *source) scalar(v *document.Value, keys ...string) (interface{}, bool) {
	found, ok := s.lookup(v, keys...)
	if !ok {
		return nil, false
	}
	switch found.Kind() {
	case document.KindNull:
		return nil, true
	case document.KindNumber:
		f, err := found.Float()
		if err != nil {
			s.missing(err)
			return nil, false
		}
		return f, true
	case document.KindBool:
		b, _ := found.Bool()
		if b {
			return "true", true
		}
		return "false", true
	default:
		str, err := found.Text()
		if err != nil {
			s.missing(err)
			return nil, false
		}
		return str, true
	}
}

// set copies a text field into the record when present.
func (s *source) set(rec domain.FlatRecord, name string, v *document.Value, keys ...string) {
	if str, ok := s.text(v, keys...); ok {
		rec[name] = str
	}
}

// setScalar copies a scalar field into the record when present.
func (s *source) setScalar(rec domain.FlatRecord, name string, v *document.Value, keys ...string) {
	if val, ok := s.scalar(v, keys...); ok {
		rec[name] = val
	}
}

// extractMolecularGeneric fills the fields shared by every molecular
// report; whichever document sets them first wins.
func (e *Extractor) extractMolecularGeneric(src *source, rec domain.FlatRecord) {
	if _, ok := rec["Cellularity"]; !ok {
		src.setScalar(rec, "Cellularity", src.root, "percent_tumor")
		src.setScalar(rec, "Necrosis", src.root, "percent_necrosis")
	}
	if _, ok := rec["Disease_Group"]; !ok {
		src.setScalar(rec, "Disease_Group", src.root, "disease_group")
	}
	if _, ok := rec["Indication"]; !ok {
		src.setScalar(rec, "Indication", src.root, "indication_for_study")
	}
}
