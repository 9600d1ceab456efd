package domain

import (
	"sort"

	"github.com/mci-report-consolidator/pkg/document"
)

// RawDocument is one parsed and classified input file. It is immutable once
// created and is dropped after being folded into a SubjectBundle.
type RawDocument struct {
	Path       string
	ByteSize   int64
	Content    *document.Value
	SubjectID  string
	ReportType ReportType
}

// SubjectBundle holds at most one retained document per report type for a
// single subject.
type SubjectBundle struct {
	SubjectID string
	documents map[ReportType]*RawDocument
}

// NewSubjectBundle creates an empty bundle for a subject.
func NewSubjectBundle(subjectID string) *SubjectBundle {
	return &SubjectBundle{
		SubjectID: subjectID,
		documents: make(map[ReportType]*RawDocument, len(KnownReportTypes)),
	}
}

// Get returns the retained document for a report type, or nil.
func (b *SubjectBundle) Get(rt ReportType) *RawDocument {
	return b.documents[rt]
}

// Has reports whether a document of the given type is retained.
func (b *SubjectBundle) Has(rt ReportType) bool {
	_, ok := b.documents[rt]
	return ok
}

// Offer applies the size heuristic for the (subject, type) slot: an equal or
// smaller newcomer is dropped, a larger one replaces the current document.
func (b *SubjectBundle) Offer(doc *RawDocument) Decision {
	current, ok := b.documents[doc.ReportType]
	if !ok {
		b.documents[doc.ReportType] = doc
		return DecisionAdded
	}
	switch {
	case doc.ByteSize == current.ByteSize:
		return DecisionDuplicate
	case doc.ByteSize < current.ByteSize:
		return DecisionKeptLarger
	default:
		b.documents[doc.ReportType] = doc
		return DecisionReplaced
	}
}

// Types returns the retained report types in slot order.
func (b *SubjectBundle) Types() []ReportType {
	types := make([]ReportType, 0, len(b.documents))
	for _, rt := range KnownReportTypes {
		if _, ok := b.documents[rt]; ok {
			types = append(types, rt)
		}
	}
	return types
}

// FlatRecord is the per-subject output row. Values are strings, float64
// scores, or nil for a field that was expected but could not be resolved.
type FlatRecord map[string]interface{}

// SampleField names the subject identifier column of every record.
const SampleField = "Sample"

// StringField returns the field as a string when it holds one.
func (r FlatRecord) StringField(name string) (string, bool) {
	v, ok := r[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// SetIfAbsent stores the value only when the field has not been set yet.
func (r FlatRecord) SetIfAbsent(name string, value interface{}) {
	if _, ok := r[name]; !ok {
		r[name] = value
	}
}

// Append joins value onto an existing string field with sep, or sets it.
func (r FlatRecord) Append(name, value, sep string) {
	if existing, ok := r.StringField(name); ok {
		r[name] = existing + sep + value
		return
	}
	r[name] = value
}

// Clone returns a shallow copy; values are immutable scalars.
func (r FlatRecord) Clone() FlatRecord {
	out := make(FlatRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order.
func (r FlatRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CloneRecords copies every record of a collection.
func CloneRecords(records []FlatRecord) []FlatRecord {
	out := make([]FlatRecord, len(records))
	for i, r := range records {
		if r != nil {
			out[i] = r.Clone()
		}
	}
	return out
}
