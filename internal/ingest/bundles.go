package ingest

import (
	"github.com/mci-report-consolidator/internal/domain"
)

// BundleSet groups retained documents by subject. Subjects are kept in the
// order they were first seen.
type BundleSet struct {
	bundles map[string]*domain.SubjectBundle
	order   []string
}

// NewBundleSet creates an empty set.
func NewBundleSet() *BundleSet {
	return &BundleSet{bundles: make(map[string]*domain.SubjectBundle)}
}

// Add offers a classified document to its subject's bundle. Documents of a
// type outside the known set are skipped and never create a bundle.
func (s *BundleSet) Add(doc *domain.RawDocument) domain.Decision {
	if doc == nil || !doc.ReportType.IsValid() {
		return domain.DecisionSkipped
	}
	b, ok := s.bundles[doc.SubjectID]
	if !ok {
		b = domain.NewSubjectBundle(doc.SubjectID)
		s.bundles[doc.SubjectID] = b
		s.order = append(s.order, doc.SubjectID)
	}
	return b.Offer(doc)
}

// Get returns the bundle of a subject, or nil.
func (s *BundleSet) Get(subjectID string) *domain.SubjectBundle {
	return s.bundles[subjectID]
}

// Subjects returns subject identifiers in first-seen order.
func (s *BundleSet) Subjects() []string {
	return append([]string(nil), s.order...)
}

// Bundles returns the bundles in first-seen order.
func (s *BundleSet) Bundles() []*domain.SubjectBundle {
	out := make([]*domain.SubjectBundle, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.bundles[id])
	}
	return out
}

// Len returns the number of subjects.
func (s *BundleSet) Len() int {
	return len(s.order)
}
