package methylation

import (
	"github.com/sirupsen/logrus"
)

// LiteralCount is one exact spelling and the number of times it was seen.
type LiteralCount struct {
	Literal string `json:"literal"`
	Count   int    `json:"count"`
}

// SignatureGroup holds every spelling sharing one signature, in first-seen
// order, and the spelling chosen for all of them.
type SignatureGroup struct {
	Signature string         `json:"signature"`
	Canonical string         `json:"canonical"`
	Literals  []LiteralCount `json:"literals"`
}

// FrequencyTable is the signature -> literal -> count tally of one pass.
// Groups are in first-seen order.
type FrequencyTable struct {
	Groups []SignatureGroup `json:"groups"`
}

// Canonical returns the chosen literal for a signature.
func (ft FrequencyTable) Canonical(signature string) (string, bool) {
	for _, g := range ft.Groups {
		if g.Signature == signature {
			return g.Canonical, true
		}
	}
	return "", false
}

// Observations is the total number of values tallied.
func (ft FrequencyTable) Observations() int {
	total := 0
	for _, g := range ft.Groups {
		for _, lc := range g.Literals {
			total += lc.Count
		}
	}
	return total
}

// FrequencyReporter receives the frequency table after each pass. Reporters
// are advisory; their errors are logged and never change the returned data.
type FrequencyReporter interface {
	ReportFrequencies(table FrequencyTable) error
}

// LogReporter writes the frequency table to a logrus logger at debug level,
// one line per literal.
type LogReporter struct {
	logger *logrus.Logger
}

// NewLogReporter creates a reporter writing to logger.
func NewLogReporter(logger *logrus.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// ReportFrequencies implements FrequencyReporter.
func (r *LogReporter) ReportFrequencies(table FrequencyTable) error {
	if r.logger == nil {
		return nil
	}
	for _, g := range table.Groups {
		for _, lc := range g.Literals {
			r.logger.WithFields(logrus.Fields{
				"signature": g.Signature,
				"literal":   lc.Literal,
				"count":     lc.Count,
				"canonical": lc.Literal == g.Canonical,
			}).Debug("Methylation label frequency")
		}
	}
	return nil
}

// tally accumulates counts keyed by signature then literal, remembering the
// order in which each was first seen.
type tally struct {
	groups map[string]*SignatureGroup
	index  map[string]map[string]int
	order  []string
}

func newTally() *tally {
	return &tally{
		groups: make(map[string]*SignatureGroup),
		index:  make(map[string]map[string]int),
	}
}

func (t *tally) add(signature, literal string) {
	g, ok := t.groups[signature]
	if !ok {
		g = &SignatureGroup{Signature: signature}
		t.groups[signature] = g
		t.index[signature] = make(map[string]int)
		t.order = append(t.order, signature)
	}
	if i, seen := t.index[signature][literal]; seen {
		g.Literals[i].Count++
		return
	}
	t.index[signature][literal] = len(g.Literals)
	g.Literals = append(g.Literals, LiteralCount{Literal: literal, Count: 1})
}

// table resolves every group by majority vote. Among literals sharing the
// highest count, the last one in first-seen order wins.
func (t *tally) table() FrequencyTable {
	ft := FrequencyTable{Groups: make([]SignatureGroup, 0, len(t.order))}
	for _, sig := range t.order {
		g := t.groups[sig]
		best := -1
		for _, lc := range g.Literals {
			if lc.Count >= best {
				best = lc.Count
				g.Canonical = lc.Literal
			}
		}
		ft.Groups = append(ft.Groups, *g)
	}
	return ft
}
