package extract

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mci-report-consolidator/internal/domain"
	"github.com/mci-report-consolidator/pkg/document"
	"github.com/mci-report-consolidator/pkg/methylation"
)

// Classifier score thresholds above which a level counts as the prediction.
const (
	igmScoreThreshold = 0.80
	v12ScoreThreshold = 0.90
)

const unclassified = "Unclassified"

// methylationLevels is the classification hierarchy, broadest first.
var methylationLevels = []string{"Superfamily", "Family", "Class", "Subclass"}

func isLevel(s string) bool {
	for _, l := range methylationLevels {
		if l == s {
			return true
		}
	}
	return false
}

func normalizeCategory(s string) string {
	return strings.ReplaceAll(s, "Super Family", "Superfamily")
}

// extractMethylation reads a methylation report. The report type decides the
// layout of the classifier results; v11 reports only carry the version and
// final call, the detail comes from the raw data document.
func (e *Extractor) extractMethylation(src *source, rec domain.FlatRecord) {
	e.extractMolecularGeneric(src, rec)
	src.set(rec, "Methylation_Version", src.root, "report_version")
	src.set(rec, "Methylation_Classification_Final", src.root, "final_diagnosis", "methylation_class")
	src.set(rec, "MGMT_Status", src.root, "final_diagnosis", "mgmt_status")

	switch src.doc.ReportType {
	case domain.METHYL_IGM:
		e.igmClassification(src, rec)
	case domain.METHYL_V12:
		e.v12Classification(src, rec)
	case domain.METHYL_V11:
		if e.logger != nil {
			e.logger.WithFields(src.fields()).WithField("version", rec["Methylation_Version"]).
				Debug("v11 methylation report, classification detail comes from raw data")
		}
	}
}

func (e *Extractor) igmClassification(src *source, rec domain.FlatRecord) {
	results, ok := src.array(src.root, "results")
	if !ok {
		return
	}
	category, level := unclassified, unclassified
	for _, r := range results {
		raw, ok := src.text(r, "category")
		if !ok {
			continue
		}
		name := normalizeCategory(raw)
		prediction, _ := src.text(r, "predictedClassification")
		if !isLevel(name) {
			if e.logger != nil {
				e.logger.WithFields(src.fields()).WithFields(logrus.Fields{
					"level":          raw,
					"classification": prediction,
				}).Warn("Unknown methylation level")
			}
			continue
		}
		rec["Methylation_"+name] = prediction

		scoreValue, ok := src.lookup(r, "classifierScore")
		if !ok {
			continue
		}
		score, err := scoreValue.Float()
		if err != nil {
			src.missing(err)
			continue
		}
		rec["Methylation_"+name+"_Score"] = score
		if score >= igmScoreThreshold {
			category, level = prediction, name
		}
	}
	rec["Methylation_Prediction_Category"] = category
	rec["Methylation_Prediction_Level"] = level
}

// levelCall is one level of a v12 classification after repair.
type levelCall struct {
	category string
	score    *float64
}

// v12Classification reads the v12 classifier scores. The v12 layout often
// splits one level's label across several entries, or merges the next
// level's name into a label; entries are stitched back onto the level they
// continue, and a score missing from the entry is recovered from the label
// text when possible.
func (e *Extractor) v12Classification(src *source, rec domain.FlatRecord) {
	entries, ok := src.array(src.root, "predicted_classification_classifier_scores")
	if !ok {
		return
	}

	calls := map[string]*levelCall{}
	var order []string
	setCall := func(level string, c *levelCall) {
		if _, ok := calls[level]; !ok {
			order = append(order, level)
		}
		calls[level] = c
	}

	prev := ""
	for _, entry := range entries {
		raw, ok := src.text(entry, "category")
		if !ok {
			continue
		}
		label := normalizeCategory(raw)
		score := entryScore(entry)

		found := false
		for _, level := range methylationLevels {
			if strings.HasPrefix(label, level) {
				found = true
				prev = level
				setCall(level, &levelCall{
					category: strings.ReplaceAll(label, level+" ", ""),
					score:    score,
				})
				break
			}
		}
		if found || prev == "" {
			continue
		}

		for _, level := range methylationLevels {
			if !strings.Contains(label, level) {
				continue
			}
			parts := strings.Split(label, level)
			label = parts[0]
			if _, ok := calls[level]; !ok {
				setCall(level, &levelCall{category: parts[1]})
			}
		}
		p := calls[prev]
		p.category = strings.ReplaceAll(p.category+", "+label, ",,", ",")
		if p.score == nil && score != nil {
			p.score = score
		}
	}

	for _, level := range order {
		c := calls[level]
		if c.score == nil {
			c.rescueScore()
			if c.score != nil && e.logger != nil {
				e.logger.WithFields(src.fields()).WithFields(logrus.Fields{
					"level": level,
					"score": *c.score,
				}).Info("Rescued methylation score from label text")
			}
		}
	}

	category, predicted := unclassified, unclassified
	for _, level := range order {
		c := calls[level]
		rec["Methylation_"+level] = c.category
		if c.score == nil {
			if e.logger != nil {
				e.logger.WithFields(src.fields()).WithField("level", level).Warn("Methylation level had missing score")
			}
			rec["Methylation_"+level+"_Score"] = ""
			continue
		}
		rec["Methylation_"+level+"_Score"] = *c.score
		if *c.score >= v12ScoreThreshold {
			category, predicted = c.category, level
		}
	}
	rec["Methylation_Prediction_Category"] = category
	rec["Methylation_Prediction_Level"] = predicted
}

func entryScore(entry *document.Value) *float64 {
	v, ok := optional(entry, "score")
	if !ok || v.IsNull() {
		return nil
	}
	f, err := v.Float()
	if err != nil {
		return nil
	}
	return &f
}

// rescueScore looks for a token such as "0.97" inside the label and moves
// it into the score.
func (c *levelCall) rescueScore() {
	for _, tok := range strings.Split(c.category, " ") {
		if !strings.HasPrefix(tok, "0") {
			continue
		}
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			continue
		}
		c.score = &f
		c.category = strings.ReplaceAll(c.category, tok+" ", "")
		return
	}
}

// extractRawV11 reads family and class codes from a v11 raw data document
// and resolves them to display strings through the reference table.
func (e *Extractor) extractRawV11(src *source, rec domain.FlatRecord) {
	family, familyScore := e.rawCall(src, "family_data", "methylation_family", "family_score")
	class, classScore := e.rawCall(src, "class_data", "methylation_class", "class_score")

	rec["Methylation_Family"] = family
	rec["Methylation_Family_Score"] = familyScore
	rec["Methylation_Class"] = class
	rec["Methylation_Class_Score"] = classScore

	if _, ok := rec["MGMT_Status"]; !ok {
		if data, ok := src.array(src.root, "mgmt_methylation_data"); ok && len(data) > 0 {
			src.set(rec, "MGMT_Status", data[0], "mgmt_methylation_status")
		}
	}
}

// rawCall reads the first entry of a raw data block. Unknown codes are kept
// as their normalized code.
func (e *Extractor) rawCall(src *source, block, codeKey, scoreKey string) (string, interface{}) {
	data, ok := optional(src.root, block)
	if !ok {
		return "", ""
	}
	entries := src.elements(data)
	if len(entries) == 0 {
		return "", ""
	}
	raw, ok := src.text(entries[0], codeKey)
	if !ok {
		return "", ""
	}
	code := methylation.NormalizeCode(raw)

	var score interface{} = ""
	if v, ok := src.scalar(entries[0], scoreKey); ok && v != nil {
		score = v
	}

	display, found := e.reference.Lookup(code)
	if e.logger != nil {
		e.logger.WithFields(src.fields()).WithFields(logrus.Fields{
			"code":    code,
			"display": display,
			"found":   found,
		}).Debug("Resolving " + codeKey)
	}
	if !found {
		return code, score
	}
	return display, score
}
