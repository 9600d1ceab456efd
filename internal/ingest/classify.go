package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mci-report-consolidator/internal/domain"
	"github.com/mci-report-consolidator/pkg/document"
)

// Discriminating fields, checked in this order.
const (
	fieldSubjectID     = "subject_id"
	fieldReportType    = "report_type"
	fieldReportVersion = "report_version"
	fieldUPI           = "upi"
	fieldMetaData      = "meta_data"
	fieldReportTitle   = "report_title"
)

// Classify determines the subject and report type of a parsed document.
// Documents that match no rule fail with ErrUnrecognizedDocument; those
// that declare a report type outside the known set fail with
// ErrUnsupportedReportType.
func Classify(path string, doc *document.Value) (string, domain.ReportType, error) {
	switch {
	case doc.Has(fieldSubjectID):
		return classifyReport(path, doc)
	case doc.Has(fieldUPI):
		subject, err := textField(doc, fieldUPI)
		if err != nil {
			return "", domain.UNRECOGNIZED, unrecognized(path, "registry document without a usable upi", err)
		}
		return subject, domain.COG, nil
	}

	title, err := doc.Lookup(fieldMetaData, fieldReportTitle)
	if err == nil {
		if text, terr := title.Text(); terr == nil && strings.Contains(text, "Methylation") {
			return classifyRawMethylation(path, text)
		}
	}
	return "", domain.UNRECOGNIZED, unrecognized(path, "document matches no classification rule", nil)
}

func classifyReport(path string, doc *document.Value) (string, domain.ReportType, error) {
	subject, err := textField(doc, fieldSubjectID)
	if err != nil {
		return "", domain.UNRECOGNIZED, unrecognized(path, "unusable subject_id", err)
	}
	reportType, err := textField(doc, fieldReportType)
	if err != nil {
		return subject, domain.UNRECOGNIZED, unrecognized(path, "subject_id without report_type", err)
	}

	if strings.Contains(strings.ToLower(reportType), "meth") {
		version, err := textField(doc, fieldReportVersion)
		if err != nil {
			return subject, domain.UNRECOGNIZED, unsupported(path, reportType, err)
		}
		switch {
		case strings.Contains(version, "IGM"):
			return subject, domain.METHYL_IGM, nil
		case strings.Contains(version, "v12"):
			return subject, domain.METHYL_V12, nil
		case strings.Contains(version, "v11"):
			return subject, domain.METHYL_V11, nil
		}
		return subject, domain.UNRECOGNIZED, unsupported(path, fmt.Sprintf("%s (%s)", reportType, version), nil)
	}

	switch domain.ReportType(reportType) {
	case domain.ARCHER_FUSION, domain.TUMOR_NORMAL:
		return subject, domain.ReportType(reportType), nil
	}
	return subject, domain.UNRECOGNIZED, unsupported(path, reportType, nil)
}

// classifyRawMethylation takes the subject from the second '_' or '-'
// delimited token of the file name.
func classifyRawMethylation(path, title string) (string, domain.ReportType, error) {
	subject, ok := SubjectFromFileName(path)
	if !ok {
		return "", domain.UNRECOGNIZED, unrecognized(path, "raw methylation file name carries no subject", nil)
	}
	switch {
	case strings.Contains(title, "v12"):
		return subject, domain.METHYL_V12_RAW, nil
	case strings.Contains(title, "IGM"):
		return subject, domain.METHYL_IGM_RAW, nil
	default:
		return subject, domain.METHYL_V11_RAW, nil
	}
}

// SubjectFromFileName extracts the subject token from names such as
// "MCI-PBCDEF-methylation.json".
func SubjectFromFileName(path string) (string, bool) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	tokens := strings.Split(strings.ReplaceAll(base, "-", "_"), "_")
	if len(tokens) < 2 || tokens[1] == "" {
		return "", false
	}
	return tokens[1], true
}

func textField(doc *document.Value, key string) (string, error) {
	v, err := doc.Field(key)
	if err != nil {
		return "", err
	}
	s, err := v.Text()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", &document.FieldError{Path: v.Path(), Err: document.ErrFieldMissing}
	}
	return s, nil
}

func unrecognized(path, message string, cause error) error {
	return domain.NewPipelineError(domain.ErrUnrecognizedDocument, message, path, cause)
}

func unsupported(path, reportType string, cause error) error {
	return domain.NewPipelineError(domain.ErrUnsupportedReportType, "unknown report type: "+reportType, path, cause)
}
