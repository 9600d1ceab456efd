// Package domain contains the core entities shared by the ingestion,
// extraction and canonicalization stages of the MCI report consolidator.
//
// A run turns a pile of per-pipeline report documents into one flat record per
// research subject, then rewrites free-text nomenclature so that the same
// variant or methylation class is spelled identically across the cohort.
package domain

import (
	"errors"
)

// ReportType is the closed set of report document classifications.
// Documents whose type falls outside this set never reach a SubjectBundle.
type ReportType string

const (
	COG            ReportType = "cog"
	TUMOR_NORMAL   ReportType = "tumor_normal"
	METHYL_IGM     ReportType = "methyl_igm"
	METHYL_V11     ReportType = "methyl_v11"
	METHYL_V12     ReportType = "methyl_v12"
	ARCHER_FUSION  ReportType = "archer_fusion"
	METHYL_V11_RAW ReportType = "methyl_v11_raw"
	METHYL_V12_RAW ReportType = "methyl_v12_raw"
	METHYL_IGM_RAW ReportType = "methyl_igm_raw"
	UNRECOGNIZED   ReportType = "unrecognized"
)

// KnownReportTypes lists every retained report type in slot order.
var KnownReportTypes = []ReportType{
	COG,
	TUMOR_NORMAL,
	METHYL_IGM,
	METHYL_V11,
	METHYL_V12,
	ARCHER_FUSION,
	METHYL_V11_RAW,
	METHYL_V12_RAW,
	METHYL_IGM_RAW,
}

var ErrUnknownReportType = errors.New("unknown report type")

// IsValid reports whether the type is one of the nine retained types.
// UNRECOGNIZED is deliberately not valid.
func (rt ReportType) IsValid() bool {
	switch rt {
	case COG, TUMOR_NORMAL, METHYL_IGM, METHYL_V11, METHYL_V12, ARCHER_FUSION,
		METHYL_V11_RAW, METHYL_V12_RAW, METHYL_IGM_RAW:
		return true
	default:
		return false
	}
}

// String returns the string representation of the report type.
func (rt ReportType) String() string {
	return string(rt)
}

// IsMethylation reports whether the type carries a methylation classification.
func (rt ReportType) IsMethylation() bool {
	switch rt {
	case METHYL_IGM, METHYL_V11, METHYL_V12, METHYL_V11_RAW, METHYL_V12_RAW, METHYL_IGM_RAW:
		return true
	default:
		return false
	}
}

// ParseReportType converts a stored report type name back to a ReportType.
func ParseReportType(s string) (ReportType, error) {
	rt := ReportType(s)
	if !rt.IsValid() {
		return UNRECOGNIZED, ErrUnknownReportType
	}
	return rt, nil
}

// Decision is the outcome of offering a document to a SubjectBundle slot.
type Decision string

const (
	DecisionAdded      Decision = "added"
	DecisionDuplicate  Decision = "duplicate"
	DecisionKeptLarger Decision = "kept_larger"
	DecisionReplaced   Decision = "replaced"
	DecisionSkipped    Decision = "skipped"
	DecisionFailed     Decision = "failed"
)

// Retained reports whether the offered document ended up in its slot.
func (d Decision) Retained() bool {
	return d == DecisionAdded || d == DecisionReplaced
}
