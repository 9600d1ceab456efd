package variant

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mci-report-consolidator/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

func TestCanonicalize_LongestProteinChangeWins(t *testing.T) {
	records := []domain.FlatRecord{
		{"Sample": "S1", "TN_Somatic_Tier1": "BRAF NM_1 c.1A>T p.K1N"},
		{"Sample": "S2", "TN_Somatic_Tier2": "BRAF NM_1 c.1A>T p.Lys1Asn"},
	}

	c := NewCanonicalizer(nil, quietLogger())
	out, report := c.Canonicalize(records)

	require.Len(t, out, 2)
	assert.Equal(t, "BRAF NM_1 c.1A>T p.Lys1Asn", out[0]["TN_Somatic_Tier1"])
	assert.Equal(t, "BRAF NM_1 c.1A>T p.Lys1Asn", out[1]["TN_Somatic_Tier2"])
	assert.Equal(t, 2, report.DistinctVariants)
	assert.Equal(t, 1, report.Classes)
	require.Len(t, report.Rewrites, 1)
	assert.Equal(t, Rewrite{
		Field:     "TN_Somatic_Tier1",
		Original:  "BRAF NM_1 c.1A>T p.K1N",
		Canonical: "BRAF NM_1 c.1A>T p.Lys1Asn",
		Count:     1,
	}, report.Rewrites[0])
}

func TestCanonicalize_MultiVariantFieldsKeepOrder(t *testing.T) {
	records := []domain.FlatRecord{
		{"TN_Germline_VUS": "TP53 NM_2 c.5C>G p.P5R;BRAF NM_1 c.1A>T p.K1N"},
		{"TN_Germline_VUS": "BRAF NM_1 c.1A>T p.Lys1Asn;TP53 NM_2 c.5C>G p.Pro5Arg"},
	}

	out, _ := NewCanonicalizer(nil, quietLogger()).Canonicalize(records)

	assert.Equal(t, "TP53 NM_2 c.5C>G p.Pro5Arg;BRAF NM_1 c.1A>T p.Lys1Asn", out[0]["TN_Germline_VUS"])
	assert.Equal(t, "BRAF NM_1 c.1A>T p.Lys1Asn;TP53 NM_2 c.5C>G p.Pro5Arg", out[1]["TN_Germline_VUS"])
}

func TestCanonicalize_DistinctLociAreNotMerged(t *testing.T) {
	records := []domain.FlatRecord{
		{"TN_Somatic_Tier1": "BRAF NM_1 c.1A>T p.K1N"},
		{"TN_Somatic_Tier1": "BRAF NM_1.2 c.1A>T p.Lys1Asn"},
	}

	out, report := NewCanonicalizer(nil, quietLogger()).Canonicalize(records)

	assert.Equal(t, "BRAF NM_1 c.1A>T p.K1N", out[0]["TN_Somatic_Tier1"])
	assert.Equal(t, "BRAF NM_1.2 c.1A>T p.Lys1Asn", out[1]["TN_Somatic_Tier1"])
	assert.Equal(t, 2, report.Classes)
	assert.Empty(t, report.Rewrites)
}

func TestCanonicalize_EqualLengthTieTakesLastObserved(t *testing.T) {
	records := []domain.FlatRecord{
		{"TN_Somatic_Tier1": "KRAS NM_3 c.35G>A p.G12D"},
		{"TN_Somatic_Tier1": "KRAS NM_3 c.35G>A p.G12X"},
	}

	out, _ := NewCanonicalizer(nil, quietLogger()).Canonicalize(records)

	assert.Equal(t, "KRAS NM_3 c.35G>A p.G12X", out[0]["TN_Somatic_Tier1"])
	assert.Equal(t, "KRAS NM_3 c.35G>A p.G12X", out[1]["TN_Somatic_Tier1"])
}

func TestCanonicalize_Idempotent(t *testing.T) {
	records := []domain.FlatRecord{
		{"Sample": "S1", "TN_Somatic_Tier1": "BRAF NM_1 c.1A>T p.K1N;NF1 NM_4 c.9del p.?"},
		{"Sample": "S2", "TN_Somatic_Tier3": "BRAF  NM_1 c.1A>T   p.Lys1Asn"},
		{"Sample": "S3", "TN_Germline_Path": "."},
	}

	c := NewCanonicalizer(nil, quietLogger())
	once, _ := c.Canonicalize(records)
	twice, report := c.Canonicalize(once)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second pass changed records (-first +second):\n%s", diff)
	}
	assert.Empty(t, report.Rewrites)
}

func TestCanonicalize_NoRecordLossAndInputUntouched(t *testing.T) {
	records := []domain.FlatRecord{
		{"TN_Somatic_Tier1": "BRAF NM_1 c.1A>T p.K1N"},
		nil,
		{"Other": "x"},
		{"TN_Somatic_Tier1": "BRAF NM_1 c.1A>T p.Lys1Asn"},
	}

	out, _ := NewCanonicalizer(nil, quietLogger()).Canonicalize(records)

	assert.Len(t, out, len(records))
	assert.Nil(t, out[2]["TN_Somatic_Tier1"])
	assert.Equal(t, "BRAF NM_1 c.1A>T p.K1N", records[0]["TN_Somatic_Tier1"], "input must not be mutated")
}

func TestCanonicalize_SkipsShortAndNonStringValues(t *testing.T) {
	records := []domain.FlatRecord{
		{"TN_Somatic_Tier1": ".", "TN_Somatic_Tier2": "", "TN_Somatic_Tier3": 3.0},
	}

	out, report := NewCanonicalizer(nil, quietLogger()).Canonicalize(records)

	assert.Equal(t, ".", out[0]["TN_Somatic_Tier1"])
	assert.Equal(t, "", out[0]["TN_Somatic_Tier2"])
	assert.Equal(t, 3.0, out[0]["TN_Somatic_Tier3"])
	assert.Zero(t, report.DistinctVariants)
}

func TestCanonicalize_CustomFields(t *testing.T) {
	records := []domain.FlatRecord{
		{"Custom": "EGFR NM_5 c.2G>T p.V2F", "TN_Somatic_Tier1": "EGFR NM_5 c.2G>T p.Val2Phe"},
		{"Custom": "EGFR NM_5 c.2G>T p.Val2Phe"},
	}

	out, _ := NewCanonicalizer([]string{"Custom"}, quietLogger()).Canonicalize(records)

	assert.Equal(t, "EGFR NM_5 c.2G>T p.Val2Phe", out[0]["Custom"])
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "BRAF NM_1 c.1A>T p.K1N", Join("BRAF NM_1 c.1A>T", "p.K1N"))
	assert.Equal(t, "p.K1N", Join("", "p.K1N"))
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		locus   string
		protein string
		ok      bool
	}{
		{"four tokens", "BRAF NM_1 c.1A>T p.K1N", "BRAF NM_1 c.1A>T", "p.K1N", true},
		{"extra tokens dropped from locus", "BRAF NM_1 c.1A>T extra p.K1N", "BRAF NM_1 c.1A>T", "p.K1N", true},
		{"two tokens", "BRAF p.K1N", "BRAF", "p.K1N", true},
		{"single token", "p.K1N", "", "p.K1N", true},
		{"surrounding space", "  BRAF NM_1 c.1A>T p.K1N ", "BRAF NM_1 c.1A>T", "p.K1N", true},
		{"empty", "   ", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locus, protein, ok := Split(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.locus, locus)
			assert.Equal(t, tt.protein, protein)
		})
	}
}
