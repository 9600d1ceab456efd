package methylation

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mci-report-consolidator/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

func classRecords(labels ...string) []domain.FlatRecord {
	records := make([]domain.FlatRecord, len(labels))
	for i, l := range labels {
		records[i] = domain.FlatRecord{"Methylation_Class": l}
	}
	return records
}

type captureReporter struct {
	tables []FrequencyTable
	err    error
}

func (r *captureReporter) ReportFrequencies(table FrequencyTable) error {
	r.tables = append(r.tables, table)
	return r.err
}

func TestCanonicalize_MajorityWinsAcrossSpellings(t *testing.T) {
	records := classRecords(
		"Glioblastoma, IDH-wildtype",
		"Glioblastoma IDH wildtype",
		"Glioblastoma, IDH-wildtype",
		"glioblastoma_idh_wildtype",
		"Glioblastoma, IDH-wildtype",
		"Glioblastoma, IDH-wildtype",
		"Glioblastoma, IDH-wildtype",
	)

	out, table := NewCanonicalizer(nil, quietLogger()).Canonicalize(records)

	require.Len(t, out, len(records))
	for i, rec := range out {
		assert.Equal(t, "Glioblastoma, IDH-wildtype", rec["Methylation_Class"], "record %d", i)
	}

	require.Len(t, table.Groups, 1)
	group := table.Groups[0]
	assert.Equal(t, "glioblastomaidhwildtype", group.Signature)
	assert.Equal(t, "Glioblastoma, IDH-wildtype", group.Canonical)
	assert.Equal(t, []LiteralCount{
		{Literal: "Glioblastoma, IDH-wildtype", Count: 5},
		{Literal: "Glioblastoma IDH wildtype", Count: 1},
		{Literal: "glioblastoma idh wildtype", Count: 1},
	}, group.Literals)
	assert.Equal(t, 7, table.Observations())
}

func TestCanonicalize_TieTakesLastSeenLiteral(t *testing.T) {
	records := classRecords("Ependymoma, PFA", "Ependymoma PFA")

	out, table := NewCanonicalizer(nil, quietLogger()).Canonicalize(records)

	assert.Equal(t, "Ependymoma PFA", out[0]["Methylation_Class"])
	assert.Equal(t, "Ependymoma PFA", out[1]["Methylation_Class"])
	canonical, ok := table.Canonical(Signature("Ependymoma PFA"))
	require.True(t, ok)
	assert.Equal(t, "Ependymoma PFA", canonical)
}

func TestCanonicalize_CapitalizesCanonical(t *testing.T) {
	records := classRecords("plexus tumour", "plexus tumour", "Plexus tumour")

	out, _ := NewCanonicalizer(nil, quietLogger()).Canonicalize(records)

	for _, rec := range out {
		assert.Equal(t, "Plexus tumour", rec["Methylation_Class"])
	}
}

func TestCanonicalize_SpellingVariantsGroup(t *testing.T) {
	records := []domain.FlatRecord{
		{"Methylation_Family": "Haematopoietic tumour"},
		{"Methylation_Family": "Hematopoietic tumour"},
		{"Methylation_Family": "Hematopoietic tumour."},
		{"Methylation_Subclass": "Paediatric-type glioma"},
		{"Methylation_Subclass": "pediatric type glioma"},
	}

	out, table := NewCanonicalizer(nil, quietLogger()).Canonicalize(records)

	assert.Equal(t, "Hematopoietic tumour", out[0]["Methylation_Family"])
	assert.Equal(t, "Hematopoietic tumour", out[1]["Methylation_Family"])
	assert.Equal(t, "Hematopoietic tumour", out[2]["Methylation_Family"])
	assert.Equal(t, "Pediatric type glioma", out[3]["Methylation_Subclass"])
	assert.Equal(t, "Pediatric type glioma", out[4]["Methylation_Subclass"])
	assert.Len(t, table.Groups, 2)
}

func TestCanonicalize_GroupsAcrossFields(t *testing.T) {
	records := []domain.FlatRecord{
		{"Methylation_Family": "Medulloblastoma, SHH", "Methylation_Class": "medulloblastoma SHH"},
		{"Methylation_Class": "Medulloblastoma, SHH"},
	}

	out, _ := NewCanonicalizer(nil, quietLogger()).Canonicalize(records)

	assert.Equal(t, "Medulloblastoma, SHH", out[0]["Methylation_Family"])
	assert.Equal(t, "Medulloblastoma, SHH", out[0]["Methylation_Class"])
	assert.Equal(t, "Medulloblastoma, SHH", out[1]["Methylation_Class"])
}

func TestCanonicalize_EmptyValuesCarryNoSignal(t *testing.T) {
	records := []domain.FlatRecord{
		{"Methylation_Class": ".", "Methylation_Family": "", "Methylation_Subclass": nil},
		{"Methylation_Class": 0.95},
		nil,
		{"Sample": "S4"},
	}

	out, table := NewCanonicalizer(nil, quietLogger()).Canonicalize(records)

	assert.Empty(t, table.Groups)
	if diff := cmp.Diff(records, out); diff != "" {
		t.Errorf("records changed (-want +got):\n%s", diff)
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	records := []domain.FlatRecord{
		{"Methylation_Class": "Glioblastoma, IDH-wildtype", "Methylation_Family": "haematopoietic_tumour;"},
		{"Methylation_Class": "glioblastoma IDH wildtype ", "Methylation_Family": "Hematopoietic tumour"},
		{"Methylation_Class": "Pineoblastoma and PPTID", "Methylation_Subclass": "  "},
		{"Methylation_Class": "Pineoblastoma & PPTID"},
	}

	c := NewCanonicalizer(nil, quietLogger())
	once, _ := c.Canonicalize(records)
	twice, _ := c.Canonicalize(once)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second pass changed records (-first +second):\n%s", diff)
	}
	assert.Equal(t, once[2]["Methylation_Class"], once[3]["Methylation_Class"])
}

func TestCanonicalize_NoRecordLossAndInputUntouched(t *testing.T) {
	records := classRecords("glioma", "Glioma", "glioma")

	out, _ := NewCanonicalizer(nil, quietLogger()).Canonicalize(records)

	assert.Len(t, out, 3)
	assert.Equal(t, "glioma", records[0]["Methylation_Class"], "input must not be mutated")
	assert.Equal(t, "Glioma", out[0]["Methylation_Class"])
}

func TestCanonicalize_ReportersReceiveTable(t *testing.T) {
	logger, hook := test.NewNullLogger()
	good := &captureReporter{}
	failing := &captureReporter{err: errors.New("disk full")}

	c := NewCanonicalizer([]string{"Label"}, logger,
		WithReporter(good),
		WithReporter(failing),
		WithReporter(nil),
		WithSignatureCacheSize(0),
	)
	out, table := c.Canonicalize([]domain.FlatRecord{{"Label": "ATRT, MYC"}, {"Label": "ATRT MYC"}})

	require.Len(t, good.tables, 1)
	assert.Equal(t, table, good.tables[0])
	require.Len(t, failing.tables, 1)
	assert.Equal(t, "ATRT MYC", out[0]["Label"])

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true
			assert.Equal(t, "Failed to report methylation label frequencies", entry.Message)
		}
	}
	assert.True(t, warned)
}

func TestLogReporter(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	table := FrequencyTable{Groups: []SignatureGroup{{
		Signature: "gliomalowgrade",
		Canonical: "Low grade glioma",
		Literals: []LiteralCount{
			{Literal: "Low grade glioma", Count: 3},
			{Literal: "low-grade glioma", Count: 1},
		},
	}}}

	require.NoError(t, NewLogReporter(logger).ReportFrequencies(table))
	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, true, hook.AllEntries()[0].Data["canonical"])
	assert.Equal(t, false, hook.AllEntries()[1].Data["canonical"])
	assert.NoError(t, NewLogReporter(nil).ReportFrequencies(table))
}
