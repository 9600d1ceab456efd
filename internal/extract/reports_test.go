package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mci-report-consolidator/internal/domain"
)

func field(id, value string) string {
	return fmt.Sprintf(`{"form_field_id":%q,"value":%q}`, id, value)
}

func checkbox(id, value, label string) string {
	return fmt.Sprintf(`{"form_field_id":%q,"value":%q,"SASLabel":%q}`, id, value, label)
}

func formJSON(id string, blocks ...[]string) string {
	parts := []string{fmt.Sprintf(`"form_id":%q`, id)}
	for _, b := range blocks {
		parts = append(parts, fmt.Sprintf(`"data":[%s]`, strings.Join(b, ",")))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func TestExtract_COG(t *testing.T) {
	forms := []string{
		formJSON("DEMOGRAPHY", []string{
			field("DM_BRTHDAT", "2010-05-01"),
			field("DM_ETHNIC", "Not Hispanic or Latino"),
			field("DM_CRACE", "White"),
			field("DM_SEX", "Female"),
			field("SC_SCORRES_CNTRYRES", "United States"),
		}),
		formJSON("ON_STUDY_DX_CNS", []string{
			field("TUMOR_GP_ST", "Grade 4"),
			field("SURGBXRCTPFM", "Yes"),
			field("TUM_RES_EXT_TP", "Gross total"),
		}),
		// Repeated data blocks are renamed data_1 by the parser.
		formJSON("FOLLOW_UP",
			[]string{
				field("REP_EVAL_PD_TP", "Year 1"),
				field("PT_INF_CU_FU_COL_IND", "Yes"),
				field("PT_FU_BEGDT", "2020-01-01"),
				field("PT_FU_END_DT", "2020-12-31"),
				field("PT_VST", "Alive"),
				field("FSTLNTXINIDXADM", "Yes"),
				field("FSTLNTXINIDXADMCAT_A1", "checked"),
				field("FSTLNTXINIDXADMCAT_A2", ""),
				field("FSTLNTXINIDXADMCAT_A4", "Checked"),
				field("FSTLNTXINIDXADMCAT_A6", "checked"),
				field("FSTLNTXINIDXADMOS", "Proton beam"),
				field("DZ_EXM_REP_IND_2", "Yes"),
			},
			[]string{
				field("REP_EVAL_PD_TP", "Year 2"),
				field("PT_INF_CU_FU_COL_IND", "No"),
				field("PT_VST", "Dead"),
				field("FSTLNTXINIDXADM", "No"),
				field("DZ_EXM_REP_IND_2", ""),
			},
		),
		formJSON("TX_CHEMO_CNS", []string{
			field("TX_RCVD_YES_NO", "Yes"),
			field("COG_ID_ENUM", "Other"),
			field("COG_ID_OTHER", "ACNS0831"),
			field("PRI_TX_RGM_SPEC", "Modified"),
			field("NPROT_TX_ADM_IND_3", "No"),
			checkbox("AGT_ADM_NM_1", "checked", "Vincristine"),
			checkbox("AGT_ADM_NM_2", "", "Carboplatin"),
			checkbox("AGT_ADM_NM_3", "checked", "Temozolomide"),
		}),
		formJSON("RADIATION_THERAPY", []string{
			checkbox("RT_TX_TP_1", "checked", "Photon"),
			checkbox("RT_TX_TP_2", "", "Proton"),
		}),
		formJSON("CNS_DIAGNOSIS_DETAIL", []string{
			field("MH_MHCAT_CNSDXCAT", "Embryonal"),
			field("MH_MHSCAT_CNSDXINTGRT_1", "Medulloblastoma, SHH-activated"),
			field("MH_MHSCAT_CNSDXINTGRT_2", "."),
		}),
		formJSON("ON_STUDY_DX_SOFT_TISSUE_SARCOMA", []string{
			field("SURG_RESECT_EXT_TP", "Other"),
			field("SURG_PROC_O_SPEC_TXT", "Biopsy only"),
		}),
	}
	body := `{"upi":"PA0010","forms":[` + strings.Join(forms, ",") + `]}`

	logger, hook := test.NewNullLogger()
	rec := NewExtractor(nil, logger).Extract(bundleOf(t, "PA0010", testDoc{domain.COG, body}))

	expected := map[string]interface{}{
		"Birth_Date":                   "2010-05-01",
		"Sex":                          "Female",
		"Country_of_Residence":         "United States",
		"Tumor_Grade":                  "Grade 4",
		"APEC14B1_Reporting_Period":    "Year 1;Year 2",
		"FollowUp_Obtained_for_Period": "Yes (2020-01-01-2020-12-31);No",
		"Vital_status":                 "Alive;Dead",
		"Frontline_Treatment_Received": "Chemotherapy/Immunotherapy;Surgery;Proton beam;No",
		"Disease_Status_Evaluated_During_Interval": "Yes;",
		"Treated_but_not_Enrolled":                 "Yes",
		"COG_Anti_Cancer_Treatment":                "Other;ACNS0831;Modified",
		"Non_COG_Anti_Cancer_Treatment":            "No",
		"Chemotherapy":                             "Vincristine;Temozolomide",
		"Radiation_Therapy":                        "Photon",
		"CNS_Diagnosis_Category":                   "Embryonal",
		"CNS_Integrated_Diagnosis":                 "Medulloblastoma, SHH-activated",
		"Procedure_Type":                           "Other;Biopsy only",
		"Sample":                                   "PA0010",
	}
	for k, v := range expected {
		assert.Equal(t, v, rec[k], k)
	}

	// One field of the three is absent, so the joined value is not written.
	_, ok := rec["Had_Surgical_Resection"]
	assert.False(t, ok)

	var missing []string
	for _, e := range warnings(hook) {
		missing = append(missing, e.Data["error"].(string))
	}
	assert.Contains(t, strings.Join(missing, "\n"), "form_field_id=OTX_SURG_RESECT_TXT")
}

func TestExtract_TumorNormal(t *testing.T) {
	body := `{
		"subject_id": "PA0011", "report_type": "tumor_normal", "version": "2.1",
		"percent_tumor": 80, "percent_necrosis": "5", "disease_group": "CNS", "indication_for_study": "Relapse",
		"somatic_results": {"variants": [
			{"gene": "BRAF", "transcript": "NM_004333.6", "nucleotide_change": "c.1799T>A",
			 "predicted_protein_change": "p.Val600Glu", "interpretation": {"value": "Tier 1 - Strong"}},
			{"gene": "TP53", "transcript": "NM_000546.6", "nucleotide_change": "c.637C>T",
			 "predicted_protein_change": "p.(Arg213*)", "interpretation": {"value": "Tier III"}}
		]},
		"germline_results": {"variants": [
			{"gene": "NF1", "transcript": "NM_000267.3", "nucleotide_change": "c.61-2A>G",
			 "interpretation": {"value": "Likely Pathogenic"}}
		]},
		"somatic_cnv_results": {
			"variants": [
				{"copy_number_type": "Focal Amplification",
				 "genomic_change": {"chromosome": "chr7", "start": 55019017, "end": 55211628},
				 "disease_associated_gene_content": ["EGFR", "SEC61G"],
				 "interpretation": {"value": "Tier 2"}},
				{"copy_number_type": "Copy Neutral Loss of Heterozygosity",
				 "genomic_change": {"chromosome": "chr17", "start": 1, "end": 83257441},
				 "disease_associated_gene_content": ["TP53", "NF1", "N/A"],
				 "interpretation": {"value": "Tier 3"}}
			],
			"summary": ["Amplification of EGFR."]
		},
		"germline_cnv_results": {
			"variants": [
				{"copy_number_type": "Whole genome gain",
				 "genomic_change": {"chromosome": null},
				 "cytogenetic_locus": "near triploid genome",
				 "disease_associated_gene_content": [],
				 "interpretation": {"value": "Tier 3"}}
			],
			"summary": ["None detected"]
		}
	}`

	rec := NewExtractor(nil, quietLogger()).Extract(bundleOf(t, "PA0011", testDoc{domain.TUMOR_NORMAL, body}))

	expected := map[string]interface{}{
		"TN_Version":                        "2.1",
		"TN_Somatic_Tier1":                  "BRAF NM_004333.6 c.1799T>A p.Val600Glu",
		"TN_Somatic_Tier2":                  "",
		"TN_Somatic_Tier3":                  "TP53 NM_000546.6 c.637C>T p.Arg213Ter",
		"TN_Germline_LikelyPath":            "NF1 NM_000267.3 c.61-2A>G p.?",
		"TN_Germline_Path":                  "",
		"TN_Germline_VUS":                   "",
		"TN_Somatic_Result":                 "Positive",
		"TN_Germline_Result":                "Positive",
		"TN_Somatic_CNV_Tier1-2":            "chr7:55019017-55211628 Focal Amplification (EGFR,SEC61G)",
		"TN_Somatic_CNV_Tier3":              "chr17:1-83257441 Copy Neutral LOH",
		"TN_Somatic_CNV_Gene_Amplification": "EGFR;SEC61G",
		"TN_Somatic_CNV_Gene_LOH":           "NF1;TP53",
		"TN_Somatic_CNV_Gene_Loss":          "",
		"TN_Somatic_CNV_Blurb":              "Amplification of EGFR.",
		"TN_Somatic_CNV_Result":             "Positive",
		"TN_Germline_CNV_Tier1-2":           "",
		"TN_Germline_CNV_Tier3":             "Near-Triploid Genome",
		"TN_Germline_CNV_Gene_Gain":         "",
		"TN_Germline_CNV_Blurb":             "None detected",
		"TN_Germline_CNV_Result":            "Positive",
		"Cellularity":                       80.0,
		"Necrosis":                          "5",
	}
	for k, v := range expected {
		assert.Equal(t, v, rec[k], k)
	}
}

func TestExtract_TumorNormalBlurbInference(t *testing.T) {
	body := `{"version": "2",
		"percent_tumor": 1, "percent_necrosis": 1, "disease_group": "x", "indication_for_study": "y",
		"somatic_cnv_results": {"variants": [], "summary": ["Copy number changes ", "in 1q."]},
		"germline_cnv_results": {"summary": ["Insufficient coverage for CNV calling."]}}`

	rec := NewExtractor(nil, quietLogger()).Extract(bundleOf(t, "PA0012", testDoc{domain.TUMOR_NORMAL, body}))

	assert.Equal(t, "Positive", rec["TN_Somatic_CNV_Result"])
	assert.Equal(t, "Copy number changes \nin 1q.", rec["TN_Somatic_CNV_Blurb"])
	assert.Equal(t, "Negative", rec["TN_Germline_CNV_Result"])
	assert.Equal(t, "Negative", rec["TN_Somatic_Result"])
}

func TestExtract_IGMMethylation(t *testing.T) {
	body := `{"report_version": "IGM Methylation v1",
		"final_diagnosis": {"methylation_class": "Diffuse pediatric-type HGG", "mgmt_status": "Unmethylated"},
		"percent_tumor": 60, "percent_necrosis": 10, "disease_group": "CNS", "indication_for_study": "Diagnosis",
		"results": [
			{"category": "Super Family", "predictedClassification": "Glioma", "classifierScore": "0.99"},
			{"category": "Family", "predictedClassification": "Pediatric-type HGG", "classifierScore": 0.85},
			{"category": "Class", "predictedClassification": "pHGG H3 K27", "classifierScore": 0.5},
			{"category": "Cluster", "predictedClassification": "x", "classifierScore": 0.99}
		]}`

	logger, hook := test.NewNullLogger()
	rec := NewExtractor(nil, logger).Extract(bundleOf(t, "PA0013", testDoc{domain.METHYL_IGM, body}))

	assert.Equal(t, "Glioma", rec["Methylation_Superfamily"])
	assert.Equal(t, 0.99, rec["Methylation_Superfamily_Score"])
	assert.Equal(t, "Pediatric-type HGG", rec["Methylation_Family"])
	assert.Equal(t, 0.85, rec["Methylation_Family_Score"])
	assert.Equal(t, 0.5, rec["Methylation_Class_Score"])
	assert.Equal(t, "Pediatric-type HGG", rec["Methylation_Prediction_Category"])
	assert.Equal(t, "Family", rec["Methylation_Prediction_Level"])
	assert.Equal(t, "Diffuse pediatric-type HGG", rec["Methylation_Classification_Final"])
	assert.Equal(t, "Unmethylated", rec["MGMT_Status"])
	_, ok := rec["Methylation_Cluster"]
	assert.False(t, ok)

	require.Len(t, warnings(hook), 1)
	assert.Equal(t, "Unknown methylation level", warnings(hook)[0].Message)
}

func TestExtract_V12MethylationRepair(t *testing.T) {
	body := `{"report_version": "v12.8",
		"final_diagnosis": {"methylation_class": "GBM", "mgmt_status": "Methylated"},
		"percent_tumor": 60, "percent_necrosis": 10, "disease_group": "CNS", "indication_for_study": "Diagnosis",
		"predicted_classification_classifier_scores": [
			{"category": "Orphan entry", "score": 0.2},
			{"category": "Super Family Glioblastoma", "score": 0.99},
			{"category": "Family GBM, IDH wildtype", "score": 0.95},
			{"category": "RTK II Class GBM RTK II", "score": null},
			{"category": "Subclass 0.97 RTK II typical", "score": null}
		]}`

	logger, hook := test.NewNullLogger()
	rec := NewExtractor(nil, logger).Extract(bundleOf(t, "PA0014", testDoc{domain.METHYL_V12, body}))

	assert.Equal(t, "Glioblastoma", rec["Methylation_Superfamily"])
	assert.Equal(t, 0.99, rec["Methylation_Superfamily_Score"])
	assert.Equal(t, "GBM, IDH wildtype, RTK II ", rec["Methylation_Family"])
	assert.Equal(t, 0.95, rec["Methylation_Family_Score"])
	assert.Equal(t, " GBM RTK II", rec["Methylation_Class"])
	assert.Equal(t, "", rec["Methylation_Class_Score"])
	assert.Equal(t, "RTK II typical", rec["Methylation_Subclass"])
	assert.Equal(t, 0.97, rec["Methylation_Subclass_Score"])
	assert.Equal(t, "RTK II typical", rec["Methylation_Prediction_Category"])
	assert.Equal(t, "Subclass", rec["Methylation_Prediction_Level"])

	var messages []string
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "Rescued methylation score from label text")
	assert.Contains(t, messages, "Methylation level had missing score")
}

func TestGeneBucket(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Biallelic loss", bucketBiallelicLoss},
		{"Complete Loss", bucketBiallelicLoss},
		{"Copy neutral LOH", bucketLOH},
		{"Homozygous deletion", bucketLOH},
		{"Focal gain", bucketGain},
		{"High level amplification", bucketAmplification},
		{"Single copy loss", bucketLoss},
		{"Deletion", bucketLoss},
		{"Translocation", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, geneBucket(tt.input))
		})
	}
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Near Triploid Genome", titleCase("near TRIPLOID genome"))
	assert.Equal(t, "1P36 Deletion", titleCase("1p36 deletion"))
	assert.Equal(t, "", titleCase(""))
}
