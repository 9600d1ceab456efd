package extract

import (
	"fmt"
	"strings"

	"github.com/mci-report-consolidator/internal/domain"
	"github.com/mci-report-consolidator/pkg/document"
)

const (
	formFollowUp = "FOLLOW_UP"
	checked      = "checked"
	listSep      = ";"
)

// form is one registry form: its field objects keyed by form_field_id, in
// document order.
type form struct {
	order  []string
	fields map[string]*document.Value
}

func newForm() *form {
	return &form{fields: make(map[string]*document.Value)}
}

func (f *form) add(id string, field *document.Value) {
	if _, ok := f.fields[id]; !ok {
		f.order = append(f.order, id)
	}
	f.fields[id] = field
}

// value reads the "value" of a form field.
func (s *source) value(f *form, id string) (string, bool) {
	field, ok := f.fields[id]
	if !ok {
		s.missing(&document.FieldError{Path: "form_field_id=" + id, Err: document.ErrFieldMissing})
		return "", false
	}
	return s.text(field, "value")
}

// checkedLabels collects the SASLabel of every checked field whose id starts
// with prefix.
func (s *source) checkedLabels(f *form, prefix string) []string {
	var labels []string
	for _, id := range f.order {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if v, ok := s.text(f.fields[id], "value"); ok && v == checked {
			if label, ok := s.text(f.fields[id], "SASLabel"); ok {
				labels = append(labels, label)
			}
		}
	}
	return labels
}

type formField struct {
	out string
	id  string
}

// cogSimpleForms are the forms whose fields map one to one onto the record.
var cogSimpleForms = []struct {
	name   string
	fields []formField
}{
	{"DEMOGRAPHY", []formField{
		{"Birth_Date", "DM_BRTHDAT"},
		{"Ethnicity", "DM_ETHNIC"},
		{"Race", "DM_CRACE"},
		{"Sex", "DM_SEX"},
		{"Country_of_Residence", "SC_SCORRES_CNTRYRES"},
	}},
	{"COG_UPR_DX", []formField{
		{"Diagnosis_ID", "ADM_DX_CD_SEQ"},
		{"Enrolled_Dx", "PRM_TU_DX_TXT"},
		{"Date_of_Diagnosis", "DX_DT"},
		{"Primary_Site_Code", "TOPO_ICDO"},
		{"Primary_Site_Term", "TOPO_TEXT"},
		{"Initial_Dx_Code", "MORPHO_ICDO"},
		{"Initial_Dx_Term", "MORPHO_TEXT"},
		{"Registry_Stage_Code", "REG_STAGE_CODE_TEXT"},
	}},
	{"REGISTRY_DATA", []formField{
		{"Date_of_Death", "DEATH_DOC_DATE"},
	}},
	{"FINAL_DIAGNOSIS", []formField{
		{"Dx_Morpho_Code", "PRM_CA_DX_ICD_O_CD"},
		{"Primary_Dx_Disease_Group", "PRIMDXDSCAT"},
	}},
	{"TREATMENT_CONFIRMATION", []formField{
		{"Enrolled_on_Prev_COG_Study", "PT_OTH_ENROLLM_IND_2"},
	}},
	{"ON_STUDY_DX_CNS", []formField{
		{"Tumor_Grade", "TUMOR_GP_ST"},
		{"Tumor_M_Stage", "CNSTMRMSTG"},
		{"Cerebrospinal_Fluid_Status", "CSFCYTLGY"},
		{"Spine_at_Diagnosis", "CNSSPNDXSTATUS"},
		{"Residual_Tumor", "RESI_MALI_POST_SURG_MEAS"},
	}},
	{"NCI_MCI_FUP", []formField{
		{"Has_Molecular_Reports", "MCRPTRCVD"},
		{"Trial_Enrolled_Using_Results", "PTNTENRLSEQELIGTREATASGNIND"},
		{"Therapy_Matched_By_Sequencing", "PTNTMOLSEQVARINDMCHTXTRLENR"},
		{"Dx_Refined_by_Testing", "FNLDXMOLANLSUPDOTCM"},
	}},
	{"DEATH", []formField{
		{"Primary_Cause_of_Death", "PT_DEATH_PRM_RSN"},
	}},
	{"RLP_PROG_CNS", []formField{
		{"Relapse_Status", "PROG_REL_STAT"},
		{"Relapse_Date", "DZ_RECUR_PROG_DX_DT"},
		{"Relapse_Site", "MET_REL_PROG_LOC_CATE_A1"},
	}},
	{"CNS_DIAGNOSIS_DETAIL", []formField{
		{"CNS_Diagnosis_Category", "MH_MHCAT_CNSDXCAT"},
	}},
}

// followUpFields are appended once per follow-up form, after the reporting
// period and follow-up status.
var followUpFields = []formField{
	{"Disease_Status_Evaluated_During_Interval", "DZ_EXM_REP_IND_2"},
	{"Achieved_Complete_Remission", "COMP_RESP_CONF_IND_3"},
	{"Developed_First_Relapse_or_Progression", "DZ_REL_PROG_IND3"},
	{"Dx_New_Primary_or_MDS", "NEW_CA_DX_IND_3"},
	{"Patient_Reached_Tenth_Anniv", "PT_FU_ANNIV_REACH_IND"},
	{"Confirmed_Lost_to_FollowUp", "PT_LOST_FU_IND_2"},
	{"Plans_To_Continue_Tracking_Outcome", "PT_FOL_CON_IND"},
	{"Withdrew_APEC14B1_Consent", "PTWDRWCSNTFUENDRPDIND"},
}

// frontlineCategories pairs each checkbox of the frontline treatment question
// with its label. The last checkbox is "other" and uses the free text.
var frontlineCategories = []formField{
	{"Chemotherapy/Immunotherapy", "FSTLNTXINIDXADMCAT_A1"},
	{"Radiation Therapy", "FSTLNTXINIDXADMCAT_A2"},
	{"Stem Cell Transplant", "FSTLNTXINIDXADMCAT_A3"},
	{"Surgery", "FSTLNTXINIDXADMCAT_A4"},
	{"Cellular Therapy", "FSTLNTXINIDXADMCAT_A5"},
}

const (
	frontlineAnswer     = "FSTLNTXINIDXADM"
	frontlineOther      = "FSTLNTXINIDXADMCAT_A6"
	frontlineOtherText  = "FSTLNTXINIDXADMOS"
	integratedDxPrefix  = "MH_MHSCAT_CNSDXINTGRT"
	chemoAgentPrefix    = "AGT_ADM_NM"
	radiationTypePrefix = "RT_TX_TP"
)

// collectForms indexes the forms array. FOLLOW_UP may repeat and may carry
// several data* blocks, each becoming its own form.
func (s *source) collectForms() (map[string]*form, []*form, bool) {
	forms, ok := s.array(s.root, "forms")
	if !ok {
		return nil, nil, false
	}
	byName := make(map[string]*form)
	var followUps []*form

	for _, f := range forms {
		name, ok := s.text(f, "form_id")
		if !ok {
			continue
		}
		if name == formFollowUp {
			keys, _ := f.Keys()
			for _, k := range keys {
				if !strings.HasPrefix(k, "data") {
					continue
				}
				if fu := s.indexForm(f, k); fu != nil {
					followUps = append(followUps, fu)
				}
			}
			continue
		}
		if indexed := s.indexForm(f, "data"); indexed != nil {
			byName[name] = indexed
		}
	}
	return byName, followUps, true
}

func (s *source) indexForm(f *document.Value, key string) *form {
	data, ok := s.array(f, key)
	if !ok {
		return nil
	}
	out := newForm()
	for _, field := range data {
		id, ok := s.text(field, "form_field_id")
		if !ok {
			continue
		}
		out.add(id, field)
	}
	return out
}

func (e *Extractor) extractCOG(src *source, rec domain.FlatRecord) {
	forms, followUps, ok := src.collectForms()
	if !ok {
		return
	}

	for _, sf := range cogSimpleForms {
		f, ok := forms[sf.name]
		if !ok {
			continue
		}
		for _, ff := range sf.fields {
			if v, ok := src.value(f, ff.id); ok {
				rec[ff.out] = v
			}
		}
	}

	if f, ok := forms["ON_STUDY_DX_CNS"]; ok {
		src.joined(rec, "Had_Surgical_Resection", f, "SURGBXRCTPFM", "TUM_RES_EXT_TP", "OTX_SURG_RESECT_TXT")
	}

	for _, fu := range followUps {
		src.followUp(fu, rec)
	}

	if f, ok := forms["ON_STUDY_DX_SOFT_TISSUE_SARCOMA"]; ok {
		if v, ok := src.value(f, "SURG_RESECT_EXT_TP"); ok {
			if v == "Other" {
				if spec, ok := src.value(f, "SURG_PROC_O_SPEC_TXT"); ok {
					v = v + listSep + spec
				}
			}
			rec["Procedure_Type"] = v
		}
	}

	if f, ok := forms["TX_CHEMO_CNS"]; ok {
		if v, ok := src.value(f, "TX_RCVD_YES_NO"); ok {
			rec["Treated_but_not_Enrolled"] = v
		}
		src.treatment(rec, "COG_Anti_Cancer_Treatment", f, "COG_ID_ENUM", "COG_ID_OTHER", "PRI_TX_RGM_SPEC")
		src.treatment(rec, "Non_COG_Anti_Cancer_Treatment", f, "NPROT_TX_ADM_IND_3", "NPROT_TX_ADM_NM", "NPROT_TX_ADM_SPEC")
		rec["Chemotherapy"] = strings.Join(src.checkedLabels(f, chemoAgentPrefix), listSep)
	}

	if f, ok := forms["RADIATION_THERAPY"]; ok {
		rec["Radiation_Therapy"] = strings.Join(src.checkedLabels(f, radiationTypePrefix), listSep)
	}

	if f, ok := forms["CNS_DIAGNOSIS_DETAIL"]; ok {
		var integrated []string
		for _, id := range f.order {
			if !strings.HasPrefix(id, integratedDxPrefix) {
				continue
			}
			if v, ok := src.text(f.fields[id], "value"); ok && len(v) > 1 {
				integrated = append(integrated, v)
			}
		}
		rec["CNS_Integrated_Diagnosis"] = strings.Join(integrated, listSep)
	}
}

// joined stores the ';'-joined values of several fields. Nothing is stored
// if any of them is missing.
func (s *source) joined(rec domain.FlatRecord, name string, f *form, ids ...string) {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		v, ok := s.value(f, id)
		if !ok {
			return
		}
		parts = append(parts, v)
	}
	rec[name] = strings.Join(parts, listSep)
}

// treatment stores a treatment answer, expanded with its free-text detail
// when the answer is "other".
func (s *source) treatment(rec domain.FlatRecord, name string, f *form, answer string, detail ...string) {
	v, ok := s.value(f, answer)
	if !ok {
		return
	}
	if strings.EqualFold(v, "other") {
		parts := []string{v}
		for _, id := range detail {
			if d, ok := s.value(f, id); ok {
				parts = append(parts, d)
			}
		}
		v = strings.Join(parts, listSep)
	}
	rec[name] = v
}

func (s *source) followUp(f *form, rec domain.FlatRecord) {
	if v, ok := s.value(f, "REP_EVAL_PD_TP"); ok {
		rec.Append("APEC14B1_Reporting_Period", v, listSep)
	}

	if v, ok := s.value(f, "PT_INF_CU_FU_COL_IND"); ok {
		if strings.EqualFold(v, "yes") {
			begin, _ := s.value(f, "PT_FU_BEGDT")
			end, _ := s.value(f, "PT_FU_END_DT")
			v = fmt.Sprintf("%s (%s-%s)", v, begin, end)
		}
		rec.Append("FollowUp_Obtained_for_Period", v, listSep)
	}

	if v, ok := s.value(f, "PT_VST"); ok {
		rec.Append("Vital_status", v, listSep)
	}

	if treatments, ok := s.frontlineTreatments(f); ok {
		if _, present := rec["Frontline_Treatment_Received"]; treatments != "" || !present {
			rec.Append("Frontline_Treatment_Received", treatments, listSep)
		}
	}

	for _, ff := range followUpFields {
		if v, ok := s.value(f, ff.id); ok {
			rec.Append(ff.out, v, listSep)
		}
	}
}

// frontlineTreatments lists the checked treatment categories, falling back
// to the plain answer when none is checked.
func (s *source) frontlineTreatments(f *form) (string, bool) {
	answer, ok := s.value(f, frontlineAnswer)
	if !ok {
		return "", false
	}
	var out []string
	for _, cat := range frontlineCategories {
		if v, ok := s.value(f, cat.id); ok && strings.EqualFold(v, checked) {
			out = append(out, cat.out)
		}
	}
	if v, ok := s.value(f, frontlineOther); ok && strings.EqualFold(v, checked) {
		if other, ok := s.value(f, frontlineOtherText); ok {
			out = append(out, other)
		}
	}
	if len(out) == 0 {
		out = []string{answer}
	}
	return strings.Join(out, listSep), true
}
