package extract

import (
	"sort"
	"strings"
	"unicode"

	"github.com/mci-report-consolidator/internal/domain"
	"github.com/mci-report-consolidator/pkg/document"
	"github.com/mci-report-consolidator/pkg/variant"
)

const (
	resultPositive = "Positive"
	resultNegative = "Negative"
)

// Variant output fields, in the order they are written.
var (
	somaticVariantFields  = []string{"TN_Somatic_Tier1", "TN_Somatic_Tier2", "TN_Somatic_Tier3"}
	germlineVariantFields = []string{"TN_Germline_Path", "TN_Germline_LikelyPath", "TN_Germline_VUS"}
)

// Gene bucket suffixes appended to TN_Somatic_CNV_Gene_ / TN_Germline_CNV_Gene_.
const (
	bucketLoss          = "Loss"
	bucketBiallelicLoss = "BiallelicLoss"
	bucketGain          = "Gain"
	bucketAmplification = "Amplification"
	bucketLOH           = "LOH"
)

var geneBuckets = []string{bucketLoss, bucketBiallelicLoss, bucketGain, bucketAmplification, bucketLOH}

// placeholderGenes never count as gene content.
var placeholderGenes = map[string]bool{"N/A": true, "NA": true, "n/a": true, "": true}

// negativeBlurbPhrases mark a CNV summary that reports nothing.
var negativeBlurbPhrases = []string{"none detected", "not sufficient", "insufficient", "did not meet"}

var cnvCleanup = strings.NewReplacer(
	`\n`, "",
	"\t", " ",
	"Loss of Heterozygosity", "LOH",
	"Loss-of_Heterozygosity", "LOH",
)

func somaticField(t variant.Tier) string {
	switch t {
	case variant.TIER_1:
		return "TN_Somatic_Tier1"
	case variant.TIER_2:
		return "TN_Somatic_Tier2"
	default:
		return "TN_Somatic_Tier3"
	}
}

func germlineField(t variant.Tier) string {
	switch t {
	case variant.LIKELY_PATHOGENIC:
		return "TN_Germline_LikelyPath"
	case variant.PATHOGENIC:
		return "TN_Germline_Path"
	default:
		return "TN_Germline_VUS"
	}
}

func (e *Extractor) extractTumorNormal(src *source, rec domain.FlatRecord) {
	if _, ok := rec["TN_Version"]; ok && e.logger != nil {
		e.logger.WithFields(src.fields()).Warn("Duplicate tumor/normal reports present")
	}
	src.set(rec, "TN_Version", src.root, "version")

	rec["TN_Germline_Result"] = resultNegative
	rec["TN_Somatic_Result"] = resultNegative
	rec["TN_Germline_CNV_Result"] = resultNegative
	rec["TN_Somatic_CNV_Result"] = resultNegative

	variants := make(map[string][]string)

	if list, ok := optional(src.root, "somatic_results", "variants"); ok {
		for _, v := range src.elements(list) {
			str, tier, ok := src.sequenceVariant(v)
			if !ok {
				continue
			}
			field := somaticField(tier)
			variants[field] = append(variants[field], str)
			rec["TN_Somatic_Result"] = resultPositive
		}
	}
	if list, ok := optional(src.root, "germline_results", "variants"); ok {
		for _, v := range src.elements(list) {
			str, tier, ok := src.sequenceVariant(v)
			if !ok {
				continue
			}
			field := germlineField(tier)
			variants[field] = append(variants[field], str)
			rec["TN_Germline_Result"] = resultPositive
		}
	}

	for _, field := range append(append([]string(nil), germlineVariantFields...), somaticVariantFields...) {
		rec[field] = strings.Join(variants[field], variant.Separator)
	}

	src.copyNumber(rec, "somatic_cnv_results", "TN_Somatic")
	src.copyNumber(rec, "germline_cnv_results", "TN_Germline")

	e.extractMolecularGeneric(src, rec)
}

func (s *source) elements(list *document.Value) []*document.Value {
	arr, err := list.Array()
	if err != nil {
		s.missing(err)
		return nil
	}
	return arr
}

// sequenceVariant formats one SNV/indel entry and reads its tier.
func (s *source) sequenceVariant(v *document.Value) (string, variant.Tier, bool) {
	gene, ok1 := s.text(v, "gene")
	transcript, ok2 := s.text(v, "transcript")
	change, ok3 := s.text(v, "nucleotide_change")
	interpretation, ok4 := s.text(v, "interpretation", "value")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return "", "", false
	}
	var protein string
	if p, ok := optional(v, "predicted_protein_change"); ok {
		protein, _ = p.Text()
	}
	rv := variant.ReportVariant{
		Gene:             gene,
		Transcript:       transcript,
		NucleotideChange: change,
		ProteinChange:    protein,
	}
	return rv.String(), variant.ParseTier(interpretation), true
}

// copyNumber fills the CNV fields for one origin (somatic or germline).
func (s *source) copyNumber(rec domain.FlatRecord, section, prefix string) {
	cnvs := map[string][]string{}
	genes := map[string]map[string]bool{}
	for _, b := range geneBuckets {
		genes[b] = map[string]bool{}
	}
	blurb := ""
	resultField := prefix + "_CNV_Result"

	if list, ok := optional(s.root, section, "variants"); ok {
		for _, v := range s.elements(list) {
			str, tier, ok := s.cnv(v)
			if !ok {
				continue
			}
			if tier.IsTierOneOrTwo() {
				cnvs["Tier1-2"] = append(cnvs["Tier1-2"], str)
			} else {
				cnvs["Tier3"] = append(cnvs["Tier3"], str)
			}
			rec[resultField] = resultPositive

			copyType, _ := s.text(v, "copy_number_type")
			bucket := geneBucket(copyType)
			if bucket == "" {
				continue
			}
			content, _ := s.texts(v, "disease_associated_gene_content")
			for _, g := range content {
				if !placeholderGenes[g] {
					genes[bucket][g] = true
				}
			}
		}
	}

	if summary, ok := optional(s.root, section, "summary"); ok {
		lines, _ := s.texts(summary)
		blurb = strings.Join(lines, "\n")
		if rec[resultField] == resultNegative && blurbIsPositive(blurb) {
			rec[resultField] = resultPositive
		}
	}

	rec[prefix+"_CNV_Tier1-2"] = strings.Join(cnvs["Tier1-2"], variant.Separator)
	rec[prefix+"_CNV_Tier3"] = strings.Join(cnvs["Tier3"], variant.Separator)
	for _, b := range geneBuckets {
		rec[prefix+"_CNV_Gene_"+b] = joinSorted(genes[b])
	}
	rec[prefix+"_CNV_Blurb"] = blurb
}

// geneBucket classifies a copy number type. Biallelic loss is checked
// before plain loss since its labels also mention loss.
func geneBucket(copyType string) string {
	t := strings.ToLower(copyType)
	containsAny := func(subs ...string) bool {
		for _, sub := range subs {
			if strings.Contains(t, sub) {
				return true
			}
		}
		return false
	}
	switch {
	case containsAny("bialle", "complet", "total"):
		return bucketBiallelicLoss
	case containsAny("loh", "hetero", "roh", "homo"):
		return bucketLOH
	case containsAny("gain"):
		return bucketGain
	case containsAny("ampli"):
		return bucketAmplification
	case containsAny("loss", "del"):
		return bucketLoss
	default:
		return ""
	}
}

func blurbIsPositive(blurb string) bool {
	b := strings.ToLower(strings.TrimSpace(blurb))
	if b == "" {
		return false
	}
	for _, phrase := range negativeBlurbPhrases {
		if strings.Contains(b, phrase) {
			return false
		}
	}
	return true
}

func joinSorted(set map[string]bool) string {
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return strings.Join(out, variant.Separator)
}

// cnv formats one copy number event and reads its tier.
func (s *source) cnv(v *document.Value) (string, variant.Tier, bool) {
	copyType, ok := s.text(v, "copy_number_type")
	if !ok {
		return "", "", false
	}
	interpretation, ok := s.text(v, "interpretation", "value")
	if !ok {
		return "", "", false
	}
	tier := variant.ParseTier(interpretation)

	chromosome, ok := s.lookup(v, "genomic_change", "chromosome")
	if !ok {
		return "", "", false
	}
	if chromosome.IsNull() {
		// Arm level and whole genome events carry only a cytogenetic locus.
		locus, ok := s.text(v, "cytogenetic_locus")
		if !ok {
			return "", "", false
		}
		return strings.ReplaceAll(titleCase(locus), "Near ", "Near-"), tier, true
	}

	chrom, _ := chromosome.Text()
	var str string
	if strings.HasPrefix(strings.ToLower(copyType), "whole chrom") {
		str = chrom + " " + copyType
	} else {
		start, _ := s.text(v, "genomic_change", "start")
		end, _ := s.text(v, "genomic_change", "end")
		str = chrom + ":" + start + "-" + end + " " + copyType
		if strings.Contains(strings.ToLower(copyType), "focal") {
			content, _ := s.texts(v, "disease_associated_gene_content")
			if len(content) > 0 {
				if strings.Contains(strings.ToLower(copyType), "(exon") {
					str = strings.ReplaceAll(str, "(exon", "("+content[0]+" exon")
				} else {
					focal := []string{content[0]}
					if len(content) > 1 {
						focal = append(focal, content[len(content)-1])
					}
					str += " (" + strings.Join(focal, ",") + ")"
				}
			}
		}
	}

	str = cnvCleanup.Replace(str)
	str = strings.ReplaceAll(str, "(LOH)", "LOH")
	str = strings.ReplaceAll(str, "LOH LOH", "LOH")
	for strings.Contains(str, "  ") {
		str = strings.ReplaceAll(str, "  ", " ")
	}
	return str, tier, true
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "1p36 deletion" becomes "1P36 Deletion".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
