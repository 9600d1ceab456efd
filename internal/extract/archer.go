package extract

import (
	"strings"

	"github.com/mci-report-consolidator/internal/domain"
	"github.com/mci-report-consolidator/pkg/document"
)

// archerSection maps one result block of an Archer report onto the record.
type archerSection struct {
	key       string
	listField string
	blurb     string
	result    string
	gene      func(s *source, v *document.Value) (string, bool)
}

func fusionGene(s *source, v *document.Value) (string, bool) {
	return s.text(v, "gene_fusion")
}

func breakpointGene(s *source, v *document.Value) (string, bool) {
	return s.text(v, "breakpoint1", "gene")
}

var archerSections = []archerSection{
	{"fusion_tier_one_or_two_result", "Archer_Tier1-2_Fusions", "Archer_Blurb_Tier1-2", "Archer_Result_Tier1-2", fusionGene},
	{"single_tier_one_or_two_result", "Archer_Tier1-2_Intragenic", "Archer_Blurb_Tier1-2_Intragenic", "Archer_Result_Tier1-2", breakpointGene},
	{"fusion_tier_three_result", "Archer_Tier3_Fusions", "Archer_Blurb_Tier3", "Archer_Result_Tier3", fusionGene},
	{"single_tier_three_result", "Archer_Tier3_Intragenic", "Archer_Blurb_Tier3_Intragenic", "Archer_Result_Tier3", breakpointGene},
}

func (e *Extractor) extractArcher(src *source, rec domain.FlatRecord) {
	e.extractMolecularGeneric(src, rec)

	if version, ok := src.text(src.root, "report_version"); ok {
		if strings.Contains(version, "DKFZ") && e.logger != nil {
			e.logger.WithFields(src.fields()).WithField("version", version).
				Warn("Methylation report version found in an Archer fusion document")
		}
		rec["Archer_Version"] = version
	}
	rec["Archer_Result_Tier1-2"] = resultNegative
	rec["Archer_Result_Tier3"] = resultNegative

	for _, section := range archerSections {
		block, ok := optional(src.root, section.key)
		if !ok {
			continue
		}
		var genes []string
		if list, ok := src.array(block, "variants"); ok {
			for _, v := range list {
				if g, ok := section.gene(src, v); ok {
					genes = append(genes, g)
				}
			}
		}
		joined := strings.Join(genes, listSep)
		rec[section.listField] = joined
		if joined != "" {
			rec[section.result] = resultPositive
		}
		if summary, ok := optional(block, "summary"); ok {
			lines, _ := src.texts(summary)
			rec[section.blurb] = strings.Join(lines, " ")
		}
	}
}
