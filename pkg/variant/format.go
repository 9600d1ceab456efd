package variant

import (
	"regexp"
	"strings"
)

// Protein change patterns used when expanding synonymous notation
var (
	threeLetterResiduePattern = regexp.MustCompile(`^p\.\(?([A-Z][a-z]{2})\d`)
	oneLetterResiduePattern   = regexp.MustCompile(`^p\.\(?([A-Z])\d`)

	// Three-letter to one-letter amino acid codes
	aminoAcidCodes = map[string]string{
		"Ala": "A", "Arg": "R", "Asn": "N", "Asp": "D", "Cys": "C",
		"Gln": "Q", "Glu": "E", "Gly": "G", "His": "H", "Ile": "I",
		"Leu": "L", "Lys": "K", "Met": "M", "Phe": "F", "Pro": "P",
		"Ser": "S", "Thr": "T", "Trp": "W", "Tyr": "Y", "Val": "V",
		"Ter": "*",
	}
)

// UnknownProteinChange stands in when a report omits the predicted change.
const UnknownProteinChange = "p.?"

// ReportVariant is a sequence variant as listed in a tumor/normal report.
type ReportVariant struct {
	Gene             string
	Transcript       string
	NucleotideChange string
	ProteinChange    string
}

// String formats the variant as the four space separated tokens consumed by
// Canonicalizer. Spaces inside a token are removed, parentheses dropped and
// ';' replaced by ',' so the result can be joined with Separator.
func (rv ReportVariant) String() string {
	protein := NormalizeProteinChange(rv.ProteinChange)
	s := strings.Join([]string{
		stripSpaces(rv.Gene),
		stripSpaces(rv.Transcript),
		stripSpaces(rv.NucleotideChange),
		protein,
	}, " ")
	s = strings.NewReplacer("(", "", ")", "", ";", ",").Replace(s)
	return s
}

// NormalizeProteinChange expands '=' to the reference residue and spells
// stop codons as Ter.
func NormalizeProteinChange(p string) string {
	p = stripSpaces(p)
	if p == "" {
		return UnknownProteinChange
	}
	if strings.Contains(p, "=") {
		if residue := referenceResidue(p); residue != "" {
			p = strings.ReplaceAll(p, "=", residue)
		}
	}
	return strings.ReplaceAll(p, "*", "Ter")
}

func referenceResidue(p string) string {
	if m := threeLetterResiduePattern.FindStringSubmatch(p); m != nil {
		if _, ok := aminoAcidCodes[m[1]]; ok {
			return m[1]
		}
	}
	if m := oneLetterResiduePattern.FindStringSubmatch(p); m != nil {
		return m[1]
	}
	return ""
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// Tier is the interpretation bucket of a reported variant.
type Tier string

const (
	TIER_1            Tier = "1"
	TIER_2            Tier = "2"
	TIER_3            Tier = "3"
	LIKELY_PATHOGENIC Tier = "LikelyPath"
	PATHOGENIC        Tier = "Path"
	VUS               Tier = "VUS"
)

// ParseTier maps free-text interpretation labels onto a Tier. Roman numerals
// are checked longest first since "tier iii" also contains "tier i".
func ParseTier(interpretation string) Tier {
	s := strings.ToLower(interpretation)
	switch {
	case strings.Contains(s, "tier 3") || strings.Contains(s, "tier iii"):
		return TIER_3
	case strings.Contains(s, "tier 2") || strings.Contains(s, "tier ii"):
		return TIER_2
	case strings.Contains(s, "tier 1") || strings.Contains(s, "tier i"):
		return TIER_1
	case strings.Contains(s, "likely"):
		return LIKELY_PATHOGENIC
	case strings.Contains(s, "path"):
		return PATHOGENIC
	default:
		return VUS
	}
}

// IsTierOneOrTwo reports whether the tier is clinically actionable.
func (t Tier) IsTierOneOrTwo() bool {
	return t == TIER_1 || t == TIER_2
}
