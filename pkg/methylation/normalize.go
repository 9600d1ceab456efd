package methylation

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// spellingVariants maps Commonwealth spellings onto the single form used in
// the cohort. The first letter's case is preserved.
var spellingVariants = strings.NewReplacer(
	"haem", "hem",
	"Haem", "Hem",
	"HAEM", "HEM",
	"paed", "ped",
	"Paed", "Ped",
	"PAED", "PED",
)

// trailingPunctuation is stripped repeatedly from the end of a label.
const trailingPunctuation = ".,;: "

// signatureSeparators become token boundaries when computing a signature.
// Whitespace is a boundary too, otherwise "IDH wildtype" and "IDH-wildtype"
// would not meet.
const signatureSeparators = ".,;:-()[]/&"

// connectorWord is dropped from signatures so "A and B" meets "A & B".
const connectorWord = "and"

// Normalize applies the per-value pre-pass: trim, unify spelling, turn
// underscores into spaces and strip trailing punctuation.
func Normalize(label string) string {
	s := strings.TrimSpace(label)
	s = spellingVariants.Replace(s)
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.TrimRight(s, trailingPunctuation)
	return s
}

// Signature computes the grouping key of a normalized label. It ignores
// punctuation choice, case and token order. It is not reversible and is
// never shown to users.
func Signature(label string) string {
	tokens := strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || strings.ContainsRune(signatureSeparators, r)
	})
	kept := tokens[:0]
	for _, tok := range tokens {
		if tok == connectorWord {
			continue
		}
		kept = append(kept, tok)
	}
	sort.Strings(kept)
	return strings.Join(kept, "")
}

// Capitalize upper-cases the first character of a non-empty label.
func Capitalize(label string) string {
	r, size := utf8.DecodeRuneInString(label)
	if r == utf8.RuneError && size <= 1 {
		return label
	}
	upper := unicode.ToUpper(r)
	if upper == r {
		return label
	}
	return string(upper) + label[size:]
}
