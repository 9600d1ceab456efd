package methylation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Reference column names.
const (
	columnClassCode    = "class_code"
	columnClassString  = "class_string"
	columnFamilyCode   = "family_code"
	columnFamilyString = "family_string"
)

var (
	codeSeparators = strings.NewReplacer("/", " ", ",", " ")
	codePrefixes   = strings.NewReplacer("MCF_", "", "MTF_", "", "MTGF_", "")
)

// ErrMissingColumn is returned when the reference header lacks a column.
var ErrMissingColumn = errors.New("missing reference column")

// Reference maps lab class and family codes to display strings. It is
// immutable after construction and safe to share.
type Reference struct {
	entries map[string]string
}

// EmptyReference returns a reference that resolves nothing.
func EmptyReference() *Reference {
	return &Reference{entries: map[string]string{}}
}

// LoadReference reads a reference CSV file.
func LoadReference(path string) (*Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open methylation reference: %w", err)
	}
	defer f.Close()

	ref, err := ParseReference(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read methylation reference %s: %w", path, err)
	}
	return ref, nil
}

// ParseReference reads CSV with class_code, class_string, family_code and
// family_string columns. Class rows are loaded before family rows, so a
// family code shadows an identical class code.
func ParseReference(r io.Reader) (*Reference, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{columnClassCode, columnClassString, columnFamilyCode, columnFamilyString} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	cell := func(row []string, name string) string {
		i := cols[name]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	ref := EmptyReference()
	for _, row := range rows {
		if code := NormalizeCode(cell(row, columnClassCode)); code != "" {
			ref.entries[code] = displayString(cell(row, columnClassString), "methylation class ")
		}
	}
	for _, row := range rows {
		if code := NormalizeCode(cell(row, columnFamilyCode)); code != "" {
			ref.entries[code] = displayString(cell(row, columnFamilyString), "methylation class family ")
		}
	}
	return ref, nil
}

// NormalizeCode turns a lab code into its lookup key: separators become
// single underscores and the MCF_, MTF_ and MTGF_ prefixes are dropped.
func NormalizeCode(raw string) string {
	s := codeSeparators.Replace(raw)
	s = strings.Join(strings.Fields(s), "_")
	s = codePrefixes.Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}

func displayString(raw, prefix string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, prefix, ""))
}

// Lookup resolves a raw or normalized code.
func (r *Reference) Lookup(code string) (string, bool) {
	if r == nil {
		return "", false
	}
	display, ok := r.entries[NormalizeCode(code)]
	return display, ok
}

// Len returns the number of codes known.
func (r *Reference) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}
