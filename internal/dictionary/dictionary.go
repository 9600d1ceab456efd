// Package dictionary loads the field dictionary that documents every output
// column of the consolidated dataset.
package dictionary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Header names of the dictionary file.
const (
	ColumnTerm       = "Term"
	ColumnDefinition = "Definition"
	ColumnSource     = "JSON Source"
	ColumnNotes      = "Notes"
	ColumnRAVE       = "RAVE Identifier / JSON Field"
)

// ErrMissingColumn is returned when the header lacks the Term column.
var ErrMissingColumn = errors.New("dictionary header missing column")

// Entry documents a single output field.
type Entry struct {
	Term       string `json:"-"`
	Definition string `json:"Definition"`
	Source     string `json:"Source"`
	Note       string `json:"Note"`
	RAVE       string `json:"RAVE Identifier or JSON Field"`
}

// Dictionary is the ordered list of documented fields.
type Dictionary struct {
	entries []Entry
}

// Empty returns a dictionary with no terms.
func Empty() *Dictionary {
	return &Dictionary{}
}

// Load reads a tab-separated dictionary file. A missing file is not an
// error: the run continues with an empty dictionary.
func Load(path string, logger *logrus.Logger) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if logger != nil {
				logger.WithField("path", path).Warn("Data dictionary not found, output columns will be derived from records")
			}
			return Empty(), nil
		}
		return nil, fmt.Errorf("failed to open data dictionary: %w", err)
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse data dictionary %s: %w", path, err)
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"path":  path,
			"terms": d.Len(),
		}).Info("Data dictionary loaded")
	}
	return d, nil
}

// Parse reads dictionary rows from r. Columns are located by header name;
// only Term is required.
func Parse(r io.Reader) (*Dictionary, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	if _, ok := index[ColumnTerm]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnTerm)
	}

	column := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	d := &Dictionary{}
	seen := make(map[string]bool)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		term := strings.TrimSpace(column(row, ColumnTerm))
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		d.entries = append(d.entries, Entry{
			Term:       term,
			Definition: column(row, ColumnDefinition),
			Source:     column(row, ColumnSource),
			Note:       column(row, ColumnNotes),
			RAVE:       column(row, ColumnRAVE),
		})
	}
	return d, nil
}

// Terms returns the documented field names in file order.
func (d *Dictionary) Terms() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.Term
	}
	return out
}

// Entries returns a copy of the entries in file order.
func (d *Dictionary) Entries() []Entry {
	if d == nil {
		return nil
	}
	return append([]Entry(nil), d.entries...)
}

// Len returns the number of terms.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// IsEmpty reports whether the dictionary has no terms.
func (d *Dictionary) IsEmpty() bool {
	return d.Len() == 0
}
