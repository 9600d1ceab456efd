package output

import (
	"encoding/csv"
	"io"

	"github.com/mci-report-consolidator/internal/dictionary"
	"github.com/mci-report-consolidator/internal/domain"
)

// WriteCSV writes one row per record under the given columns.
func WriteCSV(w io.Writer, records []domain.FlatRecord, columns []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	row := make([]string, len(columns))
	for _, rec := range records {
		for i, col := range columns {
			row[i] = formatCell(rec[col])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDictionaryCSV writes the field dictionary with its original headers.
func WriteDictionaryCSV(w io.Writer, dict *dictionary.Dictionary) error {
	cw := csv.NewWriter(w)
	header := []string{
		dictionary.ColumnTerm,
		dictionary.ColumnDefinition,
		dictionary.ColumnSource,
		dictionary.ColumnNotes,
		dictionary.ColumnRAVE,
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range dict.Entries() {
		if err := cw.Write([]string{e.Term, e.Definition, e.Source, e.Note, e.RAVE}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
