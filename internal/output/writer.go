// Package output writes the consolidated dataset and renders run summaries.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/mci-report-consolidator/internal/dictionary"
	"github.com/mci-report-consolidator/internal/domain"
)

// File name suffixes appended to the output prefix.
const (
	jsonSuffix           = ".json"
	csvSuffix            = ".csv"
	dictionaryCSVSuffix  = "_dictionary.csv"
	outputFilePermission = 0644
)

// Writer writes the dataset in the configured formats.
type Writer struct {
	cfg    domain.OutputConfig
	dict   *dictionary.Dictionary
	logger *logrus.Logger
}

// NewWriter creates a dataset writer. A nil dictionary is treated as empty.
func NewWriter(cfg domain.OutputConfig, dict *dictionary.Dictionary, logger *logrus.Logger) *Writer {
	if dict == nil {
		dict = dictionary.Empty()
	}
	return &Writer{cfg: cfg, dict: dict, logger: logger}
}

// Write writes every configured output and returns the paths written.
func (w *Writer) Write(records []domain.FlatRecord) ([]string, error) {
	if dir := filepath.Dir(w.cfg.Prefix); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, domain.NewPipelineError(domain.ErrOutput, "failed to create output directory", dir, err)
		}
	}

	var written []string
	if w.cfg.WantsJSON() {
		path := w.cfg.Prefix + jsonSuffix
		if err := w.writeFile(path, func(f *os.File) error {
			return WriteJSON(f, records, w.dict)
		}); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if w.cfg.WantsCSV() {
		path := w.cfg.Prefix + csvSuffix
		columns := Columns(records, w.dict)
		if err := w.writeFile(path, func(f *os.File) error {
			return WriteCSV(f, records, columns)
		}); err != nil {
			return written, err
		}
		written = append(written, path)

		dictPath := w.cfg.Prefix + dictionaryCSVSuffix
		if err := w.writeFile(dictPath, func(f *os.File) error {
			return WriteDictionaryCSV(f, w.dict)
		}); err != nil {
			return written, err
		}
		written = append(written, dictPath)
	}

	return written, nil
}

func (w *Writer) writeFile(path string, write func(f *os.File) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, outputFilePermission)
	if err != nil {
		return domain.NewPipelineError(domain.ErrOutput, "failed to create output file", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return domain.NewPipelineError(domain.ErrOutput, "failed to write output file", path, err)
	}
	if err := f.Close(); err != nil {
		return domain.NewPipelineError(domain.ErrOutput, "failed to close output file", path, err)
	}
	if w.logger != nil {
		w.logger.WithField("path", path).Info("Output written")
	}
	return nil
}

// Columns returns the output column order: the dictionary terms, or the
// Sample column followed by the sorted union of record fields when the
// dictionary is empty.
func Columns(records []domain.FlatRecord, dict *dictionary.Dictionary) []string {
	if !dict.IsEmpty() {
		return dict.Terms()
	}
	seen := map[string]bool{domain.SampleField: true}
	var rest []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	return append([]string{domain.SampleField}, rest...)
}

// formatCell renders a record value for a text cell. Absent and nil values
// are empty.
func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	default:
		return fmt.Sprint(val)
	}
}
