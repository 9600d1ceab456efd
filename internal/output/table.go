package output

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/mci-report-consolidator/pkg/methylation"
	"github.com/mci-report-consolidator/pkg/variant"
)

// TableReporter renders methylation frequency tables for a terminal. It
// implements methylation.FrequencyReporter.
type TableReporter struct {
	out io.Writer
}

// NewTableReporter creates a reporter writing to out.
func NewTableReporter(out io.Writer) *TableReporter {
	return &TableReporter{out: out}
}

// ReportFrequencies renders one row per observed literal; the chosen
// spelling of each signature is marked.
func (r *TableReporter) ReportFrequencies(table methylation.FrequencyTable) error {
	tw := tablewriter.NewWriter(r.out)
	tw.SetHeader([]string{"Signature", "Literal", "Count", "Canonical"})
	tw.SetAutoWrapText(false)

	for _, g := range table.Groups {
		for _, lc := range g.Literals {
			mark := ""
			if lc.Literal == g.Canonical {
				mark = "*"
			}
			tw.Append([]string{g.Signature, lc.Literal, strconv.Itoa(lc.Count), mark})
		}
	}
	tw.Render()
	return nil
}

// RenderVariantRewrites renders the distinct variant spelling changes of a
// canonicalization pass.
func RenderVariantRewrites(out io.Writer, report variant.Report) {
	tw := tablewriter.NewWriter(out)
	tw.SetHeader([]string{"Field", "Original", "Canonical", "Count"})
	tw.SetAutoWrapText(false)
	for _, rw := range report.Rewrites {
		tw.Append([]string{rw.Field, rw.Original, rw.Canonical, strconv.Itoa(rw.Count)})
	}
	tw.Render()
}
