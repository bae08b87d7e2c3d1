package output

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFWriter renders a human-readable report: a header with the run id and
// time, then one block per result with a clickable URL.
type PDFWriter struct {
	Path string
}

func (w PDFWriter) Name() string { return "pdf" }

func (w PDFWriter) Write(run Run) error {
	if err := ensureParent(w.Path); err != nil {
		return err
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	// Core fonts are cp1252; translate UTF-8 input.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Job crawl "+run.ID, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Job crawl results", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	finished := run.Finished
	if finished.IsZero() {
		finished = time.Now()
	}
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Run %s, %s, %d result(s)", run.ID, finished.UTC().Format(time.RFC3339), len(run.Results))), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if len(run.Results) == 0 {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.MultiCell(0, 5, "No listings met the score threshold.", "", "L", false)
	}
	for i, r := range run.Results {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", i+1, r.Title)), "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 5, tr(r.Company+"  |  score "+strconv.Itoa(r.Score)+"  |  "+r.Status), "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 200)
		pdf.WriteLinkString(5, tr(r.URL), r.URL)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(6)
		if r.Reason != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, tr(r.Reason), "", "L", false)
		}
		pdf.Ln(4)
	}
	if err := pdf.OutputFileAndClose(w.Path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
