package export

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/spektr-org/askcel/engine"
)

// Report is the content of a PDF export.
type Report struct {
	Title    string
	Question string
	Reply    string
	Table    *engine.TableData
	Created  time.Time // zero = now
}

// ReportFor builds a report from an answered question.
func ReportFor(question string, result *engine.Result) Report {
	r := Report{Title: "Query Results", Question: question, Table: Table(result)}
	if result != nil {
		if result.Title != "" {
			r.Title = result.Title
		}
		r.Reply = result.Reply
		if result.Interpretation != nil && result.Interpretation.Summary != "" && result.Interpretation.Summary != r.Reply {
			r.Reply = result.Interpretation.Summary + "\n" + r.Reply
		}
	}
	return r
}

const (
	pdfMargin   = 15.0
	pdfRowH     = 7.0
	pdfCellPad  = 4.0
	pdfLandCols = 6 // wider tables are printed in landscape
)

// PDF renders a report on A4 with the table fitted to the page width.
func PDF(w io.Writer, r Report) error {
	orientation := "P"
	if r.Table != nil && len(r.Table.Columns) > pdfLandCols {
		orientation = "L"
	}
	pdf := fpdf.New(orientation, "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(r.Title, true)
	pdf.SetCreator("askcel", true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin + 5)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	created := r.Created
	if created.IsZero() {
		created = time.Now()
	}

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(r.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 5, created.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(3)

	if r.Question != "" {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, "Question", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "I", 11)
		pdf.MultiCell(0, 5, tr(r.Question), "", "L", false)
		pdf.Ln(3)
	}
	if r.Reply != "" {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, "Answer", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 5, tr(r.Reply), "", "L", false)
		pdf.Ln(4)
	}
	if r.Table != nil && len(r.Table.Columns) > 0 {
		pdfTable(pdf, tr, r.Table)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func pdfTable(pdf *fpdf.Fpdf, tr func(string) string, table *engine.TableData) {
	hdr := headers(table)
	widths := columnWidths(pdf, tr, table, hdr)
	aligns := make([]string, len(hdr))
	for i, c := range table.Columns {
		aligns[i] = "L"
		if c.Align == "right" {
			aligns[i] = "R"
		}
	}

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(75, 139, 190)
		pdf.SetTextColor(255, 255, 255)
		for i, h := range hdr {
			pdf.CellFormat(widths[i], pdfRowH, fitText(pdf, tr(h), widths[i]), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(0, 0, 0)
	}

	_, pageH := pdf.GetPageSize()
	header()
	rows := table.Rows
	if s := summaryRow(table); s != nil {
		rows = append(rows[:len(rows):len(rows)], s)
	}
	for n, row := range rows {
		if pdf.GetY()+pdfRowH > pageH-pdfMargin {
			pdf.AddPage()
			header()
		}
		fill := n%2 == 1
		pdf.SetFillColor(240, 244, 250)
		if n == len(table.Rows) {
			pdf.SetFont("Helvetica", "B", 9)
		}
		for i := range hdr {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			pdf.CellFormat(widths[i], pdfRowH, fitText(pdf, tr(v), widths[i]), "1", 0, aligns[i], fill, 0, "")
		}
		pdf.Ln(-1)
	}
}

// columnWidths sizes columns to their widest cell, scaled down to the page.
func columnWidths(pdf *fpdf.Fpdf, tr func(string) string, table *engine.TableData, hdr []string) []float64 {
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	avail := pageW - left - right

	widths := make([]float64, len(hdr))
	pdf.SetFont("Helvetica", "B", 9)
	for i, h := range hdr {
		widths[i] = pdf.GetStringWidth(tr(h)) + pdfCellPad
	}
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range table.Rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], pdf.GetStringWidth(tr(row[i]))+pdfCellPad)
		}
	}

	var total float64
	for _, w := range widths {
		total += w
	}
	if total > avail {
		for i := range widths {
			widths[i] *= avail / total
		}
	}
	return widths
}

// fitText shortens s with an ellipsis until it fits in width.
func fitText(pdf *fpdf.Fpdf, s string, width float64) string {
	limit := width - pdfCellPad/2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	b := []byte(s)
	for len(b) > 0 && pdf.GetStringWidth(string(b)+"...") > limit {
		b = b[:len(b)-1]
	}
	return string(b) + "..."
}
