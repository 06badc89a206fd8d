package export

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/sheet"
)

const (
	excelSheet    = "Results"
	maxColumnWide = 60.0
)

// Excel writes a table to a single-sheet workbook with a bold, frozen header.
// Number columns are written as numbers; a summary row is appended in bold.
func Excel(w io.Writer, table *engine.TableData) error {
	if table == nil || len(table.Columns) == 0 {
		return ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", excelSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#E8EEF7"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "#4B8BBE", Style: 1}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	hdr := headers(table)
	if err := writeRow(f, 1, stringsToCells(hdr)); err != nil {
		return err
	}
	if err := styleRow(f, 1, len(hdr), bold); err != nil {
		return err
	}

	numeric := make(map[int]bool)
	for _, i := range table.NumericColumns() {
		numeric[i] = true
	}
	widths := make([]int, len(hdr))
	for i, h := range hdr {
		widths[i] = utf8.RuneCountInString(h)
	}

	r := 2
	for _, row := range table.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = v
			if numeric[i] {
				if n, ok := numberCell(v); ok {
					cells[i] = n
				}
			}
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(v))
			}
		}
		if err := writeRow(f, r, cells); err != nil {
			return err
		}
		r++
	}
	if row := summaryRow(table); row != nil {
		if err := writeRow(f, r, stringsToCells(row)); err != nil {
			return err
		}
		if err := styleRow(f, r, len(hdr), bold); err != nil {
			return err
		}
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(excelSheet, col, col, min(float64(width)+2, maxColumnWide)); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}
	if err := f.SetPanes(excelSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	if table.Title != "" {
		if err := f.SetDocProps(&excelize.DocProperties{Title: table.Title, Creator: "askcel"}); err != nil {
			return fmt.Errorf("doc props: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Frame writes every row of a loaded sheet to a workbook.
func Frame(w io.Writer, frame *sheet.Frame) error {
	if frame == nil {
		return ErrNothingToExport
	}
	table := frame.HeadTable(-1)
	table.Title = frame.Sheet
	return Excel(w, table)
}

func writeRow(f *excelize.File, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(excelSheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func styleRow(f *excelize.File, row, width, style int) error {
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(width, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(excelSheet, first, last, style)
}

func stringsToCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
