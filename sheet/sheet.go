// Package sheet turns an uploaded spreadsheet into an in-memory table.
//
// Workbooks (.xlsx, .xlsm) are read with excelize, legacy .xls workbooks
// with extrame/xls and CSV files with encoding/csv. Every cell is kept as
// its displayed string; typing happens later in schema discovery.
package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned for file types other than xlsx/xlsm/xls/csv.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptySheet is returned when a sheet has no header or no data rows.
	ErrEmptySheet = errors.New("sheet has no data")
	// ErrNoSheet is returned when the requested sheet does not exist.
	ErrNoSheet = errors.New("sheet not found")
)

// LoadError wraps a failure while reading one sheet of a workbook.
type LoadError struct {
	Sheet string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Sheet == "" {
		return fmt.Sprintf("load error: %v", e.Err)
	}
	return fmt.Sprintf("load error in sheet %q: %v", e.Sheet, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadOptions selects what part of a file becomes the frame.
type LoadOptions struct {
	Sheet     string // empty = first sheet
	HeaderRow int    // 1-based; 0 = first non-empty row
	MaxRows   int    // 0 = all
}

// Frame is a rectangular table of strings with unique headers.
type Frame struct {
	Name    string     `json:"name"`  // file name
	Sheet   string     `json:"sheet"` // loaded sheet
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
	Sheets  []string   `json:"sheets"` // all sheets in the workbook
}

// Load parses r according to the extension of filename.
func Load(r io.Reader, filename string, opts LoadOptions) (*Frame, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return loadWorkbook(r, filename, opts)
	case ".csv":
		return loadCSV(r, filename, opts)
	case ".xls":
		return loadLegacyWorkbook(r, filename, opts)
	default:
		return nil, fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}
}

func loadWorkbook(r io.Reader, filename string, opts LoadOptions) (*Frame, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &LoadError{Err: ErrEmptySheet}
	}

	target, _, err := pickSheet(sheets, opts.Sheet)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(target)
	if err != nil {
		return nil, &LoadError{Sheet: target, Err: err}
	}
	frame, err := buildFrame(rows, opts)
	if err != nil {
		return nil, &LoadError{Sheet: target, Err: err}
	}
	frame.Name = filepath.Base(filename)
	frame.Sheet = target
	frame.Sheets = sheets
	return frame, nil
}

// loadLegacyWorkbook reads a BIFF workbook. The reader panics on some
// malformed files, so a panic is returned as a LoadError.
func loadLegacyWorkbook(r io.Reader, filename string, opts LoadOptions) (frame *Frame, err error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, &LoadError{Err: fmt.Errorf("read workbook: %w", err)}
		}
		rs = bytes.NewReader(b)
	}
	defer func() {
		if p := recover(); p != nil {
			frame, err = nil, &LoadError{Err: fmt.Errorf("open legacy workbook: %v", p)}
		}
	}()

	wb, err := xls.OpenReader(rs, "utf-8")
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("open legacy workbook: %w", err)}
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, &LoadError{Err: ErrEmptySheet}
	}

	sheets := make([]string, wb.NumSheets())
	for i := range sheets {
		sheets[i] = wb.GetSheet(i).Name
	}
	target, idx, err := pickSheet(sheets, opts.Sheet)
	if err != nil {
		return nil, err
	}

	frame, err = buildFrame(legacyRows(wb.GetSheet(idx)), opts)
	if err != nil {
		return nil, &LoadError{Sheet: target, Err: err}
	}
	frame.Name = filepath.Base(filename)
	frame.Sheet = target
	frame.Sheets = sheets
	return frame, nil
}

// maxLegacyColumns is the BIFF8 column limit.
const maxLegacyColumns = 256

func legacyRows(ws *xls.WorkSheet) [][]string {
	if ws == nil {
		return nil
	}
	rows := make([][]string, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := legacyRow(ws, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		// rows built from cells alone carry no column bounds
		last := row.LastCol()
		if last <= 0 {
			last = maxLegacyColumns
		}
		cells := make([]string, 0, last)
		for c := 0; c < last; c++ {
			cells = append(cells, row.Col(c))
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		rows = append(rows, cells)
	}
	return rows
}

// legacyRow returns nil for a row the sheet never stored.
func legacyRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

// pickSheet matches want case-insensitively; empty want is the first sheet.
func pickSheet(sheets []string, want string) (string, int, error) {
	if want == "" {
		return sheets[0], 0, nil
	}
	for i, name := range sheets {
		if strings.EqualFold(name, want) {
			return name, i, nil
		}
	}
	return "", -1, &LoadError{Sheet: want, Err: ErrNoSheet}
}

// utf8BOM is written by Excel at the start of "CSV UTF-8" exports.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func loadCSV(r io.Reader, filename string, opts LoadOptions) (*Frame, error) {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(lead, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("read csv: %w", err)}
	}
	frame, err := buildFrame(rows, opts)
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	base := filepath.Base(filename)
	frame.Name = base
	frame.Sheet = strings.TrimSuffix(base, filepath.Ext(base))
	frame.Sheets = []string{frame.Sheet}
	return frame, nil
}

// buildFrame picks the header row and drops rows with no content. The
// frame is as wide as its widest row: short rows are padded with blanks and
// columns past the header are named "Column N".
func buildFrame(rows [][]string, opts LoadOptions) (*Frame, error) {
	header := -1
	if opts.HeaderRow > 0 {
		if opts.HeaderRow <= len(rows) && !blankRow(rows[opts.HeaderRow-1]) {
			header = opts.HeaderRow - 1
		}
	} else {
		for i, row := range rows {
			if !blankRow(row) {
				header = i
				break
			}
		}
	}
	if header < 0 {
		return nil, ErrEmptySheet
	}

	width := len(rows[header])
	var data [][]string
	for _, row := range rows[header+1:] {
		if blankRow(row) {
			continue
		}
		if len(row) > width {
			width = len(row)
		}
		data = append(data, row)
		if opts.MaxRows > 0 && len(data) >= opts.MaxRows {
			break
		}
	}
	if len(data) == 0 {
		return nil, ErrEmptySheet
	}

	for i, row := range data {
		padded := make([]string, width)
		for j, cell := range row {
			padded[j] = strings.TrimSpace(cell)
		}
		data[i] = padded
	}
	return &Frame{Headers: uniqueHeaders(rows[header], width), Rows: data}, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// uniqueHeaders names blank headers "Column N" and suffixes repeats: Amount, Amount_2.
func uniqueHeaders(raw []string, width int) []string {
	headers := make([]string, width)
	seen := make(map[string]int)
	for i := range headers {
		h := ""
		if i < len(raw) {
			h = strings.TrimSpace(raw[i])
		}
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		base := h
		for seen[strings.ToLower(h)] > 0 {
			seen[strings.ToLower(base)]++
			h = fmt.Sprintf("%s_%d", base, seen[strings.ToLower(base)])
		}
		seen[strings.ToLower(h)]++
		headers[i] = h
	}
	return headers
}
