package batchfile

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// LinesSheet is the sheet read by ReadLines when the workbook has one
const LinesSheet = "lines"

// lineColumns are the header names of a lines sheet. Header matching
// ignores case and surrounding spaces.
var lineColumns = []string{
	"name", "amount", "currency", "mandate", "date", "maturity_date",
	"priority", "communication", "communication_type", "struct_issuer", "invoice_ref",
}

var requiredLineColumns = []string{"name", "amount", "mandate", "communication"}

// LoadLines reads payment lines from an XLSX workbook on disk
func LoadLines(path string) ([]Line, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return readLines(f)
}

// ReadLines reads payment lines from an XLSX workbook. The first row is
// the header; empty rows are skipped.
func ReadLines(r io.Reader) ([]Line, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return readLines(f)
}

func readLines(f *excelize.File) ([]Line, error) {
	sheet := f.GetSheetName(0)
	if idx, err := f.GetSheetIndex(LinesSheet); err == nil && idx >= 0 {
		sheet = LinesSheet
	}
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	index, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	var lines []Line
	for i, row := range rows[1:] {
		if isRowEmpty(row) {
			continue
		}
		line, err := parseLineRow(row, index)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		for _, col := range lineColumns {
			if name == col {
				index[col] = i
			}
		}
	}
	var missing []string
	for _, col := range requiredLineColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

func parseLineRow(row []string, index map[string]int) (Line, error) {
	cell := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	amount, err := decimal.NewFromString(cell("amount"))
	if err != nil {
		return Line{}, fmt.Errorf("invalid amount %q", cell("amount"))
	}
	line := Line{
		Name:              cell("name"),
		Amount:            amount,
		Currency:          strings.ToUpper(cell("currency")),
		Mandate:           cell("mandate"),
		Priority:          strings.ToUpper(cell("priority")),
		Communication:     cell("communication"),
		CommunicationType: strings.ToLower(cell("communication_type")),
		StructIssuer:      strings.ToUpper(cell("struct_issuer")),
		InvoiceRef:        cell("invoice_ref"),
	}
	if line.Currency == "" {
		line.Currency = "EUR"
	}
	if line.Date, err = dateCell(cell("date")); err != nil {
		return Line{}, err
	}
	if line.MaturityDate, err = dateCell(cell("maturity_date")); err != nil {
		return Line{}, err
	}
	return line, nil
}

func dateCell(value string) (*Date, error) {
	t, err := parseDate(value)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &Date{Time: t}, nil
}

func isRowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteLines writes lines to a new workbook with a LinesSheet sheet. An
// empty slice gives a template with the header row only.
func WriteLines(w io.Writer, lines []Line) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), LinesSheet); err != nil {
		return err
	}
	header := make([]any, len(lineColumns))
	for i, col := range lineColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(LinesSheet, "A1", &header); err != nil {
		return err
	}
	for i, l := range lines {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			l.Name, l.Amount.StringFixed(2), l.Currency, l.Mandate, formatDate(l.Date), formatDate(l.MaturityDate),
			l.Priority, l.Communication, l.CommunicationType, l.StructIssuer, l.InvoiceRef,
		}
		if err := f.SetSheetRow(LinesSheet, cellRef, &row); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

func formatDate(d *Date) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}
