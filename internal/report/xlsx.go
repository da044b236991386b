package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/izposoja/internal/model"
)

// Sheet names in exported workbooks.
const (
	SheetSummary = "Summary"
	SheetItems   = "Items"
)

// Item sheet columns. The first seven are read back by ParseXLSX.
var itemHeaders = []string{
	"Name", "Item Code", "Category", "Description", "Image URL", "Status", "Date Added",
	"Recipient", "Issuer", "Issue Date", "Expected Return", "Actual Return", "Collected By", "Overdue",
}

const dateLayout = "2006-01-02"

// ExportXLSX writes a workbook with the activity summary and the item list.
func ExportXLSX(w io.Writer, a Activity, items []model.Item, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("naming summary sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetItems); err != nil {
		return fmt.Errorf("creating items sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating style: %w", err)
	}

	summary := [][]any{
		{"Activity report"},
		{"From", a.From.Format(dateLayout)},
		{"To", a.To.Format(dateLayout)},
		{"Generated", now.Format("2006-01-02 15:04")},
		{},
		{"Items Added", a.Added},
		{"Items Issued", a.Issued},
		{"Items Returned", a.Returned},
		{"Pending Return", a.Pending},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return fmt.Errorf("writing summary row %d: %w", i+1, err)
		}
	}
	f.SetCellStyle(SheetSummary, "A1", "A9", bold)
	f.SetColWidth(SheetSummary, "A", "B", 18)

	if err := f.SetSheetRow(SheetItems, "A1", &itemHeaders); err != nil {
		return fmt.Errorf("writing item headers: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(itemHeaders))
	f.SetCellStyle(SheetItems, "A1", last+"1", bold)
	f.SetColWidth(SheetItems, "A", last, 16)

	for i, it := range items {
		overdue := ""
		if model.IsOverdue(it, now) {
			overdue = "yes"
		}
		row := []any{
			it.Name, it.ItemCode, it.Category, it.Description, exportImage(it.ImageURL),
			string(it.Status), it.DateAdded.Format(dateLayout),
			it.RecipientName, it.IssuerName, formatDate(it.IssueDate),
			formatDate(it.ExpectedReturnDate), formatDate(it.ActualReturnDate), it.CollectedBy, overdue,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetItems, cell, &row); err != nil {
			return fmt.Errorf("writing item row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// Embedded images can exceed the cell size limit.
func exportImage(ref string) string {
	if len(ref) > excelize.TotalCellChars {
		return ""
	}
	return ref
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

// Row is one data row read from a spreadsheet. Line is the 1-based sheet row.
// Err is set when a cell could not be parsed; such rows are not imported.
type Row struct {
	Line  int
	Input model.ItemInput
	Err   error
}

// ParseXLSX reads items from the Items sheet, or the first sheet if there is
// none. Columns are located by their header in the first row; Name, Item
// Code, Category and Image URL are required.
func ParseXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	defer f.Close()

	sheet := SheetItems
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheet)
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"name", "item code", "category", "image url"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []Row
	for i, cells := range rows[1:] {
		if strings.Join(cells, "") == "" {
			continue
		}
		row := Row{
			Line: i + 2,
			Input: model.ItemInput{
				Name:        cell(cells, "name"),
				ItemCode:    cell(cells, "item code"),
				Category:    cell(cells, "category"),
				Description: cell(cells, "description"),
				ImageURL:    cell(cells, "image url"),
			},
		}

		if s := cell(cells, "status"); s != "" {
			status, ok := model.ParseStatus(s)
			if !ok {
				row.Err = fmt.Errorf("unknown status %q", s)
			}
			row.Input.Status = status
		}
		if s := cell(cells, "date added"); s != "" && row.Err == nil {
			d, err := parseCellDate(s)
			if err != nil {
				row.Err = err
			}
			row.Input.DateAdded = d
		}
		out = append(out, row)
	}
	return out, nil
}

// parseCellDate accepts an Excel date serial or a YYYY-MM-DD string.
func parseCellDate(s string) (time.Time, error) {
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		return t, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
