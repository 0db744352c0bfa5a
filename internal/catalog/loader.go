package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	ColumnTitle       = "job title"
	ColumnDescription = "job description"
	ColumnCompany     = "company"
	ColumnLocation    = "location"
)

// ErrEmptyCatalog is returned when a source holds a header but no records.
var ErrEmptyCatalog = errors.New("catalog has no job records")

// Load reads a catalog from a .csv or .xlsx file.
func Load(path string) (Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("catalog path is empty")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open catalog: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open catalog workbook: %w", err)
		}
		defer f.Close()
		return readWorkbook(f)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}
}

// ReadCSV parses a catalog with a header row.
func ReadCSV(r io.Reader) (Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read catalog csv: %w", err)
	}
	return fromRows(rows)
}

func readWorkbook(f *excelize.File) (Catalog, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyCatalog
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) (Catalog, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyCatalog
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	for _, required := range []string{ColumnTitle, ColumnDescription} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("catalog header is missing %q column", required)
		}
	}

	cell := func(row []string, column string) string {
		idx, ok := columns[column]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	catalog := make(Catalog, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		if isBlank(row) {
			continue
		}
		record := JobRecord{
			Title:       cell(row, ColumnTitle),
			Description: cell(row, ColumnDescription),
			Company:     cell(row, ColumnCompany),
			Location:    cell(row, ColumnLocation),
		}
		if record.Title == "" {
			return nil, fmt.Errorf("line %d: job title is empty", line)
		}
		if record.Description == "" {
			return nil, fmt.Errorf("line %d: job description for %q is empty", line, record.Title)
		}
		catalog = append(catalog, record)
	}

	if len(catalog) == 0 {
		return nil, ErrEmptyCatalog
	}
	return catalog, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
