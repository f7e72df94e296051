package menu

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadUpload reads an uploaded menu file into a raw cell grid, choosing the
// reader from the file extension.
func ReadUpload(filename string, r io.Reader) ([][]any, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return ReadWorkbook(r)
	case ".csv":
		return ReadCSV(r)
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("unsupported file type %q, upload .xlsx or .csv", filepath.Ext(filename))}
	}
}

// ReadWorkbook reads the first worksheet of an xlsx workbook. Numeric cells
// are returned as float64, all other cells as strings.
func ReadWorkbook(r io.Reader) ([][]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("cannot open workbook: %v", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Reason: "workbook has no sheets"}
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	grid := make([][]any, len(rows))
	for r, cells := range rows {
		out := make([]any, len(cells))
		for c, raw := range cells {
			out[c] = raw
			if raw == "" {
				continue
			}
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, fmt.Errorf("cell name: %w", err)
			}
			typ, err := f.GetCellType(sheet, name)
			if err != nil {
				return nil, fmt.Errorf("cell type %s: %w", name, err)
			}
			if typ == excelize.CellTypeNumber || typ == excelize.CellTypeUnset {
				if n, err := strconv.ParseFloat(raw, 64); err == nil {
					out[c] = n
				}
			}
		}
		grid[r] = out
	}
	return grid, nil
}

// ReadCSV reads a CSV export. Every cell is returned as a string.
func ReadCSV(r io.Reader) ([][]any, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var grid [][]any
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("invalid csv: %v", err)}
		}
		row := make([]any, len(record))
		for i, v := range record {
			if len(grid) == 0 && i == 0 {
				v = strings.TrimPrefix(v, "\ufeff")
			}
			row[i] = v
		}
		grid = append(grid, row)
	}
	return grid, nil
}
