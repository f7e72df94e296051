package menu

import (
	"strings"
)

// Normalize maps a raw cell grid (row 0 is the header) onto the logical
// schema. Unknown header names are ignored and the first occurrence of a
// duplicated header wins. Cells in numeric columns keep their float64 type;
// everything else is captured as a trimmed string. Rows without a value in
// either name column are dropped.
func Normalize(grid [][]any) ([]Row, error) {
	if len(grid) < 2 {
		return nil, &ParseError{Reason: "sheet needs a header row and at least one data row"}
	}

	colIndex := make(map[Column]int, len(Columns))
	for i, cell := range grid[0] {
		name := Column(strings.TrimSpace(formatValue(cell)))
		if name == "" {
			continue
		}
		if _, seen := colIndex[name]; !seen {
			colIndex[name] = i
		}
	}

	rows := make([]Row, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		row := make(Row)
		for _, col := range Columns {
			idx, ok := colIndex[col]
			if !ok || idx >= len(cells) {
				continue
			}
			switch v := cells[idx].(type) {
			case nil:
			case float64:
				if col.numeric() {
					row[col] = v
				} else {
					row[col] = formatValue(v)
				}
			default:
				s := formatValue(v)
				if s == "" {
					continue
				}
				row[col] = strings.TrimSpace(s)
			}
		}
		if !row.HasName() {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}
