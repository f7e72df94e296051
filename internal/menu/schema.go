// Package menu turns tabular menu exports into search documents.
package menu

import (
	"fmt"
	"strings"
)

// Column is a logical column name, matched case-sensitively against the header row.
type Column string

const (
	CategoryTitlePt    Column = "CategoryTitlePt"
	CategoryTitleEn    Column = "CategoryTitleEn"
	SubcategoryTitlePt Column = "SubcategoryTitlePt"
	SubcategoryTitleEn Column = "SubcategoryTitleEn"
	ItemNamePt         Column = "ItemNamePt"
	ItemNameEn         Column = "ItemNameEn"
	ItemPrice          Column = "ItemPrice"
	Calories           Column = "Calories"
	PortionSize        Column = "PortionSize"
	Availability       Column = "Availability"
	ItemDescriptionPt  Column = "ItemDescriptionPt"
	ItemDescriptionEn  Column = "ItemDescriptionEn"
)

// Columns lists every logical column in export order.
var Columns = []Column{
	CategoryTitlePt, CategoryTitleEn,
	SubcategoryTitlePt, SubcategoryTitleEn,
	ItemNamePt, ItemNameEn,
	ItemPrice, Calories, PortionSize, Availability,
	ItemDescriptionPt, ItemDescriptionEn,
}

func (c Column) numeric() bool {
	switch c {
	case ItemPrice, Calories, PortionSize, Availability:
		return true
	}
	return false
}

// Row holds one spreadsheet row keyed by logical column. Values are string
// or float64. A missing key means the cell was absent or empty.
type Row map[Column]any

// Lookup returns the value for c and whether it was present.
func (r Row) Lookup(c Column) (any, bool) {
	v, ok := r[c]
	return v, ok
}

// Text returns the value for c rendered as a string.
func (r Row) Text(c Column) (string, bool) {
	v, ok := r[c]
	if !ok {
		return "", false
	}
	return formatValue(v), true
}

// HasName reports whether either name column carries a non-blank value.
func (r Row) HasName() bool {
	for _, c := range []Column{ItemNameEn, ItemNamePt} {
		if s, ok := r.Text(c); ok && strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

// RequiredColumnsHint names the columns an upload must provide.
const RequiredColumnsHint = "Ensure columns ItemNameEn / ItemNamePt and ItemPrice are present."

// ParseError reports a sheet that cannot be read as a menu.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse menu: %s. %s", e.Reason, RequiredColumnsHint)
}
