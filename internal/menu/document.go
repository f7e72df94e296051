package menu

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	defaultCategory    = "General"
	defaultPortionSize = "1"
	genericDietaryNote = "See menu for details."
)

// Metadata is the structured payload stored alongside each vector.
type Metadata struct {
	Name        string  `json:"name"`
	NamePt      string  `json:"namePt"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	CategoryEn  string  `json:"categoryEn"`
	Price       float64 `json:"price"`
	Dietary     string  `json:"dietary"`
	PortionSize string  `json:"portionSize"`
	Available   bool    `json:"available"`
}

// Map renders the metadata for the vector index payload.
func (m Metadata) Map() map[string]any {
	return map[string]any{
		"name":        m.Name,
		"namePt":      m.NamePt,
		"description": m.Description,
		"category":    m.Category,
		"categoryEn":  m.CategoryEn,
		"price":       m.Price,
		"dietary":     m.Dietary,
		"portionSize": m.PortionSize,
		"available":   m.Available,
	}
}

// Document is the unit of retrieval: Text is embedded, Metadata is returned with matches.
type Document struct {
	Text     string
	Metadata Metadata
}

// BuildDocument converts one normalized row into a search document. It is a
// pure function of its inputs; index only feeds the placeholder name used
// when both name columns are blank.
//
// The dietary note is derived from the description and is not a verified
// allergen list.
func BuildDocument(row Row, index int) Document {
	nameEn := row.preferred(ItemNameEn, ItemNamePt)
	namePt := row.preferred(ItemNamePt, ItemNameEn)
	name := strings.TrimSpace(firstNonEmpty(nameEn, namePt, fmt.Sprintf("Item %d", index+1)))

	description := strings.TrimSpace(firstNonEmpty(
		row.preferred(ItemDescriptionEn, ItemDescriptionPt),
		row.preferred(ItemDescriptionPt, ItemDescriptionEn),
	))

	categoryEn := row.preferred(CategoryTitleEn, CategoryTitlePt)
	categoryPt := row.preferred(CategoryTitlePt, CategoryTitleEn)
	category := strings.TrimSpace(firstNonEmpty(categoryEn, categoryPt, defaultCategory))

	subcategory := joinNonEmpty(" / ", row.text(SubcategoryTitleEn), row.text(SubcategoryTitlePt))

	price := ParsePrice(row[ItemPrice])

	portionSize := row.text(PortionSize)
	if portionSize == "" {
		portionSize = defaultPortionSize
	}

	dietary := genericDietaryNote
	if description != "" {
		dietary = fmt.Sprintf("Ingredients: %s. Check for allergens.", description)
	}

	altName := ""
	if namePt != name {
		altName = namePt
	}

	parts := []string{
		name,
		altName,
		description,
		category,
		subcategory,
		fmt.Sprintf("Price: €%.2f", price),
		dietary,
		"Portion: " + portionSize,
	}

	return Document{
		Text: joinNonEmpty(". ", parts...),
		Metadata: Metadata{
			Name:        name,
			NamePt:      firstNonEmpty(namePt, name),
			Description: description,
			Category:    Slugify(category),
			CategoryEn:  firstNonEmpty(categoryEn, category),
			Price:       price,
			Dietary:     strings.ToLower(dietary),
			PortionSize: portionSize,
			Available:   IsAvailable(row[Availability]),
		},
	}
}

var leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParsePrice reads the leading number of a price cell, accepting a comma
// decimal separator, so "12,50 €" is 12.5. Trailing text is ignored.
// A cell with no leading number, including an absent cell, yields 0.
func ParsePrice(v any) float64 {
	var f float64
	switch p := v.(type) {
	case float64:
		f = p
	case string:
		s := strings.Replace(strings.TrimSpace(p), ",", ".", 1)
		num := leadingFloat.FindString(s)
		if num == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// IsAvailable is true only for 1, "1" or a case-insensitive "true".
func IsAvailable(v any) bool {
	switch a := v.(type) {
	case float64:
		return a == 1
	case string:
		return a == "1" || strings.EqualFold(a, "true")
	}
	return false
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Slugify lowercases s and collapses whitespace runs into single hyphens.
func Slugify(s string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(s), "-")
}

// preferred returns the first present value among cols, even when it is blank.
func (r Row) preferred(cols ...Column) string {
	for _, c := range cols {
		if s, ok := r.Text(c); ok {
			return s
		}
	}
	return ""
}

func (r Row) text(c Column) string {
	s, _ := r.Text(c)
	return strings.TrimSpace(s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(sep string, vals ...string) string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, sep)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
