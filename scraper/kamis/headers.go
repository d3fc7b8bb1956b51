package kamis

import (
	"strings"

	"kamis-scraper/config"
)

// Field is a semantic column of a KAMIS price table.
type Field string

const (
	FieldMarket         Field = "market"
	FieldCounty         Field = "county"
	FieldClassification Field = "classification"
	FieldGrade          Field = "grade"
	FieldSex            Field = "sex"
	FieldWholesale      Field = "wholesale"
	FieldRetail         Field = "retail"
	FieldVolume         Field = "volume"
	FieldDate           Field = "date"
)

// Fields lists every semantic column.
var Fields = []Field{
	FieldMarket, FieldCounty, FieldClassification, FieldGrade, FieldSex,
	FieldWholesale, FieldRetail, FieldVolume, FieldDate,
}

// ColumnMap resolves each field to a physical column index, -1 when the table lacks it.
type ColumnMap map[Field]int

// Index returns the column for f, or -1.
func (m ColumnMap) Index(f Field) int {
	if i, ok := m[f]; ok {
		return i
	}
	return -1
}

// Has reports whether the table has a column for f.
func (m ColumnMap) Has(f Field) bool {
	return m.Index(f) >= 0
}

// MapHeaders resolves every field to a column. Synonyms are tried in their
// listed order, most specific first, and each resolves to the lowest-index
// header containing it; so "retail price" claims the Retail Price column before
// the bare "price" synonym could match Wholesale Price. Headers are compared
// case-folded and trimmed.
func MapHeaders(headers []string, synonyms config.HeaderSynonyms) ColumnMap {
	folded := make([]string, len(headers))
	for i, h := range headers {
		folded[i] = strings.ToLower(strings.TrimSpace(h))
	}

	m := make(ColumnMap, len(Fields))
	for _, f := range Fields {
		m[f] = findColumn(folded, synonyms[string(f)])
	}
	return m
}

func findColumn(headers, variants []string) int {
	for _, v := range variants {
		for i, h := range headers {
			if strings.Contains(h, v) {
				return i
			}
		}
	}
	return -1
}
