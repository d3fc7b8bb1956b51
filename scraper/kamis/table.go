package kamis

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"kamis-scraper/config"
	"kamis-scraper/models"
)

// TableSelector matches the bordered, condensed table that carries price rows.
const TableSelector = "table.table.table-bordered.table-condensed"

// minCells is the smallest row that can hold a price; shorter rows are separators.
const minCells = 3

// ExtractTable reads the price table of a product page into raw records, one per
// data row, in row order. found is false when the page has no price table, which
// is normal for products without current data.
func ExtractTable(doc *goquery.Document, product string, synonyms config.HeaderSynonyms) (records []*models.RawRecord, found bool) {
	table := doc.Find(TableSelector).First()
	if table.Length() == 0 {
		return nil, false
	}

	var headers []string
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, cellText(th))
	})
	cols := MapHeaders(headers, synonyms)

	scrapedAt := time.Now()
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, cellText(td))
		})
		if len(cells) < minCells {
			return
		}

		get := func(f Field) string {
			i := cols.Index(f)
			if i < 0 || i >= len(cells) {
				return ""
			}
			return cells[i]
		}

		records = append(records, &models.RawRecord{
			ProductName:    product,
			MarketText:     get(FieldMarket),
			County:         get(FieldCounty),
			Classification: get(FieldClassification),
			Grade:          get(FieldGrade),
			Sex:            get(FieldSex),
			Wholesale:      get(FieldWholesale),
			Retail:         get(FieldRetail),
			Volume:         get(FieldVolume),
			Date:           get(FieldDate),

			HasCounty:         cols.Has(FieldCounty),
			HasClassification: cols.Has(FieldClassification),
			HasGrade:          cols.Has(FieldGrade),
			HasSex:            cols.Has(FieldSex),
			HasDate:           cols.Has(FieldDate),

			ScrapedAt: scrapedAt,
		})
	})

	return records, true
}

// cellText returns the element text with whitespace runs collapsed.
func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
