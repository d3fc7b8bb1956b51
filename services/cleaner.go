package services

import (
	"strings"
	"unicode"

	"kamis-scraper/models"
	"kamis-scraper/utils"
)

// Cleaner transforms RawRecords into typed ScrapedRecords.
type Cleaner struct {
	logger      *utils.Logger
	strictDates bool
}

// NewCleaner creates a Cleaner. With strictDates set, rows whose date is missing
// or unparseable are dropped instead of being stamped with today's date.
func NewCleaner(logger *utils.Logger, strictDates bool) *Cleaner {
	return &Cleaner{logger: logger, strictDates: strictDates}
}

// Clean normalizes raw table rows. The county comes from the county column when
// the table has one, otherwise it is split out of the market cell.
func (c *Cleaner) Clean(raw []*models.RawRecord) []*models.ScrapedRecord {
	result := make([]*models.ScrapedRecord, 0, len(raw))

	for _, r := range raw {
		rec, ok := c.cleanOne(r)
		if !ok {
			continue
		}
		result = append(result, rec)
	}

	if dropped := len(raw) - len(result); dropped > 0 {
		c.logger.Info("[cleaner] Cleaned %d → %d records (dropped %d)", len(raw), len(result), dropped)
	}
	return result
}

func (c *Cleaner) cleanOne(r *models.RawRecord) (*models.ScrapedRecord, bool) {
	marketText := normaliseText(r.MarketText)

	var market, county string
	if r.HasCounty {
		market, county = marketText, normaliseText(r.County)
	} else {
		market, county = ResolveMarketCounty(marketText)
	}
	if county == "" {
		county = models.UnknownCounty
	}
	if market == "" {
		c.logger.Warn("[cleaner] Dropping %s row without market name", r.ProductName)
		return nil, false
	}

	date, parsed := ParseDate(r.Date)
	if !parsed {
		if c.strictDates {
			c.logger.Warn("[cleaner] Dropping %s at %s: could not parse date %q", r.ProductName, market, r.Date)
			return nil, false
		}
		c.logger.Warn("[cleaner] Could not parse date %q for %s at %s, using today", r.Date, r.ProductName, market)
	}

	return &models.ScrapedRecord{
		ProductName:    normaliseText(r.ProductName),
		MarketName:     market,
		CountyName:     county,
		Classification: optional(r.HasClassification, r.Classification),
		Grade:          optional(r.HasGrade, r.Grade),
		Sex:            optional(r.HasSex, r.Sex),
		WholesalePrice: ParsePrice(r.Wholesale),
		RetailPrice:    ParsePrice(r.Retail),
		SupplyVolume:   ParseVolume(r.Volume),
		PriceDate:      date,
		DateEstimated:  !parsed,
	}, true
}

// optional returns nil for a column the table does not have.
func optional(present bool, text string) *string {
	if !present {
		return nil
	}
	s := normaliseText(text)
	return &s
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
