package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownCounty is used whenever a row's county cannot be determined.
const UnknownCounty = "Unknown"

// DateLayout is the ISO format used for record_date.
const DateLayout = "2006-01-02"

// Product is one entry of the KAMIS product dropdown.
type Product struct {
	ID   int
	Name string
}

// RawRecord holds the unprocessed cell text of one KAMIS table row.
// A field whose column is missing from the table is left empty; HasCounty,
// HasDate and the Has* qualifier flags record which columns existed.
type RawRecord struct {
	ProductName    string
	MarketText     string
	County         string
	Classification string
	Grade          string
	Sex            string
	Wholesale      string
	Retail         string
	Volume         string
	Date           string

	HasCounty         bool
	HasClassification bool
	HasGrade          bool
	HasSex            bool
	HasDate           bool

	ScrapedAt time.Time
}

// ScrapedRecord is a normalized price row, ready for reference resolution and storage.
type ScrapedRecord struct {
	ProductName    string
	MarketName     string
	CountyName     string
	Classification *string
	Grade          *string
	Sex            *string
	WholesalePrice decimal.NullDecimal
	RetailPrice    decimal.NullDecimal
	SupplyVolume   decimal.NullDecimal
	PriceDate      time.Time

	// DateEstimated is set when the source date was missing or unparseable and
	// PriceDate was filled with the processing date instead.
	DateEstimated bool
}

// PriceRow is a price_records row with its references resolved.
type PriceRow struct {
	CommodityID    int64
	MarketID       int64
	Classification *string
	Grade          *string
	Sex            *string
	WholesalePrice decimal.NullDecimal
	RetailPrice    decimal.NullDecimal
	SupplyVolume   decimal.NullDecimal
	RecordDate     string
}
