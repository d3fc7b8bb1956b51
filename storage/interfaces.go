package storage

import (
	"context"

	"kamis-scraper/models"
)

// ReferenceStore looks up and creates the reference rows price records point at.
// Find* return ok=false when no row matches. Create* insert the row unless it
// already exists and return the id of whichever row holds the key.
type ReferenceStore interface {
	FindCategory(ctx context.Context, name string) (id int64, ok bool, err error)
	CreateCategory(ctx context.Context, name string) (int64, error)

	FindCounty(ctx context.Context, name string) (id int64, ok bool, err error)
	CreateCounty(ctx context.Context, name string) (int64, error)

	FindCommodity(ctx context.Context, name string) (id int64, ok bool, err error)
	CreateCommodity(ctx context.Context, name string, categoryID *int64) (int64, error)

	FindMarket(ctx context.Context, name string, countyID int64) (id int64, ok bool, err error)
	CreateMarket(ctx context.Context, name string, countyID int64) (int64, error)
}

// PriceStore persists price records keyed by (commodity, market, date).
type PriceStore interface {
	PriceRecordExists(ctx context.Context, commodityID, marketID int64, recordDate string) (bool, error)
	// InsertPriceRecords bulk-inserts rows and returns how many were actually stored.
	// Rows whose key already exists are ignored and not counted.
	InsertPriceRecords(ctx context.Context, rows []*models.PriceRow) (int, error)
	InsertPriceRecord(ctx context.Context, row *models.PriceRow) (bool, error)
}

// Store is the full persistence surface used by an ingestion run.
type Store interface {
	ReferenceStore
	PriceStore
	Counts(ctx context.Context) (map[string]int, error)
	Close() error
}

// RawRecordWriter is the interface for persisting unprocessed scraped rows.
type RawRecordWriter interface {
	WriteRaw(records []*models.RawRecord) error
	Close() error
}
