package services

import (
	"context"
	"fmt"

	"kamis-scraper/models"
	"kamis-scraper/storage"
	"kamis-scraper/utils"
)

// DefaultBatchSize is the number of staged rows that triggers a bulk insert.
const DefaultBatchSize = 100

// WriteStats counts what a PriceWriter did with the records it was given.
type WriteStats struct {
	Inserted   int
	Duplicates int
	Failed     int
}

// PriceWriter resolves references for ScrapedRecords and stores the ones whose
// (commodity, market, date) key is not already present.
type PriceWriter struct {
	store     storage.PriceStore
	refs      *ReferenceCache
	batchSize int
	staged    *utils.KeySet
	metrics   *Metrics
	logger    *utils.Logger

	stats WriteStats
}

// NewPriceWriter creates a PriceWriter. metrics may be nil.
func NewPriceWriter(store storage.PriceStore, refs *ReferenceCache, batchSize int, metrics *Metrics, logger *utils.Logger) *PriceWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &PriceWriter{
		store:     store,
		refs:      refs,
		batchSize: batchSize,
		staged:    utils.NewKeySet(),
		metrics:   metrics,
		logger:    logger,
	}
}

// Stats returns the running totals across every Write call.
func (w *PriceWriter) Stats() WriteStats { return w.stats }

// Write stores records and returns how many rows were inserted. A record that
// cannot be resolved or checked is logged and skipped; the only error returned
// is a cancelled context, together with the rows inserted so far.
func (w *PriceWriter) Write(ctx context.Context, records []*models.ScrapedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	inserted := 0
	batch := make([]*models.PriceRow, 0, w.batchSize)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}

		row, err := w.stage(ctx, rec)
		if err != nil {
			w.logger.Error("[ingest] Error preparing %s at %s for insert: %v", rec.ProductName, rec.MarketName, err)
			w.stats.Failed++
			continue
		}
		if row == nil {
			w.stats.Duplicates++
			continue
		}

		batch = append(batch, row)
		if len(batch) >= w.batchSize {
			inserted += w.flush(ctx, batch)
			batch = make([]*models.PriceRow, 0, w.batchSize)
		}
	}

	if len(batch) > 0 {
		inserted += w.flush(ctx, batch)
	}
	return inserted, nil
}

// stage resolves a record into a PriceRow, or returns nil when the key is
// already stored or already staged during this run.
func (w *PriceWriter) stage(ctx context.Context, rec *models.ScrapedRecord) (*models.PriceRow, error) {
	commodityID, err := w.refs.CommodityID(ctx, rec.ProductName)
	if err != nil {
		return nil, err
	}
	marketID, err := w.refs.MarketID(ctx, rec.MarketName, rec.CountyName)
	if err != nil {
		return nil, err
	}

	date := rec.PriceDate.Format(models.DateLayout)
	key := fmt.Sprintf("%d|%d|%s", commodityID, marketID, date)
	if w.staged.Contains(key) {
		w.logger.Debug("[ingest] Skipping repeated row: %s at %s on %s", rec.ProductName, rec.MarketName, date)
		return nil, nil
	}

	exists, err := w.store.PriceRecordExists(ctx, commodityID, marketID, date)
	if err != nil {
		return nil, fmt.Errorf("check existing: %w", err)
	}
	w.staged.Add(key)
	if exists {
		w.logger.Debug("[ingest] Skipping duplicate: %s at %s on %s", rec.ProductName, rec.MarketName, date)
		return nil, nil
	}

	return &models.PriceRow{
		CommodityID:    commodityID,
		MarketID:       marketID,
		Classification: rec.Classification,
		Grade:          rec.Grade,
		Sex:            rec.Sex,
		WholesalePrice: rec.WholesalePrice,
		RetailPrice:    rec.RetailPrice,
		SupplyVolume:   rec.SupplyVolume,
		RecordDate:     date,
	}, nil
}

// flush bulk-inserts a batch, falling back to one insert per row if the bulk
// insert fails. Rows the store ignored as conflicts count as duplicates.
func (w *PriceWriter) flush(ctx context.Context, batch []*models.PriceRow) int {
	if w.metrics != nil {
		w.metrics.batchSize.Observe(float64(len(batch)))
	}

	n, err := w.store.InsertPriceRecords(ctx, batch)
	if err == nil {
		w.logger.Info("[ingest] Inserted batch of %d records", n)
		w.stats.Inserted += n
		w.stats.Duplicates += len(batch) - n
		return n
	}

	w.logger.Error("[ingest] Batch insert of %d rows failed: %v; inserting individually", len(batch), err)
	success := 0
	for _, row := range batch {
		ok, err := w.store.InsertPriceRecord(ctx, row)
		switch {
		case err != nil:
			w.logger.Error("[ingest] Individual insert failed (commodity %d, market %d, %s): %v",
				row.CommodityID, row.MarketID, row.RecordDate, err)
			w.stats.Failed++
		case ok:
			success++
		default:
			w.stats.Duplicates++
		}
	}
	w.stats.Inserted += success
	return success
}
