package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"kamis-scraper/models"
)

func record(product, market, county string, day int) *models.ScrapedRecord {
	return &models.ScrapedRecord{
		ProductName: product,
		MarketName:  market,
		CountyName:  county,
		RetailPrice: ParsePrice("100"),
		PriceDate:   time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestPriceWriterBatches(t *testing.T) {
	store := newFakeStore()
	w := NewPriceWriter(store, newTestRefs(store), 2, NewMetrics(), newTestLogger())

	var recs []*models.ScrapedRecord
	for day := 1; day <= 5; day++ {
		recs = append(recs, record("Kale", "Wakulima", "Nairobi", day))
	}

	n, err := w.Write(context.Background(), recs)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 5 {
		t.Errorf("inserted = %d; want 5", n)
	}
	if fmt.Sprint(store.bulkCalls) != "[2 2 1]" {
		t.Errorf("bulk insert sizes = %v; want [2 2 1]", store.bulkCalls)
	}
}

func TestPriceWriterSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	w := NewPriceWriter(store, newTestRefs(store), 100, nil, newTestLogger())

	recs := []*models.ScrapedRecord{
		record("Kale", "Wakulima", "Nairobi", 1),
		record("kale", "WAKULIMA", "nairobi", 1), // same key after normalization
		record("Kale", "Wakulima", "Kiambu", 1),  // different county, different market row
	}
	n, err := w.Write(ctx, recs)
	if err != nil || n != 2 {
		t.Fatalf("first Write = %d, %v; want 2", n, err)
	}

	// A second writer, as in a second run, sees the stored rows.
	w2 := NewPriceWriter(store, newTestRefs(store), 100, nil, newTestLogger())
	n, err = w2.Write(ctx, recs)
	if err != nil || n != 0 {
		t.Errorf("second Write = %d, %v; want 0", n, err)
	}
	if got := w2.Stats().Duplicates; got != 3 {
		t.Errorf("duplicates = %d; want 3", got)
	}
	if len(store.prices) != 2 {
		t.Errorf("stored rows = %d; want 2", len(store.prices))
	}
}

func TestPriceWriterFallsBackToRowInserts(t *testing.T) {
	store := newFakeStore()
	store.failBulk = true
	store.failRow = func(r *models.PriceRow) bool { return r.RecordDate == "2024-01-02" }
	w := NewPriceWriter(store, newTestRefs(store), 100, nil, newTestLogger())

	recs := []*models.ScrapedRecord{
		record("Kale", "Wakulima", "Nairobi", 1),
		record("Kale", "Wakulima", "Nairobi", 2),
		record("Kale", "Wakulima", "Nairobi", 3),
	}
	n, err := w.Write(context.Background(), recs)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d; want 2 (one row fails)", n)
	}
	if store.rowCalls != 3 {
		t.Errorf("row inserts = %d; want 3", store.rowCalls)
	}
	if s := w.Stats(); s.Failed != 1 || s.Inserted != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestPriceWriterSkipsUnresolvableRecords(t *testing.T) {
	store := newFakeStore()
	store.failCommodity["Kale"] = true
	w := NewPriceWriter(store, newTestRefs(store), 100, nil, newTestLogger())

	n, err := w.Write(context.Background(), []*models.ScrapedRecord{
		record("Kale", "Wakulima", "Nairobi", 1),
		record("Spinach", "Wakulima", "Nairobi", 1),
	})
	if err != nil || n != 1 {
		t.Errorf("Write = %d, %v; want 1", n, err)
	}
	if w.Stats().Failed != 1 {
		t.Errorf("failed = %d; want 1", w.Stats().Failed)
	}
}

func TestPriceWriterCancelled(t *testing.T) {
	store := newFakeStore()
	w := NewPriceWriter(store, newTestRefs(store), 100, nil, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := w.Write(ctx, []*models.ScrapedRecord{record("Kale", "Wakulima", "Nairobi", 1)})
	if err == nil || n != 0 {
		t.Errorf("Write = %d, %v; want 0 and context error", n, err)
	}
}

func TestPriceWriterSQLite(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	recs := []*models.ScrapedRecord{
		record("Dry Maize", "Wakulima", "Nairobi", 15),
		record("Dry Maize", "Kongowea", "Mombasa", 15),
		record("Dry Maize", "Kongowea", "Mombasa", 15),
	}
	n, err := NewPriceWriter(store, newTestRefs(store), 100, nil, newTestLogger()).Write(ctx, recs)
	if err != nil || n != 2 {
		t.Fatalf("Write = %d, %v; want 2", n, err)
	}

	n, err = NewPriceWriter(store, newTestRefs(store), 100, nil, newTestLogger()).Write(ctx, recs)
	if err != nil || n != 0 {
		t.Errorf("rewrite = %d, %v; want 0", n, err)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["price_records"] != 2 || counts["markets"] != 2 || counts["counties"] != 2 {
		t.Errorf("counts = %v", counts)
	}
}
