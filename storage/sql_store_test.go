package storage

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"kamis-scraper/config"
	"kamis-scraper/models"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(context.Background(), config.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreCreateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.CreateCounty(ctx, "Nairobi")
	if err != nil {
		t.Fatalf("CreateCounty: %v", err)
	}
	second, err := s.CreateCounty(ctx, "Nairobi")
	if err != nil {
		t.Fatalf("CreateCounty again: %v", err)
	}
	if first != second {
		t.Errorf("second create returned id %d, want existing %d", second, first)
	}

	id, ok, err := s.FindCounty(ctx, "Nairobi")
	if err != nil || !ok || id != first {
		t.Errorf("FindCounty = (%d, %v, %v); want (%d, true, nil)", id, ok, err, first)
	}

	if _, ok, _ := s.FindCounty(ctx, "Mombasa"); ok {
		t.Error("FindCounty should miss an unknown county")
	}
}

func TestStoreMarketKeyedByCounty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	nairobi, _ := s.CreateCounty(ctx, "Nairobi")
	kiambu, _ := s.CreateCounty(ctx, "Kiambu")

	a, err := s.CreateMarket(ctx, "Central", nairobi)
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	b, err := s.CreateMarket(ctx, "Central", kiambu)
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	if a == b {
		t.Error("same market name in different counties must be different rows")
	}

	id, ok, err := s.FindMarket(ctx, "Central", kiambu)
	if err != nil || !ok || id != b {
		t.Errorf("FindMarket = (%d, %v, %v); want (%d, true, nil)", id, ok, err, b)
	}
}

func TestStoreCommodityWithoutCategory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateCommodity(ctx, "Widget", nil); err != nil {
		t.Fatalf("CreateCommodity with nil category: %v", err)
	}

	cat, _ := s.CreateCategory(ctx, "Grains")
	id, err := s.CreateCommodity(ctx, "Dry Maize", &cat)
	if err != nil {
		t.Fatalf("CreateCommodity: %v", err)
	}
	if got, ok, _ := s.FindCommodity(ctx, "Dry Maize"); !ok || got != id {
		t.Errorf("FindCommodity = %d, %v; want %d", got, ok, id)
	}
}

func seedRow(t *testing.T, s *SQLStore, date string) *models.PriceRow {
	t.Helper()
	ctx := context.Background()
	county, _ := s.CreateCounty(ctx, "Nairobi")
	market, _ := s.CreateMarket(ctx, "Wakulima", county)
	commodity, _ := s.CreateCommodity(ctx, "Dry Maize", nil)
	grade := "Grade 1"
	return &models.PriceRow{
		CommodityID:    commodity,
		MarketID:       market,
		Grade:          &grade,
		WholesalePrice: decimal.NewNullDecimal(decimal.RequireFromString("1234.50")),
		RecordDate:     date,
	}
}

func TestStoreInsertPriceRecordsIgnoresDuplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := seedRow(t, s, "2024-01-15")
	b := seedRow(t, s, "2024-01-16")
	dup := seedRow(t, s, "2024-01-15")

	n, err := s.InsertPriceRecords(ctx, []*models.PriceRow{a, b})
	if err != nil {
		t.Fatalf("InsertPriceRecords: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted %d; want 2", n)
	}

	n, err = s.InsertPriceRecords(ctx, []*models.PriceRow{dup})
	if err != nil {
		t.Fatalf("InsertPriceRecords duplicate: %v", err)
	}
	if n != 0 {
		t.Errorf("duplicate insert counted %d rows; want 0", n)
	}

	ok, err := s.InsertPriceRecord(ctx, dup)
	if err != nil || ok {
		t.Errorf("InsertPriceRecord(dup) = %v, %v; want false, nil", ok, err)
	}

	exists, err := s.PriceRecordExists(ctx, a.CommodityID, a.MarketID, "2024-01-15")
	if err != nil || !exists {
		t.Errorf("PriceRecordExists = %v, %v; want true", exists, err)
	}
	exists, _ = s.PriceRecordExists(ctx, a.CommodityID, a.MarketID, "2024-02-01")
	if exists {
		t.Error("PriceRecordExists should miss an unseen date")
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts["price_records"] != 2 {
		t.Errorf("price_records count = %d; want 2", counts["price_records"])
	}
}

func TestStoreInsertRejectsUnknownReference(t *testing.T) {
	s := openTestStore(t)
	row := &models.PriceRow{CommodityID: 999, MarketID: 999, RecordDate: "2024-01-15"}
	if _, err := s.InsertPriceRecords(context.Background(), []*models.PriceRow{row}); err == nil {
		t.Error("expected foreign key violation for unknown commodity/market")
	}
}

func TestRebind(t *testing.T) {
	s := &SQLStore{numbered: true}
	got := s.rebind("SELECT id FROM markets WHERE name = ? AND county_id = ?")
	want := "SELECT id FROM markets WHERE name = $1 AND county_id = $2"
	if got != want {
		t.Errorf("rebind = %q; want %q", got, want)
	}

	s = &SQLStore{}
	if got := s.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", ""); err == nil {
		t.Error("expected error for unknown driver")
	}
}
