package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kamis-scraper/models"
)

var errFake = errors.New("fake store failure")

// fakeStore is an in-memory IngestStore with switchable failures.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64

	categories        map[string]int64
	counties          map[string]int64
	commodities       map[string]int64
	commodityCategory map[string]*int64
	markets           map[string]int64
	prices            map[string]*models.PriceRow

	failCategories map[string]bool
	failCommodity  map[string]bool
	failBulk       bool
	failRow        func(*models.PriceRow) bool
	panicOnBulk    int // panic on this bulk insert call, 1-based; 0 never
	bulkCalls      []int
	rowCalls       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		categories:        make(map[string]int64),
		counties:          make(map[string]int64),
		commodities:       make(map[string]int64),
		commodityCategory: make(map[string]*int64),
		markets:           make(map[string]int64),
		prices:            make(map[string]*models.PriceRow),
		failCategories:    make(map[string]bool),
		failCommodity:     make(map[string]bool),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) FindCategory(_ context.Context, name string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCategories[name] {
		return 0, false, errFake
	}
	id, ok := f.categories[name]
	return id, ok, nil
}

func (f *fakeStore) CreateCategory(_ context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCategories[name] {
		return 0, errFake
	}
	if id, ok := f.categories[name]; ok {
		return id, nil
	}
	f.categories[name] = f.id()
	return f.categories[name], nil
}

func (f *fakeStore) FindCounty(_ context.Context, name string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.counties[name]
	return id, ok, nil
}

func (f *fakeStore) CreateCounty(_ context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.counties[name]; ok {
		return id, nil
	}
	f.counties[name] = f.id()
	return f.counties[name], nil
}

func (f *fakeStore) FindCommodity(_ context.Context, name string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.commodities[name]
	return id, ok, nil
}

func (f *fakeStore) CreateCommodity(_ context.Context, name string, categoryID *int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCommodity[name] {
		return 0, errFake
	}
	if id, ok := f.commodities[name]; ok {
		return id, nil
	}
	f.commodities[name] = f.id()
	f.commodityCategory[name] = categoryID
	return f.commodities[name], nil
}

func marketKey(name string, countyID int64) string {
	return fmt.Sprintf("%s|%d", name, countyID)
}

func (f *fakeStore) FindMarket(_ context.Context, name string, countyID int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.markets[marketKey(name, countyID)]
	return id, ok, nil
}

func (f *fakeStore) CreateMarket(_ context.Context, name string, countyID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := marketKey(name, countyID)
	if id, ok := f.markets[key]; ok {
		return id, nil
	}
	f.markets[key] = f.id()
	return f.markets[key], nil
}

func priceKey(commodityID, marketID int64, date string) string {
	return fmt.Sprintf("%d|%d|%s", commodityID, marketID, date)
}

func (f *fakeStore) PriceRecordExists(_ context.Context, commodityID, marketID int64, recordDate string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.prices[priceKey(commodityID, marketID, recordDate)]
	return ok, nil
}

func (f *fakeStore) InsertPriceRecords(_ context.Context, rows []*models.PriceRow) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls = append(f.bulkCalls, len(rows))
	if f.panicOnBulk == len(f.bulkCalls) {
		panic("connection reset mid-batch")
	}
	if f.failBulk {
		return 0, errFake
	}
	n := 0
	for _, r := range rows {
		if f.insertLocked(r) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InsertPriceRecord(_ context.Context, row *models.PriceRow) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rowCalls++
	if f.failRow != nil && f.failRow(row) {
		return false, errFake
	}
	return f.insertLocked(row), nil
}

func (f *fakeStore) insertLocked(r *models.PriceRow) bool {
	key := priceKey(r.CommodityID, r.MarketID, r.RecordDate)
	if _, ok := f.prices[key]; ok {
		return false
	}
	f.prices[key] = r
	return true
}
