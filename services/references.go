package services

import (
	"context"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"kamis-scraper/storage"
	"kamis-scraper/utils"
)

// ReferenceCache resolves county, commodity and market names to row ids,
// creating rows on first use. One cache belongs to one ingestion run.
type ReferenceCache struct {
	store       storage.ReferenceStore
	categorizer *Categorizer
	logger      *utils.Logger

	counties    map[string]int64
	commodities map[string]int64
	markets     map[string]int64
}

// NewReferenceCache creates an empty cache in front of store.
func NewReferenceCache(store storage.ReferenceStore, categorizer *Categorizer, logger *utils.Logger) *ReferenceCache {
	return &ReferenceCache{
		store:       store,
		categorizer: categorizer,
		logger:      logger,
		counties:    make(map[string]int64),
		commodities: make(map[string]int64),
		markets:     make(map[string]int64),
	}
}

// NormalizeName trims, collapses whitespace and title-cases a reference name,
// so "  WAKULIMA  market" and "Wakulima Market" share one row.
func NormalizeName(name string) string {
	return cases.Title(language.Und).String(normaliseText(name))
}

// CountyID returns the id of the named county, creating it if needed.
func (r *ReferenceCache) CountyID(ctx context.Context, name string) (int64, error) {
	name = NormalizeName(name)
	if id, ok := r.counties[name]; ok {
		return id, nil
	}

	id, found, err := r.store.FindCounty(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("county %q: %w", name, err)
	}
	if !found {
		if id, err = r.store.CreateCounty(ctx, name); err != nil {
			return 0, fmt.Errorf("county %q: %w", name, err)
		}
		r.logger.Info("[references] Created county: %s", name)
	}

	r.counties[name] = id
	return id, nil
}

// CommodityID returns the id of the named commodity. A new commodity is
// categorized before it is created.
func (r *ReferenceCache) CommodityID(ctx context.Context, name string) (int64, error) {
	name = NormalizeName(name)
	if id, ok := r.commodities[name]; ok {
		return id, nil
	}

	id, found, err := r.store.FindCommodity(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("commodity %q: %w", name, err)
	}
	if !found {
		categoryID := r.categorizer.CategoryID(ctx, name)
		if id, err = r.store.CreateCommodity(ctx, name, categoryID); err != nil {
			return 0, fmt.Errorf("commodity %q: %w", name, err)
		}
		r.logger.Info("[references] Created commodity: %s", name)
	}

	r.commodities[name] = id
	return id, nil
}

// MarketID returns the id of the market in the given county. Markets are keyed
// by name and county, so two counties may each have a market of the same name.
func (r *ReferenceCache) MarketID(ctx context.Context, market, county string) (int64, error) {
	market, county = NormalizeName(market), NormalizeName(county)
	key := market + "|" + county
	if id, ok := r.markets[key]; ok {
		return id, nil
	}

	countyID, err := r.CountyID(ctx, county)
	if err != nil {
		return 0, err
	}

	id, found, err := r.store.FindMarket(ctx, market, countyID)
	if err != nil {
		return 0, fmt.Errorf("market %q: %w", market, err)
	}
	if !found {
		if id, err = r.store.CreateMarket(ctx, market, countyID); err != nil {
			return 0, fmt.Errorf("market %q: %w", market, err)
		}
		r.logger.Info("[references] Created market: %s (%s)", market, county)
	}

	r.markets[key] = id
	return id, nil
}

// Size reports how many ids are cached, by entity.
func (r *ReferenceCache) Size() map[string]int {
	return map[string]int{
		"counties":    len(r.counties),
		"commodities": len(r.commodities),
		"markets":     len(r.markets),
	}
}
