package services

import (
	"context"
	"strings"

	"kamis-scraper/config"
	"kamis-scraper/storage"
	"kamis-scraper/utils"
)

// Categorizer assigns commodities to categories by keyword and resolves the
// category rows they reference. Category ids are cached for the life of the
// Categorizer.
type Categorizer struct {
	rules  []config.CategoryRule
	names  []string
	store  storage.ReferenceStore
	logger *utils.Logger
	ids    map[string]int64
}

// NewCategorizer creates a Categorizer over the given rule table.
func NewCategorizer(rules *config.Rules, store storage.ReferenceStore, logger *utils.Logger) *Categorizer {
	return &Categorizer{
		rules:  rules.Categories,
		names:  rules.CategoryNames(),
		store:  store,
		logger: logger,
		ids:    make(map[string]int64),
	}
}

// Categorize returns the first category whose keyword occurs in the commodity
// name, compared case-insensitively, or config.FallbackCategory.
func (c *Categorizer) Categorize(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Name
			}
		}
	}
	return config.FallbackCategory
}

// Seed makes sure every category row exists before the first commodity needs one.
func (c *Categorizer) Seed(ctx context.Context) error {
	for _, name := range c.names {
		if _, err := c.resolve(ctx, name); err != nil {
			return err
		}
	}
	c.logger.Debug("[categorizer] %d categories ready", len(c.names))
	return nil
}

// CategoryID returns the id of the commodity's category. If that category
// cannot be resolved the fallback category is tried, and if that fails too the
// commodity gets no category.
func (c *Categorizer) CategoryID(ctx context.Context, commodity string) *int64 {
	category := c.Categorize(commodity)

	id, err := c.resolve(ctx, category)
	if err == nil {
		return &id
	}
	c.logger.Warn("[categorizer] Category %q unavailable for %s: %v", category, commodity, err)

	if category != config.FallbackCategory {
		if id, err := c.resolve(ctx, config.FallbackCategory); err == nil {
			return &id
		}
	}
	return nil
}

func (c *Categorizer) resolve(ctx context.Context, name string) (int64, error) {
	if id, ok := c.ids[name]; ok {
		return id, nil
	}

	id, found, err := c.store.FindCategory(ctx, name)
	if err != nil {
		return 0, err
	}
	if !found {
		if id, err = c.store.CreateCategory(ctx, name); err != nil {
			return 0, err
		}
		c.logger.Info("[categorizer] Created category: %s", name)
	}

	c.ids[name] = id
	return id, nil
}
