package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kamis-scraper/config"
	"kamis-scraper/models"
	"kamis-scraper/storage"
	"kamis-scraper/utils"
)

// ProductScraper lists products and returns the raw table rows of each.
type ProductScraper interface {
	Products(ctx context.Context) ([]models.Product, error)
	ScrapeProduct(ctx context.Context, p models.Product) ([]*models.RawRecord, error)
}

// IngestStore is the persistence an ingestion run needs.
type IngestStore interface {
	storage.ReferenceStore
	storage.PriceStore
}

// Options tune a Coordinator. Zero values fall back to sensible defaults.
type Options struct {
	BatchSize      int
	RequestDelayMs int
	StrictDates    bool
	// RawWriter, when set, receives every scraped row before cleaning.
	RawWriter storage.RawRecordWriter
	Metrics   *Metrics
}

// Coordinator drives one product at a time through scrape, clean and store.
type Coordinator struct {
	scraper ProductScraper
	store   IngestStore
	rules   *config.Rules
	opts    Options
	metrics *Metrics
	logger  *utils.Logger
}

// NewCoordinator wires a Coordinator.
func NewCoordinator(scraper ProductScraper, store IngestStore, rules *config.Rules, opts Options, logger *utils.Logger) *Coordinator {
	if rules == nil {
		rules = config.DefaultRules()
	}
	m := opts.Metrics
	if m == nil {
		m = NewMetrics()
	}
	return &Coordinator{
		scraper: scraper,
		store:   store,
		rules:   rules,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

// Metrics returns the counters this Coordinator updates.
func (c *Coordinator) Metrics() *Metrics { return c.metrics }

// Run ingests every product, or only those named in productFilter, and returns
// the number of price records inserted.
func (c *Coordinator) Run(ctx context.Context, productFilter []string) (int, error) {
	summary, err := c.Execute(ctx, productFilter)
	return summary.Inserted, err
}

// Execute is Run with the full per-run report. The summary is never nil, even
// when an error is returned, and reflects the work done before the error.
func (c *Coordinator) Execute(ctx context.Context, productFilter []string) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		RunID:             uuid.NewString(),
		StartedAt:         time.Now(),
		InsertedByProduct: make(map[string]int),
	}
	defer func() { summary.FinishedAt = time.Now() }()

	c.logger.Info("[coordinator] Run %s starting", summary.RunID)

	products, err := c.scraper.Products(ctx)
	if err != nil {
		c.logger.Error("[coordinator] Scraper failed: %v", err)
		return summary, fmt.Errorf("coordinator: %w", err)
	}
	products = filterProducts(products, productFilter)
	if len(productFilter) > 0 && len(products) == 0 {
		c.logger.Warn("[coordinator] No products match filter %v", productFilter)
	}
	summary.ProductsTotal = len(products)

	// Reference ids are cached for this run only.
	categorizer := NewCategorizer(c.rules, c.store, c.logger)
	if err := categorizer.Seed(ctx); err != nil {
		c.logger.Warn("[coordinator] Could not seed categories: %v", err)
	}
	refs := NewReferenceCache(c.store, categorizer, c.logger)
	writer := NewPriceWriter(c.store, refs, c.opts.BatchSize, c.metrics, c.logger)
	cleaner := NewCleaner(c.logger, c.opts.StrictDates)
	throttle := utils.NewThrottle(c.opts.RequestDelayMs)

	for i, p := range products {
		if err := throttle.Wait(ctx); err != nil {
			return c.finish(summary, writer), err
		}
		c.logger.Info("[coordinator] Processing %d/%d: %s", i+1, len(products), p.Name)

		before := writer.Stats()
		err := c.processProduct(ctx, p, cleaner, writer, summary)
		throttle.Done()

		// Counted from the writer, so rows flushed before a failure are kept.
		after := writer.Stats()
		inserted := after.Inserted - before.Inserted
		summary.Inserted += inserted
		if inserted > 0 {
			summary.InsertedByProduct[p.Name] += inserted
			c.metrics.inserted.WithLabelValues(p.Name).Add(float64(inserted))
		}
		c.metrics.duplicates.Add(float64(after.Duplicates - before.Duplicates))
		c.metrics.recordsFailed.Add(float64(after.Failed - before.Failed))

		if ctxErr := ctx.Err(); ctxErr != nil {
			return c.finish(summary, writer), ctxErr
		}
		if err != nil {
			c.logger.Error("[coordinator] Error scraping %s: %v", p.Name, err)
			summary.ProductsFailed++
			summary.FailedProducts = append(summary.FailedProducts, p.Name)
			c.metrics.products.WithLabelValues("failed").Inc()
			continue
		}

		c.logger.Info("[coordinator] Inserted %d new records for %s", inserted, p.Name)
	}

	c.finish(summary, writer)
	c.metrics.runDuration.Observe(time.Since(summary.StartedAt).Seconds())
	c.metrics.lastSuccess.SetToCurrentTime()
	c.logger.Info("[coordinator] Scraping complete. Total new records inserted: %d", summary.Inserted)
	return summary, nil
}

// processProduct scrapes, cleans and stores one product. Errors and panics are
// returned so that one bad product never stops the run.
func (c *Coordinator) processProduct(ctx context.Context, p models.Product, cleaner *Cleaner, writer *PriceWriter, summary *models.RunSummary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	raw, err := c.scraper.ScrapeProduct(ctx, p)
	if err != nil {
		return err
	}
	summary.RowsScraped += len(raw)
	c.metrics.rowsScraped.Add(float64(len(raw)))

	if c.opts.RawWriter != nil && len(raw) > 0 {
		if err := c.opts.RawWriter.WriteRaw(raw); err != nil {
			c.logger.Warn("[coordinator] Could not write raw rows for %s: %v", p.Name, err)
		}
	}

	records := cleaner.Clean(raw)
	dropped := len(raw) - len(records)
	summary.RowsDropped += dropped
	c.metrics.rowsDropped.Add(float64(dropped))

	for _, r := range records {
		if r.DateEstimated {
			summary.EstimatedDates++
			c.metrics.estimatedDates.Inc()
		}
	}

	if len(records) == 0 {
		summary.ProductsEmpty++
		c.metrics.products.WithLabelValues("empty").Inc()
		return nil
	}

	if _, err := writer.Write(ctx, records); err != nil {
		return err
	}
	c.metrics.products.WithLabelValues("ok").Inc()
	return nil
}

func (c *Coordinator) finish(summary *models.RunSummary, writer *PriceWriter) *models.RunSummary {
	stats := writer.Stats()
	summary.Duplicates = stats.Duplicates
	summary.RecordsFailed = stats.Failed
	return summary
}

// filterProducts keeps the products whose name is in names. An empty filter keeps all.
func filterProducts(products []models.Product, names []string) []models.Product {
	if len(names) == 0 {
		return products
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}

	var out []models.Product
	for _, p := range products {
		if _, ok := want[p.Name]; ok {
			out = append(out, p)
		}
	}
	return out
}
