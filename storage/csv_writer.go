package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"kamis-scraper/models"
)

var rawHeader = []string{
	"product", "market", "county", "classification", "grade", "sex",
	"wholesale", "retail", "volume", "date", "scraped_at",
}

// CSVWriter appends raw table rows, exactly as scraped, to a CSV file so the
// source text behind every stored price can be audited across runs.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	rows   int
}

// NewCSVWriter opens the CSV file at path for appending, creating it and any
// missing directories. The header row is written only to an empty file.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat %q: %w", path, err)
	}

	c := &CSVWriter{file: f, writer: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := c.writer.Write(rawHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		c.writer.Flush()
	}
	return c, nil
}

// WriteRaw appends one CSV row per record and flushes.
func (c *CSVWriter) WriteRaw(records []*models.RawRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		if err := c.writer.Write(rawRow(r)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
		c.rows++
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Rows returns how many records this writer has appended.
func (c *CSVWriter) Rows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows
}

func rawRow(r *models.RawRecord) []string {
	return []string{
		r.ProductName,
		r.MarketText,
		r.County,
		r.Classification,
		r.Grade,
		r.Sex,
		r.Wholesale,
		r.Retail,
		r.Volume,
		r.Date,
		r.ScrapedAt.Format(time.RFC3339),
	}
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}
