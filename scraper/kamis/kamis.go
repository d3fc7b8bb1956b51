// Package kamis reads commodity price tables from the KAMIS market-information site.
package kamis

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"kamis-scraper/config"
	"kamis-scraper/models"
	"kamis-scraper/utils"
)

// ErrNoProductList is returned when the market page has no product dropdown.
var ErrNoProductList = errors.New("could not find product dropdown")

// Scraper discovers products and extracts their price tables.
type Scraper struct {
	baseURL  string
	perPage  int
	source   PageSource
	synonyms config.HeaderSynonyms
	logger   *utils.Logger
}

// New creates a Scraper reading pages from source.
func New(baseURL string, perPage int, source PageSource, synonyms config.HeaderSynonyms, logger *utils.Logger) *Scraper {
	return &Scraper{
		baseURL:  baseURL,
		perPage:  perPage,
		source:   source,
		synonyms: synonyms,
		logger:   logger,
	}
}

// Products fetches the product dropdown of the market page. Options whose value
// is not a plain number (placeholders such as "Select product") are skipped.
func (s *Scraper) Products(ctx context.Context) ([]models.Product, error) {
	s.logger.Info("[kamis] Fetching product list...")

	doc, err := s.source.Fetch(ctx, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("kamis: product list: %w", err)
	}

	products, err := ParseProducts(doc)
	if err != nil {
		return nil, fmt.Errorf("kamis: product list: %w", err)
	}

	s.logger.Info("[kamis] Found %d products", len(products))
	return products, nil
}

// ParseProducts reads the options of select[name=product].
func ParseProducts(doc *goquery.Document) ([]models.Product, error) {
	sel := doc.Find(`select[name="product"]`).First()
	if sel.Length() == 0 {
		return nil, ErrNoProductList
	}

	var products []models.Product
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		value, _ := opt.Attr("value")
		value = strings.TrimSpace(value)
		if !isDigits(value) {
			return
		}
		id, err := strconv.Atoi(value)
		if err != nil {
			return
		}
		products = append(products, models.Product{ID: id, Name: strings.TrimSpace(opt.Text())})
	})
	return products, nil
}

// ProductURL returns the page listing prices for one product.
func (s *Scraper) ProductURL(p models.Product) string {
	q := url.Values{}
	q.Set("product", strconv.Itoa(p.ID))
	q.Set("per_page", strconv.Itoa(s.perPage))

	sep := "?"
	if strings.Contains(s.baseURL, "?") {
		sep = "&"
	}
	return s.baseURL + sep + q.Encode()
}

// ScrapeProduct fetches a product page and returns its raw table rows.
// A page without a price table yields no rows and no error.
func (s *Scraper) ScrapeProduct(ctx context.Context, p models.Product) ([]*models.RawRecord, error) {
	s.logger.Info("[kamis] Scraping: %s (ID: %d)", p.Name, p.ID)

	doc, err := s.source.Fetch(ctx, s.ProductURL(p))
	if err != nil {
		return nil, err
	}

	records, found := ExtractTable(doc, p.Name, s.synonyms)
	if !found {
		s.logger.Warn("[kamis] No data table found for %s", p.Name)
		return nil, nil
	}

	s.logger.Info("[kamis] Scraped %d rows for %s", len(records), p.Name)
	return records, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
