package kamis

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"kamis-scraper/utils"
)

// PageSource fetches and parses one page.
type PageSource interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// HTTPSource fetches pages over plain HTTP. Transport errors and non-2xx
// responses are retried with exponential back-off before being returned.
type HTTPSource struct {
	client    *http.Client
	userAgent string
	retry     *utils.RetryConfig
}

// NewHTTPSource creates an HTTPSource. retry may be nil for a single attempt.
func NewHTTPSource(client *http.Client, userAgent string, retry *utils.RetryConfig) *HTTPSource {
	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 1}
	}
	return &HTTPSource{client: client, userAgent: userAgent, retry: retry}
}

func (s *HTTPSource) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	var doc *goquery.Document

	err := s.retry.Do(ctx, "fetch "+url, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if s.userAgent != "" {
			req.Header.Set("User-Agent", s.userAgent)
		}

		res, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode < 200 || res.StatusCode > 299 {
			return fmt.Errorf("bad status: %s", res.Status)
		}

		d, err := goquery.NewDocumentFromReader(res.Body)
		if err != nil {
			return fmt.Errorf("parse html: %w", err)
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("kamis: %w", err)
	}
	return doc, nil
}
