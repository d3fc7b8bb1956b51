package kamis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"kamis-scraper/config"
	"kamis-scraper/models"
	"kamis-scraper/utils"
)

func testLogger() *utils.Logger { return utils.NewLoggerTo(io.Discard, "") }

type stubSource struct {
	pages map[string]string
	err   error
	urls  []string
}

func (s *stubSource) Fetch(_ context.Context, url string) (*goquery.Document, error) {
	s.urls = append(s.urls, url)
	if s.err != nil {
		return nil, s.err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(s.pages[url]))
}

func readFixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestParseProducts(t *testing.T) {
	products, err := ParseProducts(loadDoc(t, "market.html"))
	if err != nil {
		t.Fatalf("ParseProducts: %v", err)
	}

	want := []models.Product{{ID: 1, Name: "Dry Maize"}, {ID: 2, Name: "Beans Rosecoco"}, {ID: 17, Name: "Tilapia"}}
	if len(products) != len(want) {
		t.Fatalf("products: got %+v, want %+v", products, want)
	}
	for i := range want {
		if products[i] != want[i] {
			t.Errorf("product %d = %+v; want %+v", i, products[i], want[i])
		}
	}
}

func TestParseProductsMissingDropdown(t *testing.T) {
	_, err := ParseProducts(docFromString(t, "<html><body></body></html>"))
	if !errors.Is(err, ErrNoProductList) {
		t.Errorf("err = %v; want ErrNoProductList", err)
	}
}

func TestProductURL(t *testing.T) {
	s := New("https://kamis.kilimo.go.ke/site/market", 100, nil, nil, testLogger())
	got := s.ProductURL(models.Product{ID: 7, Name: "Kale"})
	want := "https://kamis.kilimo.go.ke/site/market?per_page=100&product=7"
	if got != want {
		t.Errorf("ProductURL = %q; want %q", got, want)
	}
}

func TestScrapeProduct(t *testing.T) {
	base := "http://kamis.test/site/market"
	s := New(base, 100, nil, config.DefaultRules().Headers, testLogger())
	p := models.Product{ID: 1, Name: "Dry Maize"}
	src := &stubSource{pages: map[string]string{s.ProductURL(p): readFixture(t, "dry_maize.html")}}
	s.source = src

	records, err := s.ScrapeProduct(context.Background(), p)
	if err != nil {
		t.Fatalf("ScrapeProduct: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("records: got %d, want 3", len(records))
	}
}

func TestScrapeProductNoTable(t *testing.T) {
	s := New("http://kamis.test", 100, &stubSource{pages: map[string]string{}}, config.DefaultRules().Headers, testLogger())
	records, err := s.ScrapeProduct(context.Background(), models.Product{ID: 3, Name: "Kale"})
	if err != nil || len(records) != 0 {
		t.Errorf("ScrapeProduct = %d records, %v; want 0, nil", len(records), err)
	}
}

func TestProductsFetchError(t *testing.T) {
	s := New("http://kamis.test", 100, &stubSource{err: errors.New("connection refused")}, nil, testLogger())
	if _, err := s.Products(context.Background()); err == nil {
		t.Error("expected product list error")
	}
}

func TestHTTPSourceRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("User-Agent") != "kamis-test" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		if calls == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `<html><body><select name="product"><option value="4">Kale</option></select></body></html>`)
	}))
	defer srv.Close()

	retry := &utils.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: testLogger()}
	src := NewHTTPSource(srv.Client(), "kamis-test", retry)

	doc, err := src.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
	products, _ := ParseProducts(doc)
	if len(products) != 1 || products[0].Name != "Kale" {
		t.Errorf("products = %+v", products)
	}
}

func TestHTTPSourceGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.Client(), "", &utils.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond})
	if _, err := src.Fetch(context.Background(), srv.URL); err == nil {
		t.Error("expected error for 404")
	}
}
