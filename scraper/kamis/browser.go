package kamis

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"kamis-scraper/utils"
)

// BrowserSource renders pages in headless Chrome before parsing them. It is
// used when the market pages need JavaScript to fill the price table.
type BrowserSource struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	retry       *utils.RetryConfig
	logger      *utils.Logger
	timeout     time.Duration
}

// NewBrowserSource starts a browser allocator. Close releases it.
func NewBrowserSource(chromeBin, userAgent string, timeout time.Duration, retry *utils.RetryConfig, logger *utils.Logger) *BrowserSource {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[kamis] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 1}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserSource{
		allocCtx:    allocCtx,
		cancelAlloc: cancel,
		retry:       retry,
		logger:      logger,
		timeout:     timeout,
	}
}

func (b *BrowserSource) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	var html string

	err := b.retry.Do(ctx, "render "+url, func() error {
		tabCtx, cancel := chromedp.NewContext(b.allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
		defer cancel()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
		defer cancelTimeout()

		// Stop rendering when the caller gives up.
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		if err := chromedp.Run(tabCtx,
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		); err != nil {
			return fmt.Errorf("chromedp render: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("kamis: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("kamis: parse rendered html: %w", err)
	}
	return doc, nil
}

// Close shuts the browser down.
func (b *BrowserSource) Close() error {
	b.cancelAlloc()
	return nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
