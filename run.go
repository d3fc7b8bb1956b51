package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kamis-scraper/config"
	"kamis-scraper/models"
	"kamis-scraper/scraper/kamis"
	"kamis-scraper/services"
	"kamis-scraper/storage"
	"kamis-scraper/utils"
)

var runProducts []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape every product (or the ones named with --product) and store new prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, runProducts)
	},
}

func init() {
	runCmd.Flags().StringArrayVarP(&runProducts, "product", "p", nil,
		"only ingest this product (exact name as listed on the site); repeatable")
	rootCmd.AddCommand(runCmd)
}

func run(ctx context.Context, products []string) error {
	cfg := config.Load()
	logger := utils.NewLogger(cfg.LogLevel)

	logger.Info("=== KAMIS Ingestion starting ===")
	logger.Info("Config: store: %s | per page: %d | delay: %dms | batch: %d | render js: %v",
		cfg.StoreDriver, cfg.PerPage, cfg.RequestDelayMs, cfg.BatchSize, cfg.RenderJS)

	if err := cfg.Validate(); err != nil {
		logger.Error("%v", err)
		return err
	}

	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		logger.Error("Failed to load rules: %v", err)
		return err
	}

	if cfg.StoreDriver == config.DriverSQLite && cfg.SQLitePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
			logger.Error("Failed to create data dir: %v", err)
			return err
		}
	}

	store, err := storage.Open(ctx, cfg.StoreDriver, cfg.DSN())
	if err != nil {
		logger.Error("Failed to open %s store: %v", cfg.StoreDriver, err)
		return err
	}
	defer store.Close()

	opts := services.Options{
		BatchSize:      cfg.BatchSize,
		RequestDelayMs: cfg.RequestDelayMs,
		StrictDates:    cfg.StrictDates,
		Metrics:        services.NewMetrics(),
	}
	if cfg.RawCSVPath != "" {
		csvWriter, err := storage.NewCSVWriter(cfg.RawCSVPath)
		if err != nil {
			logger.Error("Failed to create CSV writer: %v", err)
			return err
		}
		defer csvWriter.Close()
		opts.RawWriter = csvWriter
	}

	source, closeSource := newPageSource(cfg, logger)
	defer closeSource()

	scraper := kamis.New(cfg.BaseURL, cfg.PerPage, source, rules.Headers, logger)
	coordinator := services.NewCoordinator(scraper, store, rules, opts, logger)

	var summary *models.RunSummary
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	if cfg.MetricsAddr != "" {
		serveMetrics(gctx, g, done, cfg.MetricsAddr, coordinator.Metrics(), logger)
	}

	g.Go(func() error {
		defer close(done)
		var err error
		summary, err = coordinator.Execute(gctx, products)
		return err
	})

	runErr := g.Wait()
	if summary != nil {
		counts, err := store.Counts(context.Background())
		if err != nil {
			logger.Warn("Could not read table counts: %v", err)
		}
		services.PrintSummary(os.Stdout, summary, counts)
	}
	if runErr != nil {
		logger.Error("Ingestion failed: %v", runErr)
		return runErr
	}

	logger.Info("=== KAMIS Ingestion finished: %d new records ===", summary.Inserted)
	return nil
}

// newPageSource returns the browser-backed source when JavaScript rendering is
// enabled, otherwise a plain HTTP source.
func newPageSource(cfg *config.Config, logger *utils.Logger) (kamis.PageSource, func()) {
	timeout := time.Duration(cfg.HTTPTimeoutSec) * time.Second
	retry := &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   4 * time.Second,
		MaxDelay:    10 * time.Second,
		Logger:      logger,
	}

	if cfg.RenderJS {
		b := kamis.NewBrowserSource(cfg.ChromeBin, cfg.UserAgent, timeout, retry, logger)
		return b, func() { _ = b.Close() }
	}
	client := &http.Client{Timeout: timeout}
	return kamis.NewHTTPSource(client, cfg.UserAgent, retry), func() {}
}

// serveMetrics exposes /metrics until the run finishes or the group is cancelled.
func serveMetrics(ctx context.Context, g *errgroup.Group, done <-chan struct{}, addr string, m *services.Metrics, logger *utils.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		logger.Info("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-done:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
