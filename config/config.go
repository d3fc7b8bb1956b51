package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers understood by storage.Open.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	BaseURL        string
	PerPage        int
	RequestDelayMs int
	MaxRetries     int
	HTTPTimeoutSec int
	UserAgent      string
	RenderJS       bool
	ChromeBin      string

	BatchSize   int
	StrictDates bool

	StoreDriver      string
	DatabaseURL      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLitePath       string

	RawCSVPath  string
	RulesFile   string
	MetricsAddr string
	LogLevel    string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		BaseURL:        getEnv("KAMIS_BASE_URL", "https://kamis.kilimo.go.ke/site/market"),
		PerPage:        getEnvInt("PER_PAGE", 100),
		RequestDelayMs: getEnvInt("REQUEST_DELAY_MS", 1500),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		HTTPTimeoutSec: getEnvInt("HTTP_TIMEOUT_SEC", 30),
		UserAgent: getEnv("USER_AGENT",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
		RenderJS:  getEnvBool("RENDER_JS", false),
		ChromeBin: getEnv("CHROME_BIN", ""),

		BatchSize:   getEnvInt("BATCH_SIZE", 100),
		StrictDates: getEnvBool("STRICT_DATES", false),

		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", ""),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "kamis"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "./data/kamis.sqlite"),

		RawCSVPath:  getEnv("RAW_CSV_PATH", ""),
		RulesFile:   getEnv("RULES_FILE", ""),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports configuration that makes a run impossible, such as missing
// store credentials. Any error here is fatal for the run.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case DriverPostgres, DriverPgx:
		if c.DatabaseURL == "" && (c.PostgresUser == "" || c.PostgresPassword == "") {
			errs = append(errs, errors.New("missing store credentials: set DATABASE_URL or POSTGRES_USER and POSTGRES_PASSWORD"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q (want postgres, pgx or sqlite)", c.StoreDriver))
	}

	if c.BaseURL == "" {
		errs = append(errs, errors.New("KAMIS_BASE_URL is empty"))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize))
	}
	if c.PerPage < 1 {
		errs = append(errs, fmt.Errorf("PER_PAGE must be positive, got %d", c.PerPage))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// DSN returns the connection string for the configured store driver.
func (c *Config) DSN() string {
	switch c.StoreDriver {
	case DriverSQLite:
		return c.SQLitePath
	}
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
