package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"kamis-scraper/config"
	"kamis-scraper/models"
)

// Tables holds the logical table names, in dependency order.
var Tables = []string{"commodity_categories", "counties", "commodities", "markets", "price_records"}

const priceColumns = 9

// SQLStore persists reference entities and price records through database/sql.
// The same queries run on PostgreSQL (lib/pq or pgx) and SQLite; every table
// carries a unique constraint on its natural key and inserts ignore conflicts.
type SQLStore struct {
	db       *sql.DB
	numbered bool // $1-style placeholders
}

// Open connects to the store for the given driver, runs schema migrations,
// and returns a ready-to-use SQLStore.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var (
		driverName string
		schema     []string
		numbered   bool
		attempts   = 10
	)
	switch driver {
	case config.DriverPostgres:
		driverName, schema, numbered = "postgres", postgresSchema, true
	case config.DriverPgx:
		driverName, schema, numbered = "pgx", postgresSchema, true
	case config.DriverSQLite:
		driverName, schema, attempts = "sqlite", sqliteSchema, 1
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if driverName == "sqlite" {
		// One connection keeps :memory: databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}

	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				_ = db.Close()
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping failed after retries: %w", err)
	}

	s := &SQLStore{db: db, numbered: numbered}
	if err := s.migrate(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context, schema []string) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS commodity_categories (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT        NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS counties (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT        NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS commodities (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT        NOT NULL UNIQUE,
		category_id BIGINT      REFERENCES commodity_categories(id),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS markets (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT        NOT NULL,
		county_id  BIGINT      NOT NULL REFERENCES counties(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (name, county_id)
	)`,
	`CREATE TABLE IF NOT EXISTS price_records (
		id              BIGSERIAL PRIMARY KEY,
		commodity_id    BIGINT      NOT NULL REFERENCES commodities(id),
		market_id       BIGINT      NOT NULL REFERENCES markets(id),
		classification  TEXT,
		grade           TEXT,
		sex             TEXT,
		wholesale_price NUMERIC,
		retail_price    NUMERIC,
		supply_volume   NUMERIC,
		record_date     DATE        NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (commodity_id, market_id, record_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_records_date   ON price_records(record_date)`,
	`CREATE INDEX IF NOT EXISTS idx_price_records_market ON price_records(market_id)`,
}

var sqliteSchema = []string{
	`PRAGMA foreign_keys = ON`,
	`CREATE TABLE IF NOT EXISTS commodity_categories (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS counties (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS commodities (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL UNIQUE,
		category_id INTEGER REFERENCES commodity_categories(id),
		created_at  TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS markets (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT    NOT NULL,
		county_id  INTEGER NOT NULL REFERENCES counties(id),
		created_at TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (name, county_id)
	)`,
	`CREATE TABLE IF NOT EXISTS price_records (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		commodity_id    INTEGER NOT NULL REFERENCES commodities(id),
		market_id       INTEGER NOT NULL REFERENCES markets(id),
		classification  TEXT,
		grade           TEXT,
		sex             TEXT,
		wholesale_price NUMERIC,
		retail_price    NUMERIC,
		supply_volume   NUMERIC,
		record_date     TEXT    NOT NULL,
		created_at      TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (commodity_id, market_id, record_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_records_date   ON price_records(record_date)`,
	`CREATE INDEX IF NOT EXISTS idx_price_records_market ON price_records(market_id)`,
}

// rebind rewrites ? placeholders into $n for PostgreSQL drivers.
func (s *SQLStore) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) findID(ctx context.Context, query string, args ...any) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// insertID runs an INSERT ... ON CONFLICT DO NOTHING RETURNING id. When the row
// already existed nothing is returned and the id is read back with lookup.
func (s *SQLStore) insertID(ctx context.Context, insert, lookup string, insertArgs, lookupArgs []any) (int64, error) {
	id, ok, err := s.findID(ctx, insert, insertArgs...)
	if err != nil {
		return 0, err
	}
	if ok {
		return id, nil
	}
	id, ok, err = s.findID(ctx, lookup, lookupArgs...)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.New("row vanished after conflicting insert")
	}
	return id, nil
}

func (s *SQLStore) FindCategory(ctx context.Context, name string) (int64, bool, error) {
	id, ok, err := s.findID(ctx, `SELECT id FROM commodity_categories WHERE name = ?`, name)
	if err != nil {
		return 0, false, fmt.Errorf("store: find category %q: %w", name, err)
	}
	return id, ok, nil
}

func (s *SQLStore) CreateCategory(ctx context.Context, name string) (int64, error) {
	id, err := s.insertID(ctx,
		`INSERT INTO commodity_categories (name) VALUES (?) ON CONFLICT DO NOTHING RETURNING id`,
		`SELECT id FROM commodity_categories WHERE name = ?`,
		[]any{name}, []any{name})
	if err != nil {
		return 0, fmt.Errorf("store: create category %q: %w", name, err)
	}
	return id, nil
}

func (s *SQLStore) FindCounty(ctx context.Context, name string) (int64, bool, error) {
	id, ok, err := s.findID(ctx, `SELECT id FROM counties WHERE name = ?`, name)
	if err != nil {
		return 0, false, fmt.Errorf("store: find county %q: %w", name, err)
	}
	return id, ok, nil
}

func (s *SQLStore) CreateCounty(ctx context.Context, name string) (int64, error) {
	id, err := s.insertID(ctx,
		`INSERT INTO counties (name) VALUES (?) ON CONFLICT DO NOTHING RETURNING id`,
		`SELECT id FROM counties WHERE name = ?`,
		[]any{name}, []any{name})
	if err != nil {
		return 0, fmt.Errorf("store: create county %q: %w", name, err)
	}
	return id, nil
}

func (s *SQLStore) FindCommodity(ctx context.Context, name string) (int64, bool, error) {
	id, ok, err := s.findID(ctx, `SELECT id FROM commodities WHERE name = ?`, name)
	if err != nil {
		return 0, false, fmt.Errorf("store: find commodity %q: %w", name, err)
	}
	return id, ok, nil
}

func (s *SQLStore) CreateCommodity(ctx context.Context, name string, categoryID *int64) (int64, error) {
	var category any
	if categoryID != nil {
		category = *categoryID
	}
	id, err := s.insertID(ctx,
		`INSERT INTO commodities (name, category_id) VALUES (?, ?) ON CONFLICT DO NOTHING RETURNING id`,
		`SELECT id FROM commodities WHERE name = ?`,
		[]any{name, category}, []any{name})
	if err != nil {
		return 0, fmt.Errorf("store: create commodity %q: %w", name, err)
	}
	return id, nil
}

func (s *SQLStore) FindMarket(ctx context.Context, name string, countyID int64) (int64, bool, error) {
	id, ok, err := s.findID(ctx, `SELECT id FROM markets WHERE name = ? AND county_id = ?`, name, countyID)
	if err != nil {
		return 0, false, fmt.Errorf("store: find market %q: %w", name, err)
	}
	return id, ok, nil
}

func (s *SQLStore) CreateMarket(ctx context.Context, name string, countyID int64) (int64, error) {
	id, err := s.insertID(ctx,
		`INSERT INTO markets (name, county_id) VALUES (?, ?) ON CONFLICT DO NOTHING RETURNING id`,
		`SELECT id FROM markets WHERE name = ? AND county_id = ?`,
		[]any{name, countyID}, []any{name, countyID})
	if err != nil {
		return 0, fmt.Errorf("store: create market %q: %w", name, err)
	}
	return id, nil
}

// PriceRecordExists reports whether a row with the exact (commodity, market, date) key is stored.
func (s *SQLStore) PriceRecordExists(ctx context.Context, commodityID, marketID int64, recordDate string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT 1 FROM price_records WHERE commodity_id = ? AND market_id = ? AND record_date = ? LIMIT 1`),
		commodityID, marketID, recordDate).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: price record exists: %w", err)
	}
	return true, nil
}

// InsertPriceRecords writes the whole batch with one multi-row INSERT.
func (s *SQLStore) InsertPriceRecords(ctx context.Context, rows []*models.PriceRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", priceColumns), ",") + ")"
	valueStrings := make([]string, 0, len(rows))
	valueArgs := make([]any, 0, len(rows)*priceColumns)
	for _, r := range rows {
		valueStrings = append(valueStrings, placeholder)
		valueArgs = append(valueArgs, priceArgs(r)...)
	}

	query := fmt.Sprintf(`
		INSERT INTO price_records (commodity_id, market_id, classification, grade, sex,
			wholesale_price, retail_price, supply_volume, record_date)
		VALUES %s
		ON CONFLICT (commodity_id, market_id, record_date) DO NOTHING
	`, strings.Join(valueStrings, ","))

	res, err := s.db.ExecContext(ctx, s.rebind(query), valueArgs...)
	if err != nil {
		return 0, fmt.Errorf("store: insert price batch of %d: %w", len(rows), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: insert price batch rows affected: %w", err)
	}
	return int(n), nil
}

// InsertPriceRecord inserts one row and reports whether it was stored.
func (s *SQLStore) InsertPriceRecord(ctx context.Context, row *models.PriceRow) (bool, error) {
	n, err := s.InsertPriceRecords(ctx, []*models.PriceRow{row})
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func priceArgs(r *models.PriceRow) []any {
	return []any{
		r.CommodityID,
		r.MarketID,
		nullString(r.Classification),
		nullString(r.Grade),
		nullString(r.Sex),
		nullDecimal(r.WholesalePrice),
		nullDecimal(r.RetailPrice),
		nullDecimal(r.SupplyVolume),
		r.RecordDate,
	}
}

// Arguments are passed as plain driver values (nil, string, int64) so every
// driver binds them the same way.
func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullDecimal(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

// Counts returns the number of rows in every table, for the end-of-run report.
func (s *SQLStore) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(Tables))
	for _, table := range Tables {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("store: count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
