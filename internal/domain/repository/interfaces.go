package repository

import (
	"context"

	"OptForge/internal/domain/models"
)

// SourceDatabase exposes the upstream market-data store. Table and database
// names follow the SYMBOL_OPT_DDMMMYY[_n] / SYMBOL_STK conventions honored by
// the catalog parser.
type SourceDatabase interface {
	ListDatabases(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, database string) ([]string, error)
	FetchOptionQuotes(ctx context.Context, database, table string) ([]models.OptionQuoteRow, error)
	FetchStockQuotes(ctx context.Context, database, table string) ([]models.UnderlyingPriceRow, error)
}

// RateSource fetches the raw risk-free curve for a whole year, already mapped
// from named tenor buckets to tenor days.
type RateSource interface {
	FetchYearCurve(ctx context.Context, year int) (map[int]float64, error)
}

// DividendSource fetches the full dividend history for one symbol.
type DividendSource interface {
	FetchDividendHistory(ctx context.Context, symbol string) ([]models.DividendEvent, error)
}

// Sink persists one named table's feature rows. Writes are keyed by
// (group, table) and must be atomic per table: a partially written table must
// never be visible to the artifact index.
type Sink interface {
	WriteTable(ctx context.Context, group, table string, rows []models.FeatureRow) error
	Close() error
}

// ArtifactIndex lists previously materialized output tables, mapping table
// name to the group it was written under.
type ArtifactIndex interface {
	Existing(ctx context.Context) (map[string]string, error)
}

// Metrics records pipeline observability signals.
type Metrics interface {
	RecordItemProcessed(kind string)
	RecordItemSkipped(reason string)
	RecordError(kind string)
	RecordRowsWritten(backend, table string, n int)
	RecordCache(service string, hit bool)
	RecordLatency(op string, seconds float64)
}
