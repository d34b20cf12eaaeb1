// Package repository contains the ClickHouse and Kafka adapters behind the
// domain interfaces.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"OptForge/internal/domain/models"
	errs "OptForge/internal/errors"
	pkgch "OptForge/pkg/clickhouse"
	applogger "OptForge/pkg/logger"
)

// systemDatabases never carry market data and are excluded from discovery.
var systemDatabases = []string{"system", "default", "information_schema", "INFORMATION_SCHEMA"}

// CHSource implements SourceDatabase backed by ClickHouse.
type CHSource struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHSource(ch *pkgch.Client) *CHSource {
	return &CHSource{db: ch.DB(), l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSource) ListDatabases(ctx context.Context) ([]string, error) {
	const q = `SELECT name FROM system.databases WHERE name NOT IN (?, ?, ?, ?) ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q,
		systemDatabases[0], systemDatabases[1], systemDatabases[2], systemDatabases[3])
	if err != nil {
		return nil, fmt.Errorf("list databases: %w: %v", errs.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan database name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list databases rows: %w", err)
	}
	return names, nil
}

func (s *CHSource) ListTables(ctx context.Context, database string) ([]string, error) {
	const q = `SELECT name FROM system.tables WHERE database = ? ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q, database)
	if err != nil {
		return nil, fmt.Errorf("list tables of %s: %w: %v", database, errs.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables rows: %w", err)
	}
	return names, nil
}

func (s *CHSource) FetchOptionQuotes(ctx context.Context, database, table string) ([]models.OptionQuoteRow, error) {
	start := time.Now()
	q := fmt.Sprintf("SELECT date, identifier, callput, strike, o, h, l, c FROM `%s`.`%s`", database, table)

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.l.Error("clickhouse option quote query error",
			applogger.String("database", database),
			applogger.String("table", table),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("fetch option quotes %s.%s: %w: %v",
			database, table, errs.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	out := make([]models.OptionQuoteRow, 0, 1024)
	for rows.Next() {
		var (
			r       models.OptionQuoteRow
			callput sql.NullString
			strike  sql.NullFloat64
		)
		if err := rows.Scan(&r.Date, &r.Identifier, &callput, &strike, &r.Open, &r.High, &r.Low, &r.Close); err != nil {
			return nil, fmt.Errorf("scan option quote: %w", err)
		}
		if callput.Valid {
			r.CallPut = callput.String
		}
		if strike.Valid {
			v := strike.Float64
			r.Strike = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("option quote rows: %w", err)
	}

	s.l.Debug("clickhouse option quotes fetched",
		applogger.String("table", table),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHSource) FetchStockQuotes(ctx context.Context, database, table string) ([]models.UnderlyingPriceRow, error) {
	start := time.Now()
	q := fmt.Sprintf("SELECT date, o, h, l, c FROM `%s`.`%s`", database, table)

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		s.l.Error("clickhouse stock quote query error",
			applogger.String("database", database),
			applogger.String("table", table),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("fetch stock quotes %s.%s: %w: %v",
			database, table, errs.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	out := make([]models.UnderlyingPriceRow, 0, 1024)
	for rows.Next() {
		var r models.UnderlyingPriceRow
		if err := rows.Scan(&r.Date, &r.Open, &r.High, &r.Low, &r.Close); err != nil {
			return nil, fmt.Errorf("scan stock quote: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stock quote rows: %w", err)
	}

	s.l.Debug("clickhouse stock quotes fetched",
		applogger.String("table", table),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}
