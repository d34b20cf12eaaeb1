package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"OptForge/internal/domain/models"
	drepo "OptForge/internal/domain/repository"
	pkgch "OptForge/pkg/clickhouse"
	applogger "OptForge/pkg/logger"
)

// manifestTable records every materialized output table and the group it was
// written under. The artifact index reads it back for the incremental skip
// check.
const manifestTable = "_manifest"

// CHSink implements Sink backed by ClickHouse. Each logical table is written
// to a staging table first and swapped in with RENAME, so a crashed write
// never leaves a partial table visible to the manifest.
type CHSink struct {
	ch       *pkgch.Client
	db       *sql.DB
	database string
	metrics  drepo.Metrics // optional
	l        *applogger.Logger
}

// NewCHSink creates a sink writing into the given output database. mode
// suffixes the database so training and backup runs never collide.
func NewCHSink(ch *pkgch.Client, database, mode string) *CHSink {
	return &CHSink{
		ch:       ch,
		db:       ch.DB(),
		database: database + "_" + mode,
		l:        applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (s *CHSink) SetLogger(l *applogger.Logger) { s.l = l }

// SetMetrics injects a metrics recorder.
func (s *CHSink) SetMetrics(m drepo.Metrics) { s.metrics = m }

// Database returns the effective output database name.
func (s *CHSink) Database() string { return s.database }

func (s *CHSink) WriteTable(ctx context.Context, group, table string, rows []models.FeatureRow) error {
	start := time.Now()
	staging := table + "__staging"

	if err := s.ensureDatabase(ctx); err != nil {
		return err
	}
	if err := s.createStaging(ctx, staging); err != nil {
		return err
	}
	if err := s.insertRows(ctx, staging, rows); err != nil {
		s.dropTable(ctx, staging)
		return err
	}
	if err := s.swapIn(ctx, staging, table); err != nil {
		s.dropTable(ctx, staging)
		return err
	}
	if err := s.recordManifest(ctx, group, table); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordRowsWritten("clickhouse", table, len(rows))
	}
	s.l.Debug("clickhouse table written",
		applogger.String("table", table),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHSink) Close() error { return nil }

func (s *CHSink) ensureDatabase(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", s.database),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS `+"`%s`.`%s`"+` (
            table_name String,
            group_name String,
            written_at DateTime
        ) ENGINE = ReplacingMergeTree(written_at)
        ORDER BY table_name
    `, s.database, manifestTable),
	}
	if err := s.ch.InitSchema(ctx, stmts); err != nil {
		return fmt.Errorf("bootstrap output database: %w", err)
	}
	return nil
}

func (s *CHSink) createStaging(ctx context.Context, staging string) error {
	s.dropTable(ctx, staging)
	q := fmt.Sprintf(`
        CREATE TABLE `+"`%s`.`%s`"+` (
            date DateTime,
            identifier String,
            callput Nullable(String),
            strike Nullable(Float64),
            o Nullable(Float64),
            h Nullable(Float64),
            l Nullable(Float64),
            c Nullable(Float64),
            risk_free_rate Nullable(Float64),
            time_to_expiry_days Nullable(Float64),
            dividend Nullable(Float64),
            ul_o Nullable(Float64),
            ul_h Nullable(Float64),
            ul_l Nullable(Float64),
            ul_c Nullable(Float64)
        ) ENGINE = MergeTree
        ORDER BY (date, identifier)
    `, s.database, staging)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create staging table %s: %w", staging, err)
	}
	return nil
}

func (s *CHSink) insertRows(ctx context.Context, staging string, rows []models.FeatureRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert batch: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO `%s`.`%s` (date, identifier, callput, strike, o, h, l, c, risk_free_rate, time_to_expiry_days, dividend, ul_o, ul_h, ul_l, ul_c)",
		s.database, staging)
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert batch: %w", err)
	}

	for _, r := range rows {
		var callput *string
		if r.CallPut != "" {
			callput = &r.CallPut
		}
		if _, err := stmt.ExecContext(ctx,
			r.Date, r.Identifier, callput, r.Strike,
			r.Open, r.High, r.Low, r.Close,
			r.RiskFreeRate, r.TimeToExpiryDays, r.Dividend,
			r.ULOpen, r.ULHigh, r.ULLow, r.ULClose,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert batch: %w", err)
	}
	return nil
}

func (s *CHSink) swapIn(ctx context.Context, staging, table string) error {
	s.dropTable(ctx, table)
	q := fmt.Sprintf("RENAME TABLE `%s`.`%s` TO `%s`.`%s`", s.database, staging, s.database, table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("swap in %s: %w", table, err)
	}
	return nil
}

func (s *CHSink) recordManifest(ctx context.Context, group, table string) error {
	q := fmt.Sprintf("INSERT INTO `%s`.`%s` (table_name, group_name, written_at) VALUES (?, ?, ?)",
		s.database, manifestTable)
	if _, err := s.db.ExecContext(ctx, q, table, group, time.Now().UTC()); err != nil {
		return fmt.Errorf("record manifest for %s: %w", table, err)
	}
	return nil
}

func (s *CHSink) dropTable(ctx context.Context, table string) {
	q := fmt.Sprintf("DROP TABLE IF EXISTS `%s`.`%s`", s.database, table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		s.l.Warn("drop table failed", applogger.String("table", table), applogger.Error(err))
	}
}
