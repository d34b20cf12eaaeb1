// Package usecase orchestrates the pipeline: assembling feature rows for one
// contract and driving the full ingestion plan.
package usecase

import (
	"context"
	"fmt"
	"time"

	"OptForge/internal/domain/models"
	errs "OptForge/internal/errors"
	applogger "OptForge/pkg/logger"
	"OptForge/pkg/util"
)

// Output modes. Training performs full enrichment; backup only merges the
// underlying prices onto the grid.
const (
	ModeTraining = "training"
	ModeBackup   = "backup"
)

// RateProvider answers interpolated risk-free rate queries.
type RateProvider interface {
	GetRate(ctx context.Context, asOf, expiry time.Time) (float64, error)
}

// DividendProvider answers per-day dividend lookups for one symbol.
type DividendProvider interface {
	AmountOn(ctx context.Context, symbol string, day time.Time) (float64, error)
}

// Assembler enriches a dense grid into the final feature row set for one
// contract. Rate and dividend lookups run once per distinct calendar date
// and broadcast to every row sharing it.
type Assembler struct {
	rates     RateProvider
	dividends DividendProvider
	mode      string
	l         *applogger.Logger
}

// AssemblerOption configures the assembler.
type AssemblerOption func(*Assembler)

// WithAssemblerLogger injects a structured logger.
func WithAssemblerLogger(l *applogger.Logger) AssemblerOption {
	return func(a *Assembler) { a.l = l }
}

// NewAssembler creates an assembler for the given output mode.
func NewAssembler(rates RateProvider, dividends DividendProvider, mode string, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		rates:     rates,
		dividends: dividends,
		mode:      mode,
		l:         applogger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble turns the contract's dense grid into feature rows. Output row
// count always equals the grid's row count. An unavailable curve or dividend
// source degrades the affected fields (nil rate, 0 dividend) instead of
// failing the contract; invalid date arguments fail it.
func (a *Assembler) Assemble(ctx context.Context, grid []models.GridRow, symbol string, expiry time.Time, underlying []models.UnderlyingPriceRow) ([]models.FeatureRow, error) {
	ulByTS := make(map[int64]models.UnderlyingPriceRow, len(underlying))
	for _, u := range underlying {
		ulByTS[u.Date.UTC().UnixNano()] = u
	}

	var (
		rateByDay     map[int64]*float64
		dividendByDay map[int64]float64
	)
	if a.mode == ModeTraining {
		var err error
		rateByDay, dividendByDay, err = a.dailyContext(ctx, grid, symbol, expiry)
		if err != nil {
			return nil, err
		}
	}

	rows := make([]models.FeatureRow, 0, len(grid))
	for _, cell := range grid {
		row := models.FeatureRow{GridRow: cell}

		if u, ok := ulByTS[cell.Date.UTC().UnixNano()]; ok {
			row.ULOpen = ptr(u.Open)
			row.ULHigh = ptr(u.High)
			row.ULLow = ptr(u.Low)
			row.ULClose = ptr(u.Close)
		}

		if a.mode == ModeTraining {
			day := util.DayKey(cell.Date).Unix()
			row.RiskFreeRate = rateByDay[day]
			row.TimeToExpiryDays = ptr(expiry.Sub(cell.Date).Hours() / 24)
			row.Dividend = ptr(dividendByDay[day])
		}

		rows = append(rows, row)
	}
	return rows, nil
}

// dailyContext resolves the per-calendar-date rate and dividend values shared
// by every row of that date.
func (a *Assembler) dailyContext(ctx context.Context, grid []models.GridRow, symbol string, expiry time.Time) (map[int64]*float64, map[int64]float64, error) {
	days := make(map[int64]time.Time)
	for _, cell := range grid {
		day := util.DayKey(cell.Date)
		if _, ok := days[day.Unix()]; !ok {
			days[day.Unix()] = day
		}
	}

	rates := make(map[int64]*float64, len(days))
	dividends := make(map[int64]float64, len(days))
	for key, day := range days {
		rate, err := a.rates.GetRate(ctx, day, expiry)
		switch {
		case err == nil:
			rates[key] = ptr(rate)
		case errs.Is(err, errs.ErrCurveUnavailable):
			a.l.Warn("rate curve unavailable, leaving rate null",
				applogger.Time("as_of", day), applogger.Error(err))
		default:
			return nil, nil, fmt.Errorf("rate for %s: %w", day.Format("2006-01-02"), err)
		}

		amount, err := a.dividends.AmountOn(ctx, symbol, day)
		if err != nil {
			if !errs.Is(err, errs.ErrDividendSource) {
				return nil, nil, fmt.Errorf("dividend for %s on %s: %w",
					symbol, day.Format("2006-01-02"), err)
			}
			a.l.Warn("dividend source unavailable, defaulting to 0",
				applogger.String("symbol", symbol), applogger.Error(err))
			amount = 0
		}
		dividends[key] = amount
	}
	return rates, dividends, nil
}

func ptr(v float64) *float64 { return &v }
