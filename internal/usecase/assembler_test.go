package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"OptForge/internal/domain/models"
	errs "OptForge/internal/errors"
)

type fakeRates struct {
	mu    sync.Mutex
	calls int
	rate  float64
	err   error
}

func (f *fakeRates) GetRate(_ context.Context, asOf, expiry time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.rate, nil
}

type fakeDividends struct {
	amounts map[string]float64 // key: 2006-01-02
	err     error
}

func (f *fakeDividends) AmountOn(_ context.Context, _ string, day time.Time) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.amounts[day.Format("2006-01-02")], nil
}

func gridCell(ts time.Time, id string) models.GridRow {
	strike := 250.0
	return models.GridRow{Date: ts, Identifier: id, CallPut: "C", Strike: &strike}
}

func TestAssembleBroadcastsRatePerDate(t *testing.T) {
	rates := &fakeRates{rate: 4.27}
	divs := &fakeDividends{}
	a := NewAssembler(rates, divs, ModeTraining)

	d1 := time.Date(2025, 1, 2, 15, 30, 0, 0, time.UTC)
	d2 := time.Date(2025, 1, 3, 15, 30, 0, 0, time.UTC)
	grid := []models.GridRow{
		gridCell(d1, "A"), gridCell(d1, "B"), gridCell(d1, "C"),
		gridCell(d2, "A"), gridCell(d2, "B"), gridCell(d2, "C"),
	}
	expiry := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	rows, err := a.Assemble(context.Background(), grid, "SYM", expiry, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(rows) != len(grid) {
		t.Fatalf("row count = %d, want %d", len(rows), len(grid))
	}
	// one curve query per distinct calendar date, not per row
	if rates.calls != 2 {
		t.Fatalf("rate lookups = %d, want 2", rates.calls)
	}
	for _, row := range rows {
		if row.RiskFreeRate == nil || *row.RiskFreeRate != 4.27 {
			t.Fatalf("row (%v,%s): rate = %v", row.Date, row.Identifier, row.RiskFreeRate)
		}
	}
}

func TestAssembleTimeToExpiryIsFractional(t *testing.T) {
	a := NewAssembler(&fakeRates{rate: 4.0}, &fakeDividends{}, ModeTraining)

	ts := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	expiry := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	rows, err := a.Assemble(context.Background(), []models.GridRow{gridCell(ts, "A")}, "SYM", expiry, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if rows[0].TimeToExpiryDays == nil {
		t.Fatal("expected time to expiry")
	}
	if got := *rows[0].TimeToExpiryDays; math.Abs(got-12.5) > 1e-9 {
		t.Fatalf("time to expiry = %v, want 12.5", got)
	}
}

func TestAssembleDividendDefaultsToZero(t *testing.T) {
	divs := &fakeDividends{amounts: map[string]float64{"2025-01-02": 0.24}}
	a := NewAssembler(&fakeRates{rate: 4.0}, divs, ModeTraining)

	d1 := time.Date(2025, 1, 2, 15, 30, 0, 0, time.UTC)
	d2 := time.Date(2025, 1, 3, 15, 30, 0, 0, time.UTC)
	expiry := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	rows, err := a.Assemble(context.Background(),
		[]models.GridRow{gridCell(d1, "A"), gridCell(d2, "A")}, "SYM", expiry, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if got := *rows[0].Dividend; got != 0.24 {
		t.Fatalf("dividend on event date = %v, want 0.24", got)
	}
	if got := *rows[1].Dividend; got != 0 {
		t.Fatalf("dividend on quiet date = %v, want 0", got)
	}
}

func TestAssembleDividendSourceFailureIsNonFatal(t *testing.T) {
	divs := &fakeDividends{err: fmt.Errorf("fetch: %w", errs.ErrDividendSource)}
	a := NewAssembler(&fakeRates{rate: 4.0}, divs, ModeTraining)

	ts := time.Date(2025, 1, 2, 15, 30, 0, 0, time.UTC)
	rows, err := a.Assemble(context.Background(),
		[]models.GridRow{gridCell(ts, "A")}, "SYM", ts.AddDate(0, 0, 10), nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if rows[0].Dividend == nil || *rows[0].Dividend != 0 {
		t.Fatalf("dividend = %v, want 0", rows[0].Dividend)
	}
}

func TestAssembleCurveUnavailableLeavesRateNull(t *testing.T) {
	rates := &fakeRates{err: fmt.Errorf("year 2025: %w", errs.ErrCurveUnavailable)}
	a := NewAssembler(rates, &fakeDividends{}, ModeTraining)

	ts := time.Date(2025, 1, 2, 15, 30, 0, 0, time.UTC)
	rows, err := a.Assemble(context.Background(),
		[]models.GridRow{gridCell(ts, "A")}, "SYM", ts.AddDate(0, 0, 10), nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if rows[0].RiskFreeRate != nil {
		t.Fatalf("rate = %v, want nil", *rows[0].RiskFreeRate)
	}
	if rows[0].Dividend == nil || rows[0].TimeToExpiryDays == nil {
		t.Fatal("dividend and time to expiry must still be populated")
	}
}

func TestAssembleInvalidInputIsFatal(t *testing.T) {
	rates := &fakeRates{err: fmt.Errorf("bad dates: %w", errs.ErrInvalidInput)}
	a := NewAssembler(rates, &fakeDividends{}, ModeTraining)

	ts := time.Date(2025, 1, 2, 15, 30, 0, 0, time.UTC)
	_, err := a.Assemble(context.Background(),
		[]models.GridRow{gridCell(ts, "A")}, "SYM", ts.AddDate(0, 0, 10), nil)
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAssembleMergesUnderlyingOnExactTimestamp(t *testing.T) {
	a := NewAssembler(&fakeRates{rate: 4.0}, &fakeDividends{}, ModeTraining)

	matched := time.Date(2025, 1, 2, 15, 30, 0, 0, time.UTC)
	unmatched := time.Date(2025, 1, 3, 15, 30, 0, 0, time.UTC)
	underlying := []models.UnderlyingPriceRow{
		{Date: matched, Open: 100, High: 102, Low: 99, Close: 101},
	}

	rows, err := a.Assemble(context.Background(),
		[]models.GridRow{gridCell(matched, "A"), gridCell(unmatched, "A")},
		"SYM", matched.AddDate(0, 0, 13), underlying)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if rows[0].ULClose == nil || *rows[0].ULClose != 101 {
		t.Fatalf("matched row ul_c = %v, want 101", rows[0].ULClose)
	}
	if rows[1].ULOpen != nil || rows[1].ULClose != nil {
		t.Fatal("unmatched row must keep nil underlying fields")
	}
}

func TestAssembleBackupModeSkipsEnrichment(t *testing.T) {
	rates := &fakeRates{rate: 4.0}
	a := NewAssembler(rates, &fakeDividends{}, ModeBackup)

	ts := time.Date(2025, 1, 2, 15, 30, 0, 0, time.UTC)
	underlying := []models.UnderlyingPriceRow{{Date: ts, Open: 100, High: 102, Low: 99, Close: 101}}

	rows, err := a.Assemble(context.Background(),
		[]models.GridRow{gridCell(ts, "A")}, "SYM", ts.AddDate(0, 0, 13), underlying)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	row := rows[0]
	if row.RiskFreeRate != nil || row.Dividend != nil || row.TimeToExpiryDays != nil {
		t.Fatalf("backup mode must not enrich: %+v", row)
	}
	if row.ULClose == nil || *row.ULClose != 101 {
		t.Fatalf("backup mode still merges underlying, got %v", row.ULClose)
	}
	if rates.calls != 0 {
		t.Fatalf("backup mode performed %d rate lookups", rates.calls)
	}
}
