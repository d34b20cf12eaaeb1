package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"OptForge/internal/catalog"
	"OptForge/internal/domain/models"
	errs "OptForge/internal/errors"
)

type fakeDB struct {
	databases  []string
	tables     map[string][]string
	optionRows map[string][]models.OptionQuoteRow
	stockRows  map[string][]models.UnderlyingPriceRow
	optionErr  map[string]error
	listErr    error
}

func (f *fakeDB) ListDatabases(context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.databases, nil
}

func (f *fakeDB) ListTables(_ context.Context, database string) ([]string, error) {
	return f.tables[database], nil
}

func (f *fakeDB) FetchOptionQuotes(_ context.Context, database, table string) ([]models.OptionQuoteRow, error) {
	key := database + "." + table
	if err := f.optionErr[key]; err != nil {
		return nil, err
	}
	return f.optionRows[key], nil
}

func (f *fakeDB) FetchStockQuotes(_ context.Context, database, table string) ([]models.UnderlyingPriceRow, error) {
	return f.stockRows[database+"."+table], nil
}

type fakeSink struct {
	mu     sync.Mutex
	writes map[string][]models.FeatureRow // key: group.table
}

func newFakeSink() *fakeSink {
	return &fakeSink{writes: make(map[string][]models.FeatureRow)}
}

func (f *fakeSink) WriteTable(_ context.Context, group, table string, rows []models.FeatureRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes[group+"."+table] = rows
	return nil
}

func (f *fakeSink) Close() error { return nil }

func rawQuote(ts time.Time, id string) models.OptionQuoteRow {
	return models.OptionQuoteRow{Date: ts, Identifier: id, Open: 1, High: 2, Low: 0.5, Close: 1.5}
}

func testController(db *fakeDB, sink *fakeSink, workers int) *Controller {
	planner := catalog.New(catalog.Config{
		StartDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil)
	asm := NewAssembler(&fakeRates{rate: 4.27}, &fakeDividends{}, ModeTraining)
	return NewController(db, sink, planner, asm, WithWorkers(workers))
}

func TestRunEndToEnd(t *testing.T) {
	d1 := time.Date(2025, 1, 2, 15, 30, 0, 0, time.UTC)
	d2 := time.Date(2025, 1, 3, 15, 30, 0, 0, time.UTC)

	db := &fakeDB{
		databases: []string{"US_STK", "SYM_OPT_JAN25", "SYM_OPT_JAN25_1"},
		tables: map[string][]string{
			"US_STK":          {"SYM_STK"},
			"SYM_OPT_JAN25":   {"SYM_OPT_15JAN25"},
			"SYM_OPT_JAN25_1": {"SYM_OPT_15JAN25_1"},
		},
		optionRows: map[string][]models.OptionQuoteRow{
			"SYM_OPT_JAN25.SYM_OPT_15JAN25": {
				rawQuote(d1, "SYM_250.0_C_15JAN25"),
				rawQuote(d1, "SYM_240.0_P_15JAN25"),
			},
			// split table overlaps on one quote and adds a new date
			"SYM_OPT_JAN25_1.SYM_OPT_15JAN25_1": {
				rawQuote(d1, "SYM_250.0_C_15JAN25"),
				rawQuote(d2, "SYM_250.0_C_15JAN25"),
			},
		},
		stockRows: map[string][]models.UnderlyingPriceRow{
			"US_STK.SYM_STK": {{Date: d1, Open: 100, High: 102, Low: 99, Close: 101}},
		},
	}
	sink := newFakeSink()

	ctrl := testController(db, sink, 4)
	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.writes) != 1 {
		t.Fatalf("sink writes = %d, want 1: %v", len(sink.writes), keys(sink.writes))
	}
	rows, ok := sink.writes["SYM_OPT_JAN25.SYM_OPT_15JAN25"]
	if !ok {
		t.Fatalf("missing merged logical table, got %v", keys(sink.writes))
	}
	// union of both splits: 2 dates x 2 identifiers after densification
	if len(rows) != 4 {
		t.Fatalf("feature rows = %d, want 4", len(rows))
	}

	var matched int
	for _, row := range rows {
		if row.RiskFreeRate == nil || *row.RiskFreeRate != 4.27 {
			t.Fatalf("row %s@%v: rate = %v", row.Identifier, row.Date, row.RiskFreeRate)
		}
		if row.Dividend == nil || *row.Dividend != 0 {
			t.Fatalf("row %s@%v: dividend = %v", row.Identifier, row.Date, row.Dividend)
		}
		if row.Date.Equal(d1) {
			if row.ULClose == nil || *row.ULClose != 101 {
				t.Fatalf("row %s@%v: missing underlying merge", row.Identifier, row.Date)
			}
			matched++
		} else if row.ULClose != nil {
			t.Fatalf("row %s@%v: unexpected underlying merge", row.Identifier, row.Date)
		}
	}
	if matched != 2 {
		t.Fatalf("underlying-matched rows = %d, want 2", matched)
	}

	snap := ctrl.Progress().Snapshot()
	if snap.Processed != 2 || snap.Failed != 0 { // 1 stock + 1 contract
		t.Fatalf("progress = %+v", snap)
	}
}

func TestRunSkipsUnreachableContract(t *testing.T) {
	d := time.Date(2025, 1, 2, 15, 30, 0, 0, time.UTC)
	db := &fakeDB{
		databases: []string{"SYM_OPT_JAN25"},
		tables: map[string][]string{
			"SYM_OPT_JAN25": {"SYM_OPT_15JAN25", "SYM_OPT_17JAN25"},
		},
		optionRows: map[string][]models.OptionQuoteRow{
			"SYM_OPT_JAN25.SYM_OPT_17JAN25": {rawQuote(d, "SYM_250.0_C_17JAN25")},
		},
		optionErr: map[string]error{
			"SYM_OPT_JAN25.SYM_OPT_15JAN25": fmt.Errorf("dial: %w", errs.ErrSourceUnavailable),
		},
	}
	sink := newFakeSink()

	ctrl := testController(db, sink, 1)
	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run must absorb per-contract source failures, got %v", err)
	}
	if len(sink.writes) != 1 {
		t.Fatalf("sink writes = %d, want 1", len(sink.writes))
	}
	snap := ctrl.Progress().Snapshot()
	if snap.Failed != 1 || snap.Processed != 1 {
		t.Fatalf("progress = %+v", snap)
	}
}

func TestRunEmptyContractSkipped(t *testing.T) {
	db := &fakeDB{
		databases: []string{"SYM_OPT_JAN25"},
		tables:    map[string][]string{"SYM_OPT_JAN25": {"SYM_OPT_15JAN25"}},
	}
	sink := newFakeSink()

	ctrl := testController(db, sink, 1)
	if err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.writes) != 0 {
		t.Fatalf("sink writes = %d, want 0", len(sink.writes))
	}
	if snap := ctrl.Progress().Snapshot(); snap.Skipped != 1 {
		t.Fatalf("progress = %+v", snap)
	}
}

func TestRunCatalogFailureIsFatal(t *testing.T) {
	db := &fakeDB{listErr: fmt.Errorf("dial: %w", errs.ErrSourceUnavailable)}
	ctrl := testController(db, newFakeSink(), 1)

	err := ctrl.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "discover") {
		t.Fatalf("expected fatal discover error, got %v", err)
	}
}

func keys(m map[string][]models.FeatureRow) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
