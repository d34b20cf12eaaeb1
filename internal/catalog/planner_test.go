package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"OptForge/internal/domain/models"
)

type fakeIndex struct {
	existing map[string]string
	err      error
	calls    int
}

func (f *fakeIndex) Existing(ctx context.Context) (map[string]string, error) {
	f.calls++
	return f.existing, f.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPlanPartitionsStocksAndOptions(t *testing.T) {
	p := New(Config{
		StartDate:       day(2020, time.January, 1),
		StockSkipTables: []string{"TEST_STK"},
	}, nil)

	plan, err := p.Plan(context.Background(), map[string][]string{
		"US_STK": {"AAPL_STK", "MSFT_STK", "TEST_STK"},
		"AAPL_OPT_JAN25": {"AAPL_OPT_15JAN25"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if len(plan.Stocks) != 2 {
		t.Fatalf("stocks = %d, want 2 (skip list applied)", len(plan.Stocks))
	}
	if plan.Stocks[0].Table != "AAPL_STK" || plan.Stocks[1].Table != "MSFT_STK" {
		t.Fatalf("unexpected stock tables: %+v", plan.Stocks)
	}
	if len(plan.Options) != 1 {
		t.Fatalf("option groups = %d, want 1", len(plan.Options))
	}
	g := plan.Options[0]
	if g.Database != "AAPL_OPT_JAN25" {
		t.Fatalf("group database = %q", g.Database)
	}
	if len(g.Items) != 1 || g.Items[0].Symbol != "AAPL" || !g.Items[0].Expiry.Equal(day(2025, time.January, 15)) {
		t.Fatalf("unexpected items: %+v", g.Items)
	}
}

func TestPlanExpiryWindow(t *testing.T) {
	p := New(Config{StartDate: day(2020, time.January, 1)}, nil)

	plan, err := p.Plan(context.Background(), map[string][]string{
		"AAPL_OPT_JAN19": {"AAPL_OPT_18JAN19"},
		"AAPL_OPT_JAN25": {"AAPL_OPT_15JAN25"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got := plan.TotalOptionItems(); got != 1 {
		t.Fatalf("option items = %d, want 1 (pre-window expiry dropped)", got)
	}
	if plan.Options[0].Database != "AAPL_OPT_JAN25" {
		t.Fatalf("surviving group = %q", plan.Options[0].Database)
	}
}

func TestPlanHistoryOnlyCutoff(t *testing.T) {
	p := New(Config{
		HistoryOnly: true,
		StartDate:   day(2020, time.January, 1),
		GracePeriod: 120 * time.Hour,
	}, nil, WithClock(fixedClock(day(2025, time.March, 1))))

	plan, err := p.Plan(context.Background(), map[string][]string{
		"AAPL_OPT_FEB25": {"AAPL_OPT_21FEB25", "AAPL_OPT_28FEB25"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	// Cutoff is 2025-02-24; only the 21 Feb expiry has fully settled.
	if got := plan.TotalOptionItems(); got != 1 {
		t.Fatalf("option items = %d, want 1", got)
	}
	if got := plan.Options[0].Items[0].Expiry; !got.Equal(day(2025, time.February, 21)) {
		t.Fatalf("surviving expiry = %v", got)
	}
}

func TestPlanRefreshSkipsMaterialized(t *testing.T) {
	idx := &fakeIndex{existing: map[string]string{"AAPL_OPT_15JAN25": "AAPL_OPT_JAN25"}}
	raw := map[string][]string{
		"AAPL_OPT_JAN25": {"AAPL_OPT_15JAN25", "AAPL_OPT_17JAN25"},
	}

	p := New(Config{
		StartDate:   day(2020, time.January, 1),
		RefreshData: true,
	}, idx)
	plan, err := p.Plan(context.Background(), raw)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if idx.calls != 1 {
		t.Fatalf("index calls = %d, want 1", idx.calls)
	}
	if got := plan.TotalOptionItems(); got != 1 {
		t.Fatalf("option items = %d, want 1 (materialized table skipped)", got)
	}

	// After every table is materialized the incremental plan is empty.
	idx.existing["AAPL_OPT_17JAN25"] = "AAPL_OPT_JAN25"
	plan, err = p.Plan(context.Background(), raw)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got := plan.TotalOptionItems(); got != 0 {
		t.Fatalf("option items after full materialization = %d, want 0", got)
	}
}

func TestPlanRefreshSkipsSplitTablesOfMaterializedName(t *testing.T) {
	// The sink records the merged logical name, so once SYM_OPT_15JAN25 is
	// in the manifest neither physical split may be re-planned; replaying
	// only the _1 split would overwrite the merged table with a subset.
	idx := &fakeIndex{existing: map[string]string{"SYM_OPT_15JAN25": "SYM_OPT_JAN25"}}
	p := New(Config{
		StartDate:   day(2020, time.January, 1),
		RefreshData: true,
	}, idx)

	plan, err := p.Plan(context.Background(), map[string][]string{
		"SYM_OPT_JAN25":   {"SYM_OPT_15JAN25"},
		"SYM_OPT_JAN25_1": {"SYM_OPT_15JAN25_1"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got := plan.TotalOptionItems(); got != 0 {
		t.Fatalf("option items = %d, want 0 (split table already materialized under its logical name)", got)
	}
}

func TestPlanIgnoreGroupsForceRebuild(t *testing.T) {
	idx := &fakeIndex{existing: map[string]string{"AAPL_OPT_15JAN25": "AAPL_OPT_JAN25"}}
	p := New(Config{
		StartDate:    day(2020, time.January, 1),
		RefreshData:  true,
		IgnoreGroups: []string{"AAPL_OPT_JAN25"},
	}, idx)

	plan, err := p.Plan(context.Background(), map[string][]string{
		"AAPL_OPT_JAN25": {"AAPL_OPT_15JAN25"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got := plan.TotalOptionItems(); got != 1 {
		t.Fatalf("option items = %d, want 1 (ignored group rebuilt)", got)
	}
}

func TestPlanIndexErrorIsFatal(t *testing.T) {
	idx := &fakeIndex{err: errors.New("connection refused")}
	p := New(Config{StartDate: day(2020, time.January, 1), RefreshData: true}, idx)

	if _, err := p.Plan(context.Background(), map[string][]string{}); err == nil {
		t.Fatal("want error when the artifact index is unreachable")
	}
}

func TestPlanMergesSplitDatabases(t *testing.T) {
	p := New(Config{StartDate: day(2020, time.January, 1)}, nil)

	plan, err := p.Plan(context.Background(), map[string][]string{
		"SYM_OPT_JAN25":   {"SYM_OPT_15JAN25"},
		"SYM_OPT_JAN25_1": {"SYM_OPT_15JAN25_1"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Options) != 1 {
		t.Fatalf("option groups = %d, want 1 (split databases merged)", len(plan.Options))
	}
	g := plan.Options[0]
	if len(g.Items) != 1 {
		t.Fatalf("items = %d, want 1 (split tables coalesced)", len(g.Items))
	}
	item := g.Items[0]
	if item.Symbol != "SYM" || !item.Expiry.Equal(day(2025, time.January, 15)) {
		t.Fatalf("unexpected item: %+v", item)
	}
	if len(item.Tables) != 2 {
		t.Fatalf("physical tables = %d, want 2: %+v", len(item.Tables), item.Tables)
	}
	want := []models.TableRef{
		{Database: "SYM_OPT_JAN25", Table: "SYM_OPT_15JAN25"},
		{Database: "SYM_OPT_JAN25_1", Table: "SYM_OPT_15JAN25_1"},
	}
	for i, ref := range want {
		if item.Tables[i] != ref {
			t.Fatalf("table[%d] = %+v, want %+v", i, item.Tables[i], ref)
		}
	}
}

func TestPlanDoesNotMergeDistinctMonths(t *testing.T) {
	p := New(Config{StartDate: day(2020, time.January, 1)}, nil)

	plan, err := p.Plan(context.Background(), map[string][]string{
		"SYM_OPT_JAN25": {"SYM_OPT_15JAN25"},
		"SYM_OPT_FEB25": {"SYM_OPT_21FEB25"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Options) != 2 {
		t.Fatalf("option groups = %d, want 2", len(plan.Options))
	}
}

func TestPlanSkipsMalformedNames(t *testing.T) {
	p := New(Config{StartDate: day(2020, time.January, 1)}, nil)

	plan, err := p.Plan(context.Background(), map[string][]string{
		"AAPL_OPT_JAN25": {"AAPL_OPT_15JAN25", "AAPL_OPT_BADTOKEN", "AAPL_OPT_15JAN25_x", "README"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got := plan.TotalOptionItems(); got != 1 {
		t.Fatalf("option items = %d, want 1 (malformed names skipped)", got)
	}
}

func TestPlanOrdersGroupsByExpiry(t *testing.T) {
	p := New(Config{StartDate: day(2020, time.January, 1)}, nil)

	plan, err := p.Plan(context.Background(), map[string][]string{
		"AAPL_OPT_MAR25": {"AAPL_OPT_21MAR25"},
		"AAPL_OPT_JAN25": {"AAPL_OPT_17JAN25", "AAPL_OPT_15JAN25"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Options) != 2 {
		t.Fatalf("option groups = %d, want 2", len(plan.Options))
	}
	if !plan.Options[0].Expiry.Before(plan.Options[1].Expiry) {
		t.Fatalf("groups not in ascending expiry order: %v, %v",
			plan.Options[0].Expiry, plan.Options[1].Expiry)
	}
	items := plan.Options[0].Items
	if len(items) != 2 || !items[0].Expiry.Before(items[1].Expiry) {
		t.Fatalf("items not in ascending expiry order: %+v", items)
	}
}
