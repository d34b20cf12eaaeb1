package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"OptForge/internal/catalog"
	"OptForge/internal/domain/models"
	drepo "OptForge/internal/domain/repository"
	errs "OptForge/internal/errors"
	"OptForge/internal/reconcile"
	applogger "OptForge/pkg/logger"
	"OptForge/pkg/util"
)

// Planner abstracts the catalog planner for the controller.
type Planner interface {
	Plan(ctx context.Context, raw map[string][]string) (*models.IngestionPlan, error)
}

// Controller drives one batch run: discover the source catalog, plan, fetch
// the underlying stock tables, then fetch/reconcile/assemble/persist each
// option contract. Contracts are mutually independent and run on a bounded
// worker pool; a failing contract is logged and skipped, the run continues.
type Controller struct {
	source    drepo.SourceDatabase
	sink      drepo.Sink
	planner   Planner
	assembler *Assembler
	metrics   drepo.Metrics // optional
	l         *applogger.Logger
	workers   int
	progress  *Progress
}

// ControllerOption configures the controller.
type ControllerOption func(*Controller)

// WithControllerLogger injects a structured logger.
func WithControllerLogger(l *applogger.Logger) ControllerOption {
	return func(c *Controller) { c.l = l }
}

// WithControllerMetrics injects a metrics recorder.
func WithControllerMetrics(m drepo.Metrics) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

// WithWorkers bounds option-contract parallelism. Values below 1 mean
// sequential processing.
func WithWorkers(n int) ControllerOption {
	return func(c *Controller) { c.workers = n }
}

// NewController wires a pipeline controller.
func NewController(source drepo.SourceDatabase, sink drepo.Sink, planner Planner, assembler *Assembler, opts ...ControllerOption) *Controller {
	c := &Controller{
		source:    source,
		sink:      sink,
		planner:   planner,
		assembler: assembler,
		l:         applogger.Nop(),
		workers:   1,
		progress:  &Progress{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Progress exposes the run counters for the ops server.
func (c *Controller) Progress() *Progress { return c.progress }

// Run executes one full batch run. It returns an error only for
// run-fatal conditions: an unreachable catalog, an unreachable artifact
// index or context cancellation.
func (c *Controller) Run(ctx context.Context) error {
	start := time.Now()

	raw, err := c.discover(ctx)
	if err != nil {
		return fmt.Errorf("discover source catalog: %w", err)
	}

	plan, err := c.planner.Plan(ctx, raw)
	if err != nil {
		return fmt.Errorf("build ingestion plan: %w", err)
	}
	c.progress.SetTotal(len(plan.Stocks) + plan.TotalOptionItems())

	underlying, err := c.fetchStocks(ctx, plan.Stocks)
	if err != nil {
		return err
	}

	if err := c.processOptions(ctx, plan.Options, underlying); err != nil {
		return err
	}

	snap := c.progress.Snapshot()
	c.l.Info("run finished",
		applogger.Int("processed", int(snap.Processed)),
		applogger.Int("skipped", int(snap.Skipped)),
		applogger.Int("failed", int(snap.Failed)),
		applogger.Duration("elapsed", time.Since(start)))
	return nil
}

// discover lists every database and its tables from the source store. Any
// failure here is run-fatal: without a complete catalog the plan would
// silently miss work.
func (c *Controller) discover(ctx context.Context) (map[string][]string, error) {
	databases, err := c.source.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	raw := make(map[string][]string, len(databases))
	for _, db := range databases {
		tables, err := c.source.ListTables(ctx, db)
		if err != nil {
			return nil, fmt.Errorf("list tables of %s: %w", db, err)
		}
		raw[db] = tables
	}
	return raw, nil
}

// fetchStocks loads every planned stock table into a per-symbol underlying
// price map. A single unreachable table is skipped, not fatal.
func (c *Controller) fetchStocks(ctx context.Context, stocks []models.TableRef) (map[string][]models.UnderlyingPriceRow, error) {
	underlying := make(map[string][]models.UnderlyingPriceRow)
	for _, ref := range stocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		rows, err := c.source.FetchStockQuotes(ctx, ref.Database, ref.Table)
		if err != nil {
			c.l.Warn("stock table fetch failed, skipped",
				applogger.String("table", ref.Table), applogger.Error(err))
			c.recordError("stock_fetch")
			c.progress.MarkFailed()
			continue
		}
		symbol := catalog.StockSymbol(ref.Table)
		underlying[symbol] = append(underlying[symbol], rows...)
		c.recordProcessed("stock")
		c.progress.MarkProcessed()
		c.l.Debug("stock table fetched",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(rows)),
			applogger.Duration("elapsed", time.Since(start)))
	}
	return underlying, nil
}

// processOptions runs the option groups in plan order. Items inside all
// groups share one bounded worker pool.
func (c *Controller) processOptions(ctx context.Context, groups []models.OptionGroup, underlying map[string][]models.UnderlyingPriceRow) error {
	g, ctx := errgroup.WithContext(ctx)
	if c.workers > 1 {
		g.SetLimit(c.workers)
	} else {
		g.SetLimit(1)
	}

	for _, group := range groups {
		for _, item := range group.Items {
			if err := ctx.Err(); err != nil {
				break
			}
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				c.processItem(ctx, group.Database, item, underlying[item.Symbol])
				return nil
			})
		}
	}
	return g.Wait()
}

// processItem handles one contract end to end. All item-level failures are
// absorbed here so sibling items keep running.
func (c *Controller) processItem(ctx context.Context, group string, item models.WorkItem, underlying []models.UnderlyingPriceRow) {
	start := time.Now()
	logicalTable := itemTableName(item)

	quotes, err := c.fetchItemQuotes(ctx, item)
	if err != nil {
		c.l.Warn("contract fetch failed, skipped",
			applogger.String("table", logicalTable), applogger.Error(err))
		c.recordError("option_fetch")
		c.progress.MarkFailed()
		return
	}
	if len(quotes) == 0 {
		c.l.Debug("contract has no quotes, skipped", applogger.String("table", logicalTable))
		c.recordSkipped("empty")
		c.progress.MarkSkipped()
		return
	}
	fetched := time.Now()

	grid := reconcile.BuildDenseGrid(quotes)
	rows, err := c.assembler.Assemble(ctx, grid, item.Symbol, item.Expiry, underlying)
	if err != nil {
		c.l.Warn("contract assembly failed, skipped",
			applogger.String("table", logicalTable), applogger.Error(err))
		c.recordError("assemble")
		c.progress.MarkFailed()
		return
	}
	assembled := time.Now()

	if err := c.sink.WriteTable(ctx, group, logicalTable, rows); err != nil {
		c.l.Error("contract write failed",
			applogger.String("table", logicalTable), applogger.Error(err))
		c.recordError("sink_write")
		c.progress.MarkFailed()
		return
	}

	c.recordProcessed("option")
	if c.metrics != nil {
		c.metrics.RecordLatency("item", time.Since(start).Seconds())
	}
	c.progress.MarkProcessed()
	c.l.Info("contract written",
		applogger.String("group", group),
		applogger.String("table", logicalTable),
		applogger.Int("rows", len(rows)),
		applogger.Duration("fetch", fetched.Sub(start)),
		applogger.Duration("assemble", assembled.Sub(fetched)),
		applogger.Duration("write", time.Since(assembled)))
}

// fetchItemQuotes unions the rows of every physical split table backing the
// item, deduplicated by (timestamp, identifier) with the first occurrence
// winning.
func (c *Controller) fetchItemQuotes(ctx context.Context, item models.WorkItem) ([]models.OptionQuoteRow, error) {
	type quoteKey struct {
		ts int64
		id string
	}
	seen := make(map[quoteKey]struct{})
	var union []models.OptionQuoteRow

	for _, ref := range item.Tables {
		rows, err := c.source.FetchOptionQuotes(ctx, ref.Database, ref.Table)
		if err != nil {
			if errs.Is(err, errs.ErrSourceUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("fetch %s.%s: %w", ref.Database, ref.Table, err)
		}
		for _, row := range rows {
			k := quoteKey{ts: row.Date.UTC().UnixNano(), id: row.Identifier}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			union = append(union, row)
		}
	}
	return union, nil
}

// itemTableName is the logical output table name: the first physical table
// with any split variant suffix removed.
func itemTableName(item models.WorkItem) string {
	if len(item.Tables) == 0 {
		return item.Symbol
	}
	base, _, _ := util.TrimVariantSuffix(item.Tables[0].Table)
	return base
}

func (c *Controller) recordProcessed(kind string) {
	if c.metrics != nil {
		c.metrics.RecordItemProcessed(kind)
	}
}

func (c *Controller) recordSkipped(reason string) {
	if c.metrics != nil {
		c.metrics.RecordItemSkipped(reason)
	}
}

func (c *Controller) recordError(kind string) {
	if c.metrics != nil {
		c.metrics.RecordError(kind)
	}
}
