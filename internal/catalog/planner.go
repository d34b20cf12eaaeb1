// Package catalog discovers, filters, deduplicates and orders source tables
// into an incremental ingestion plan.
package catalog

import (
	"context"
	"sort"
	"strings"
	"time"

	"OptForge/internal/domain/models"
	drepo "OptForge/internal/domain/repository"
	errs "OptForge/internal/errors"
	applogger "OptForge/pkg/logger"
	"OptForge/pkg/util"
)

// openEndedCutoff bounds the expiry window when history-only mode is off.
var openEndedCutoff = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

// Config carries the planner's slice of the pipeline configuration.
type Config struct {
	HistoryOnly     bool
	StartDate       time.Time
	GracePeriod     time.Duration
	RefreshData     bool
	IgnoreGroups    []string
	StockSkipTables []string
}

// Planner turns a raw database->tables listing into an ordered work plan.
// Planning is pure bookkeeping; repeated runs against an unchanged catalog
// and artifact index produce an empty incremental plan.
type Planner struct {
	cfg     Config
	index   drepo.ArtifactIndex
	metrics drepo.Metrics
	l       *applogger.Logger
	now     func() time.Time
}

// Option configures the planner.
type Option func(*Planner)

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(p *Planner) { p.l = l }
}

// WithMetrics injects a metrics recorder.
func WithMetrics(m drepo.Metrics) Option {
	return func(p *Planner) { p.metrics = m }
}

// WithClock overrides the wall clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// New creates a planner. index may be nil when incremental refresh is off.
func New(cfg Config, index drepo.ArtifactIndex, opts ...Option) *Planner {
	p := &Planner{
		cfg:   cfg,
		index: index,
		l:     applogger.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan partitions the raw catalog into stock and option work, applies the
// expiry window and the already-materialized filter, merges split tables and
// orders option groups oldest expiry first.
func (p *Planner) Plan(ctx context.Context, raw map[string][]string) (*models.IngestionPlan, error) {
	cutoff := openEndedCutoff
	if p.cfg.HistoryOnly {
		cutoff = p.now().UTC().Add(-p.cfg.GracePeriod)
	}

	existing, err := p.existingArtifacts(ctx)
	if err != nil {
		return nil, err
	}

	plan := &models.IngestionPlan{}
	type dbGroup struct {
		database string
		expiry   time.Time
		descs    []models.TableDescriptor
	}
	groupsByDB := make(map[string]*dbGroup)

	databases := make([]string, 0, len(raw))
	for db := range raw {
		databases = append(databases, db)
	}
	sort.Strings(databases)

	for _, database := range databases {
		tables := append([]string(nil), raw[database]...)
		sort.Strings(tables)

		isStockDB := strings.Contains(database, stockMarker)

		for _, table := range tables {
			if isStockDB {
				if !p.stockSkipped(table) {
					plan.Stocks = append(plan.Stocks, models.TableRef{Database: database, Table: table})
				}
				continue
			}

			if !strings.Contains(table, optionMarker) {
				continue
			}

			desc, err := ParseOptionTable(database, table)
			if err != nil {
				var tne *errs.TableNameError
				if errs.As(err, &tne) {
					p.l.Warn("table name outside naming convention, skipped",
						applogger.String("table", tne.Table),
						applogger.String("reason", tne.Reason))
				} else {
					p.l.Warn("table name outside naming convention, skipped", applogger.Error(err))
				}
				p.recordSkip("parse")
				continue
			}
			if desc.Expiry.Before(p.cfg.StartDate) || desc.Expiry.After(cutoff) {
				continue
			}
			// The sink materializes split tables under their logical name,
			// so the skip check must key on the variant-trimmed name or a
			// _n split of an already-written table would be re-planned and
			// overwrite the merged output with a subset of its rows.
			logical, _, _ := util.TrimVariantSuffix(table)
			if grp, ok := existing[logical]; ok && !p.ignoredGroup(grp) {
				p.recordSkip("materialized")
				continue
			}

			grp, ok := groupsByDB[database]
			if !ok {
				month, err := ParseOptionDatabase(database)
				if err != nil {
					p.l.Warn("option database name outside naming convention, skipped", applogger.Error(err))
					p.recordSkip("parse")
					continue
				}
				grp = &dbGroup{database: database, expiry: month}
				groupsByDB[database] = grp
			}
			grp.descs = append(grp.descs, desc)
		}
	}

	// Merge split databases: same contract month behind a trailing _n
	// variant. Full expiry-date equality is required, not just a matching
	// name token, so coincidental token collisions cannot merge distinct
	// contract months.
	groups := make([]*dbGroup, 0, len(groupsByDB))
	for _, g := range groupsByDB {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if !groups[i].expiry.Equal(groups[j].expiry) {
			return groups[i].expiry.Before(groups[j].expiry)
		}
		return groups[i].database < groups[j].database
	})

	merged := make([]*dbGroup, 0, len(groups))
	dropped := make(map[string]bool)
	for i, g := range groups {
		if dropped[g.database] {
			continue
		}
		for _, h := range groups[i+1:] {
			if !h.expiry.Equal(g.expiry) {
				break
			}
			if dropped[h.database] || !sameLogicalName(g.database, h.database) {
				continue
			}
			g.descs = append(g.descs, h.descs...)
			dropped[h.database] = true
		}
		merged = append(merged, g)
	}

	for _, g := range merged {
		plan.Options = append(plan.Options, models.OptionGroup{
			Database: g.database,
			Expiry:   g.expiry,
			Items:    coalesceItems(g.descs),
		})
	}

	p.l.Info("ingestion plan built",
		applogger.Int("stock_tables", len(plan.Stocks)),
		applogger.Int("option_groups", len(plan.Options)),
		applogger.Int("option_items", plan.TotalOptionItems()))
	return plan, nil
}

// coalesceItems folds physical split tables of the same (symbol, expiry)
// into one logical work item and orders items oldest expiry first.
func coalesceItems(descs []models.TableDescriptor) []models.WorkItem {
	type itemKey struct {
		symbol string
		expiry int64
	}
	byKey := make(map[itemKey]*models.WorkItem)
	var order []itemKey

	for _, d := range descs {
		k := itemKey{symbol: d.Symbol, expiry: d.Expiry.Unix()}
		item, ok := byKey[k]
		if !ok {
			item = &models.WorkItem{Symbol: d.Symbol, Expiry: d.Expiry}
			byKey[k] = item
			order = append(order, k)
		}
		ref := models.TableRef{Database: d.Database, Table: d.Table}
		if !containsRef(item.Tables, ref) {
			item.Tables = append(item.Tables, ref)
		}
	}

	items := make([]models.WorkItem, 0, len(order))
	for _, k := range order {
		item := byKey[k]
		sort.Slice(item.Tables, func(i, j int) bool {
			if item.Tables[i].Database != item.Tables[j].Database {
				return item.Tables[i].Database < item.Tables[j].Database
			}
			return item.Tables[i].Table < item.Tables[j].Table
		})
		items = append(items, *item)
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].Expiry.Equal(items[j].Expiry) {
			return items[i].Expiry.Before(items[j].Expiry)
		}
		return items[i].Symbol < items[j].Symbol
	})
	return items
}

func containsRef(refs []models.TableRef, ref models.TableRef) bool {
	for _, r := range refs {
		if r == ref {
			return true
		}
	}
	return false
}

// sameLogicalName reports whether two database names differ only by a
// trailing _n variant suffix.
func sameLogicalName(a, b string) bool {
	ab, _, _ := util.TrimVariantSuffix(a)
	bb, _, _ := util.TrimVariantSuffix(b)
	return ab == bb || ab == b || a == bb
}

func (p *Planner) existingArtifacts(ctx context.Context) (map[string]string, error) {
	if !p.cfg.RefreshData || p.index == nil {
		return nil, nil
	}
	existing, err := p.index.Existing(ctx)
	if err != nil {
		return nil, errs.Wrapf(err, "scan materialized artifacts")
	}
	return existing, nil
}

func (p *Planner) ignoredGroup(group string) bool {
	for _, ig := range p.cfg.IgnoreGroups {
		if strings.Contains(group, ig) {
			return true
		}
	}
	return false
}

func (p *Planner) stockSkipped(table string) bool {
	for _, skip := range p.cfg.StockSkipTables {
		if table == skip {
			return true
		}
	}
	return false
}

func (p *Planner) recordSkip(reason string) {
	if p.metrics != nil {
		p.metrics.RecordItemSkipped(reason)
	}
}
