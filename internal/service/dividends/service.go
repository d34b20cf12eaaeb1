// Package dividends maintains per-symbol dividend event histories.
package dividends

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"OptForge/internal/domain/models"
	drepo "OptForge/internal/domain/repository"
	errs "OptForge/internal/errors"
	"OptForge/pkg/cache"
	applogger "OptForge/pkg/logger"
	"OptForge/pkg/util"
)

// Service fetches a symbol's dividend history at most once and caches it for
// the lifetime of the run. Fetch failures surface as ErrDividendSource, which
// callers treat as non-fatal (dividend defaults to 0).
type Service struct {
	source  drepo.DividendSource
	store   cache.Service // optional, may be nil
	metrics drepo.Metrics // optional
	l       *applogger.Logger
	ttl     time.Duration

	mu        sync.RWMutex
	histories map[string][]models.DividendEvent

	sf singleflight.Group
}

// Option configures the service.
type Option func(*Service)

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(s *Service) { s.l = l }
}

// WithCache adds a read-through cache layer for histories.
func WithCache(store cache.Service, ttl time.Duration) Option {
	return func(s *Service) {
		s.store = store
		s.ttl = ttl
	}
}

// WithMetrics injects a metrics recorder.
func WithMetrics(m drepo.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a dividend service around a dividend source.
func New(source drepo.DividendSource, opts ...Option) *Service {
	s := &Service{
		source:    source,
		l:         applogger.Nop(),
		ttl:       7 * 24 * time.Hour,
		histories: make(map[string][]models.DividendEvent),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns the symbol's ordered dividend history, fetching it on
// first request. Concurrent first requests for the same symbol coalesce into
// a single source fetch.
func (s *Service) History(ctx context.Context, symbol string) ([]models.DividendEvent, error) {
	s.mu.RLock()
	events, ok := s.histories[symbol]
	s.mu.RUnlock()
	if ok {
		s.recordCache(true)
		return events, nil
	}
	s.recordCache(false)

	v, err, _ := s.sf.Do("dividends:"+symbol, func() (interface{}, error) {
		s.mu.RLock()
		cached, ok := s.histories[symbol]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}

		fetched, err := s.fetch(ctx, symbol)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.histories[symbol] = fetched
		s.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.DividendEvent), nil
}

// AmountOn returns the dividend paid by symbol on the given calendar date,
// or 0 when no event falls on that day.
func (s *Service) AmountOn(ctx context.Context, symbol string, day time.Time) (float64, error) {
	events, err := s.History(ctx, symbol)
	if err != nil {
		return 0, err
	}
	key := util.DayKey(day)
	for _, ev := range events {
		if ev.Date.Equal(key) {
			return ev.Amount, nil
		}
	}
	return 0, nil
}

func (s *Service) fetch(ctx context.Context, symbol string) ([]models.DividendEvent, error) {
	storeKey := "dividends:" + symbol

	if s.store != nil {
		if b, err := s.store.Get(ctx, storeKey); err == nil {
			var events []models.DividendEvent
			if err := json.Unmarshal(b, &events); err == nil {
				return events, nil
			}
		}
	}

	raw, err := s.source.FetchDividendHistory(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch dividends for %s: %w: %v", symbol, errs.ErrDividendSource, err)
	}

	events := normalize(raw)

	if s.store != nil {
		if b, err := json.Marshal(events); err == nil {
			if err := s.store.Set(ctx, storeKey, b, s.ttl); err != nil {
				s.l.Warn("dividend cache write failed",
					applogger.String("symbol", symbol), applogger.Error(err))
			}
		}
	}

	s.l.Debug("dividend history fetched",
		applogger.String("symbol", symbol), applogger.Int("events", len(events)))
	return events, nil
}

// normalize truncates event dates to UTC calendar dates, drops negative
// amounts and orders events chronologically.
func normalize(raw []models.DividendEvent) []models.DividendEvent {
	events := make([]models.DividendEvent, 0, len(raw))
	for _, ev := range raw {
		if ev.Amount < 0 || ev.Date.IsZero() {
			continue
		}
		events = append(events, models.DividendEvent{
			Date:   util.DayKey(ev.Date),
			Amount: ev.Amount,
		})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	return events
}

func (s *Service) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCache("dividends", hit)
	}
}
