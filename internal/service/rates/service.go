// Package rates maintains annual risk-free curves and answers point
// interpolation queries against them.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
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

// Service caches one raw curve payload per year and one built RateCurve per
// as-of date. Population is at-most-once per key, even under concurrent
// queries: duplicate fetches for the same year would be a correctness bug
// since the curve is immutable once built.
type Service struct {
	source  drepo.RateSource
	store   cache.Service // optional second-level cache, may be nil
	metrics drepo.Metrics // optional
	l       *applogger.Logger
	ttl     time.Duration

	mu     sync.RWMutex
	years  map[int]map[int]float64
	curves map[int64]*models.RateCurve // key: UTC day unix

	sf singleflight.Group
}

// Option configures the service.
type Option func(*Service)

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(s *Service) { s.l = l }
}

// WithCache adds a read-through cache layer for year payloads.
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

// New creates a rate curve service around a rate source.
func New(source drepo.RateSource, opts ...Option) *Service {
	s := &Service{
		source: source,
		l:      applogger.Nop(),
		ttl:    7 * 24 * time.Hour,
		years:  make(map[int]map[int]float64),
		curves: make(map[int64]*models.RateCurve),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetRate returns the annualized risk-free rate for holding from asOf to
// expiry, linearly interpolated on the as-of date's tenor ladder and rounded
// to 3 decimals. Day counts outside the ladder clamp to the nearest edge for
// the bracket search, so querying beyond the curve never fails.
func (s *Service) GetRate(ctx context.Context, asOf, expiry time.Time) (float64, error) {
	if asOf.IsZero() || expiry.IsZero() {
		return 0, fmt.Errorf("get rate: zero date: %w", errs.ErrInvalidInput)
	}
	if expiry.Before(asOf) {
		return 0, fmt.Errorf("get rate: as-of %s after expiry %s: %w",
			asOf.Format(time.RFC3339), expiry.Format(time.RFC3339), errs.ErrInvalidInput)
	}

	curve, err := s.curveFor(ctx, asOf)
	if err != nil {
		return 0, err
	}

	dayRange := int(math.Floor(expiry.Sub(asOf).Hours() / 24))
	rate := interpolate(curve, dayRange)
	s.l.Debug("rate interpolated",
		applogger.Int("day_range", dayRange),
		applogger.Float64("rate", rate))
	return rate, nil
}

// interpolate brackets the clamped day range on the tenor ladder but feeds
// the unclamped day count into the linear term. The asymmetry reproduces the
// upstream system's observed behavior and is kept deliberately.
func interpolate(curve *models.RateCurve, dayRange int) float64 {
	clamped := dayRange
	if clamped < curve.MinTenor() {
		clamped = curve.MinTenor()
	}
	if clamped > curve.MaxTenor() {
		clamped = curve.MaxTenor()
	}

	lo, hi := curve.Bracket(clamped)
	if lo == hi {
		return round3(curve.Rate(lo))
	}

	rateLo, rateHi := curve.Rate(lo), curve.Rate(hi)
	rate := rateLo + float64(dayRange)*(rateHi-rateLo)/float64(hi-lo)
	return round3(rate)
}

// curveFor returns the cached RateCurve for asOf's calendar date, building it
// from the year payload on first use.
func (s *Service) curveFor(ctx context.Context, asOf time.Time) (*models.RateCurve, error) {
	day := util.DayKey(asOf)
	key := day.Unix()

	s.mu.RLock()
	curve, ok := s.curves[key]
	s.mu.RUnlock()
	if ok {
		s.recordCache("rates_curve", true)
		return curve, nil
	}
	s.recordCache("rates_curve", false)

	v, err, _ := s.sf.Do("curve:"+strconv.FormatInt(key, 10), func() (interface{}, error) {
		s.mu.RLock()
		cached, ok := s.curves[key]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}

		payload, err := s.yearPayload(ctx, day.Year())
		if err != nil {
			return nil, err
		}

		built := models.NewRateCurve(payload)
		if built.Empty() {
			return nil, &errs.CurveError{Year: day.Year(), Err: fmt.Errorf("empty payload")}
		}

		s.mu.Lock()
		s.curves[key] = built
		s.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.RateCurve), nil
}

// yearPayload fetches and caches the whole-year curve payload exactly once
// per year.
func (s *Service) yearPayload(ctx context.Context, year int) (map[int]float64, error) {
	s.mu.RLock()
	payload, ok := s.years[year]
	s.mu.RUnlock()
	if ok {
		s.recordCache("rates_year", true)
		return payload, nil
	}
	s.recordCache("rates_year", false)

	v, err, _ := s.sf.Do("year:"+strconv.Itoa(year), func() (interface{}, error) {
		s.mu.RLock()
		cached, ok := s.years[year]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}

		fetched, err := s.fetchYear(ctx, year)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.years[year] = fetched
		s.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[int]float64), nil
}

func (s *Service) fetchYear(ctx context.Context, year int) (map[int]float64, error) {
	storeKey := "rates:year:" + strconv.Itoa(year)

	if s.store != nil {
		if b, err := s.store.Get(ctx, storeKey); err == nil {
			var payload map[int]float64
			if err := json.Unmarshal(b, &payload); err == nil && len(payload) > 0 {
				return payload, nil
			}
		}
	}

	payload, err := s.source.FetchYearCurve(ctx, year)
	if err != nil {
		return nil, &errs.CurveError{Year: year, Err: err}
	}
	if len(payload) == 0 {
		return nil, &errs.CurveError{Year: year, Err: fmt.Errorf("no tenor buckets")}
	}

	if s.store != nil {
		if b, err := json.Marshal(payload); err == nil {
			if err := s.store.Set(ctx, storeKey, b, s.ttl); err != nil {
				s.l.Warn("rate payload cache write failed",
					applogger.Int("year", year), applogger.Error(err))
			}
		}
	}

	s.l.Debug("year curve fetched", applogger.Int("year", year),
		applogger.Int("tenors", len(payload)))
	return payload, nil
}

func (s *Service) recordCache(name string, hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCache(name, hit)
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
