package usecase

import "sync/atomic"

// Progress tracks run totals for the ops server. All methods are safe for
// concurrent use.
type Progress struct {
	total     atomic.Int64
	processed atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
}

// ProgressSnapshot is a point-in-time copy of the counters.
type ProgressSnapshot struct {
	Total     int64   `json:"total"`
	Processed int64   `json:"processed"`
	Skipped   int64   `json:"skipped"`
	Failed    int64   `json:"failed"`
	Percent   float64 `json:"percent"`
}

func (p *Progress) SetTotal(n int) { p.total.Store(int64(n)) }
func (p *Progress) MarkProcessed() { p.processed.Add(1) }
func (p *Progress) MarkSkipped()   { p.skipped.Add(1) }
func (p *Progress) MarkFailed()    { p.failed.Add(1) }

// Snapshot returns the current counters. Percent counts every finished item,
// whatever its outcome.
func (p *Progress) Snapshot() ProgressSnapshot {
	s := ProgressSnapshot{
		Total:     p.total.Load(),
		Processed: p.processed.Load(),
		Skipped:   p.skipped.Load(),
		Failed:    p.failed.Load(),
	}
	if s.Total > 0 {
		done := s.Processed + s.Skipped + s.Failed
		s.Percent = 100 * float64(done) / float64(s.Total)
	}
	return s
}
