// Package reconcile turns a sparse option-quote set into the dense
// (date x identifier) grid consumed by the feature assembler.
package reconcile

import (
	"sort"
	"time"

	"OptForge/internal/domain/models"
)

type cellKey struct {
	ts int64
	id string
}

// BuildDenseGrid forms the cross product of the distinct dates and distinct
// identifiers observed in quotes and left-joins the raw quotes back onto it.
// Every (date, identifier) pair appears exactly once; cells without a raw
// quote keep nil prices, and strike/callput are back-filled from the
// identifier text when the source left them empty. Duplicate raw quotes for
// the same cell keep the first occurrence.
func BuildDenseGrid(quotes []models.OptionQuoteRow) []models.GridRow {
	dateSet := make(map[int64]time.Time)
	idSet := make(map[string]struct{})
	index := make(map[cellKey]*models.OptionQuoteRow, len(quotes))

	for i := range quotes {
		q := &quotes[i]
		ts := q.Date.UTC().UnixNano()
		if _, ok := dateSet[ts]; !ok {
			dateSet[ts] = q.Date.UTC()
		}
		idSet[q.Identifier] = struct{}{}

		k := cellKey{ts: ts, id: q.Identifier}
		if _, ok := index[k]; !ok {
			index[k] = q
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for _, d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	grid := make([]models.GridRow, 0, len(dates)*len(ids))
	for _, d := range dates {
		ts := d.UnixNano()
		for _, id := range ids {
			row := models.GridRow{Date: d, Identifier: id}
			if q, ok := index[cellKey{ts: ts, id: id}]; ok {
				row.CallPut = q.CallPut
				if q.Strike != nil {
					row.Strike = ptr(*q.Strike)
				}
				row.Open = ptr(q.Open)
				row.High = ptr(q.High)
				row.Low = ptr(q.Low)
				row.Close = ptr(q.Close)
			}
			if row.Strike == nil || row.CallPut == "" {
				strike, cp := ParseIdentifier(id)
				if row.Strike == nil {
					row.Strike = strike
				}
				if row.CallPut == "" {
					row.CallPut = cp
				}
			}
			grid = append(grid, row)
		}
	}
	return grid
}

func ptr(v float64) *float64 { return &v }
