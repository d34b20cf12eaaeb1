// Package models holds the pipeline's domain entities: raw market-data rows,
// reconciled grid rows, assembled feature rows and the ingestion plan.
package models

import "time"

// OptionQuoteRow is one raw option quote as read from a source table.
// Strike and CallPut may be missing upstream; the reconciler back-fills them
// from the identifier text.
type OptionQuoteRow struct {
	Date       time.Time `json:"date"`
	Identifier string    `json:"identifier"`
	CallPut    string    `json:"callput"`
	Strike     *float64  `json:"strike"`
	Open       float64   `json:"o"`
	High       float64   `json:"h"`
	Low        float64   `json:"l"`
	Close      float64   `json:"c"`
}

// GridRow is one cell of the dense (date x identifier) grid. Prices are
// pointers: a nil price marks a cell the cross product synthesized without an
// observed quote.
type GridRow struct {
	Date       time.Time `json:"date"`
	Identifier string    `json:"identifier"`
	CallPut    string    `json:"callput"`
	Strike     *float64  `json:"strike"`
	Open       *float64  `json:"o"`
	High       *float64  `json:"h"`
	Low        *float64  `json:"l"`
	Close      *float64  `json:"c"`
}

// UnderlyingPriceRow is one raw stock quote for the option's underlying.
type UnderlyingPriceRow struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"o"`
	High  float64   `json:"h"`
	Low   float64   `json:"l"`
	Close float64   `json:"c"`
}

// FeatureRow is the pipeline's final output unit: a grid row enriched with
// the risk-free rate, time to expiry, dividend and underlying prices.
// Context fields stay nil when the corresponding join found no match; the
// dividend alone defaults to 0 rather than null.
type FeatureRow struct {
	GridRow

	RiskFreeRate     *float64 `json:"risk_free_rate"`
	TimeToExpiryDays *float64 `json:"time_to_expiry_days"`
	Dividend         *float64 `json:"dividend"`
	ULOpen           *float64 `json:"ul_o"`
	ULHigh           *float64 `json:"ul_h"`
	ULLow            *float64 `json:"ul_l"`
	ULClose          *float64 `json:"ul_c"`
}

// DividendEvent is one cash dividend payment.
type DividendEvent struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}
