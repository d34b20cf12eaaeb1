// Package divsource implements the dividend-history source collaborator
// against a JSON HTTP API.
package divsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"OptForge/internal/domain/models"
	errs "OptForge/internal/errors"
	applogger "OptForge/pkg/logger"
)

// Client fetches per-symbol dividend histories.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	l       *applogger.Logger
}

// NewClient creates a dividend API client.
func NewClient(baseURL, apiKey string, timeout time.Duration, l *applogger.Logger) *Client {
	if l == nil {
		l = applogger.Nop()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: timeout},
		l:       l,
	}
}

type historyResponse struct {
	Symbol    string `json:"symbol"`
	Dividends []struct {
		Date   string  `json:"date"`
		Amount float64 `json:"amount"`
	} `json:"dividends"`
}

// FetchDividendHistory returns all recorded dividend events for a symbol.
func (c *Client) FetchDividendHistory(ctx context.Context, symbol string) ([]models.DividendEvent, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dividends %s: %w: %v", symbol, errs.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch dividends %s: %w: status %d", symbol, errs.ErrSourceUnavailable, resp.StatusCode)
	}

	var hr historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return nil, fmt.Errorf("decode dividends %s: %w: %v", symbol, errs.ErrParse, err)
	}

	events := make([]models.DividendEvent, 0, len(hr.Dividends))
	for _, d := range hr.Dividends {
		t, err := time.ParseInLocation("2006-01-02", d.Date, time.UTC)
		if err != nil {
			c.l.Warn("dividend event with unparsable date skipped",
				applogger.String("symbol", symbol), applogger.String("date", d.Date))
			continue
		}
		events = append(events, models.DividendEvent{Date: t, Amount: d.Amount})
	}
	return events, nil
}
