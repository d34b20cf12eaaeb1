// Package treasury implements the rate-curve source collaborator against the
// daily treasury yield XML feed. One request returns a whole year of entries;
// the most recent complete entry supplies the tenor buckets.
package treasury

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	errs "OptForge/internal/errors"
	applogger "OptForge/pkg/logger"
)

// Client fetches and parses yearly curve payloads.
type Client struct {
	baseURL string
	hc      *http.Client
	l       *applogger.Logger
}

// NewClient creates a treasury feed client. The year is appended to baseURL.
func NewClient(baseURL string, timeout time.Duration, l *applogger.Logger) *Client {
	if l == nil {
		l = applogger.Nop()
	}
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
		l:       l,
	}
}

// FetchYearCurve downloads the year's feed and returns the tenor ladder
// (days to maturity -> annual rate).
func (c *Client) FetchYearCurve(ctx context.Context, year int) (map[int]float64, error) {
	url := c.baseURL + strconv.Itoa(year)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch year curve %d: %w: %v", year, errs.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch year curve %d: %w: status %d", year, errs.ErrSourceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read year curve %d: %w: %v", year, errs.ErrSourceUnavailable, err)
	}

	payload, err := ParseYearFeed(body)
	if err != nil {
		return nil, fmt.Errorf("parse year curve %d: %w", year, err)
	}

	c.l.Debug("treasury feed fetched",
		applogger.Int("year", year),
		applogger.Duration("duration_ms", time.Since(start)))
	return payload, nil
}

// feed mirrors the XML layout: a feed of entries, each carrying the named
// tenor buckets under content/properties. Namespace prefixes are matched by
// local element name.
type feed struct {
	Entries []entry `xml:"entry"`
}

type entry struct {
	Props props `xml:"content>properties"`
}

type props struct {
	OneMonth   string `xml:"BC_1MONTH"`
	TwoMonth   string `xml:"BC_2MONTH"`
	ThreeMonth string `xml:"BC_3MONTH"`
	SixMonth   string `xml:"BC_6MONTH"`
	OneYear    string `xml:"BC_1YEAR"`
	TwoYear    string `xml:"BC_2YEAR"`
	ThreeYear  string `xml:"BC_3YEAR"`
}

// ParseYearFeed extracts the tenor ladder from a raw year feed. The last
// entry with a complete set of buckets wins, matching the upstream behavior
// of reading the year's most recent row.
func ParseYearFeed(data []byte) (map[int]float64, error) {
	var f feed
	if err := xml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrParse, err)
	}

	for i := len(f.Entries) - 1; i >= 0; i-- {
		payload, ok := f.Entries[i].Props.ladder()
		if ok {
			return payload, nil
		}
	}
	return nil, fmt.Errorf("%w: no complete curve entry in feed", errs.ErrParse)
}

func (p props) ladder() (map[int]float64, bool) {
	buckets := map[int]string{
		30:   p.OneMonth,
		60:   p.TwoMonth,
		90:   p.ThreeMonth,
		180:  p.SixMonth,
		360:  p.OneYear,
		720:  p.TwoYear,
		1080: p.ThreeYear,
	}

	payload := make(map[int]float64, len(buckets))
	for tenor, raw := range buckets {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false
		}
		payload[tenor] = v
	}
	return payload, true
}
