package equity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"hl-basis-backtest/internal/series"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Client reads hourly regular-session bars from the Yahoo Finance chart API.
type Client struct {
	baseURL  string
	interval string
	http     *http.Client
	log      *zap.Logger
}

func New(baseURL string, timeout time.Duration, interval string, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if interval == "" {
		interval = "1h"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		interval: interval,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		Currency             string `json:"currency"`
		CurrentTradingPeriod struct {
			Regular tradingPeriod `json:"regular"`
		} `json:"currentTradingPeriod"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open  []*float64 `json:"open"`
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type tradingPeriod struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ChartError is returned when Yahoo answers with a populated chart.error.
type ChartError struct {
	Ticker      string
	Code        string
	Description string
}

func (e *ChartError) Error() string {
	return fmt.Sprintf("yahoo chart %s: %s: %s", e.Ticker, e.Code, e.Description)
}

// Bars returns completed bars for ticker opening in [start, end). Bars with a null
// close are skipped, and a last bar still forming at end is dropped.
func (c *Client) Bars(ctx context.Context, ticker string, start, end time.Time) ([]series.PriceBar, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, errors.New("ticker is required")
	}
	if !end.After(start) {
		return nil, errors.New("end must be after start")
	}
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", c.interval)
	q.Set("includePrePost", "false")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; hl-basis-backtest)")
	req.Header.Set("Accept", "application/json")
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	defer resp.Body.Close()
	c.log.Debug("chart request",
		zap.String("ticker", ticker),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(body), 2048))
		}
		return nil, fmt.Errorf("decode yahoo chart %s: %w", ticker, err)
	}
	if e := payload.Chart.Error; e != nil {
		return nil, &ChartError{Ticker: ticker, Code: e.Code, Description: e.Description}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(body), 2048))
	}
	if len(payload.Chart.Result) == 0 {
		return nil, nil
	}
	return barsFromResult(payload.Chart.Result[0], start, end, intervalDuration(c.interval)), nil
}

func barsFromResult(res chartResult, start, end time.Time, interval time.Duration) []series.PriceBar {
	if len(res.Indicators.Quote) == 0 {
		return nil
	}
	quote := res.Indicators.Quote[0]
	out := make([]series.PriceBar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		closePx := *quote.Close[i]
		if closePx <= 0 {
			continue
		}
		at := time.Unix(ts, 0).UTC()
		if at.Before(start.Truncate(time.Hour)) || !at.Before(end) {
			continue
		}
		bar := series.PriceBar{Time: at, Close: closePx}
		if i < len(quote.Open) && quote.Open[i] != nil {
			bar.Open = *quote.Open[i]
		}
		out = append(out, bar)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	deduped := out[:0]
	for _, bar := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Time.Equal(bar.Time) {
			deduped[n-1] = bar
			continue
		}
		deduped = append(deduped, bar)
	}
	if n := len(deduped); n > 0 && !completed(deduped[n-1].Time, end, interval, res.Meta.CurrentTradingPeriod.Regular) {
		deduped = deduped[:n-1]
	}
	return deduped
}

// completed reports whether the bar opening at open had closed by end. The last
// bar of a session is cut short by the session close.
func completed(open, end time.Time, interval time.Duration, session tradingPeriod) bool {
	if interval <= 0 || !open.Add(interval).After(end) {
		return true
	}
	if session.End <= 0 {
		return false
	}
	closeAt := time.Unix(session.End, 0)
	return open.Before(closeAt) && !closeAt.After(end)
}

func intervalDuration(interval string) time.Duration {
	switch {
	case strings.HasSuffix(interval, "wk"):
		n, err := strconv.Atoi(strings.TrimSuffix(interval, "wk"))
		if err != nil {
			return 0
		}
		return time.Duration(n) * 7 * 24 * time.Hour
	case strings.HasSuffix(interval, "mo"):
		return 0
	case strings.HasSuffix(interval, "d"):
		n, err := strconv.Atoi(strings.TrimSuffix(interval, "d"))
		if err != nil {
			return 0
		}
		return time.Duration(n) * 24 * time.Hour
	}
	d, err := time.ParseDuration(interval)
	if err != nil {
		return 0
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
