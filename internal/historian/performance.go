package historian

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/rs/zerolog"
)

// fetchBufferDays pads the requested window on both sides so the first and
// last trading days inside the window are always covered.
const fetchBufferDays = 5

// Bar is one daily observation from the market-data provider.
type Bar struct {
	Date  time.Time
	Close float64
}

// MarketData fetches daily price bars for a symbol and date range. An empty
// result is a valid answer for unlisted symbols or off-exchange dates.
type MarketData interface {
	DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}

// PerfPoint is one entry of the normalized series.
type PerfPoint struct {
	Date       string  `json:"date"`
	Price      float64 `json:"price"`
	Normalized float64 `json:"normalized"`
}

// Performance holds realized market impact over an archetype's window, or an
// explicit error marker when the window has no data. An error marker means
// "impact unknown", never "zero impact".
type Performance struct {
	StartDate      string      `json:"start_date"`
	EndDate        string      `json:"end_date"`
	StartPrice     float64     `json:"start_price"`
	EndPrice       float64     `json:"end_price"`
	TotalReturnPct float64     `json:"total_return_pct"`
	MaxDrawdownPct float64     `json:"max_drawdown_pct"`
	Timeseries     []PerfPoint `json:"timeseries"`
	Err            string      `json:"-"`
}

// IsError reports whether this record is an error marker.
func (p Performance) IsError() bool { return p.Err != "" }

// MarshalJSON renders an error marker as {"error": ...} and a real record
// with its full field set, never both.
func (p Performance) MarshalJSON() ([]byte, error) {
	if p.Err != "" {
		return json.Marshal(map[string]string{"error": p.Err})
	}
	type record Performance // avoid recursion
	return json.Marshal(record(p))
}

// Calculator computes realized performance for archetype windows.
type Calculator struct {
	market MarketData
	log    zerolog.Logger
}

// NewCalculator creates a performance calculator.
func NewCalculator(market MarketData, log zerolog.Logger) *Calculator {
	return &Calculator{
		market: market,
		log:    log.With().Str("component", "performance").Logger(),
	}
}

// Performance computes return, drawdown, and a base-100 series for a ticker
// over a period string of the form "YYYY-MM-DD_to_YYYY-MM-DD". All failure
// modes degrade to an error-marker record.
func (c *Calculator) Performance(ctx context.Context, ticker, period string) Performance {
	start, end, err := ParsePeriod(period)
	if err != nil {
		return Performance{Err: err.Error()}
	}

	bars, err := c.market.DailyBars(ctx, ticker,
		start.AddDate(0, 0, -fetchBufferDays), end.AddDate(0, 0, fetchBufferDays))
	if err != nil {
		c.log.Warn().Str("ticker", ticker).Str("period", period).Err(err).Msg("market data fetch failed")
		return Performance{Err: err.Error()}
	}
	if len(bars) == 0 {
		return Performance{Err: "No data found"}
	}

	var window []Bar
	for _, b := range bars {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		window = append(window, b)
	}
	if len(window) == 0 {
		return Performance{Err: "No data in exact range"}
	}

	startPrice := window[0].Close
	endPrice := window[len(window)-1].Close

	// Drawdown is running-peak-to-current, min over the window.
	runningMax := startPrice
	maxDrawdown := 0.0
	series := make([]PerfPoint, 0, len(window))
	for _, b := range window {
		if b.Close > runningMax {
			runningMax = b.Close
		}
		if dd := (b.Close - runningMax) / runningMax; dd < maxDrawdown {
			maxDrawdown = dd
		}
		series = append(series, PerfPoint{
			Date:       b.Date.Format("2006-01-02"),
			Price:      round2(b.Close),
			Normalized: round2(100 * b.Close / startPrice),
		})
	}

	return Performance{
		StartDate:      start.Format("2006-01-02"),
		EndDate:        end.Format("2006-01-02"),
		StartPrice:     round2(startPrice),
		EndPrice:       round2(endPrice),
		TotalReturnPct: round2((endPrice - startPrice) / startPrice * 100),
		MaxDrawdownPct: round2(maxDrawdown * 100),
		Timeseries:     series,
	}
}

// ParsePeriod splits a "YYYY-MM-DD_to_YYYY-MM-DD" period string.
func ParsePeriod(period string) (start, end time.Time, err error) {
	parts := strings.SplitN(period, "_to_", 2)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period %q", period)
	}
	start, err = time.Parse("2006-01-02", parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period start %q", parts[0])
	}
	end, err = time.Parse("2006-01-02", parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period end %q", parts[1])
	}
	return start, end, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// YahooMarketData fetches daily bars from Yahoo Finance.
type YahooMarketData struct{}

// DailyBars returns adjusted daily closes between start and end.
func (YahooMarketData) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	params := &chart.Params{
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Symbol:   symbol,
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)
	var bars []Bar
	for iter.Next() {
		b := iter.Bar()
		bars = append(bars, Bar{
			Date:  time.Unix(int64(b.Timestamp), 0).UTC(),
			Close: b.AdjClose.InexactFloat64(),
		})
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("fetching bars for %s: %w", symbol, err)
	}
	return bars, nil
}
