package dataflows

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"
)

// YahooFinanceClient reads daily bars from the Yahoo Finance chart API.
type YahooFinanceClient struct{}

func NewYahooFinanceClient() *YahooFinanceClient {
	return &YahooFinanceClient{}
}

// Fetch gets historical price data for a symbol. finance-go has no context
// support, so ctx is only checked before the call.
func (yf *YahooFinanceClient) Fetch(ctx context.Context, symbol string, start, end time.Time) (*PriceSeries, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	series := &PriceSeries{
		Symbol: symbol,
		Start:  start,
		End:    end,
		Source: "yahoo",
	}

	iter := chart.Get(params)
	for iter.Next() {
		bar := iter.Bar()
		series.Bars = append(series.Bars, &PriceBar{
			Date:     time.Unix(int64(bar.Timestamp), 0).UTC(),
			Open:     bar.Open,
			High:     bar.High,
			Low:      bar.Low,
			Close:    bar.Close,
			AdjClose: nonZero(bar.AdjClose, bar.Close),
			Volume:   int64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
	}
	if len(series.Bars) == 0 {
		return nil, fmt.Errorf("no price data for %s (%s)", symbol, FormatDateRange(start, end))
	}

	return series, nil
}

func nonZero(v, fallback decimal.Decimal) decimal.Decimal {
	if v.IsZero() {
		return fallback
	}
	return v
}
