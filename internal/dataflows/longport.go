package dataflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyike/StockAnalyzerAI/config"
	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
)

// Longport caps a single candlestick request.
const longportMaxCount = 1000

type LongportClient struct {
	quoteCtx *quote.QuoteContext
	now      func() time.Time
}

func NewLongportClient(cfg *config.Config) (*LongportClient, error) {
	if cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	if err != nil {
		return nil, err
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}

	return &LongportClient{quoteCtx: quoteContext, now: time.Now}, nil
}

// Fetch requests enough daily candlesticks to reach back to start and keeps
// the ones inside [start, end].
func (lpc *LongportClient) Fetch(ctx context.Context, symbol string, start, end time.Time) (*PriceSeries, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	if lpc.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}
	symbol = NormalizeSymbol(symbol)

	count := int(lpc.now().Sub(start).Hours()/24) + 1
	if count > longportMaxCount {
		count = longportMaxCount
	}

	sticks, err := lpc.quoteCtx.Candlesticks(ctx, symbol, quote.PeriodDay, int32(count), quote.AdjustTypeNo)
	if err != nil {
		return nil, fmt.Errorf("failed to get candlesticks for %s: %w", symbol, err)
	}

	series := &PriceSeries{
		Symbol: symbol,
		Start:  start,
		End:    end,
		Source: "longport",
	}
	for _, stick := range sticks {
		if bar := barFromCandlestick(stick, start, end); bar != nil {
			series.Bars = append(series.Bars, bar)
		}
	}
	if len(series.Bars) == 0 {
		return nil, fmt.Errorf("no price data for %s (%s)", symbol, FormatDateRange(start, end))
	}
	return series, nil
}

// barFromCandlestick converts a daily candlestick stamped inside [start, end]
// to a bar. Sticks outside the range or without a full OHLC are dropped.
func barFromCandlestick(stick *quote.Candlestick, start, end time.Time) *PriceBar {
	if stick == nil || stick.Open == nil || stick.High == nil || stick.Low == nil || stick.Close == nil {
		return nil
	}
	day := time.Unix(stick.Timestamp, 0).UTC()
	if day.Before(start) || !day.Before(end.AddDate(0, 0, 1)) {
		return nil
	}
	return &PriceBar{
		Date:     day,
		Open:     *stick.Open,
		High:     *stick.High,
		Low:      *stick.Low,
		Close:    *stick.Close,
		AdjClose: *stick.Close,
		Volume:   stick.Volume,
	}
}
