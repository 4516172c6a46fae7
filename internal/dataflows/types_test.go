package dataflows

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/StockAnalyzerAI/config"
)

func TestPriceSeriesString(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	series := &PriceSeries{
		Symbol: "AAPL",
		Start:  start,
		End:    end,
		Source: "yahoo",
		Bars: []*PriceBar{{
			Date:     time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC),
			Open:     decimal.RequireFromString("187.15"),
			High:     decimal.RequireFromString("188.44"),
			Low:      decimal.RequireFromString("183.885"),
			Close:    decimal.RequireFromString("185.64"),
			AdjClose: decimal.RequireFromString("184.94"),
			Volume:   82488700,
		}},
	}

	lines := strings.Split(strings.TrimSpace(series.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "AAPL daily prices 2024-01-01 to 2024-02-01 (source: yahoo)", lines[0])
	assert.Equal(t, "Date,Open,High,Low,Close,Adj Close,Volume", lines[1])
	assert.Equal(t, "2024-01-02,187.15,188.44,183.89,185.64,184.94,82488700", lines[2])
}

func TestValidateSymbol(t *testing.T) {
	assert.NoError(t, ValidateSymbol(" aapl "))
	assert.Error(t, ValidateSymbol("   "))
	assert.Error(t, ValidateSymbol("THIS-IS-TOO-LONG"))
	assert.Equal(t, "BRK.B", NormalizeSymbol(" brk.b"))
}

func TestNewPriceFetcher(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())

	fetcher, err := NewPriceFetcher(cfg)
	require.NoError(t, err)
	assert.IsType(t, &YahooFinanceClient{}, fetcher)

	cfg.MarketDataProvider = config.MarketDataLongport
	_, err = NewPriceFetcher(cfg)
	assert.EqualError(t, err, "longport API credentials not configured")

	cfg.MarketDataProvider = "bloomberg"
	_, err = NewPriceFetcher(cfg)
	assert.Error(t, err)
}
