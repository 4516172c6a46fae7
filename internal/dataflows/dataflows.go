package dataflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dyike/StockAnalyzerAI/config"
)

// PriceFetcher retrieves a historical price series. Implementations make a
// single call to their provider: no retry, no caching.
type PriceFetcher interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time) (*PriceSeries, error)
}

// NewsSearcher queries a news backend and returns at most its configured
// number of results.
type NewsSearcher interface {
	Search(ctx context.Context, query string) ([]*NewsItem, error)
}

// NewPriceFetcher picks the market data provider named in cfg.
func NewPriceFetcher(cfg *config.Config) (PriceFetcher, error) {
	switch cfg.MarketDataProvider {
	case config.MarketDataYahoo, "":
		return NewYahooFinanceClient(), nil
	case config.MarketDataLongport:
		return NewLongportClient(cfg)
	default:
		return nil, fmt.Errorf("unknown market data provider %q", cfg.MarketDataProvider)
	}
}

// NewNewsSearcher builds the news backend from cfg.
func NewNewsSearcher(cfg *config.Config) NewsSearcher {
	return NewDuckDuckGoClient(WithRegion(cfg.NewsRegion), WithMaxResults(cfg.NewsMaxResults))
}

// ValidateSymbol checks if a stock symbol is valid format
func ValidateSymbol(symbol string) error {
	symbol = NormalizeSymbol(symbol)
	if len(symbol) == 0 {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 12 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	return nil
}

// NormalizeSymbol converts symbol to standard format
func NormalizeSymbol(symbol string) string {
	return strings.TrimSpace(strings.ToUpper(symbol))
}

// FormatDateRange creates a human-readable date range string
func FormatDateRange(start, end time.Time) string {
	return fmt.Sprintf("%s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
}
