package dataflows

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar is one daily OHLCV row.
type PriceBar struct {
	Date     time.Time       `json:"date"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	AdjClose decimal.Decimal `json:"adj_close"`
	Volume   int64           `json:"volume"`
}

// PriceSeries is the historical series for one ticker. Nothing in the
// pipeline inspects the rows; the series is handed to the model as text.
type PriceSeries struct {
	Symbol string      `json:"symbol"`
	Start  time.Time   `json:"start"`
	End    time.Time   `json:"end"`
	Source string      `json:"source"`
	Bars   []*PriceBar `json:"bars"`
}

// String renders the series as a CSV table, one bar per line.
func (s *PriceSeries) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s daily prices %s (source: %s)\n", s.Symbol, FormatDateRange(s.Start, s.End), s.Source)
	b.WriteString("Date,Open,High,Low,Close,Adj Close,Volume\n")
	for _, bar := range s.Bars {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%s,%d\n",
			bar.Date.Format("2006-01-02"),
			bar.Open.StringFixed(2),
			bar.High.StringFixed(2),
			bar.Low.StringFixed(2),
			bar.Close.StringFixed(2),
			bar.AdjClose.StringFixed(2),
			bar.Volume)
	}
	return b.String()
}

// NewsItem is a single search hit from the news backend.
type NewsItem struct {
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}
