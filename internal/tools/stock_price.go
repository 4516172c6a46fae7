package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/StockAnalyzerAI/consts"
	"github.com/dyike/StockAnalyzerAI/internal/crew"
	"github.com/dyike/StockAnalyzerAI/internal/dataflows"
)

const StockPriceToolName = "stock_analyzer_ai"

type StockPriceInput struct {
	Ticker    string `json:"ticker"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// NewStockPriceTool exposes the price fetcher to agents. Dates the model
// leaves out default to the run's dt_start and dt_end.
func NewStockPriceTool(fetcher dataflows.PriceFetcher) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: StockPriceToolName,
			Desc: "Stock Analyzer AI. Fetches daily stock prices for a ticker over the research period from the market data provider.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"ticker": {
					Type:     schema.String,
					Desc:     "The stock ticker, e.g. AAPL",
					Required: true,
				},
				"start_date": {
					Type: schema.String,
					Desc: "Start date in YYYY-MM-DD format (default: research start date)",
				},
				"end_date": {
					Type: schema.String,
					Desc: "End date in YYYY-MM-DD format (default: research end date)",
				},
			}),
		},
		func(ctx context.Context, input StockPriceInput) (string, error) {
			inputs := crew.InputsFromContext(ctx)

			ticker := strings.TrimSpace(input.Ticker)
			if ticker == "" {
				ticker = inputs[consts.Input_Ticket]
			}
			start, err := resolveDate(input.StartDate, inputs[consts.Input_DtStart])
			if err != nil {
				return "", fmt.Errorf("invalid start_date: %w", err)
			}
			end, err := resolveDate(input.EndDate, inputs[consts.Input_DtEnd])
			if err != nil {
				return "", fmt.Errorf("invalid end_date: %w", err)
			}

			series, err := fetcher.Fetch(ctx, ticker, start, end)
			if err != nil {
				return "", err
			}
			return series.String(), nil
		},
	)
}

func resolveDate(value, fallback string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if value == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	return time.Parse(consts.DateLayout, value)
}
