package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/StockAnalyzerAI/consts"
	"github.com/dyike/StockAnalyzerAI/internal/dataflows"
	"github.com/dyike/StockAnalyzerAI/internal/research"
)

// PromptForTicker prompts the user to enter a stock ticker
func PromptForTicker() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the ticket (stock code eg. AAPL, TSLA, TSM, AMZN, GOOGL, etc.):",
		Help:    "The stock ticker to research",
	}

	err := survey.AskOne(prompt, &ticker, survey.WithValidator(func(val interface{}) error {
		str, _ := val.(string)
		if strings.TrimSpace(str) == "" {
			return research.ErrEmptyTicker
		}
		return dataflows.ValidateSymbol(str)
	}))
	if err != nil {
		return "", err
	}
	return dataflows.NormalizeSymbol(ticker), nil
}

// PromptForDate asks for a date inside the research window.
func PromptForDate(message string, def time.Time, b research.Bounds) (time.Time, error) {
	var dateStr string
	prompt := &survey.Input{
		Message: message,
		Help: fmt.Sprintf("Format: YYYY-MM-DD, between %s and %s",
			b.Min.Format(consts.DateLayout), b.Max.Format(consts.DateLayout)),
		Default: def.Format(consts.DateLayout),
	}

	err := survey.AskOne(prompt, &dateStr, survey.WithValidator(func(val interface{}) error {
		str, _ := val.(string)
		d, err := research.ParseDate(str, def)
		if err != nil {
			return err
		}
		if !b.Contains(d) {
			return &research.RangeError{Min: b.Min, Max: b.Max}
		}
		return nil
	}))
	if err != nil {
		return time.Time{}, err
	}
	return research.ParseDate(dateStr, def)
}
