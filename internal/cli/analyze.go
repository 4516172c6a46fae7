package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dyike/StockAnalyzerAI/consts"
	"github.com/dyike/StockAnalyzerAI/internal/crew"
	"github.com/dyike/StockAnalyzerAI/internal/dataflows"
	"github.com/dyike/StockAnalyzerAI/internal/research"
	"github.com/dyike/StockAnalyzerAI/internal/storage"
	"github.com/dyike/StockAnalyzerAI/pkg/utils"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		start, end string
		noSave     bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [TICKER]",
		Short: "Research a stock and write a newsletter",
		Long: `Run the stock analysis crew once for a ticker and a date range.
Missing values are prompted for. Example: stockanalyzer analyze AAPL --start=2024-01-01 --end=2024-02-01`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			bounds := research.BoundsAt(a.now())

			var ticker string
			interactive := len(args) == 0
			if interactive {
				DisplayWelcomeBanner(a.out)
				t, err := PromptForTicker()
				if err != nil {
					return err
				}
				ticker = t
			} else {
				ticker = args[0]
			}

			req, err := resolveDates(ticker, start, end, bounds, interactive)
			if err != nil {
				return err
			}
			if err := req.Validate(bounds); err != nil {
				return err
			}

			cfg := a.config()
			kicker, err := a.newKicker(cmd.Context(), cfg, a.logger)
			if err != nil {
				return err
			}
			result, path, err := a.runResearch(cmd.Context(), kicker, req, !noSave)
			if err != nil {
				return err
			}
			DisplayResult(a.out, req.Ticker, result)
			if path != "" {
				fmt.Fprintln(a.out, completedStyle.Render("✅ Newsletter saved to "+path))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Start date for analyse in YYYY-MM-DD format (default: 40 days ago)")
	cmd.Flags().StringVar(&end, "end", "", "End date for analyse in YYYY-MM-DD format (default: 10 days ago)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not save the newsletter to the results directory")

	return cmd
}

func resolveDates(ticker, start, end string, b research.Bounds, interactive bool) (research.Request, error) {
	req := research.Request{Ticker: dataflows.NormalizeSymbol(ticker)}
	if req.Ticker == "" {
		return req, research.ErrEmptyTicker
	}

	var err error
	if start == "" && interactive {
		req.Start, err = PromptForDate("Start date for analyse:", b.DefaultStart, b)
	} else {
		req.Start, err = research.ParseDate(start, b.DefaultStart)
	}
	if err != nil {
		return req, err
	}

	if end == "" && interactive {
		req.End, err = PromptForDate("End date for analyse:", b.Max, b)
	} else {
		req.End, err = research.ParseDate(end, b.Max)
	}
	return req, err
}

// runResearch runs one kickoff and optionally saves the newsletter. The returned
// path is empty when nothing was written.
func (a *app) runResearch(ctx context.Context, kicker crew.Kicker, req research.Request, save bool) (*crew.Result, string, error) {
	inputs := req.Inputs()
	logger := a.logger.With("ticker", req.Ticker)
	logger.Info("research started", "dt_start", inputs[consts.Input_DtStart], "dt_end", inputs[consts.Input_DtEnd])

	run := &storage.Run{
		Ticker:    req.Ticker,
		Start:     inputs[consts.Input_DtStart],
		End:       inputs[consts.Input_DtEnd],
		Status:    storage.StatusDone,
		CreatedAt: a.now(),
	}
	defer a.recordRun(ctx, run)

	result, err := kicker.Kickoff(ctx, inputs)
	if err != nil {
		logger.Error("research failed", "error", err)
		run.Status, run.Error = storage.StatusError, err.Error()
		return nil, "", fmt.Errorf("analysis failed: %w", err)
	}
	run.ID, run.Outputs = result.RunID, result.TasksOutputs
	if !save {
		return result, "", nil
	}

	cfg := a.config()
	content := newsletterMarkdown(req.Ticker, run.Start, run.End, result)
	name := fmt.Sprintf("%s_%s_%s.md", req.Ticker, run.Start, run.End)
	path, err := utils.WriteMarkdown(filepath.Join(cfg.ResultsDir, utils.SafeFileName(req.Ticker)), name, content)
	if err != nil {
		run.Status, run.Error = storage.StatusError, err.Error()
		return result, "", err
	}
	run.ReportPath = path
	logger.Info("newsletter saved", "path", path)
	return result, path, nil
}

// recordRun adds run to the history. A history failure never fails the
// research itself.
func (a *app) recordRun(ctx context.Context, run *storage.Run) {
	store, err := a.historyStore()
	if err == nil {
		err = store.Record(context.WithoutCancel(ctx), run)
	}
	if err != nil {
		a.logger.Warn("run history not updated", "ticker", run.Ticker, "error", err)
	}
}
