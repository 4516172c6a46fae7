package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/dyike/StockAnalyzerAI/internal/crew"
	"github.com/dyike/StockAnalyzerAI/internal/research"
)

func newScheduleCmd(a *app) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Write newsletters for the watchlist on a cron schedule",
		Long: `Runs the research crew for every ticker of schedule_tickers whenever schedule_cron fires.
The research window ends 10 days ago and reaches back schedule_lookback_days.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			cfg := a.config()
			if len(cfg.ScheduleTickers) == 0 {
				return errors.New("schedule_tickers is empty, set it with: stockanalyzer config set schedule_tickers '[\"AAPL\"]'")
			}

			kicker, err := a.newKicker(cmd.Context(), cfg, a.logger)
			if err != nil {
				return err
			}
			if once {
				return a.runWatchlist(cmd.Context(), kicker)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := a.historyStore(); err != nil {
				a.logger.Warn("run history unavailable", "error", err)
			}

			c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
			_, err = c.AddFunc(cfg.ScheduleCron, func() {
				if err := a.runWatchlist(ctx, kicker); err != nil {
					a.logger.Error("scheduled research failed", "error", err)
				}
			})
			if err != nil {
				return fmt.Errorf("invalid schedule_cron %q: %w", cfg.ScheduleCron, err)
			}

			a.logger.Info("scheduler started", "cron", cfg.ScheduleCron, "tickers", cfg.ScheduleTickers)
			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			a.logger.Info("scheduler stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run the watchlist once and exit")
	return cmd
}

// watchlistRequests builds one request per watchlist ticker, the lookback
// window clamped to the research bounds.
func (a *app) watchlistRequests() []research.Request {
	cfg := a.config()
	bounds := research.BoundsAt(a.now())
	lookback := cfg.ScheduleLookback
	if lookback <= 0 {
		lookback = 30
	}
	start := bounds.Clamp(bounds.Max.AddDate(0, 0, -lookback))

	reqs := make([]research.Request, 0, len(cfg.ScheduleTickers))
	for _, ticker := range cfg.ScheduleTickers {
		reqs = append(reqs, research.Request{Ticker: ticker, Start: start, End: bounds.Max})
	}
	return reqs
}

// runWatchlist researches every ticker in turn. A failed ticker does not stop
// the others; the failures are joined into the returned error.
func (a *app) runWatchlist(ctx context.Context, kicker crew.Kicker) error {
	var errs []error
	for _, req := range a.watchlistRequests() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, path, err := a.runResearch(ctx, kicker, req, true); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", req.Ticker, err))
		} else {
			fmt.Fprintln(a.out, completedStyle.Render(fmt.Sprintf("✅ %s newsletter saved to %s", req.Ticker, path)))
		}
	}
	return errors.Join(errs...)
}
