package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyike/StockAnalyzerAI/config"
	"github.com/dyike/StockAnalyzerAI/internal/crew"
	"github.com/dyike/StockAnalyzerAI/internal/debug"
	"github.com/dyike/StockAnalyzerAI/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the research web page",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := a.config()
			if addr == "" {
				addr = cfg.ListenAddr
			}

			debugger := debug.NewEinoDebugger(cfg, a.logger)
			if err := debugger.Initialize(ctx); err != nil {
				return err
			}

			kicker := &reloadingKicker{}
			if err := kicker.rebuild(ctx, a.newKicker, cfg, a.logger); err != nil {
				return err
			}
			err := a.manager.Watch(ctx, func(updated config.Config) {
				if err := kicker.rebuild(ctx, a.newKicker, &updated, a.logger); err != nil {
					a.logger.Error("config reload rejected, keeping previous crew", "error", err)
					return
				}
				a.logger.Info("config reloaded", "model", updated.Model, "provider", updated.LLMProvider)
			})
			if err != nil {
				return fmt.Errorf("watch config: %w", err)
			}

			srv := web.NewServer(kicker, web.WithLogger(a.logger))
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: listen_addr from the config)")
	return cmd
}

// reloadingKicker forwards to the most recently built crew.
type reloadingKicker struct {
	current atomic.Pointer[crew.Kicker]
}

func (k *reloadingKicker) rebuild(ctx context.Context, factory KickerFactory, cfg *config.Config, logger *slog.Logger) error {
	next, err := factory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	k.current.Store(&next)
	return nil
}

func (k *reloadingKicker) Kickoff(ctx context.Context, inputs crew.Inputs) (*crew.Result, error) {
	current := k.current.Load()
	if current == nil {
		return nil, errors.New("research crew is not ready")
	}
	return (*current).Kickoff(ctx, inputs)
}
