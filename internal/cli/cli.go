package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dyike/StockAnalyzerAI/config"
	"github.com/dyike/StockAnalyzerAI/internal/analyzer"
	"github.com/dyike/StockAnalyzerAI/internal/crew"
	"github.com/dyike/StockAnalyzerAI/internal/storage"
)

const Version = "v1.0.0"

// KickerFactory builds the crew that runs one research. Swapped in tests.
type KickerFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (crew.Kicker, error)

func defaultKickerFactory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (crew.Kicker, error) {
	if err := cfg.RequireSecrets(); err != nil {
		return nil, err
	}
	return analyzer.New(ctx, cfg, logger)
}

// app is the state shared by all commands of one invocation.
type app struct {
	configPath string
	verbose    bool

	manager   *config.Manager
	logger    *slog.Logger
	newKicker KickerFactory
	now       func() time.Time
	out       io.Writer

	historyMu sync.Mutex
	history   *storage.Store
}

func newApp() *app {
	return &app{
		newKicker: defaultKickerFactory,
		now:       time.Now,
		out:       os.Stdout,
	}
}

func (a *app) init() error {
	if a.manager == nil {
		manager, err := config.NewManager(config.WithConfigPath(a.configPath))
		if err != nil {
			return err
		}
		a.manager = manager
	}
	cfg := a.manager.Get()
	if a.logger == nil {
		a.logger = newLogger(a.verbose || cfg.Verbose)
		slog.SetDefault(a.logger)
	}
	return cfg.EnsureDirectories()
}

// config returns a copy of the current configuration.
func (a *app) config() *config.Config {
	cfg := a.manager.Get()
	if a.verbose {
		cfg.Verbose = true
	}
	return &cfg
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// historyStore opens the run history on first use.
func (a *app) historyStore() (*storage.Store, error) {
	a.historyMu.Lock()
	defer a.historyMu.Unlock()
	if a.history != nil {
		return a.history, nil
	}
	store, err := storage.NewStore(a.config().HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	a.history = store
	return store, nil
}

func (a *app) close() error {
	a.historyMu.Lock()
	defer a.historyMu.Unlock()
	if a.history == nil {
		return nil
	}
	err := a.history.Close()
	a.history = nil
	return err
}
