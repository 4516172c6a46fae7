package debug

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino-ext/devops"

	"github.com/dyike/StockAnalyzerAI/config"
)

type EinoDebugger struct {
	config *config.Config
	logger *slog.Logger
}

func NewEinoDebugger(cfg *config.Config, logger *slog.Logger) *EinoDebugger {
	if logger == nil {
		logger = slog.Default()
	}
	return &EinoDebugger{config: cfg, logger: logger}
}

// Initialize starts the eino devops server so compiled crew graphs can be
// inspected from the Eino Dev plugin. It must run before any graph compiles.
// The server listens on the devops default port, EinoDebugPort should match it.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.config.EinoDebugEnabled {
		return nil
	}

	d.logger.Info("initializing eino debug server", "port", d.config.EinoDebugPort)
	if err := devops.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}
	d.logger.Info("eino debug server ready", "url", d.DebugURL())
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.config.EinoDebugEnabled
}

func (d *EinoDebugger) DebugURL() string {
	if !d.config.EinoDebugEnabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.config.EinoDebugPort)
}
