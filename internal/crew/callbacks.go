package crew

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// LogCallback writes eino component events to a slog.Logger. It is attached
// to verbose runs.
type LogCallback struct {
	logger *slog.Logger
}

func newLogHandler(logger *slog.Logger) *LogCallback {
	return &LogCallback{logger: logger}
}

func (cb *LogCallback) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	attrs := []any{"node", info.Name, "component", info.Component}
	if in := ecmodel.ConvCallbackInput(input); in != nil && len(in.Messages) > 0 {
		attrs = append(attrs, "messages", len(in.Messages))
	}
	cb.logger.Info("start", attrs...)
	return ctx
}

func (cb *LogCallback) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if out := ecmodel.ConvCallbackOutput(output); out != nil && out.Message != nil {
		cb.logMessage(info, out.Message)
		return ctx
	}
	cb.logger.Info("end", "node", info.Name, "component", info.Component)
	return ctx
}

func (cb *LogCallback) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	cb.logger.Error("error", "node", info.Name, "component", info.Component, "error", err)
	return ctx
}

func (cb *LogCallback) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

func (cb *LogCallback) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	go func() {
		defer output.Close()
		for {
			frame, err := output.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				cb.logger.Warn("stream receive failed", "node", info.Name, "error", err)
				return
			}
			switch v := frame.(type) {
			case *schema.Message:
				cb.logMessage(info, v)
			case *ecmodel.CallbackOutput:
				cb.logMessage(info, v.Message)
			}
		}
	}()
	return ctx
}

func (cb *LogCallback) logMessage(info *callbacks.RunInfo, msg *schema.Message) {
	if msg == nil {
		return
	}
	if len(msg.ToolCalls) > 0 {
		for _, tc := range msg.ToolCalls {
			cb.logger.Info("tool call", "node", info.Name, "tool", tc.Function.Name, "args", tc.Function.Arguments)
		}
		return
	}
	if msg.Content != "" {
		cb.logger.Info("message", "node", info.Name, "role", msg.Role, "content", msg.Content)
	}
}
