package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/tunebridge/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{Logger: logger})
	app := runner.app()

	err := app.Run(ctx, os.Args)
	runner.Close()

	switch {
	case err == nil:
	case errors.Is(err, shared.ErrNotImplemented):
		logger.Warn("not implemented")
	case errors.Is(err, context.Canceled):
		logger.Info("interrupted")
	default:
		logger.Error("application error", "error", err)
		if hint := shared.Suggestion(err); hint != "" {
			logger.Info(hint)
		}
		stop()
		os.Exit(1)
	}
}
