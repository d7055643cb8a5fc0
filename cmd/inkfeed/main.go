package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/inkfeed/inkfeed/internal/app"
	"github.com/inkfeed/inkfeed/internal/config"
	"github.com/inkfeed/inkfeed/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg := config.Load(path)

	logger := logging.New(cfg.Logging.Level)

	if err := app.New(cfg, logger).Run(ctx); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}
