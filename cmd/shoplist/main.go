package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/idilsaglam/shoplist/internal/cli"
	"github.com/idilsaglam/shoplist/internal/config"
	"github.com/idilsaglam/shoplist/internal/logging"
	"github.com/idilsaglam/shoplist/internal/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		ui.Fail(os.Stderr, err.Error())
		os.Exit(cli.ExitError)
	}
	log, err := logging.New(cfg.Log.Level, cfg.LogPath())
	if err != nil {
		ui.Fail(os.Stderr, "logger: "+err.Error())
		os.Exit(cli.ExitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], cli.Options{Config: cfg, Log: log})
	stop()

	_ = log.Sync()
	os.Exit(code)
}
