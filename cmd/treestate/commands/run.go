package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/treestate/internal/config"
	"git.home.luguber.info/inful/treestate/internal/daemon"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Definition string `short:"d" help:"Application definition file (overrides app.definition)"`
	Watch      bool   `short:"w" help:"Hot-reload the definition when it changes"`
	Inspector  string `name:"inspector" help:"Serve the inspector on this address (enables it)"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := LoadConfig(root.Config, g.logger())
	if err != nil {
		return err
	}
	r.apply(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := NewLogger(cfg.Logging.Level, cfg.Logging.Format, root.Verbose)
	slog.SetDefault(logger)
	return RunDaemon(cfg, logger)
}

// apply layers flags over the loaded configuration.
func (r *RunCmd) apply(cfg *config.Config) {
	if r.Definition != "" {
		cfg.App.Definition = r.Definition
	}
	if r.Watch {
		cfg.App.Watch = true
	}
	if r.Inspector != "" {
		cfg.Inspector.Enabled = true
		cfg.Inspector.Addr = r.Inspector
	}
}

// RunDaemon starts the daemon and blocks until a shutdown signal or a
// component failure.
func RunDaemon(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, daemon.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := d.Start(ctx); err != nil {
		return err
	}

	logger.Info("Daemon started, waiting for shutdown signal...")

	var runErr error
	select {
	case runErr = <-d.Err():
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping daemon...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
