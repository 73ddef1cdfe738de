// Package bootstrap wires configuration, logging and the process
// lifecycle for the strategies service.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"realtime_strategies/internal/config"
	"realtime_strategies/internal/core"
)

// App holds the dependencies shared by every component
type App struct {
	Cfg    *config.Config
	Logger core.ILogger
}

// NewApp loads configuration and builds the logger. Environment overrides
// from a .env file (if present) are applied before the config file is read,
// so ${VAR} references in the YAML resolve against it. A missing config
// file falls back to built-in defaults; an unreadable or invalid one is
// an error.
func NewApp(configPath string) (*App, error) {
	LoadDotEnv()

	var cfg *config.Config
	if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
		cfg = config.DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("default config: %w", err)
		}
	} else {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	logger, err := InitLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	return &App{Cfg: cfg, Logger: logger}, nil
}

// Runner is a component driven by the application lifecycle. Run blocks
// until the context is cancelled and returns only on unrecoverable errors.
type Runner interface {
	Run(ctx context.Context) error
}

// Run starts every runner and blocks until a termination signal arrives or
// one of them fails. The shared context is cancelled either way, so the
// remaining runners drain and exit.
func (a *App) Run(runners ...Runner) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	a.Logger.Info("Starting application", "service", a.Cfg.Service.Name)
	for _, runner := range runners {
		r := runner
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		a.Logger.Error("Application stopped with error", "error", err)
		return err
	}

	a.Logger.Info("Application shut down gracefully")
	return nil
}
