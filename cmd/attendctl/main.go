package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"attendance/internal/app"
	"attendance/internal/config"
	"attendance/internal/logging"
)

// rootCmd is the admin CLI for operators: schema migrations, seeding and credit replenishment.
var rootCmd = &cobra.Command{
	Use:           "attendctl",
	Short:         "Administer the attendance service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "attendctl: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.App, zerolog.Logger, error) {
	cfg := config.Load()
	logger := logging.Configure(logging.Config{Level: cfg.LogLevel, Pretty: true, Output: os.Stderr})
	if err := cfg.Validate(); err != nil {
		return cfg, logger, err
	}
	return cfg, logger, nil
}

// withApp builds the application for commands that need the domain services.
func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
