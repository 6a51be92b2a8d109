package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"locations-server/internal/app"
	"locations-server/internal/shared/config"
	"locations-server/internal/shared/logger"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "locations",
		Short:         "Manage the locations catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(); err != nil {
				return err
			}
			cfg := config.GlobalConfig.Logging
			slog.SetDefault(logger.New(os.Stderr, cfg.Level, cfg.JSONFormat))
			return nil
		},
	}
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newTouchCmd())
	cmd.AddCommand(newTestCmd())
	cmd.AddCommand(newTokenCmd())
	return cmd
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, config.GlobalConfig, slog.Default())
}
