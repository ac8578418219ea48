package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecotracker/backend/pkg/config"
	"github.com/ecotracker/backend/pkg/logger"
)

var cfg *config.Config

func main() {
	root := &cobra.Command{
		Use:           "ecoctl",
		Short:         "Operations tooling for the EcoTracker backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			return logger.Init(cfg.Logging.Level, "console", "stderr")
		},
	}

	root.AddCommand(
		newQRCodeCmd(),
		newDeployCmd(),
		newMonitorCmd(),
		newHealthCheckCmd(),
		newSmokeTestCmd(),
		newEvaluateCmd(),
		newCacheCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("Command failed", zap.Error(err))
		logger.Sync()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
