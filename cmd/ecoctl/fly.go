package main

import (
	"github.com/spf13/cobra"

	"github.com/ecotracker/backend/internal/ops"
)

func newDeployCmd() *cobra.Command {
	var opts ops.DeployOptions

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the API to Fly.io and print the QR code endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := ops.NewDeployer(ops.ExecRunner{}, cmd.OutOrStdout(), cfg.Fly.Binary, cfg.Fly.ConfigPath)
			return d.Run(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipChecks, "skip-checks", false, "skip dependency and authentication checks")
	cmd.Flags().BoolVar(&opts.TestOnly, "test-only", false, "only print the endpoints of an existing deployment")
	return cmd
}

func newMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Check the Fly.io app for settings outside the free tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := ops.NewMonitor(ops.ExecRunner{}, cmd.OutOrStdout(), cfg.Fly.Binary, cfg.Fly.ConfigPath)
			_, err := m.Run(cmd.Context())
			return err
		},
	}
}

func newHealthCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck <url>",
		Short: "Verify a deployment answers /transactions and /predict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ops.NewChecker(cmd.OutOrStdout()).HealthCheck(cmd.Context(), args[0])
		},
	}
}

func newSmokeTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "smoketest <url>",
		Short: "Exercise every public endpoint of a deployment once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ops.NewChecker(cmd.OutOrStdout()).SmokeTest(cmd.Context(), args[0])
		},
	}
}
