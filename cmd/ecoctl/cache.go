package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecotracker/backend/internal/cache/redis"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the recommendation cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Drop every cached recommendation, e.g. after a prompt or model change",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				return err
			}
			defer client.Close()

			deleted, err := client.InvalidateRecommendations(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached recommendations\n", deleted)
			return nil
		},
	})

	return cmd
}
