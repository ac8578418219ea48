package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecotracker/backend/internal/classifier"
	"github.com/ecotracker/backend/internal/evaluation"
	"github.com/ecotracker/backend/internal/features"
)

func newEvaluateCmd() *cobra.Command {
	var datasetPath string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score the configured classifier against a labelled dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset, err := evaluation.LoadDataset(datasetPath)
			if err != nil {
				return err
			}

			var model classifier.Classifier
			switch cfg.Model.Kind {
			case "logistic":
				model, err = classifier.LoadLogistic(cfg.Model.Path)
				if err != nil {
					return err
				}
			case "remote":
				timeout := time.Duration(cfg.Model.TimeoutSec) * time.Second
				model = classifier.NewRemote(cfg.Model.URL, features.Columns(), timeout)
			default:
				return fmt.Errorf("unknown model kind %q", cfg.Model.Kind)
			}

			e := evaluation.NewEvaluator(features.NewNormalizer(cfg.Features.StrictMaterials), model)
			report, err := e.Run(cmd.Context(), dataset)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&datasetPath, "dataset", "d", "", "JSON dataset of labelled records")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}
