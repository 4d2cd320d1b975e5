package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"blackwatch/internal/crawler"
	"blackwatch/internal/dedup"
	"blackwatch/internal/models"
)

func newDedupCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "dedup FILE...",
		Short: "Merge duplicate records from JSON, JSON array or JSONL files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []models.CandidateRecord

			for _, path := range args {
				batch, err := crawler.ReadRecords(path)
				if err != nil {
					return err
				}

				records = append(records, batch...)
			}

			merged, stats := dedup.CoalesceWithStats(records)
			a.log.Info("records merged",
				"input", stats.Input,
				"clusters", stats.Clusters,
				"merged", stats.Merged,
				"dropped", stats.Dropped,
				"output", stats.Output,
			)

			w, closeFn, err := output(cmd, out)
			if err != nil {
				return err
			}

			if err := writeJSON(w, merged); err != nil {
				closeFn()
				return err
			}

			if err := closeFn(); err != nil {
				return fmt.Errorf("failed to close output: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "write JSON to this file instead of stdout")

	return cmd
}
