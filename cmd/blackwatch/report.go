package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"blackwatch/internal/crawler"
	"blackwatch/internal/dedup"
	"blackwatch/internal/formatter"
	"blackwatch/internal/models"
)

type reportOptions struct {
	out     string
	title   string
	noMerge bool
}

func newReportCmd(a *app) *cobra.Command {
	opts := reportOptions{}

	cmd := &cobra.Command{
		Use:   "report FILE...",
		Short: "Render saved records as a signed Markdown report",
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

			ropts := formatter.ReportOptions{
				Title:     opts.title,
				Generator: a.cfg.Generator.Model(),
			}

			if !opts.noMerge {
				merged, stats := dedup.CoalesceWithStats(records)
				records = merged
				ropts.Stats = &stats
			}

			w, closeFn, err := output(cmd, opts.out)
			if err != nil {
				return err
			}

			if _, err := io.WriteString(w, formatter.RenderReport(records, ropts)); err != nil {
				closeFn()
				return fmt.Errorf("failed to write report: %w", err)
			}

			if err := closeFn(); err != nil {
				return fmt.Errorf("failed to close output: %w", err)
			}

			a.log.Info("report rendered", "records", len(records))

			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.out, "output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().StringVar(&opts.title, "title", "", "report heading")
	cmd.Flags().BoolVar(&opts.noMerge, "no-merge", false, "render records as given without merging")

	return cmd
}
