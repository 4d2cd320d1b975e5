package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"blackwatch/internal/crawler"
	"blackwatch/internal/dedup"
	"blackwatch/internal/models"
	"blackwatch/internal/normalizer"
)

type parseOptions struct {
	host    string
	out     string
	noMerge bool
}

func newParseCmd(a *app) *cobra.Command {
	opts := parseOptions{}

	cmd := &cobra.Command{
		Use:   "parse FILE...",
		Short: "Build records from saved advisory text files",
		Long: `Builds one record per file. The file name becomes the record path
under --host. Records are merged unless --no-merge is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runParse(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "localhost", "host recorded for every file")
	cmd.Flags().StringVarP(&opts.out, "output", "o", "", "write JSON to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.noMerge, "no-merge", false, "emit one record per file without merging")

	return cmd
}

func (a *app) runParse(cmd *cobra.Command, files []string, opts parseOptions) error {
	scraper := crawler.NewScraper()
	processor := normalizer.NewProcessor(a.cfg.Generator.Model())

	docs := make([]models.RawDocument, 0, len(files))

	for _, file := range files {
		text, err := scraper.ReadLocalFile(file)
		if err != nil {
			return err
		}

		docs = append(docs, models.RawDocument{
			Host:     opts.host,
			Path:     "/" + filepath.Base(file),
			ClientID: processor.ClientID(),
			Text:     text,
		})
	}

	client := crawler.NewClientWithDeps(scraper, processor, crawler.NewURLManagerWithSources(nil), a.log, a.cfg.Crawler.Workers)

	records, err := client.BuildAll(cmd.Context(), docs)
	if err != nil {
		return err
	}

	if !opts.noMerge {
		var stats dedup.Stats

		records, stats = dedup.CoalesceWithStats(records)
		a.log.Info("records merged", "input", stats.Input, "output", stats.Output, "merged", stats.Merged)
	}

	w, closeFn, err := output(cmd, opts.out)
	if err != nil {
		return err
	}

	if err := writeJSON(w, records); err != nil {
		closeFn()
		return err
	}

	if err := closeFn(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}

	return nil
}
