package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"blackwatch/internal/crawler"
	"blackwatch/internal/models"
)

var errUploadFailures = errors.New("some items were rejected")

func newUploadCmd(a *app) *cobra.Command {
	var leaks bool

	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload saved records, or leak records with --leaks, to the storage API",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sink, err := a.openSink(ctx, true, false)
			if err != nil {
				return err
			}
			defer sink.close(ctx)

			failed := 0

			for _, path := range args {
				if leaks {
					batch, err := readLeaks(path)
					if err != nil {
						return err
					}

					result := sink.uploader.UploadLeaks(ctx, batch)
					failed += result.Failed()
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d uploaded, %d failed\n", path, result.Uploaded, result.Failed())

					continue
				}

				batch, err := crawler.ReadRecords(path)
				if err != nil {
					return err
				}

				result := sink.uploader.UploadRecords(ctx, batch)
				failed += result.Failed()
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d uploaded, %d failed\n", path, result.Uploaded, result.Failed())
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d", errUploadFailures, failed)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&leaks, "leaks", false, "files hold leak records")

	return cmd
}

// readLeaks loads a JSON array of leak records or a single one.
func readLeaks(path string) ([]models.LeakRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaks: %w", err)
	}

	var list []models.LeakRecord
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var one models.LeakRecord
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("failed to parse leaks: %w", err)
	}

	return []models.LeakRecord{one}, nil
}
