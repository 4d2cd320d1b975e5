package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"blackwatch/internal/dedup"
	"blackwatch/internal/leak"
	"blackwatch/internal/models"
)

var trailingNumber = regexp.MustCompile(`(\d+)$`)

type leakOptions struct {
	channel    string
	out        string
	upload     bool
	candidates bool
}

func newLeakCmd(a *app) *cobra.Command {
	opts := leakOptions{}

	cmd := &cobra.Command{
		Use:   "leak PATH...",
		Short: "Build leak records from downloaded .txt attachments",
		Long: `Reads .txt files, or every .txt file below a directory, and extracts
email:name pairs and links. A trailing number in the file name is used as
the message id. Records go to stdout, the SQLite store when configured, and
the storage API with --upload.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLeak(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.channel, "channel", "", "channel the files were posted in (required)")
	cmd.Flags().StringVarP(&opts.out, "output", "o", "", "write JSON to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.upload, "upload", false, "upload leaks to the storage API")
	cmd.Flags().BoolVar(&opts.candidates, "candidates", false, "emit merged candidate records instead of leak records")
	_ = cmd.MarkFlagRequired("channel")

	return cmd
}

func (a *app) runLeak(cmd *cobra.Command, paths []string, opts leakOptions) error {
	files, err := collectLeakFiles(paths)
	if err != nil {
		return err
	}

	clientID := a.cfg.API.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	builder := leak.NewBuilder(clientID)
	leaks := make([]models.LeakRecord, 0, len(files))

	for i, file := range files {
		rec, err := builder.BuildFromPath(file, opts.channel, messageID(file, i+1))
		if err != nil {
			if errors.Is(err, leak.ErrFileTooLarge) || errors.Is(err, leak.ErrUnsupportedExt) {
				a.log.Warn("skipping leak file", "file", file, "error", err)
				continue
			}

			return err
		}

		leaks = append(leaks, rec)
	}

	a.log.Info("leak files processed", "files", len(files), "records", len(leaks))

	if err := a.storeLeaks(cmd, leaks, opts.upload); err != nil {
		return err
	}

	w, closeFn, err := output(cmd, opts.out)
	if err != nil {
		return err
	}

	var v interface{} = leaks

	if opts.candidates {
		cands := make([]models.CandidateRecord, len(leaks))
		for i := range leaks {
			cands[i] = leaks[i].Candidate()
		}

		v = dedup.Coalesce(cands)
	}

	if err := writeJSON(w, v); err != nil {
		closeFn()
		return err
	}

	if err := closeFn(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}

	return nil
}

func (a *app) storeLeaks(cmd *cobra.Command, leaks []models.LeakRecord, upload bool) error {
	ctx := cmd.Context()

	sink, err := a.openSink(ctx, upload, false)
	if err != nil {
		return err
	}
	defer sink.close(ctx)

	if sink.db != nil {
		for i := range leaks {
			if _, err := sink.db.InsertLeak(ctx, &leaks[i]); err != nil {
				return err
			}
		}

		a.log.Info("leaks stored", "rows", len(leaks), "db", sink.db.Path())
	}

	if sink.uploader != nil && len(leaks) > 0 {
		result := sink.uploader.UploadLeaks(ctx, leaks)
		for _, err := range result.Errors {
			a.log.Warn("leak rejected", "error", err)
		}
	}

	return nil
}

// collectLeakFiles expands directories into the .txt files below them.
func collectLeakFiles(paths []string) ([]string, error) {
	var files []string

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}

		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".txt") {
				files = append(files, path)
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}

	return files, nil
}

// messageID takes the trailing number of the file stem, or fallback.
func messageID(path string, fallback int) int64 {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if m := trailingNumber.FindStringSubmatch(stem); m != nil {
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return id
		}
	}

	return int64(fallback)
}
