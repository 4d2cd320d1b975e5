package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"blackwatch/internal/config"
	"blackwatch/internal/logger"
)

const (
	defaultConfigPath = "configs/blackwatch.yaml"
	defaultEnvFile    = ".env"
)

// app holds what every subcommand shares once the root has loaded it.
type app struct {
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string

	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "blackwatch",
		Short:        "Collect vulnerability advisories and leak posts into deduplicated records",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default "+defaultConfigPath+" when present)")
	flags.StringVar(&a.envFile, "env-file", defaultEnvFile, "dotenv file with API credentials")
	flags.StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "override logging.format (text, json)")

	root.AddCommand(
		newCrawlCmd(a),
		newParseCmd(a),
		newDedupCmd(a),
		newLeakCmd(a),
		newUploadCmd(a),
		newReportCmd(a),
		newValidateCmd(a),
	)

	return root
}

// load reads the env file and config, then builds the logger. Without an
// explicit --config the default path is used when it exists, otherwise the
// built-in defaults.
func (a *app) load(stderr io.Writer) error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}

	path := a.cfgFile
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	if path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}

		a.cfg = cfg
	} else {
		a.cfg = config.Default()
		a.cfg.ApplyEnv()
	}

	if a.logLevel != "" {
		a.cfg.Crawler.Logging.Level = a.logLevel
	}

	if a.logFormat != "" {
		a.cfg.Crawler.Logging.Format = a.logFormat
	}

	a.log = logger.New(logger.Options{
		Level:  a.cfg.Crawler.Logging.Level,
		Format: a.cfg.Crawler.Logging.Format,
		Writer: stderr,
	})

	return nil
}

// writeJSON prints v as indented JSON without HTML escaping.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	return nil
}

// output opens path for writing, or returns stdout when path is empty.
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output: %w", err)
	}

	return f, f.Close, nil
}

var errInvalidInput = errors.New("input failed validation")
