package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"blackwatch/internal/config"
	"blackwatch/internal/crawler"
	"blackwatch/internal/logger"
	"blackwatch/internal/models"
	"blackwatch/internal/normalizer"
	"blackwatch/internal/payload"
	"blackwatch/internal/store"
)

var errUnknownSource = errors.New("unknown source")

type crawlOptions struct {
	source  string
	upload  bool
	noWrite bool
}

func newCrawlCmd(a *app) *cobra.Command {
	opts := crawlOptions{}

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Fetch every configured advisory id, build records and merge duplicates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCrawl(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "crawl only the named source")
	cmd.Flags().BoolVar(&opts.upload, "upload", false, "upload records to the storage API")
	cmd.Flags().BoolVar(&opts.noWrite, "no-write", false, "skip writing JSON output files")

	return cmd
}

func (a *app) runCrawl(ctx context.Context, opts crawlOptions) error {
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	sources := a.cfg.GetEnabledSources()
	if opts.source != "" {
		src, ok := a.cfg.GetSource(opts.source)
		if !ok {
			return fmt.Errorf("%w: %s", errUnknownSource, opts.source)
		}

		sources = []config.SourceConfig{src}
	}

	sink, err := a.openSink(ctx, opts.upload, !opts.noWrite)
	if err != nil {
		return err
	}
	defer sink.close(ctx)

	a.log.Info("crawl starting", "sources", len(sources), "workers", a.cfg.Crawler.Workers)

	processor := normalizer.NewProcessor(a.cfg.Generator.Model())
	scraper := crawler.NewScraperWithConfig(&a.cfg.Crawler)

	// All sources form one batch; cross-source variants share a cluster.
	um := crawler.NewURLManagerWithSources(sources)
	client := crawler.NewClientWithDeps(scraper, processor, um, a.log, a.cfg.Crawler.Workers)

	records, _, err := client.Crawl(ctx)
	um.LogAttemptSummary(a.log)

	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	groups, order := groupBySource(sources, records)

	for _, name := range order {
		if err := sink.deliver(ctx, a.log.With("source", name), name, groups[name]); err != nil {
			return err
		}
	}

	if len(records) == 0 {
		a.log.Warn("no records produced")
	}

	return nil
}

// groupBySource assigns merged records back to the source whose host they
// carry. Records with an unknown host go to the first source.
func groupBySource(sources []config.SourceConfig, records []models.CandidateRecord) (map[string][]models.CandidateRecord, []string) {
	byHost := make(map[string]string, len(sources))
	for _, src := range sources {
		host := strings.ToLower(src.Host)
		if _, ok := byHost[host]; !ok {
			byHost[host] = src.Name
		}
	}

	groups := make(map[string][]models.CandidateRecord)

	var order []string

	for _, rec := range records {
		name, ok := byHost[strings.ToLower(rec.Host)]
		if !ok && len(sources) > 0 {
			name = sources[0].Name
		}

		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}

		groups[name] = append(groups[name], rec)
	}

	return groups, order
}

// recordSink fans records out to the outputs enabled for this run.
type recordSink struct {
	writer   *crawler.Writer
	db       *store.Store
	uploader *payload.Uploader
	log      *logger.Logger
}

func (a *app) openSink(ctx context.Context, upload, write bool) (*recordSink, error) {
	s := &recordSink{log: a.log}

	if write {
		s.writer = crawler.NewWriter(a.cfg)
	}

	if path := a.cfg.Crawler.Output.SQLitePath; path != "" {
		db, err := store.Open(path)
		if err != nil {
			return nil, err
		}

		s.db = db
	}

	if upload {
		if err := a.cfg.ValidateAPI(); err != nil {
			s.close(ctx)
			return nil, err
		}

		up, err := payload.NewUploader(a.cfg, a.log)
		if err != nil {
			s.close(ctx)
			return nil, err
		}

		if err := up.Authenticate(ctx); err != nil {
			s.close(ctx)
			return nil, fmt.Errorf("authenticate: %w", err)
		}

		s.uploader = up
	}

	return s, nil
}

func (s *recordSink) deliver(ctx context.Context, log *logger.Logger, source string, records []models.CandidateRecord) error {
	if len(records) == 0 {
		return nil
	}

	if s.writer != nil {
		paths, err := s.writer.Write(source, records)
		if err != nil {
			return fmt.Errorf("write %s: %w", source, err)
		}

		log.Info("records written", "files", len(paths))
	}

	if s.db != nil {
		ids, err := s.db.InsertRecords(ctx, records)
		if err != nil {
			return err
		}

		log.Info("records stored", "rows", len(ids), "db", s.db.Path())
	}

	if s.uploader != nil {
		result := s.uploader.UploadRecords(ctx, records)
		for _, err := range result.Errors {
			log.Warn("record rejected", "error", err)
		}
	}

	return nil
}

func (s *recordSink) close(ctx context.Context) {
	if s.uploader != nil {
		if err := s.uploader.Close(ctx); err != nil {
			s.log.Warn("logout failed", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("closing store failed", "error", err)
		}
	}
}
