// Package crawler fetches advisory pages and turns batches of them into
// deduplicated records.
package crawler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"blackwatch/internal/dedup"
	"blackwatch/internal/logger"
	"blackwatch/internal/models"
	"blackwatch/internal/normalizer"
)

// Client ties the scraper, the record processor and the deduplicator together.
type Client struct {
	scraper    *Scraper
	processor  *normalizer.Processor
	urlManager *URLManager
	log        *logger.Logger
	workers    int
}

// NewClientWithDeps creates a new crawler client with injected dependencies.
func NewClientWithDeps(scraper *Scraper, processor *normalizer.Processor, urlManager *URLManager, log *logger.Logger, workers int) *Client {
	if workers < 1 {
		workers = 1
	}

	if log == nil {
		log = logger.NewLogger("info")
	}

	return &Client{
		scraper:    scraper,
		processor:  processor,
		urlManager: urlManager,
		log:        log,
		workers:    workers,
	}
}

// FetchAll downloads every target in order. Pages that fail or do not exist
// are logged and skipped; only cancellation stops the loop.
func (c *Client) FetchAll(ctx context.Context) ([]models.RawDocument, error) {
	targets, err := c.urlManager.Targets()
	if err != nil {
		return nil, err
	}

	docs := make([]models.RawDocument, 0, len(targets))

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return docs, err
		}

		text, status, duration, err := c.scraper.ScrapeWithMetrics(ctx, t.URL)
		c.urlManager.RecordAttempt(t.URL, err, status, duration)

		if err != nil {
			if ctx.Err() != nil {
				return docs, ctx.Err()
			}

			c.log.Warn("skipping advisory", "source", t.Source, "id", t.ID, "status", status, "error", err)

			continue
		}

		c.log.Debug("fetched advisory", "source", t.Source, "id", t.ID, "bytes", len(text), "duration", duration)

		docs = append(docs, models.RawDocument{
			Host:     t.Host,
			Path:     t.Path,
			ClientID: c.processor.ClientID(),
			Text:     text,
		})
	}

	return docs, nil
}

// BuildAll builds a record per document in parallel. Output order follows
// input order; documents the processor rejects are logged and dropped.
func (c *Client) BuildAll(ctx context.Context, docs []models.RawDocument) ([]models.CandidateRecord, error) {
	slots := make([]models.CandidateRecord, len(docs))
	ok := make([]bool, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rec, err := c.processor.Process(docs[i])
			if err != nil {
				c.log.Warn("skipping document", "host", docs[i].Host, "path", docs[i].Path, "error", err)
				return nil
			}

			slots[i] = rec
			ok[i] = true

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build records: %w", err)
	}

	records := make([]models.CandidateRecord, 0, len(docs))

	for i := range slots {
		if ok[i] {
			records = append(records, slots[i])
		}
	}

	return records, nil
}

// Process builds and deduplicates an already fetched batch.
func (c *Client) Process(ctx context.Context, docs []models.RawDocument) ([]models.CandidateRecord, dedup.Stats, error) {
	records, err := c.BuildAll(ctx, docs)
	if err != nil {
		return nil, dedup.Stats{}, err
	}

	out, stats := dedup.CoalesceWithStats(records)

	return out, stats, nil
}

// Crawl fetches every target, builds records and merges duplicates.
func (c *Client) Crawl(ctx context.Context) ([]models.CandidateRecord, dedup.Stats, error) {
	start := time.Now()

	docs, err := c.FetchAll(ctx)
	if err != nil {
		return nil, dedup.Stats{}, fmt.Errorf("fetch advisories: %w", err)
	}

	out, stats, err := c.Process(ctx, docs)
	if err != nil {
		return nil, dedup.Stats{}, err
	}

	c.log.Info("crawl finished",
		"documents", len(docs),
		"records", stats.Output,
		"merged", stats.Merged,
		"dropped", stats.Dropped,
		"duration", time.Since(start),
	)

	return out, stats, nil
}
