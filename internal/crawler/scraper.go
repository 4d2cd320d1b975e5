package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"blackwatch/internal/config"
)

// Scraper errors.
var (
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrNotFound             = errors.New("advisory not found")
	ErrEmptyBody            = errors.New("empty response body")
)

// notFoundMarkers are body snippets served with a 200 for ids that do not exist.
var notFoundMarkers = []string{
	"the requested document could not be found",
	"entry not found",
	"404 not found",
}

// Scraper handles web scraping operations with config-driven retry logic and
// a shared politeness limiter.
type Scraper struct {
	client       *http.Client
	retryPolicy  *config.RetryPolicy
	limiter      *rate.Limiter
	userAgent    string
	bufferSizeKb int
}

// NewScraper creates a new scraper instance with default config.
func NewScraper() *Scraper {
	return NewScraperWithConfig(&config.Default().Crawler)
}

// NewScraperWithConfig creates a new scraper from crawler settings.
func NewScraperWithConfig(cfg *config.CrawlerConfig) *Scraper {
	retry := cfg.Retry

	ua := cfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}

	burst := cfg.Rate.Burst
	if burst < 1 {
		burst = 1
	}

	limit := rate.Inf
	if cfg.Rate.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.Rate.RequestsPerSecond)
	}

	bufferSizeKb := cfg.BufferSizeKb
	if bufferSizeKb <= 0 {
		bufferSizeKb = 1024
	}

	return &Scraper{
		client: &http.Client{
			Timeout: retry.GetTimeout(),
		},
		retryPolicy:  &retry,
		limiter:      rate.NewLimiter(limit, burst),
		userAgent:    ua,
		bufferSizeKb: bufferSizeKb,
	}
}

// ScrapeWithMetrics returns (text, statusCode, duration, error). HTML pages
// are reduced to their visible text; plain text is returned as is.
func (s *Scraper) ScrapeWithMetrics(ctx context.Context, url string) (string, int, time.Duration, error) {
	var lastErr error

	var lastStatusCode int

	totalDuration := time.Duration(0)

	for attempt := 1; attempt <= s.retryPolicy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, s.retryPolicy.GetRetryDelay(attempt)); err != nil {
				return "", lastStatusCode, totalDuration, err
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return "", lastStatusCode, totalDuration, fmt.Errorf("rate limiter: %w", err)
		}

		startTime := time.Now()
		text, status, retry, err := s.fetchOnce(ctx, url)
		totalDuration += time.Since(startTime)
		lastStatusCode = status

		if err == nil {
			return text, status, totalDuration, nil
		}

		lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt, s.retryPolicy.MaxAttempts, err)

		if !retry || ctx.Err() != nil {
			break
		}
	}

	return "", lastStatusCode, totalDuration, lastErr
}

// fetchOnce performs one request and reports whether a failure is retryable.
func (s *Scraper) fetchOnce(ctx context.Context, url string) (string, int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, true, err
	}

	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", resp.StatusCode, false, fmt.Errorf("%w: %d", ErrNotFound, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", resp.StatusCode, isRetryableStatus(resp.StatusCode),
			fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	limit := int64(s.bufferSizeKb) * 1024

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", resp.StatusCode, true, fmt.Errorf("failed to read response body: %w", err)
	}

	text := string(body)
	if isHTML(resp.Header.Get("Content-Type"), body) {
		text, err = HTMLToText(body)
		if err != nil {
			return "", resp.StatusCode, false, err
		}
	}

	if err := checkBody(text); err != nil {
		return "", resp.StatusCode, false, err
	}

	return text, resp.StatusCode, false, nil
}

// Scrape fetches and returns the text content of the given URL.
func (s *Scraper) Scrape(ctx context.Context, url string) (string, error) {
	content, _, _, err := s.ScrapeWithMetrics(ctx, url)

	return content, err
}

// ReadLocalFile reads content from a local file path.
func (s *Scraper) ReadLocalFile(filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read local file %s: %w", filePath, err)
	}

	return string(content), nil
}

func checkBody(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyBody
	}

	if len(trimmed) < 512 {
		lower := strings.ToLower(trimmed)
		for _, marker := range notFoundMarkers {
			if strings.Contains(lower, marker) {
				return ErrNotFound
			}
		}
	}

	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusServiceUnavailable, // 503
		http.StatusGatewayTimeout,   // 504
		http.StatusBadGateway,       // 502
		http.StatusTooManyRequests,  // 429
		http.StatusRequestTimeout:   // 408
		return true
	}

	return false
}
