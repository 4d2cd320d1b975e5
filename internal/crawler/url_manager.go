package crawler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"blackwatch/internal/config"
	"blackwatch/internal/logger"
)

// URL manager errors.
var ErrNoSourcesAvailable = errors.New("no sources available")

// Target is one advisory page to fetch.
type Target struct {
	Source string
	ID     int
	Host   string
	Path   string
	URL    string
}

// URLManager expands enabled sources into per-id targets and keeps a log of
// fetch attempts.
type URLManager struct {
	mu         sync.Mutex
	attemptLog map[string][]AttemptResult
	sources    []config.SourceConfig
}

// AttemptResult records the result of a URL fetch.
type AttemptResult struct {
	Timestamp  time.Time
	URL        string
	Error      string
	Duration   time.Duration
	StatusCode int
	Success    bool
}

// NewURLManager creates a new URL manager over the enabled sources.
func NewURLManager(cfg *config.Config) *URLManager {
	return NewURLManagerWithSources(cfg.GetEnabledSources())
}

// NewURLManagerWithSources creates a URL manager over explicit sources.
func NewURLManagerWithSources(sources []config.SourceConfig) *URLManager {
	return &URLManager{
		sources:    sources,
		attemptLog: make(map[string][]AttemptResult),
	}
}

// Targets lists every id of every source in ascending order.
func (um *URLManager) Targets() ([]Target, error) {
	if len(um.sources) == 0 {
		return nil, ErrNoSourcesAvailable
	}

	var targets []Target

	for i := range um.sources {
		src := &um.sources[i]
		for id := src.StartID; id <= src.EndID; id++ {
			targets = append(targets, Target{
				Source: src.Name,
				ID:     id,
				Host:   src.Host,
				Path:   src.PathFor(id),
				URL:    src.URLFor(id),
			})
		}
	}

	return targets, nil
}

// RecordAttempt records the result of a fetch.
func (um *URLManager) RecordAttempt(url string, err error, statusCode int, duration time.Duration) {
	um.mu.Lock()
	defer um.mu.Unlock()

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}

	um.attemptLog[url] = append(um.attemptLog[url], AttemptResult{
		URL:        url,
		Success:    err == nil,
		Error:      errMsg,
		Timestamp:  time.Now(),
		Duration:   duration,
		StatusCode: statusCode,
	})
}

// GetAttemptLog returns the attempt log for a URL.
func (um *URLManager) GetAttemptLog(url string) []AttemptResult {
	um.mu.Lock()
	defer um.mu.Unlock()

	return append([]AttemptResult(nil), um.attemptLog[url]...)
}

// GetAttemptStats returns statistics about fetch attempts.
func (um *URLManager) GetAttemptStats() AttemptStats {
	um.mu.Lock()
	defer um.mu.Unlock()

	stats := AttemptStats{TotalURLs: len(um.attemptLog)}

	for _, results := range um.attemptLog {
		stats.TotalAttempts += len(results)

		urlSuccess := false

		for _, result := range results {
			if result.Success {
				stats.SuccessfulAttempts++
				urlSuccess = true
			} else {
				stats.FailedAttempts++
			}
		}

		if urlSuccess {
			stats.SuccessfulURLs++
		} else {
			stats.FailedURLs++
		}
	}

	return stats
}

// AttemptStats contains statistics about fetch attempts.
type AttemptStats struct {
	TotalURLs          int
	SuccessfulURLs     int
	FailedURLs         int
	TotalAttempts      int
	SuccessfulAttempts int
	FailedAttempts     int
}

// String returns a string representation of attempt stats.
func (s AttemptStats) String() string {
	return fmt.Sprintf(
		"URLs: %d total, %d success, %d failed | Attempts: %d total, %d success, %d failed",
		s.TotalURLs,
		s.SuccessfulURLs,
		s.FailedURLs,
		s.TotalAttempts,
		s.SuccessfulAttempts,
		s.FailedAttempts,
	)
}

// LogAttemptSummary logs a summary of fetch attempts.
func (um *URLManager) LogAttemptSummary(l *logger.Logger) {
	stats := um.GetAttemptStats()
	l.Info("fetch attempt summary",
		"urls", stats.TotalURLs,
		"succeeded", stats.SuccessfulURLs,
		"failed", stats.FailedURLs,
		"attempts", stats.TotalAttempts,
	)
}

// Reset clears the attempt log.
func (um *URLManager) Reset() {
	um.mu.Lock()
	defer um.mu.Unlock()

	um.attemptLog = make(map[string][]AttemptResult)
}
