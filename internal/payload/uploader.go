package payload

import (
	"context"
	"fmt"
	"sync"

	"blackwatch/internal/config"
	"blackwatch/internal/logger"
	"blackwatch/internal/models"
)

const defaultMaxConcurrentUploads = 5

// Uploader pushes records and leaks to the storage API.
type Uploader struct {
	client        Client
	logger        *logger.Logger
	vulnPath      string
	leakPath      string
	maxConcurrent int
}

// NewUploader creates an uploader backed by a SessionClient.
func NewUploader(cfg *config.Config, log *logger.Logger) (*Uploader, error) {
	client, err := NewSessionClient(&cfg.API, cfg.Crawler.Retry, log)
	if err != nil {
		return nil, err
	}

	return NewUploaderWithClient(client, &cfg.API, log), nil
}

// NewUploaderWithClient creates a new uploader with a custom client (useful for testing).
func NewUploaderWithClient(client Client, cfg *config.APIConfig, log *logger.Logger) *Uploader {
	if log == nil {
		log = logger.NewLogger("info")
	}

	u := &Uploader{
		client:        client,
		logger:        log,
		vulnPath:      config.DefaultVulnPath,
		leakPath:      config.DefaultLeakPath,
		maxConcurrent: defaultMaxConcurrentUploads,
	}

	if cfg != nil {
		if cfg.VulnPath != "" {
			u.vulnPath = cfg.VulnPath
		}

		if cfg.LeakPath != "" {
			u.leakPath = cfg.LeakPath
		}

		if cfg.MaxConcurrent > 0 {
			u.maxConcurrent = cfg.MaxConcurrent
		}
	}

	return u
}

// Authenticate logs in ahead of the first upload.
func (u *Uploader) Authenticate(ctx context.Context) error {
	return u.client.Login(ctx)
}

// Close ends the session.
func (u *Uploader) Close(ctx context.Context) error {
	return u.client.Logout(ctx)
}

// UploadResult contains the results of an upload operation.
type UploadResult struct {
	Errors   []error
	Uploaded int
	Skipped  int
}

// Failed returns how many items were rejected.
func (r *UploadResult) Failed() int {
	return len(r.Errors)
}

// UploadRecords posts every record to the vulnerability route. Failures are
// collected in the result; the remaining records are still sent.
func (u *Uploader) UploadRecords(ctx context.Context, records []models.CandidateRecord) *UploadResult {
	result := &UploadResult{}
	u.logger.Info("uploading records", "count", len(records), "path", u.vulnPath)

	uploadConcurrent(ctx, u, records, func(rec models.CandidateRecord) error {
		_, err := u.client.Post(ctx, u.vulnPath, NewVulnerabilityPayload(&rec))
		if err != nil {
			return fmt.Errorf("record %s%s: %w", rec.Host, rec.Path, err)
		}

		return nil
	}, "failed to upload record", result)

	u.logger.Info("record upload finished", "uploaded", result.Uploaded, "failed", result.Failed(), "skipped", result.Skipped)

	return result
}

// UploadLeaks posts each leak in its own request to the leak route.
func (u *Uploader) UploadLeaks(ctx context.Context, leaks []models.LeakRecord) *UploadResult {
	result := &UploadResult{}
	u.logger.Info("uploading leaks", "count", len(leaks), "path", u.leakPath)

	uploadConcurrent(ctx, u, leaks, func(leak models.LeakRecord) error {
		_, err := u.client.Post(ctx, u.leakPath, LeakedPayload{Leaked: []models.LeakRecord{leak}})
		if err != nil {
			return fmt.Errorf("leak %s: %w", leak.Path, err)
		}

		return nil
	}, "failed to upload leak", result)

	u.logger.Info("leak upload finished", "uploaded", result.Uploaded, "failed", result.Failed(), "skipped", result.Skipped)

	return result
}

func uploadConcurrent[T any](
	ctx context.Context,
	u *Uploader,
	items []T,
	uploadFunc func(T) error,
	logPrefix string,
	result *UploadResult,
) {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, u.maxConcurrent)
	)

	for _, item := range items {
		wg.Add(1)
		go func(val T) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				mu.Lock()
				result.Skipped++
				mu.Unlock()

				return
			}

			err := uploadFunc(val)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				u.logger.Error(logPrefix, "error", err)
				result.Errors = append(result.Errors, err)

				return
			}

			result.Uploaded++

			processed := result.Uploaded + len(result.Errors)
			if processed%10 == 0 || processed == len(items) {
				u.logger.Debug("upload progress", "done", processed, "total", len(items))
			}
		}(item)
	}

	wg.Wait()
}
