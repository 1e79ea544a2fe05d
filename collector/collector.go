// Package collector persists run results and captured attempt output, and
// optionally uploads the structured result record to a reporting endpoint.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/rs/zerolog"

	"github.com/infra-ci/integ-acceptor/metrics"
	"github.com/infra-ci/integ-acceptor/types"
)

const (
	// RunDirectoryPrefix is the standardized prefix for run directories.
	RunDirectoryPrefix = "testrun-"

	ResultFilename  = "result.json"
	SummaryFilename = "summary.log"

	uploadTimeout = 30 * time.Second
)

// Collector writes per-attempt logs and the structured result record under
// a per-run directory. Upload failures never propagate: CI must learn the
// true test outcome even when the artifact store is flaky.
type Collector struct {
	baseDir   string
	uploadURL string
	client    *http.Client
	log       zerolog.Logger
}

// New creates a Collector rooted at baseDir. uploadURL may be empty, in
// which case results are only persisted locally.
func New(baseDir, uploadURL string, log zerolog.Logger) (*Collector, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory %s: %w", baseDir, err)
	}

	return &Collector{
		baseDir:   baseDir,
		uploadURL: uploadURL,
		client:    &http.Client{Timeout: uploadTimeout},
		log:       log,
	}, nil
}

// Collect persists the run's attempt logs and result record, then uploads
// the record if an upload destination is configured. Partial data is kept
// on any failure; an upload failure is logged as a warning, never returned
// as an error from Collect.
func (c *Collector) Collect(ctx context.Context, result *types.RunResult) error {
	runDir := filepath.Join(c.baseDir, RunDirectoryPrefix+result.RunID, result.Integration)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory %s: %w", runDir, err)
	}

	for i := range result.Attempts {
		attempt := &result.Attempts[i]
		logPath := filepath.Join(runDir, fmt.Sprintf("attempt-%d.log", attempt.Number))
		clean := stripansi.Strip(attempt.Output)
		if err := os.WriteFile(logPath, []byte(clean), 0644); err != nil {
			return fmt.Errorf("failed to write attempt log %s: %w", logPath, err)
		}
		attempt.LogRef = logPath
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	resultPath := filepath.Join(runDir, ResultFilename)
	if err := os.WriteFile(resultPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write result record %s: %w", resultPath, err)
	}

	summaryPath := filepath.Join(runDir, SummaryFilename)
	if err := os.WriteFile(summaryPath, []byte(result.Summary()+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write summary %s: %w", summaryPath, err)
	}

	c.log.Info().
		Str("integration", result.Integration).
		Str("run_id", result.RunID).
		Str("dir", runDir).
		Msg("run artifacts collected")

	c.upload(ctx, result, data)
	return nil
}

// upload posts the result record to the configured endpoint. Failures are
// recorded as warnings only.
func (c *Collector) upload(ctx context.Context, result *types.RunResult, data []byte) {
	if c.uploadURL == "" {
		return
	}

	// Upload still runs when the surrounding run was cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, bytes.NewReader(data))
	if err != nil {
		c.warnUploadFailure(result, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.warnUploadFailure(result, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.warnUploadFailure(result, fmt.Errorf("unexpected status %s", resp.Status))
		return
	}

	c.log.Info().
		Str("integration", result.Integration).
		Str("run_id", result.RunID).
		Str("url", c.uploadURL).
		Msg("result uploaded")
}

func (c *Collector) warnUploadFailure(result *types.RunResult, err error) {
	metrics.RecordErrorDetails("result upload failed", err)
	c.log.Warn().
		Err(err).
		Str("integration", result.Integration).
		Str("run_id", result.RunID).
		Str("url", c.uploadURL).
		Msg("result upload failed; artifacts remain on disk")
}

// RunDir returns the directory holding this run's artifacts.
func (c *Collector) RunDir(runID, integration string) string {
	return filepath.Join(c.baseDir, RunDirectoryPrefix+runID, integration)
}
