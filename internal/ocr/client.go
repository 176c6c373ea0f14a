// Package ocr adapts the text-recognition collaborator. Recognition runs as
// an asynchronous job on the remote engine: the adapter submits the stored
// file reference, polls until the job settles, and classifies every failure
// as an upstream error at this boundary.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gradelens/backend/internal/apperr"
	"github.com/gradelens/backend/pkg/circuitbreaker"
	"github.com/gradelens/backend/pkg/logger"
	"github.com/gradelens/backend/pkg/retry"
)

const (
	jobStatePending = "pending"
	jobStateRunning = "running"
	jobStateDone    = "done"
	jobStateFailed  = "failed"
)

type Client struct {
	endpoint     string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
	timeout      time.Duration
	cb           *circuitbreaker.CircuitBreaker
	retryConfig  retry.Config
}

type jobRequest struct {
	FileRef string `json:"file_ref"`
}

type jobResponse struct {
	JobID string `json:"job_id"`
}

type jobStatusResponse struct {
	JobID string `json:"job_id"`
	State string `json:"state"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

func NewClient(endpoint, apiKey string, pollIntervalSec, timeoutSec int) *Client {
	if pollIntervalSec <= 0 {
		pollIntervalSec = 2
	}
	if timeoutSec <= 0 {
		timeoutSec = 180
	}

	cb := circuitbreaker.New("ocr", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	logger.Info("OCR client initialized", zap.String("endpoint", endpoint))

	return &Client{
		endpoint:     strings.TrimRight(endpoint, "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: time.Duration(pollIntervalSec) * time.Second,
		timeout:      time.Duration(timeoutSec) * time.Second,
		cb:           cb,
		retryConfig:  retry.DefaultConfig(),
	}
}

// Extract submits fileRef for recognition and waits for the job to settle,
// up to the configured timeout. Empty or whitespace-only recognition output
// is rejected rather than returned, since empty text would silently corrupt
// downstream structured extraction. Extract does not retry the job itself;
// the caller decides whether to re-run the operation.
func (c *Client) Extract(ctx context.Context, fileRef string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	jobID, err := c.submitJob(ctx, fileRef)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstream, "text recognition submit failed", err)
	}

	logger.Info("OCR job submitted",
		zap.String("job_id", jobID),
		zap.String("file_ref", fileRef),
	)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", apperr.Wrap(apperr.KindUpstream, "text recognition timed out", ctx.Err())
		case <-ticker.C:
		}

		status, err := c.jobStatus(ctx, jobID)
		if err != nil {
			return "", apperr.Wrap(apperr.KindUpstream, "text recognition status failed", err)
		}

		switch status.State {
		case jobStatePending, jobStateRunning:
			continue
		case jobStateFailed:
			return "", apperr.Newf(apperr.KindUpstream, "text recognition failed: %s", status.Error)
		case jobStateDone:
			if strings.TrimSpace(status.Text) == "" {
				return "", apperr.New(apperr.KindEmptyDocument, "no text recognized in document")
			}
			logger.Info("OCR job completed",
				zap.String("job_id", jobID),
				zap.Int("chars", len(status.Text)),
			)
			return status.Text, nil
		default:
			return "", apperr.Newf(apperr.KindUpstream, "text recognition returned unknown state: %s", status.State)
		}
	}
}

func (c *Client) submitJob(ctx context.Context, fileRef string) (string, error) {
	body, err := json.Marshal(jobRequest{FileRef: fileRef})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var jobID string
	err = c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/recognize", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
			req.Header.Set("Content-Type", "application/json")

			var resp jobResponse
			if err := c.doJSON(req, &resp); err != nil {
				return err
			}
			if resp.JobID == "" {
				return fmt.Errorf("recognition engine returned no job id")
			}

			jobID = resp.JobID
			return nil
		})
	})

	return jobID, err
}

func (c *Client) jobStatus(ctx context.Context, jobID string) (*jobStatusResponse, error) {
	var status jobStatusResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/recognize/%s", c.endpoint, jobID), nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+c.apiKey)

			return c.doJSON(req, &status)
		})
	})
	if err != nil {
		return nil, err
	}

	return &status, nil
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("recognition engine returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
