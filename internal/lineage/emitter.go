package lineage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Emitter delivers run events to a lineage sink.
type Emitter interface {
	Emit(ctx context.Context, event RunEvent) error
}

// endpointPath is the lineage collection endpoint relative to the base URL.
const endpointPath = "/api/v1/lineage"

// HTTPEmitter posts run events to an OpenLineage-compatible HTTP sink.
// Transient failures (network errors, 5xx) are retried with exponential
// backoff a bounded number of times; client errors are not retried.
type HTTPEmitter struct {
	url        string
	client     *http.Client
	logger     *slog.Logger
	maxRetries uint64
	baseDelay  time.Duration
}

// HTTPEmitterConfig holds emitter configuration.
type HTTPEmitterConfig struct {
	// BaseURL is the sink base URL, e.g. http://marquez:5000.
	BaseURL string
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
	// MaxRetries bounds retry attempts after the first try (default 3).
	MaxRetries uint64
	// BaseDelay is the initial backoff delay (default 250ms).
	BaseDelay time.Duration
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
}

// NewHTTPEmitter creates an emitter for the given sink base URL.
func NewHTTPEmitter(cfg HTTPEmitterConfig) *HTTPEmitter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 250 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &HTTPEmitter{
		url:        strings.TrimSuffix(cfg.BaseURL, "/") + endpointPath,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
	}
}

// Emit posts one event. The returned error is informational: callers treat
// delivery failures as a warning, never as a step failure.
func (e *HTTPEmitter) Emit(ctx context.Context, event RunEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding run event: %w", err)
	}

	backoff := retry.WithMaxRetries(e.maxRetries, retry.NewExponential(e.baseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("sink returned %s", resp.Status))
		default:
			return fmt.Errorf("sink rejected event: %s", resp.Status)
		}
	})
	if err != nil {
		return fmt.Errorf("delivering %s event for %s: %w", event.EventType, event.Job.Name, err)
	}

	e.logger.Debug("lineage event delivered",
		"event_type", event.EventType, "job", event.Job.Name, "run_id", event.Run.RunID)
	return nil
}
