package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tagworks/tagworks-api/internal/config"
	"github.com/tagworks/tagworks-api/internal/platform/logger"
)

// HTTPWorkQueue submits tasks to a push work queue over HTTP. Each
// submission carries a signed identity token for the task's target URL,
// which the queue forwards to the worker when it delivers the task.
type HTTPWorkQueue struct {
	client     *http.Client
	enqueueURL string
	signer     *IdentitySigner
	logger     *slog.Logger
}

// Ensure HTTPWorkQueue implements WorkQueue interface
var _ WorkQueue = (*HTTPWorkQueue)(nil)

// NewHTTPWorkQueue creates a work queue client from the queue settings.
func NewHTTPWorkQueue(cfg config.QueueConfig, signer *IdentitySigner, log *slog.Logger) *HTTPWorkQueue {
	if signer == nil {
		panic("signer cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &HTTPWorkQueue{
		client: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
		enqueueURL: cfg.EnqueueURL,
		signer:     signer,
		logger:     log.With(slog.String("component", "work_queue")),
	}
}

// Enqueue implements WorkQueue.Enqueue. A 409 from the queue means a task
// with the same name already exists; the earlier submission won and the
// dispatch is treated as accepted.
func (q *HTTPWorkQueue) Enqueue(ctx context.Context, d Dispatch) error {
	log := logger.FromContextOrDefault(ctx, q.logger)

	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch: %w", err)
	}

	token, err := q.signer.Sign(d.TargetURL)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.enqueueURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build enqueue request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := q.client.Do(req)
	if err != nil {
		log.Warn("enqueue call failed",
			slog.String("error", err.Error()),
			slog.String("task_id", d.TaskID.String()))
		return fmt.Errorf("%w: %v", ErrDispatchRejected, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		// Duplicate task name, already queued.
		log.Debug("dispatch already queued",
			slog.String("task_id", d.TaskID.String()))
		return nil
	default:
		log.Warn("enqueue rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("task_id", d.TaskID.String()))
		return fmt.Errorf("%w: status %d", ErrDispatchRejected, resp.StatusCode)
	}
}
