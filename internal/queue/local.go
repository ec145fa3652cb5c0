package queue

import (
	"context"
	"sync"

	"submission-backend/internal/shared/telemetry"
)

// Handler consumes one job.
type Handler func(ctx context.Context, msg Message) error

// LocalClient runs jobs in-process on background goroutines. It stands in
// for SQS when no queue URL is configured.
type LocalClient struct {
	mu      sync.RWMutex
	handler Handler
	wg      sync.WaitGroup
}

// NewLocalClient returns a client with no handler bound yet.
func NewLocalClient() *LocalClient {
	return &LocalClient{}
}

// Bind sets the handler. Jobs sent before Bind fail with ErrNotConfigured.
func (l *LocalClient) Bind(h Handler) {
	l.mu.Lock()
	l.handler = h
	l.mu.Unlock()
}

// Send starts the job and returns immediately. The job runs detached from
// the caller's context so it outlives the request that enqueued it.
func (l *LocalClient) Send(_ context.Context, msg Message) error {
	l.mu.RLock()
	h := l.handler
	l.mu.RUnlock()
	if h == nil {
		return ErrNotConfigured
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := h(context.Background(), msg); err != nil {
			telemetry.Error("queue.local.job_failed", map[string]any{
				"type":          msg.Type,
				"submission_id": msg.SubmissionID,
				"request_id":    msg.RequestID,
				"error":         err.Error(),
			})
		}
	}()
	return nil
}

// Wait blocks until every job started so far has finished.
func (l *LocalClient) Wait() {
	l.wg.Wait()
}

var _ Client = (*LocalClient)(nil)
