package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/logging"
	"github.com/dmitrijs2005/receiptpipe/internal/server/repositories/repomanager"
)

// defaultPollInterval is how often a blocking Dequeue re-checks the queue.
const defaultPollInterval = 250 * time.Millisecond

// QueueService exposes the work queue to its two audiences: the AI worker
// (blocking Dequeue) and operators (peek, pull, length, clear, list). The
// queue is logically FIFO: entries come out in the order admission pushed
// them, even though Peek inspects the newest end.
type QueueService struct {
	manager      repomanager.RepositoryManager
	queueName    string
	pollInterval time.Duration
	logger       logging.Logger
}

// NewQueueService constructs the queue service for the named queue.
func NewQueueService(manager repomanager.RepositoryManager, queueName string, logger logging.Logger) *QueueService {
	return &QueueService{
		manager:      manager,
		queueName:    queueName,
		pollInterval: defaultPollInterval,
		logger:       logger.With("module", "queue_service"),
	}
}

// Dequeue removes and returns the oldest entry, waiting up to timeout for
// one to appear. Returns (nil, nil) when the wait expires with the queue
// still empty; it never blocks indefinitely. Cancelling ctx aborts the wait.
func (s *QueueService) Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error) {
	repo := s.manager.Queue(s.manager.Conn())
	deadline := time.Now().Add(timeout)

	for {
		payload, err := repo.PopOldest(ctx, s.queueName)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			return payload, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		wait := s.pollInterval
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Pull removes and returns the oldest entry without waiting, (nil, nil) when
// the queue is empty. Operational tool, distinct from the worker's Dequeue.
func (s *QueueService) Pull(ctx context.Context) ([]byte, error) {
	return s.manager.Queue(s.manager.Conn()).PopOldest(ctx, s.queueName)
}

// Peek returns the most recently enqueued entry without consuming it.
func (s *QueueService) Peek(ctx context.Context) ([]byte, error) {
	return s.manager.Queue(s.manager.Conn()).PeekNewest(ctx, s.queueName)
}

// List returns every pending entry, newest first, decoded for display.
// Entries that fail to parse are wrapped as {"raw": ...} rather than
// breaking the whole listing.
func (s *QueueService) List(ctx context.Context) ([]any, error) {
	payloads, err := s.manager.Queue(s.manager.Conn()).List(ctx, s.queueName)
	if err != nil {
		return nil, err
	}

	entries := make([]any, 0, len(payloads))
	for _, p := range payloads {
		var entry map[string]any
		if err := json.Unmarshal(p, &entry); err != nil {
			entries = append(entries, map[string]any{"raw": string(p)})
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Length returns the number of pending entries.
func (s *QueueService) Length(ctx context.Context) (int64, error) {
	return s.manager.Queue(s.manager.Conn()).Length(ctx, s.queueName)
}

// Clear drops all pending entries and reports how many were removed.
// Unprocessed work is lost; callers are expected to know what they are doing.
func (s *QueueService) Clear(ctx context.Context) (int64, error) {
	n, err := s.manager.Queue(s.manager.Conn()).Clear(ctx, s.queueName)
	if err != nil {
		return 0, err
	}
	s.logger.Warn(ctx, "cleared work queue", "queue", s.queueName, "removed", n)
	return n, nil
}
