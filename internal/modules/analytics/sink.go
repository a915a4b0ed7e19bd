// Package analytics records game events off the hot path.
//
// Track never blocks: events go into a bounded queue and, when the queue is
// full, the event is dropped and counted. A single worker drains the queue in
// batches into the event repository.
package analytics

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/Hollow93/social-casino/internal/modules/analytics/domain"
	"github.com/Hollow93/social-casino/pkg/logger"
)

// Sink implements service.EventSink
type Sink struct {
	queue         chan domain.GameEvent
	repo          domain.EventRepository
	batchSize     int
	flushInterval time.Duration

	dropped atomic.Uint64
	written atomic.Uint64
	now     func() time.Time
}

// NewSink creates a sink; call Run to start the worker
func NewSink(repo domain.EventRepository, queueSize, batchSize int, flushInterval time.Duration) *Sink {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Sink{
		queue:         make(chan domain.GameEvent, queueSize),
		repo:          repo,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		now:           time.Now,
	}
}

// Track enqueues an event. userID 0 means no user.
func (s *Sink) Track(ctx context.Context, eventType string, userID int64, payload map[string]interface{}, source string) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warn(ctx).Err(err).Str("event_type", eventType).Msg("Dropping analytics event with bad payload")
		s.dropped.Add(1)
		return
	}

	ev := domain.GameEvent{
		EventType: eventType,
		Payload:   string(data),
		Source:    source,
		CreatedAt: s.now(),
	}
	if userID != 0 {
		uid := userID
		ev.UserID = &uid
	}

	select {
	case s.queue <- ev:
	default:
		if n := s.dropped.Add(1); n&(n-1) == 0 {
			// log on powers of two to avoid flooding
			logger.Warn(ctx).Uint64("dropped_total", n).Msg("Analytics queue full, dropping events")
		}
	}
}

// Dropped is the number of events discarded so far
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Written is the number of events persisted so far
func (s *Sink) Written() uint64 {
	return s.written.Load()
}

// Run drains the queue until ctx is done, then flushes what is left
func (s *Sink) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.GameEvent, 0, s.batchSize)
	for {
		select {
		case ev := <-s.queue:
			batch = append(batch, ev)
			if len(batch) >= s.batchSize {
				batch = s.flush(batch)
			}
		case <-ticker.C:
			batch = s.flush(batch)
		case <-ctx.Done():
			s.drain(batch)
			return nil
		}
	}
}

func (s *Sink) drain(batch []domain.GameEvent) {
	for {
		select {
		case ev := <-s.queue:
			batch = append(batch, ev)
			if len(batch) >= s.batchSize {
				batch = s.flush(batch)
			}
		default:
			s.flush(batch)
			return
		}
	}
}

// flush writes the batch and returns it emptied. Failures are logged and the batch is discarded.
func (s *Sink) flush(batch []domain.GameEvent) []domain.GameEvent {
	if len(batch) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.repo.InsertBatch(ctx, batch); err != nil {
		s.dropped.Add(uint64(len(batch)))
		logger.Error(ctx).Err(err).Int("batch", len(batch)).Msg("Failed to write analytics batch")
	} else {
		s.written.Add(uint64(len(batch)))
	}
	return batch[:0]
}
