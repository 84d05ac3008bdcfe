package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// IdempotencyStore records which event IDs have already been processed so
// redelivered messages can be skipped.
type IdempotencyStore interface {
	// Contains reports whether the event ID has been seen.
	Contains(ctx context.Context, eventID string) (bool, error)
	// Add marks the event ID as processed.
	Add(ctx context.Context, eventID string) error
}

// MemoryIdempotencyStore is an in-memory IdempotencyStore with TTL-based
// expiry. Entries are purged lazily on access.
type MemoryIdempotencyStore struct {
	mu   sync.RWMutex
	seen map[string]time.Time
	ttl  time.Duration
}

// NewMemoryIdempotencyStore creates a store whose entries expire after ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// Contains reports whether the event ID is present and not expired.
func (s *MemoryIdempotencyStore) Contains(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	addedAt, ok := s.seen[eventID]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Since(addedAt) > s.ttl {
		s.mu.Lock()
		delete(s.seen, eventID)
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Add marks the event ID as processed and purges any expired entries.
func (s *MemoryIdempotencyStore) Add(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, addedAt := range s.seen {
		if now.Sub(addedAt) > s.ttl {
			delete(s.seen, id)
		}
	}
	s.seen[eventID] = now
	return nil
}

// Len returns the number of tracked event IDs, including any not yet purged.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// IdempotentHandler wraps a handler so each event ID is processed at most
// once. Events without an ID pass straight through. If the store itself
// fails the event is processed anyway; duplicate work is preferable to
// dropped work. topic and group label the duplicate-skip metric.
func IdempotentHandler(store IdempotencyStore, topic, group string, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		if event.EventID == "" {
			return inner(ctx, event)
		}

		seen, err := store.Contains(ctx, event.EventID)
		if err != nil {
			logger.WarnContext(ctx, "idempotency check failed, processing anyway",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
			return inner(ctx, event)
		}
		if seen {
			ConsumerMessagesDuplicate.WithLabelValues(topic, group).Inc()
			logger.InfoContext(ctx, "skipping duplicate event",
				slog.String("event_id", event.EventID),
				slog.String("event_type", event.EventType),
			)
			return nil
		}

		if err := inner(ctx, event); err != nil {
			return err
		}

		if err := store.Add(ctx, event.EventID); err != nil {
			logger.WarnContext(ctx, "failed to record processed event",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
}
