package reviewqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/snditnz/verbumcare-demo-sub002/internal/storage/sqlite"
	"github.com/snditnz/verbumcare-demo-sub002/pkg/logger"
)

// UrgentAge is how old a pending item must be to be flagged urgent
const UrgentAge = 24 * time.Hour

// ItemSource is the storage surface the queue store reads from
type ItemSource interface {
	GetReviewItemsByUser(userID string) ([]*sqlite.ReviewItemRecord, error)
}

// Item is a review-queue entry with its display urgency. Urgency is computed
// from created_at at query time, never stored, since "now" moves.
type Item struct {
	*sqlite.ReviewItemRecord
	Urgent bool `json:"urgent"`
}

// Store holds per-user review-queue snapshots. A load fully replaces the
// user's snapshot; readers never observe a half-updated list. A failed load
// leaves the previous snapshot intact.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string][]*sqlite.ReviewItemRecord

	flightMu sync.Mutex
	flights  map[string]*flight

	source ItemSource
	logger *logger.Logger
}

// flight tracks an in-progress load so concurrent refreshes for the same
// user share one storage read
type flight struct {
	done chan struct{}
	err  error
}

// NewStore creates a new review-queue store
func NewStore(source ItemSource, log *logger.Logger) *Store {
	return &Store{
		snapshots: make(map[string][]*sqlite.ReviewItemRecord),
		flights:   make(map[string]*flight),
		source:    source,
		logger:    log.Named("review-queue"),
	}
}

// Load refreshes the user's snapshot from storage. Safe to call repeatedly;
// each successful call replaces the snapshot wholesale. Concurrent calls for
// the same user coalesce into a single storage read.
func (s *Store) Load(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	s.flightMu.Lock()
	if f, ok := s.flights[userID]; ok {
		// A load for this user is already in progress; wait for it
		s.flightMu.Unlock()
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f := &flight{done: make(chan struct{})}
	s.flights[userID] = f
	s.flightMu.Unlock()

	f.err = s.doLoad(userID)
	close(f.done)

	s.flightMu.Lock()
	delete(s.flights, userID)
	s.flightMu.Unlock()

	return f.err
}

// doLoad reads the queue from storage and swaps the snapshot in
func (s *Store) doLoad(userID string) error {
	items, err := s.source.GetReviewItemsByUser(userID)
	if err != nil {
		// Previous snapshot stays visible
		s.logger.Error("Queue load failed, keeping previous snapshot",
			logger.String("user_id", userID),
			logger.Error(err))
		return fmt.Errorf("failed to load review queue: %w", err)
	}

	s.mu.Lock()
	s.snapshots[userID] = items
	s.mu.Unlock()

	s.logger.Debug("Queue snapshot replaced",
		logger.String("user_id", userID),
		logger.Int("items", len(items)))

	return nil
}

// Items returns the user's pending items, newest first, with urgency
// computed against now
func (s *Store) Items(userID string, now time.Time) []Item {
	s.mu.RLock()
	snapshot := s.snapshots[userID]
	s.mu.RUnlock()

	items := make([]Item, 0, len(snapshot))
	for _, record := range snapshot {
		if record.Status != sqlite.ReviewStatusPending {
			continue
		}
		items = append(items, Item{
			ReviewItemRecord: record,
			Urgent:           IsUrgent(record, now),
		})
	}
	return items
}

// Count returns the number of pending items in the user's snapshot. It walks
// the snapshot on every call; nothing is cached that could go stale.
func (s *Store) Count(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, record := range s.snapshots[userID] {
		if record.Status == sqlite.ReviewStatusPending {
			count++
		}
	}
	return count
}

// IsUrgent reports whether a pending item is old enough to highlight
func IsUrgent(record *sqlite.ReviewItemRecord, now time.Time) bool {
	if record.Status != sqlite.ReviewStatusPending {
		return false
	}
	return now.Sub(record.CreatedAt) > UrgentAge
}
