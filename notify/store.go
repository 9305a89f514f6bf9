package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/safevoice/safevoice-go/internal/metrics"
)

// ErrUnknownNotification is returned by [Store.MarkRead] for an id that is
// not in the local set.
var ErrUnknownNotification = errors.New("unknown notification")

// Record is a single notification. Records are never deleted locally; they
// are only flagged read or replaced wholesale by a refetch.
type Record struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
	ReportID  int64     `json:"report_id,omitempty"`
}

// Backend is the slice of the REST API the store needs.
type Backend interface {
	Notifications(ctx context.Context) ([]Record, error)
	MarkRead(ctx context.Context, id int64) error
}

// Store reconciles pushed and fetched notifications and tracks read state.
// All methods are safe for concurrent use.
type Store struct {
	backend Backend
	log     *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	records  []Record // newest first
	index    map[int64]int
	degraded bool
}

// NewStore creates an empty store over backend.
func NewStore(backend Backend, log *zap.Logger, m *metrics.Metrics) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		backend: backend,
		log:     log,
		metrics: m,
		index:   make(map[int64]int),
	}
}

// Refetch replaces the full notification set from the backend. The unread
// count is always derived locally from the fetched records. On error the
// previous set is kept.
func (s *Store) Refetch(ctx context.Context) error {
	records, err := s.backend.Notifications(ctx)
	if err != nil {
		return fmt.Errorf("refetch notifications: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.index = make(map[int64]int, len(records))
	for i, rec := range records {
		s.index[rec.ID] = i
	}
	return nil
}

// Ingest inserts a pushed record if its id is unseen and reports whether it
// was inserted. Redelivery after a reconnect is a no-op.
func (s *Store) Ingest(rec Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[rec.ID]; ok {
		s.metrics.Inc(metrics.MetricNotificationsDeduped)
		return false
	}

	s.records = append([]Record{rec}, s.records...)
	s.index = make(map[int64]int, len(s.records))
	for i, r := range s.records {
		s.index[r.ID] = i
	}
	s.metrics.Inc(metrics.MetricNotificationsIngested)
	return true
}

// MarkRead flips the record read optimistically, confirms with the backend,
// and rolls the flip back on failure. A failed confirmation also triggers a
// best-effort refetch so local state converges with the server.
func (s *Store) MarkRead(ctx context.Context, id int64) error {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownNotification
	}
	if s.records[i].IsRead {
		s.mu.Unlock()
		return nil
	}
	s.records[i].IsRead = true
	s.mu.Unlock()

	if err := s.backend.MarkRead(ctx, id); err != nil {
		s.mu.Lock()
		if i, ok := s.index[id]; ok {
			s.records[i].IsRead = false
		}
		s.mu.Unlock()
		if refetchErr := s.Refetch(ctx); refetchErr != nil {
			s.log.Warn("refetch after mark-read failure", zap.Error(refetchErr))
		}
		return fmt.Errorf("mark read %d: %w", id, err)
	}
	return nil
}

// MarkAllRead marks every currently-unread record read, one backend request
// per record, then refetches unconditionally so the set converges even when
// some requests failed. Per-record failures are joined into one error.
func (s *Store) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	unread := make([]int64, 0, len(s.records))
	for _, rec := range s.records {
		if !rec.IsRead {
			unread = append(unread, rec.ID)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, id := range unread {
		if err := s.backend.MarkRead(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("mark read %d: %w", id, err))
		}
	}
	if err := s.Refetch(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Snapshot returns a copy of the records (newest first) and the derived
// unread count.
func (s *Store) Snapshot() ([]Record, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out, s.unreadLocked()
}

// UnreadCount returns the number of records with IsRead == false.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadLocked()
}

func (s *Store) unreadLocked() int {
	n := 0
	for _, rec := range s.records {
		if !rec.IsRead {
			n++
		}
	}
	return n
}

// SetDegraded records whether the push channel has given up. In degraded
// mode the store keeps working through on-demand Refetch only.
func (s *Store) SetDegraded(degraded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.degraded = degraded
}

// Degraded reports whether the push channel has exhausted its retry budget.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Reset drops all local records, typically on logout so no notifications
// leak across subjects.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.index = make(map[int64]int)
	s.degraded = false
}
