package notes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InmemStore keeps notes in process memory. Expired entries are hidden on
// read and removed by PurgeExpired.
type InmemStore struct {
	mu        sync.RWMutex
	notes     map[string]Note
	retention time.Duration
	now       func() time.Time
}

func NewInmem(retention time.Duration, now func() time.Time) *InmemStore {
	if now == nil {
		now = time.Now
	}
	return &InmemStore{
		notes:     make(map[string]Note),
		retention: retention,
		now:       now,
	}
}

func (s *InmemStore) Create(ctx context.Context, note *Note) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n := *note
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		n.ID = uuid.NewString()
		if _, taken := s.notes[n.ID]; !taken {
			break
		}
	}
	s.notes[n.ID] = n
	return n.ID, nil
}

func (s *InmemStore) FindByID(ctx context.Context, id string) (*Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	n, ok := s.notes[id]
	s.mu.RUnlock()
	if !ok || Expired(n.CreatedAt, s.now(), s.retention) {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (s *InmemStore) PurgeExpired(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, n := range s.notes {
		if Expired(n.CreatedAt, now, s.retention) {
			delete(s.notes, id)
			removed++
		}
	}
	return removed, nil
}

// Len counts stored entries, including expired ones not yet purged.
func (s *InmemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

func (s *InmemStore) Ping(context.Context) error { return nil }

func (s *InmemStore) Close() error { return nil }
