// internal/store/memory.go
package store

import (
	"context"
	"sync"
	"time"

	"github.com/jason-s-yu/shadow-signal/internal/models"
)

// MemoryStore keeps rooms in process memory. Expired rooms are treated as missing and are
// dropped by Sweep.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*models.Room),
		now:   time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, code string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Expired(s.now()) {
		delete(s.rooms, code)
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.Code] = room.Clone()
	return nil
}

func (s *MemoryStore) Create(_ context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[room.Code]; ok && !r.Expired(s.now()) {
		return ErrExists
	}
	s.rooms[room.Code] = room.Clone()
	return nil
}

// Sweep removes every expired room and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for code, r := range s.rooms {
		if r.Expired(now) {
			delete(s.rooms, code)
			n++
		}
	}
	return n
}

// Len returns the number of rooms held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}
