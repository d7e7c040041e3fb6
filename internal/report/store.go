package report

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDuplicate is returned when the same violation was stored within the
// dedup window.
var ErrDuplicate = errors.New("duplicate violation report")

// Store persists violation reports.
type Store interface {
	Save(ctx context.Context, v *Violation) error
	Recent(ctx context.Context, limit int) ([]Violation, error)
}

// MemoryStore keeps the most recent reports in a bounded in-process buffer.
type MemoryStore struct {
	mu     sync.Mutex
	size   int
	window time.Duration
	items  []Violation
	seen   map[string]time.Time
	now    func() time.Time
}

func NewMemoryStore(size int, dedupWindow time.Duration) *MemoryStore {
	return &MemoryStore{
		size:   size,
		window: dedupWindow,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, v *Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.seen[v.Fingerprint]; ok && now.Sub(last) < s.window {
		return ErrDuplicate
	}
	s.seen[v.Fingerprint] = now

	s.items = append(s.items, *v)
	if len(s.items) > s.size {
		s.items = s.items[len(s.items)-s.size:]
	}
	if len(s.seen) > 2*s.size {
		for fp, at := range s.seen {
			if now.Sub(at) >= s.window {
				delete(s.seen, fp)
			}
		}
	}
	return nil
}

// Recent returns up to limit reports, newest first.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.items) {
		limit = len(s.items)
	}
	out := make([]Violation, 0, limit)
	for i := len(s.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.items[i])
	}
	return out, nil
}
