package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. It backs tests and
// database-less runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.Code]; ok {
		return ErrCodeTaken
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	m.sessions[s.Code] = clone(s)
	return nil
}

func (m *MemoryStore) GetByCode(_ context.Context, code string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[code]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *MemoryStore) List(_ context.Context, filter Filter) ([]*Session, error) {
	m.mu.RLock()
	var out []*Session
	for _, s := range m.sessions {
		if filter.AssessmentType != "" && s.AssessmentType != filter.AssessmentType {
			continue
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		out = append(out, clone(s))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (m *MemoryStore) Update(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.Code]; !ok {
		return ErrNotFound
	}
	s.UpdatedAt = time.Now().UTC()
	m.sessions[s.Code] = clone(s)
	return nil
}

func (m *MemoryStore) ListUnfinalized(_ context.Context, limit, offset int) ([]*Session, error) {
	m.mu.RLock()
	var out []*Session
	for _, s := range m.sessions {
		if s.Status == StatusCompleted && s.FinalizedAt == nil {
			out = append(out, clone(s))
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ci, cj := completedAt(out[i]), completedAt(out[j])
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return out[i].Code < out[j].Code
	})
	return paginate(out, limit, offset), nil
}

func (m *MemoryStore) MarkFinalized(_ context.Context, code string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[code]
	if !ok {
		return ErrNotFound
	}
	t := at.UTC()
	s.FinalizedAt = &t
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func completedAt(s *Session) time.Time {
	if s.CompletedAt == nil {
		return time.Time{}
	}
	return *s.CompletedAt
}

func paginate(list []*Session, limit, offset int) []*Session {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return nil
	}
	list = list[offset:]
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}
