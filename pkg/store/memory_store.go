package store

import (
	"sort"
	"sync"

	"sentimentai/pkg/domain"
)

// MemoryStore keeps users and results in-process (single instance only).
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]domain.User // key: user ID
	email   map[string]string      // email -> user ID
	results []domain.SentimentResult
	nextID  uint
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]domain.User),
		email: make(map[string]string),
	}
}

// CreateUser stores a new user; a duplicate email yields ErrEmailExists.
func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.email[u.Email]; ok {
		return ErrEmailExists
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// SaveResult appends a result and assigns the next ID.
func (m *MemoryStore) SaveResult(r *domain.SentimentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	m.results = append(m.results, cloneResult(*r))
	return nil
}

// ListResultsByEmail returns one user's results, newest first.
func (m *MemoryStore) ListResultsByEmail(email string) ([]domain.SentimentResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SentimentResult, 0)
	for _, r := range m.results {
		if r.UserEmail == email {
			out = append(out, cloneResult(r))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// RecentResults returns the latest results across users.
func (m *MemoryStore) RecentResults(limit int) ([]domain.SentimentResult, error) {
	if limit <= 0 {
		limit = 5
	}
	m.mu.RLock()
	out := make([]domain.SentimentResult, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, cloneResult(r))
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneResult(r domain.SentimentResult) domain.SentimentResult {
	r.Tokens = append([]string(nil), r.Tokens...)
	r.Vector = append([]float64(nil), r.Vector...)
	return r
}

func sortNewestFirst(rs []domain.SentimentResult) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.After(rs[j].CreatedAt)
		}
		return rs[i].ID > rs[j].ID
	})
}
