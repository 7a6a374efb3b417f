package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/m3rciful/newsbot/news/model"
)

// MemoryStore is a process-local Repository used by the "memory" database driver and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	users   []model.User
	topics  []model.TopicPreference
	queries []model.UserQuery

	// failWith, when set, is returned by every call.
	failWith error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FailWith makes subsequent calls return err; nil restores normal operation.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	m.failWith = err
	m.mu.Unlock()
}

func (m *MemoryStore) CreateUser(_ context.Context, externalID, name string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return model.User{}, m.failWith
	}
	for _, u := range m.users {
		if u.ExternalID == externalID {
			return model.User{}, ErrConstraint
		}
	}
	u := model.User{ID: uuid.New(), ExternalID: externalID, Name: name}
	m.users = append(m.users, u)
	return u, nil
}

func (m *MemoryStore) UserByExternalID(_ context.Context, externalID string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return model.User{}, m.failWith
	}
	for _, u := range m.users {
		if u.ExternalID == externalID {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (m *MemoryStore) UpdateUserName(_ context.Context, userID uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for i := range m.users {
		if m.users[i].ID == userID {
			m.users[i].Name = name
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) CreateTopic(_ context.Context, t model.TopicPreference) (model.TopicPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return model.TopicPreference{}, m.failWith
	}
	for _, existing := range m.topics {
		if existing.UserID == t.UserID && existing.TopicName == t.TopicName {
			return model.TopicPreference{}, ErrConstraint
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CountryCode == "" {
		t.CountryCode = model.DefaultCountry
	}
	m.topics = append(m.topics, t)
	return t, nil
}

func (m *MemoryStore) ListTopics(_ context.Context, userID uuid.UUID) ([]model.TopicPreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []model.TopicPreference
	for _, t := range m.topics {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStore) Topic(_ context.Context, userID, topicID uuid.UUID) (model.TopicPreference, error) {
	return m.findTopic(func(t model.TopicPreference) bool { return t.UserID == userID && t.ID == topicID })
}

func (m *MemoryStore) TopicByHash(_ context.Context, userID uuid.UUID, hash string) (model.TopicPreference, error) {
	return m.findTopic(func(t model.TopicPreference) bool { return t.UserID == userID && t.TopicHash == hash })
}

func (m *MemoryStore) findTopic(match func(model.TopicPreference) bool) (model.TopicPreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return model.TopicPreference{}, m.failWith
	}
	for _, t := range m.topics {
		if match(t) {
			return t, nil
		}
	}
	return model.TopicPreference{}, ErrNotFound
}

func (m *MemoryStore) TopicNameExists(_ context.Context, userID uuid.UUID, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	for _, t := range m.topics {
		if t.UserID == userID && t.TopicName == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) DeleteTopic(_ context.Context, userID, topicID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for i, t := range m.topics {
		if t.UserID == userID && t.ID == topicID {
			m.topics = append(m.topics[:i], m.topics[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) ClearTopics(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	kept := m.topics[:0]
	var n int64
	for _, t := range m.topics {
		if t.UserID == userID {
			n++
			continue
		}
		kept = append(kept, t)
	}
	m.topics = kept
	return n, nil
}

func (m *MemoryStore) CreateQuery(_ context.Context, userID uuid.UUID, query string) (model.UserQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return model.UserQuery{}, m.failWith
	}
	q := model.UserQuery{ID: uuid.New(), UserID: userID, Query: query}
	m.queries = append(m.queries, q)
	return q, nil
}

func (m *MemoryStore) ListQueries(_ context.Context, userID uuid.UUID) ([]model.UserQuery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []model.UserQuery
	for _, q := range m.queries {
		if q.UserID == userID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *MemoryStore) Query(_ context.Context, userID, queryID uuid.UUID) (model.UserQuery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failWith != nil {
		return model.UserQuery{}, m.failWith
	}
	for _, q := range m.queries {
		if q.UserID == userID && q.ID == queryID {
			return q, nil
		}
	}
	return model.UserQuery{}, ErrNotFound
}

func (m *MemoryStore) DeleteQuery(_ context.Context, userID, queryID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for i, q := range m.queries {
		if q.UserID == userID && q.ID == queryID {
			m.queries = append(m.queries[:i], m.queries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) ClearQueries(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	kept := m.queries[:0]
	var n int64
	for _, q := range m.queries {
		if q.UserID == userID {
			n++
			continue
		}
		kept = append(kept, q)
	}
	m.queries = kept
	return n, nil
}

var (
	_ Repository = (*MemoryStore)(nil)
	_ Repository = (*SQLStore)(nil)
)
