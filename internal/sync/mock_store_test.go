package sync

import (
	"context"
	"errors"
	"sync"

	"github.com/alfredjeanlab/feedpulse/internal/model"
	"github.com/alfredjeanlab/feedpulse/internal/store"
)

// mockStore is a minimal in-memory archive for export tests.
type mockStore struct {
	mu      sync.Mutex
	events  []model.Event
	listErr error
}

var _ store.Store = (*mockStore)(nil)

func newMockStore(events ...model.Event) *mockStore {
	return &mockStore{events: events}
}

func (m *mockStore) RecordEvent(_ context.Context, ev model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == ev.ID {
			return nil
		}
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockStore) GetEvent(_ context.Context, id string) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			return e, nil
		}
	}
	return model.Event{}, store.ErrNotFound
}

func (m *mockStore) ListProjectEvents(_ context.Context, projectID string, limit int) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Event{}
	for _, e := range m.events {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *mockStore) ListAllEvents(context.Context) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]model.Event(nil), m.events...), nil
}

func (m *mockStore) Close() error { return nil }

var errStoreDown = errors.New("store down")
