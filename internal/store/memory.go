package store

import (
	"context"
	"sort"
	"sync"

	"github.com/erazemk/izposoja/internal/model"
)

// Memory keeps items in process memory. It is used in tests and for
// throwaway demo instances.
type Memory struct {
	mu     sync.RWMutex
	items  map[string]model.Item
	events []model.LoanEvent
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]model.Item)}
}

// List returns all items ordered by name.
func (m *Memory) List(ctx context.Context) ([]model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]model.Item, 0, len(m.items))
	for _, it := range m.items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// Get returns an item by ID.
func (m *Memory) Get(ctx context.Context, id string) (*model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

// Add stores a new item.
func (m *Memory) Add(ctx context.Context, item model.Item) (string, error) {
	id, err := newID()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.codeTakenLocked(item.ItemCode, "") {
		return "", ErrDuplicateCode
	}
	item.ID = id
	m.items[id] = item
	return id, nil
}

// Update applies a patch to a stored item.
func (m *Memory) Update(ctx context.Context, id string, patch model.ItemPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	if patch.IfStatus != nil && it.Status != *patch.IfStatus {
		return ErrStatusChanged
	}
	if patch.ItemCode != nil && m.codeTakenLocked(*patch.ItemCode, id) {
		return ErrDuplicateCode
	}
	m.items[id] = patch.Apply(it)
	return nil
}

// Delete removes an item.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// RecordLoanEvent appends an event to the loan history.
func (m *Memory) RecordLoanEvent(ctx context.Context, ev model.LoanEvent) error {
	ev, err := prepareEvent(ev)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// ItemHistory returns the loan events of an item, newest first.
func (m *Memory) ItemHistory(ctx context.Context, itemID string) ([]model.LoanEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := []model.LoanEvent{}
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].ItemID == itemID {
			events = append(events, m.events[i])
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].RecordedAt.After(events[j].RecordedAt)
	})
	return events, nil
}

func (m *Memory) codeTakenLocked(code, selfID string) bool {
	for id, it := range m.items {
		if id != selfID && it.ItemCode == code {
			return true
		}
	}
	return false
}
