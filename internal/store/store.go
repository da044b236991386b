package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/izposoja/internal/model"
)

// ErrNotFound is returned by Update and Delete when no item has the given ID.
var ErrNotFound = errors.New("item not found")

// ErrDuplicateCode is returned when an add or update would give two items the
// same item code.
var ErrDuplicateCode = errors.New("item code already in use")

// ErrStatusChanged is returned by Update when the patch's IfStatus no longer
// matches the stored status.
var ErrStatusChanged = errors.New("item status changed")

// ItemStore persists items. Implementations are safe for concurrent use and
// return items ordered by name.
type ItemStore interface {
	// List returns all items.
	List(ctx context.Context) ([]model.Item, error)
	// Get returns the item with the given ID, or nil if there is none.
	Get(ctx context.Context, id string) (*model.Item, error)
	// Add stores a new item and returns its assigned ID. item.ID is ignored.
	Add(ctx context.Context, item model.Item) (string, error)
	// Update applies the patch to the item with the given ID. If
	// patch.IfStatus is set and differs from the stored status, nothing is
	// written and ErrStatusChanged is returned.
	Update(ctx context.Context, id string, patch model.ItemPatch) error
	// Delete removes the item with the given ID.
	Delete(ctx context.Context, id string) error
}

// LoanLog keeps the issue and return history of items.
type LoanLog interface {
	// RecordLoanEvent appends an event. ID and RecordedAt are filled in when empty.
	RecordLoanEvent(ctx context.Context, ev model.LoanEvent) error
	// ItemHistory returns the events of one item, newest first.
	ItemHistory(ctx context.Context, itemID string) ([]model.LoanEvent, error)
}

// Backend is a complete item storage backend.
type Backend interface {
	ItemStore
	LoanLog
}

// Backend names accepted by the store.backend setting.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

// newID returns a time-ordered UUID.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return id.String(), nil
}
