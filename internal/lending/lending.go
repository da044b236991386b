// Package lending implements the item use cases on top of an item store: it
// runs the lifecycle rules of package model and persists their results as
// explicit patches.
package lending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// ErrNotFound is returned when an item does not exist.
var ErrNotFound = errors.New("item not found")

// ErrUnknownFilter is returned by List for an unrecognised status filter.
var ErrUnknownFilter = errors.New("unknown status filter")

// FilterOverdue selects issued items past their expected return date.
const FilterOverdue = "overdue"

// Service runs item operations against a store. Now defaults to time.Now.
type Service struct {
	Items store.ItemStore
	Log   store.LoanLog
	Now   func() time.Time
}

// New returns a service on a storage backend.
func New(backend store.Backend) *Service {
	return &Service{Items: backend, Log: backend, Now: time.Now}
}

// Time returns the current time of the service clock.
func (s *Service) Time() time.Time {
	return s.now()
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// List returns items matching filter: "" for all, a status name, or
// "overdue". Items keep store order.
func (s *Service) List(ctx context.Context, filter string) ([]model.Item, error) {
	items, err := s.Items.List(ctx)
	if err != nil {
		return nil, err
	}

	filter = strings.TrimSpace(filter)
	switch {
	case filter == "":
		return items, nil
	case strings.EqualFold(filter, FilterOverdue):
		return model.FilterOverdue(items, s.now()), nil
	}

	status, ok := model.ParseStatus(filter)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, filter)
	}
	return model.FilterByStatus(items, status), nil
}

// Get returns an item by ID.
func (s *Service) Get(ctx context.Context, id string) (model.Item, error) {
	item, err := s.Items.Get(ctx, id)
	if err != nil {
		return model.Item{}, err
	}
	if item == nil {
		return model.Item{}, ErrNotFound
	}
	return *item, nil
}

// Stats returns the dashboard counters over all items.
func (s *Service) Stats(ctx context.Context) (model.Stats, error) {
	items, err := s.Items.List(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	return model.DeriveStats(items, s.now()), nil
}

// Create validates and adds a new item. A zero DateAdded means today.
func (s *Service) Create(ctx context.Context, in model.ItemInput, by string) (model.Item, error) {
	existing, err := s.Items.List(ctx)
	if err != nil {
		return model.Item{}, err
	}

	now := s.now()
	if in.DateAdded.IsZero() {
		in.DateAdded = now
	}
	in.ID = ""

	item, err := model.ValidateItem(in, existing, now)
	if err != nil {
		return model.Item{}, err
	}

	id, err := s.Items.Add(ctx, item)
	if errors.Is(err, store.ErrDuplicateCode) {
		return model.Item{}, model.CodeTakenError()
	}
	if err != nil {
		return model.Item{}, err
	}
	item.ID = id

	slog.Info("item added", "user", by, "item", id, "code", item.ItemCode)
	return item, nil
}

// Edit applies an edit form to an existing item.
func (s *Service) Edit(ctx context.Context, id string, in model.ItemInput, by string) (model.Item, error) {
	current, existing, err := s.load(ctx, id)
	if err != nil {
		return model.Item{}, err
	}

	updated, err := model.Edit(current, in, existing, s.now())
	if err != nil {
		return model.Item{}, err
	}
	if err := s.update(ctx, current, updated); err != nil {
		return model.Item{}, err
	}

	slog.Info("item updated", "user", by, "item", id)
	return updated, nil
}

// SetImage replaces an item's image reference.
func (s *Service) SetImage(ctx context.Context, id, imageURL, by string) (model.Item, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return model.Item{}, err
	}
	if !model.IsImageRef(imageURL) {
		return model.Item{}, &model.ValidationError{Fields: []model.FieldError{{
			Field: "imageUrl", Rule: model.RuleImageURL, Message: "Must be a valid URL or data URI",
		}}}
	}

	updated := current
	updated.ImageURL = imageURL
	if err := s.update(ctx, current, updated); err != nil {
		return model.Item{}, err
	}

	slog.Info("item image updated", "user", by, "item", id)
	return updated, nil
}

// Issue lends an available item and records the loan in the history.
func (s *Service) Issue(ctx context.Context, id string, loan model.Loan, by string) (model.Item, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return model.Item{}, err
	}

	updated, err := model.Issue(current, loan)
	if err != nil {
		return model.Item{}, err
	}
	if err := s.update(ctx, current, updated); err != nil {
		return model.Item{}, err
	}

	s.record(ctx, model.LoanEvent{
		ItemID:             updated.ID,
		ItemName:           updated.Name,
		ItemCode:           updated.ItemCode,
		Kind:               model.LoanEventIssued,
		RecipientName:      updated.RecipientName,
		RecipientMobile:    updated.RecipientMobile,
		IssuerName:         updated.IssuerName,
		IssueDate:          updated.IssueDate,
		ExpectedReturnDate: updated.ExpectedReturnDate,
		RecordedBy:         by,
	})

	slog.Info("item issued", "user", by, "item", id, "recipient", updated.RecipientName)
	return updated, nil
}

// Return ends the loan of an issued item and records it in the history.
func (s *Service) Return(ctx context.Context, id string, info model.ReturnInfo, by string) (model.Item, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return model.Item{}, err
	}

	updated, err := model.Return(current, info)
	if err != nil {
		return model.Item{}, err
	}
	if err := s.update(ctx, current, updated); err != nil {
		return model.Item{}, err
	}

	s.record(ctx, model.LoanEvent{
		ItemID:        updated.ID,
		ItemName:      updated.Name,
		ItemCode:      updated.ItemCode,
		Kind:          model.LoanEventReturned,
		RecipientName: updated.RecipientName,
		IssuerName:    updated.IssuerName,
		CollectedBy:   updated.CollectedBy,
		IssueDate:     updated.IssueDate,
		ReturnDate:    updated.ActualReturnDate,
		RecordedBy:    by,
	})

	slog.Info("item returned", "user", by, "item", id, "collected_by", updated.CollectedBy)
	return updated, nil
}

// Delete removes an item. Its loan history is kept.
func (s *Service) Delete(ctx context.Context, id, by string) error {
	err := s.Items.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	slog.Info("item deleted", "user", by, "item", id)
	return nil
}

// History returns the loan events of an item, newest first. Events of
// deleted items are still returned.
func (s *Service) History(ctx context.Context, id string) ([]model.LoanEvent, error) {
	return s.Log.ItemHistory(ctx, id)
}

func (s *Service) load(ctx context.Context, id string) (model.Item, []model.Item, error) {
	existing, err := s.Items.List(ctx)
	if err != nil {
		return model.Item{}, nil, err
	}
	for _, it := range existing {
		if it.ID == id {
			return it, existing, nil
		}
	}
	return model.Item{}, nil, ErrNotFound
}

func (s *Service) update(ctx context.Context, current, updated model.Item) error {
	patch := model.Diff(current, updated)
	if patch.Empty() {
		return nil
	}
	if patch.Status != nil {
		from := current.Status
		patch.IfStatus = &from
	}

	err := s.Items.Update(ctx, current.ID, patch)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrDuplicateCode):
		return model.CodeTakenError()
	case errors.Is(err, store.ErrStatusChanged):
		return s.transitionLost(ctx, current.ID, updated.Status)
	}
	return err
}

// transitionLost reports a status change that another request got to first.
func (s *Service) transitionLost(ctx context.Context, id string, to model.Status) error {
	now, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return &model.TransitionError{From: now.Status, To: to}
}

// record writes a loan event. The item update has already succeeded, so a
// failure here is logged rather than returned.
func (s *Service) record(ctx context.Context, ev model.LoanEvent) {
	if s.Log == nil {
		return
	}
	ev.RecordedAt = s.now()
	if err := s.Log.RecordLoanEvent(ctx, ev); err != nil {
		slog.Error("failed to record loan event", "item", ev.ItemID, "kind", ev.Kind, "error", err)
	}
}
