package lending

import (
	"context"
	"errors"
	"log/slog"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// RowError is a rejected import row. Index is the position in the input slice.
type RowError struct {
	Index int
	Err   error
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	Added    []model.Item
	Rejected []RowError
}

// ImportItems validates and adds items one by one. Each row is checked
// against the stored items and the rows added before it, so a file cannot
// introduce duplicate codes. Rejected rows do not stop the import.
func (s *Service) ImportItems(ctx context.Context, inputs []model.ItemInput, by string) (ImportResult, error) {
	existing, err := s.Items.List(ctx)
	if err != nil {
		return ImportResult{}, err
	}

	now := s.now()
	var res ImportResult
	for i, in := range inputs {
		in.ID = ""
		if in.DateAdded.IsZero() {
			in.DateAdded = now
		}
		// Loans go through Issue.
		if in.Status == model.StatusIssued {
			res.Rejected = append(res.Rejected, RowError{Index: i, Err: &model.TransitionError{
				From: model.StatusAvailable, To: model.StatusIssued,
			}})
			continue
		}

		item, err := model.ValidateItem(in, existing, now)
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Index: i, Err: err})
			continue
		}

		id, err := s.Items.Add(ctx, item)
		if errors.Is(err, store.ErrDuplicateCode) {
			res.Rejected = append(res.Rejected, RowError{Index: i, Err: model.CodeTakenError()})
			continue
		}
		if err != nil {
			return res, err
		}
		item.ID = id
		existing = append(existing, item)
		res.Added = append(res.Added, item)
	}

	slog.Info("items imported", "user", by, "added", len(res.Added), "rejected", len(res.Rejected))
	return res, nil
}
