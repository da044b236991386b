package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

// SQLite stores items and loan events in the application database.
type SQLite struct {
	DB *sql.DB
}

// NewSQLite returns a backend on an opened and migrated database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{DB: db}
}

const itemColumns = `id, name, item_code, category, description, image_url, status, date_added,
	recipient_name, recipient_mobile, issuer_name, issue_date, expected_return_date,
	actual_return_date, collected_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (model.Item, error) {
	var item model.Item
	var recipient, mobile, issuer, collectedBy sql.NullString
	var issueDate, expected, actual sql.NullTime
	err := row.Scan(&item.ID, &item.Name, &item.ItemCode, &item.Category, &item.Description,
		&item.ImageURL, &item.Status, &item.DateAdded,
		&recipient, &mobile, &issuer, &issueDate, &expected, &actual, &collectedBy)
	if err != nil {
		return model.Item{}, err
	}
	item.RecipientName = recipient.String
	item.RecipientMobile = mobile.String
	item.IssuerName = issuer.String
	item.CollectedBy = collectedBy.String
	item.IssueDate = fromNullTime(issueDate)
	item.ExpectedReturnDate = fromNullTime(expected)
	item.ActualReturnDate = fromNullTime(actual)
	return item, nil
}

// List returns all items ordered by name.
func (s *SQLite) List(ctx context.Context) ([]model.Item, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get returns an item by ID.
func (s *SQLite) Get(ctx context.Context, id string) (*model.Item, error) {
	item, err := scanItem(s.DB.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return &item, nil
}

// Add inserts a new item.
func (s *SQLite) Add(ctx context.Context, item model.Item) (string, error) {
	id, err := newID()
	if err != nil {
		return "", err
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, item.Name, item.ItemCode, item.Category, item.Description, item.ImageURL,
		string(item.Status), item.DateAdded.UTC(),
		nullString(item.RecipientName), nullString(item.RecipientMobile), nullString(item.IssuerName),
		toNullTime(item.IssueDate), toNullTime(item.ExpectedReturnDate), toNullTime(item.ActualReturnDate),
		nullString(item.CollectedBy),
	)
	if isUniqueViolation(err) {
		return "", ErrDuplicateCode
	}
	if err != nil {
		return "", fmt.Errorf("adding item: %w", err)
	}
	return id, nil
}

// Update writes only the columns named by the patch.
func (s *SQLite) Update(ctx context.Context, id string, patch model.ItemPatch) error {
	var sets []string
	var args []any
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.ItemCode != nil {
		set("item_code", *patch.ItemCode)
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.ImageURL != nil {
		set("image_url", *patch.ImageURL)
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if l := patch.Loan; l != nil {
		set("recipient_name", nullString(l.RecipientName))
		set("recipient_mobile", nullString(l.RecipientMobile))
		set("issuer_name", nullString(l.IssuerName))
		set("issue_date", toNullTime(l.IssueDate))
		set("expected_return_date", toNullTime(l.ExpectedReturnDate))
		set("actual_return_date", toNullTime(l.ActualReturnDate))
		set("collected_by", nullString(l.CollectedBy))
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")

	where := "id = ?"
	args = append(args, id)
	if patch.IfStatus != nil {
		where += " AND status = ?"
		args = append(args, string(*patch.IfStatus))
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE items SET `+strings.Join(sets, ", ")+` WHERE `+where, args...,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}

	err = requireAffected(result)
	if errors.Is(err, ErrNotFound) && patch.IfStatus != nil {
		return s.missingOrChanged(ctx, id)
	}
	return err
}

// missingOrChanged tells apart a deleted item from a failed status condition.
func (s *SQLite) missingOrChanged(ctx context.Context, id string) error {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return fmt.Errorf("checking item: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStatusChanged
}

// Delete removes an item. Its loan history is kept.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return requireAffected(result)
}

// RecordLoanEvent appends an event to the loan history.
func (s *SQLite) RecordLoanEvent(ctx context.Context, ev model.LoanEvent) error {
	ev, err := prepareEvent(ev)
	if err != nil {
		return err
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO loan_events (id, item_id, item_name, item_code, kind, recipient_name,
		     recipient_mobile, issuer_name, collected_by, issue_date, expected_return_date,
		     return_date, recorded_by, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ItemID, ev.ItemName, ev.ItemCode, ev.Kind,
		nullString(ev.RecipientName), nullString(ev.RecipientMobile), nullString(ev.IssuerName),
		nullString(ev.CollectedBy), toNullTime(ev.IssueDate), toNullTime(ev.ExpectedReturnDate),
		toNullTime(ev.ReturnDate), nullString(ev.RecordedBy), ev.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording loan event: %w", err)
	}
	return nil
}

// ItemHistory returns the loan events of an item, newest first.
func (s *SQLite) ItemHistory(ctx context.Context, itemID string) ([]model.LoanEvent, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, item_id, item_name, item_code, kind, recipient_name, recipient_mobile,
		        issuer_name, collected_by, issue_date, expected_return_date, return_date,
		        recorded_by, recorded_at
		 FROM loan_events WHERE item_id = ?
		 ORDER BY recorded_at DESC, id DESC`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting item history: %w", err)
	}
	defer rows.Close()

	events := []model.LoanEvent{}
	for rows.Next() {
		var ev model.LoanEvent
		var recipient, mobile, issuer, collectedBy, recordedBy sql.NullString
		var issueDate, expected, returnDate sql.NullTime
		if err := rows.Scan(&ev.ID, &ev.ItemID, &ev.ItemName, &ev.ItemCode, &ev.Kind,
			&recipient, &mobile, &issuer, &collectedBy, &issueDate, &expected, &returnDate,
			&recordedBy, &ev.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning loan event: %w", err)
		}
		ev.RecipientName = recipient.String
		ev.RecipientMobile = mobile.String
		ev.IssuerName = issuer.String
		ev.CollectedBy = collectedBy.String
		ev.RecordedBy = recordedBy.String
		ev.IssueDate = fromNullTime(issueDate)
		ev.ExpectedReturnDate = fromNullTime(expected)
		ev.ReturnDate = fromNullTime(returnDate)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func prepareEvent(ev model.LoanEvent) (model.LoanEvent, error) {
	if ev.ID == "" {
		id, err := newID()
		if err != nil {
			return ev, err
		}
		ev.ID = id
	}
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = time.Now()
	}
	return ev, nil
}
