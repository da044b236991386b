package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
)

// backends returns every backend under test. MongoDB is included only when
// IZPOSOJA_TEST_MONGO_URI points at a server.
func backends(t *testing.T) map[string]func(t *testing.T) Backend {
	t.Helper()

	all := map[string]func(t *testing.T) Backend{
		BackendSQLite: func(t *testing.T) Backend { return NewSQLite(db.NewTestDB(t)) },
		BackendMemory: func(t *testing.T) Backend { return NewMemory() },
	}

	if uri := os.Getenv("IZPOSOJA_TEST_MONGO_URI"); uri != "" {
		all[BackendMongo] = func(t *testing.T) Backend {
			ctx := context.Background()
			name := "izposoja_test_" + uuid.NewString()[:8]
			m, client, err := ConnectMongo(ctx, uri, name)
			if err != nil {
				t.Fatalf("ConnectMongo: %v", err)
			}
			t.Cleanup(func() {
				client.Database(name).Drop(ctx)
				client.Disconnect(ctx)
			})
			return m
		}
	}
	return all
}

// Mongo keeps millisecond precision.
var day = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func tp(t time.Time) *time.Time { return &t }

func sampleItem(name, code string) model.Item {
	return model.Item{
		Name:      name,
		ItemCode:  code,
		Category:  "Mobility",
		ImageURL:  "https://example.org/" + code + ".jpg",
		Status:    model.StatusAvailable,
		DateAdded: day,
	}
}

func TestItemStoreContract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("AddThenList", func(t *testing.T) { testAddThenList(t, open(t)) })
			t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, open(t)) })
			t.Run("UpdatePatch", func(t *testing.T) { testUpdatePatch(t, open(t)) })
			t.Run("UpdateClearsLoan", func(t *testing.T) { testUpdateClearsLoan(t, open(t)) })
			t.Run("UpdateIfStatus", func(t *testing.T) { testUpdateIfStatus(t, open(t)) })
			t.Run("NotFound", func(t *testing.T) { testNotFound(t, open(t)) })
			t.Run("DuplicateCode", func(t *testing.T) { testDuplicateCode(t, open(t)) })
			t.Run("LoanHistory", func(t *testing.T) { testLoanHistory(t, open(t)) })
		})
	}
}

func testAddThenList(t *testing.T, s Backend) {
	ctx := context.Background()

	walker := sampleItem("Walker", "WLK001")
	walker.Description = "Four-wheel rollator"
	id, err := s.Add(ctx, walker)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" {
		t.Fatal("expected an assigned id")
	}
	if _, err := s.Add(ctx, sampleItem("Crutches", "CRT001")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	items, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Name != "Crutches" || items[1].Name != "Walker" {
		t.Errorf("expected items ordered by name, got %q, %q", items[0].Name, items[1].Name)
	}

	got := items[1]
	if got.ID != id || got.ItemCode != "WLK001" || got.Description != "Four-wheel rollator" {
		t.Errorf("unexpected item: %+v", got)
	}
	if !got.DateAdded.Equal(day) {
		t.Errorf("expected date added %v, got %v", day, got.DateAdded)
	}
	if got.IssueDate != nil || got.RecipientName != "" {
		t.Error("expected absent loan fields to stay absent")
	}
}

func testGetMissing(t *testing.T, s Backend) {
	got, err := s.Get(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing item, got %+v", got)
	}
}

func testUpdatePatch(t *testing.T, s Backend) {
	ctx := context.Background()
	id, _ := s.Add(ctx, sampleItem("Walker", "WLK001"))

	name := "Rollator"
	status := model.StatusIssued
	loan := model.Loan{
		RecipientName:      "Ana Kovač",
		RecipientMobile:    "0401234567",
		IssuerName:         "Marko",
		IssueDate:          tp(day),
		ExpectedReturnDate: tp(day.AddDate(0, 0, 14)),
	}
	if err := s.Update(ctx, id, model.ItemPatch{Name: &name, Status: &status, Loan: &loan}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("Get: %v, %v", got, err)
	}
	if got.Name != "Rollator" || got.Status != model.StatusIssued {
		t.Errorf("patch not applied: %+v", got)
	}
	if got.ItemCode != "WLK001" || got.Category != "Mobility" {
		t.Errorf("fields outside the patch changed: %+v", got)
	}
	if got.RecipientName != "Ana Kovač" || got.ExpectedReturnDate == nil || !got.ExpectedReturnDate.Equal(day.AddDate(0, 0, 14)) {
		t.Errorf("loan not stored: %+v", got.Loan)
	}
}

func testUpdateClearsLoan(t *testing.T, s Backend) {
	ctx := context.Background()
	item := sampleItem("Walker", "WLK001")
	item.ActualReturnDate = tp(day)
	item.CollectedBy = "Marko"
	id, _ := s.Add(ctx, item)

	loan := model.Loan{RecipientName: "Ana", IssueDate: tp(day.Add(time.Hour))}
	if err := s.Update(ctx, id, model.ItemPatch{Loan: &loan}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := s.Get(ctx, id)
	if got.ActualReturnDate != nil || got.CollectedBy != "" {
		t.Errorf("expected loan patch to replace all loan fields, got %+v", got.Loan)
	}
}

func testUpdateIfStatus(t *testing.T, s Backend) {
	ctx := context.Background()
	id, _ := s.Add(ctx, sampleItem("Walker", "WLK001"))

	available := model.StatusAvailable
	issued := model.StatusIssued
	first := model.Loan{RecipientName: "Ana Kovač", IssueDate: tp(day)}
	if err := s.Update(ctx, id, model.ItemPatch{Status: &issued, Loan: &first, IfStatus: &available}); err != nil {
		t.Fatalf("first Update: %v", err)
	}

	second := model.Loan{RecipientName: "Bor Kranjc", IssueDate: tp(day)}
	err := s.Update(ctx, id, model.ItemPatch{Status: &issued, Loan: &second, IfStatus: &available})
	if !errors.Is(err, ErrStatusChanged) {
		t.Fatalf("second Update: expected ErrStatusChanged, got %v", err)
	}

	got, _ := s.Get(ctx, id)
	if got.RecipientName != "Ana Kovač" {
		t.Errorf("expected the first loan to be kept, got recipient %q", got.RecipientName)
	}

	if err := s.Update(ctx, "missing", model.ItemPatch{Status: &issued, IfStatus: &available}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing item: expected ErrNotFound, got %v", err)
	}
}

func testNotFound(t *testing.T, s Backend) {
	ctx := context.Background()
	name := "x"
	if err := s.Update(ctx, "missing", model.ItemPatch{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}

	id, _ := s.Add(ctx, sampleItem("Walker", "WLK001"))
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := s.Get(ctx, id); got != nil {
		t.Error("expected item to be gone after delete")
	}
}

func testDuplicateCode(t *testing.T, s Backend) {
	ctx := context.Background()
	s.Add(ctx, sampleItem("Walker", "WLK001"))
	id, _ := s.Add(ctx, sampleItem("Crutches", "CRT001"))

	if _, err := s.Add(ctx, sampleItem("Other walker", "WLK001")); !errors.Is(err, ErrDuplicateCode) {
		t.Errorf("Add: expected ErrDuplicateCode, got %v", err)
	}

	code := "WLK001"
	if err := s.Update(ctx, id, model.ItemPatch{ItemCode: &code}); !errors.Is(err, ErrDuplicateCode) {
		t.Errorf("Update: expected ErrDuplicateCode, got %v", err)
	}
}

func testLoanHistory(t *testing.T, s Backend) {
	ctx := context.Background()

	events := []model.LoanEvent{
		{ItemID: "a", ItemName: "Walker", ItemCode: "WLK001", Kind: model.LoanEventIssued,
			RecipientName: "Ana", IssueDate: tp(day), RecordedAt: day},
		{ItemID: "b", ItemName: "Crutches", ItemCode: "CRT001", Kind: model.LoanEventIssued,
			RecordedAt: day.Add(time.Hour)},
		{ItemID: "a", ItemName: "Walker", ItemCode: "WLK001", Kind: model.LoanEventReturned,
			CollectedBy: "Marko", ReturnDate: tp(day.AddDate(0, 0, 3)), RecordedAt: day.AddDate(0, 0, 3)},
	}
	for _, ev := range events {
		if err := s.RecordLoanEvent(ctx, ev); err != nil {
			t.Fatalf("RecordLoanEvent: %v", err)
		}
	}

	history, err := s.ItemHistory(ctx, "a")
	if err != nil {
		t.Fatalf("ItemHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 events, got %d", len(history))
	}
	if history[0].Kind != model.LoanEventReturned || history[1].Kind != model.LoanEventIssued {
		t.Errorf("expected newest first, got %s, %s", history[0].Kind, history[1].Kind)
	}
	if history[0].ID == "" || history[0].CollectedBy != "Marko" {
		t.Errorf("unexpected event: %+v", history[0])
	}

	empty, err := s.ItemHistory(ctx, "none")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected no events, got %v, %v", empty, err)
	}
}
