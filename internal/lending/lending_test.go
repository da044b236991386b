package lending

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s := New(store.NewMemory())
	s.Now = func() time.Time { return now }
	return s
}

func tp(t time.Time) *time.Time { return &t }

func wheelchair() model.ItemInput {
	return model.ItemInput{
		Name:     "Wheelchair",
		ItemCode: "WCH001",
		Category: "Mobility",
		ImageURL: "https://example.org/w.jpg",
	}
}

func loan() model.Loan {
	return model.Loan{
		RecipientName:      "Ana Kovač",
		RecipientMobile:    "0401234567",
		IssuerName:         "Marko",
		IssueDate:          tp(now.AddDate(0, 0, -1)),
		ExpectedReturnDate: tp(now.AddDate(0, 0, 13)),
	}
}

func mustCreate(t *testing.T, s *Service, in model.ItemInput) model.Item {
	t.Helper()
	item, err := s.Create(context.Background(), in, "tester")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return item
}

func TestCreateDefaults(t *testing.T) {
	s := newTestService(t)
	item := mustCreate(t, s, wheelchair())

	if item.ID == "" {
		t.Error("expected an assigned id")
	}
	if item.Status != model.StatusAvailable {
		t.Errorf("expected Available, got %s", item.Status)
	}
	if !item.DateAdded.Equal(now) {
		t.Errorf("expected date added to default to now, got %v", item.DateAdded)
	}

	items, _ := s.List(context.Background(), "")
	if len(items) != 1 || items[0].ID != item.ID {
		t.Errorf("expected created item in list, got %+v", items)
	}
}

func TestCreateDuplicateCode(t *testing.T) {
	s := newTestService(t)
	mustCreate(t, s, wheelchair())

	in := wheelchair()
	in.Name = "Second wheelchair"
	_, err := s.Create(context.Background(), in, "tester")

	var verr *model.ValidationError
	if !errors.As(err, &verr) || !verr.Has(model.RuleCodeUnique) {
		t.Errorf("expected code_unique validation error, got %v", err)
	}
}

func TestIssueReturnFlow(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	item := mustCreate(t, s, wheelchair())

	issued, err := s.Issue(ctx, item.ID, loan(), "marko")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.Status != model.StatusIssued {
		t.Errorf("expected Issued, got %s", issued.Status)
	}

	stored, _ := s.Get(ctx, item.ID)
	if stored.Status != model.StatusIssued || stored.RecipientName != "Ana Kovač" {
		t.Errorf("issue not persisted: %+v", stored)
	}

	returned, err := s.Return(ctx, item.ID, model.ReturnInfo{ReturnDate: now, CollectedBy: "Marko"}, "marko")
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if returned.Status != model.StatusAvailable || returned.ActualReturnDate == nil {
		t.Errorf("unexpected returned item: %+v", returned)
	}

	history, err := s.History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history events, got %d", len(history))
	}
	if history[1].Kind != model.LoanEventIssued || history[1].RecordedBy != "marko" {
		t.Errorf("unexpected issue event: %+v", history[1])
	}
}

func TestReturnAvailableIsTransitionError(t *testing.T) {
	s := newTestService(t)
	item := mustCreate(t, s, wheelchair())

	_, err := s.Return(context.Background(), item.ID, model.ReturnInfo{ReturnDate: now}, "x")
	var terr *model.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransitionError, got %v", err)
	}

	stored, _ := s.Get(context.Background(), item.ID)
	if stored.Status != model.StatusAvailable {
		t.Error("expected stored item to be untouched")
	}
}

// racingGets holds the first n Get calls until all of them have read, so that
// concurrent requests see the same stored state.
type racingGets struct {
	store.Backend
	mu      sync.Mutex
	pending int
	wg      sync.WaitGroup
}

func newRacingGets(b store.Backend, n int) *racingGets {
	r := &racingGets{Backend: b, pending: n}
	r.wg.Add(n)
	return r
}

func (r *racingGets) Get(ctx context.Context, id string) (*model.Item, error) {
	item, err := r.Backend.Get(ctx, id)

	r.mu.Lock()
	gated := r.pending > 0
	if gated {
		r.pending--
	}
	r.mu.Unlock()

	if gated {
		r.wg.Done()
		r.wg.Wait()
	}
	return item, err
}

func TestConcurrentIssueKeepsFirstLoan(t *testing.T) {
	ctx := context.Background()
	plain := New(store.NewSQLite(db.NewTestDB(t)))
	plain.Now = func() time.Time { return now }
	item := mustCreate(t, plain, wheelchair())

	racing := newRacingGets(plain.Items.(store.Backend), 2)
	s := &Service{Items: racing, Log: racing, Now: plain.Now}

	loans := []model.Loan{loan(), loan()}
	loans[1].RecipientName = "Bor Kranjc"

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range loans {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Issue(ctx, item.ID, loans[i], "marko")
		}(i)
	}
	wg.Wait()

	var wins, lost int
	for _, err := range errs {
		var terr *model.TransitionError
		switch {
		case err == nil:
			wins++
		case errors.As(err, &terr):
			lost++
			if terr.From != model.StatusIssued {
				t.Errorf("expected the losing issue to see Issued, got %s", terr.From)
			}
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 || lost != 1 {
		t.Fatalf("expected one issue to win and one to fail, got %v", errs)
	}

	history, err := s.History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 issue event, got %d", len(history))
	}

	stored, _ := plain.Get(ctx, item.ID)
	if stored.RecipientName != history[0].RecipientName {
		t.Errorf("stored loan %q does not match the recorded event %q", stored.RecipientName, history[0].RecipientName)
	}
}

func TestListFilters(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, s, wheelchair())
	b := wheelchair()
	b.Name, b.ItemCode = "Crutches", "CRT001"
	crutches := mustCreate(t, s, b)
	c := wheelchair()
	c.Name, c.ItemCode, c.Status = "Walker", "WLK001", model.StatusRepair
	mustCreate(t, s, c)

	late := loan()
	late.IssueDate = tp(now.AddDate(0, 0, -20))
	late.ExpectedReturnDate = tp(now.AddDate(0, 0, -6))
	if _, err := s.Issue(ctx, a.ID, late, "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Issue(ctx, crutches.ID, loan(), "x"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		filter string
		want   int
	}{
		{"", 3},
		{"Issued", 2},
		{"issued", 2},
		{"Repair", 1},
		{"Available", 0},
		{"Overdue", 1},
	}
	for _, tt := range tests {
		items, err := s.List(ctx, tt.filter)
		if err != nil {
			t.Fatalf("List(%q): %v", tt.filter, err)
		}
		if len(items) != tt.want {
			t.Errorf("List(%q) returned %d items, want %d", tt.filter, len(items), tt.want)
		}
	}

	if _, err := s.List(ctx, "Lost"); !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("expected ErrUnknownFilter, got %v", err)
	}

	stats, _ := s.Stats(ctx)
	want := model.Stats{Total: 3, Available: 0, Issued: 2, Overdue: 1, Repair: 1}
	if stats != want {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}
}

func TestEditKeepsOwnCode(t *testing.T) {
	s := newTestService(t)
	item := mustCreate(t, s, wheelchair())

	in := item.Input()
	in.Description = "Foldable"
	updated, err := s.Edit(context.Background(), item.ID, in, "x")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if updated.Description != "Foldable" {
		t.Errorf("expected description to change, got %q", updated.Description)
	}
}

func TestMissingItem(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if _, err := s.Edit(ctx, "nope", wheelchair(), "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Edit: expected ErrNotFound, got %v", err)
	}
	if _, err := s.Issue(ctx, "nope", loan(), "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Issue: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteKeepsHistory(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	item := mustCreate(t, s, wheelchair())
	s.Issue(ctx, item.ID, loan(), "x")

	if err := s.Delete(ctx, item.ID, "x"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, item.ID); !errors.Is(err, ErrNotFound) {
		t.Error("expected item to be gone")
	}
	if history, _ := s.History(ctx, item.ID); len(history) != 1 {
		t.Errorf("expected history to survive delete, got %d events", len(history))
	}
}

func TestSetImage(t *testing.T) {
	s := newTestService(t)
	item := mustCreate(t, s, wheelchair())

	uri := "data:image/jpeg;base64,/9j/4AAQSkZJRg=="
	updated, err := s.SetImage(context.Background(), item.ID, uri, "x")
	if err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	if updated.ImageURL != uri {
		t.Error("expected image to be replaced")
	}

	if _, err := s.SetImage(context.Background(), item.ID, "nonsense", "x"); err == nil {
		t.Error("expected invalid image reference to be rejected")
	}
}

func TestImportItems(t *testing.T) {
	s := newTestService(t)
	mustCreate(t, s, wheelchair())

	rows := []model.ItemInput{
		{Name: "Crutches", ItemCode: "CRT001", Category: "Mobility", ImageURL: "https://example.org/c.jpg"},
		{Name: "Walker", ItemCode: "WCH001", Category: "Mobility", ImageURL: "https://example.org/w.jpg"},
		{Name: "Crutches 2", ItemCode: "CRT001", Category: "Mobility", ImageURL: "https://example.org/c.jpg"},
		{Name: "Bed", ItemCode: "BED001", Category: "Furniture", ImageURL: "https://example.org/b.jpg", Status: model.StatusIssued},
		{Name: "Commode", ItemCode: "CMD001", Category: "Hygiene", ImageURL: "https://example.org/m.jpg", Status: model.StatusRepair},
	}

	res, err := s.ImportItems(context.Background(), rows, "x")
	if err != nil {
		t.Fatalf("ImportItems: %v", err)
	}
	if len(res.Added) != 2 {
		t.Errorf("expected 2 added rows, got %d", len(res.Added))
	}

	var rejected []int
	for _, r := range res.Rejected {
		rejected = append(rejected, r.Index)
	}
	if len(rejected) != 3 || rejected[0] != 1 || rejected[1] != 2 || rejected[2] != 3 {
		t.Errorf("expected rows 1, 2 and 3 rejected, got %v", rejected)
	}
}
