package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

var issueFields = []string{"recipientName", "recipientMobile", "issuerName", "issueDate", "expectedReturnDate"}

func (s *Server) loanDays(r *http.Request) int {
	days, err := store.GetLoanDays(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to read loan period", "error", err)
		return store.DefaultLoanDays
	}
	return days
}

// ItemIssueSubmit handles POST /items/{id}/issue.
func (s *Server) ItemIssueSubmit(w http.ResponseWriter, r *http.Request) {
	item, ok := s.loadItem(w, r)
	if !ok {
		return
	}

	f := formFrom(r, issueFields...)
	loan := model.Loan{
		RecipientName:   f.Values["recipientName"],
		RecipientMobile: f.Values["recipientMobile"],
		IssuerName:      f.Values["issuerName"],
	}
	if d := f.date("issueDate"); !d.IsZero() {
		loan.IssueDate = &d
	}
	if d := f.date("expectedReturnDate"); !d.IsZero() {
		loan.ExpectedReturnDate = &d
	}

	err := formError(f)
	if err == nil {
		_, err = s.Lending.Issue(r.Context(), item.ID, loan, actor(r))
	}
	if err != nil {
		status := s.applyError(f, err)
		data := &itemDetailPage{PageData: s.page(r, item.Name, "items"), Issue: f}
		data.Error = "The item was not issued. " + errorSummary(err)
		s.renderItem(w, r, status, item, data)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/items/%s?msg=issued", item.ID), http.StatusSeeOther)
}

// ItemReturnSubmit handles POST /items/{id}/return.
func (s *Server) ItemReturnSubmit(w http.ResponseWriter, r *http.Request) {
	item, ok := s.loadItem(w, r)
	if !ok {
		return
	}

	f := formFrom(r, "returnDate", "collectedBy")
	info := model.ReturnInfo{
		ReturnDate:  f.date("returnDate"),
		CollectedBy: f.Values["collectedBy"],
	}
	// A return on today's date keeps the time of day.
	if now := s.Lending.Time(); info.ReturnDate.Equal(startOfDay(now)) {
		info.ReturnDate = now
	}

	err := formError(f)
	if err == nil {
		_, err = s.Lending.Return(r.Context(), item.ID, info, actor(r))
	}
	if err != nil {
		status := s.applyError(f, err)
		data := &itemDetailPage{PageData: s.page(r, item.Name, "items"), Return: f}
		data.Error = "The item was not returned. " + errorSummary(err)
		s.renderItem(w, r, status, item, data)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/items/%s?msg=returned", item.ID), http.StatusSeeOther)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
