package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// LoansHandler handles issuing and returning items.
type LoansHandler struct {
	DB      *sql.DB
	Lending *lending.Service
}

type issueRequest struct {
	RecipientName      string `json:"recipientName"`
	RecipientMobile    string `json:"recipientMobile"`
	IssuerName         string `json:"issuerName"`
	IssueDate          *date  `json:"issueDate"`
	ExpectedReturnDate *date  `json:"expectedReturnDate"`
}

type returnRequest struct {
	ReturnDate  *date  `json:"returnDate"`
	CollectedBy string `json:"collectedBy"`
}

// Issue handles POST /api/items/{id}/issue. The issuer defaults to the
// signed-in user, the issue date to today and the expected return date to the
// configured loan period after the issue date.
func (h *LoansHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loan := model.Loan{
		RecipientName:      req.RecipientName,
		RecipientMobile:    req.RecipientMobile,
		IssuerName:         req.IssuerName,
		IssueDate:          req.IssueDate.ptr(),
		ExpectedReturnDate: req.ExpectedReturnDate.ptr(),
	}
	if loan.IssuerName == "" {
		if claims := GetClaims(r.Context()); claims != nil {
			loan.IssuerName = claims.Name()
		}
	}
	if loan.IssueDate == nil {
		today := startOfDay(h.Lending.Time())
		loan.IssueDate = &today
	}
	if loan.ExpectedReturnDate == nil {
		days, err := store.GetLoanDays(r.Context(), h.DB)
		if err != nil {
			slog.Error("failed to read loan period", "error", err)
			days = store.DefaultLoanDays
		}
		due := loan.IssueDate.AddDate(0, 0, days)
		loan.ExpectedReturnDate = &due
	}

	item, err := h.Lending.Issue(r.Context(), r.PathValue("id"), loan, actor(r))
	if err != nil {
		serviceError(w, err, "issue item")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Return handles POST /api/items/{id}/return. The return date defaults to
// now.
func (h *LoansHandler) Return(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info := model.ReturnInfo{
		ReturnDate:  req.ReturnDate.value(),
		CollectedBy: req.CollectedBy,
	}
	if info.ReturnDate.IsZero() {
		info.ReturnDate = h.Lending.Time()
	}

	item, err := h.Lending.Return(r.Context(), r.PathValue("id"), info, actor(r))
	if err != nil {
		serviceError(w, err, "return item")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
