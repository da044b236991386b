// Package insight turns the item list into a request for a text-generation
// service and hands back a list of potential issues with suggested actions.
package insight

import (
	"context"
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

// DateLayout is the date format used in summaries.
const DateLayout = "2006-01-02"

// Summary is the projection of an item sent to a generator. It carries no
// identifiers or contact details.
type Summary struct {
	ItemName           string `json:"itemName"`
	Status             string `json:"status"`
	IssuedTo           string `json:"issuedTo,omitempty"`
	IssueDate          string `json:"issueDate,omitempty"`
	ExpectedReturnDate string `json:"expectedReturnDate,omitempty"`
	ActualReturnDate   string `json:"actualReturnDate,omitempty"`
}

// Summarize projects items in input order. Overdue loans are reported with
// status Overdue. Loan fields are only included for issued items.
func Summarize(items []model.Item, now time.Time) []Summary {
	out := make([]Summary, 0, len(items))
	for _, it := range items {
		s := Summary{
			ItemName: it.Name,
			Status:   model.DisplayStatus(it, now),
		}
		if loan, ok := model.ActiveLoan(it); ok {
			s.IssuedTo = loan.RecipientName
			s.IssueDate = formatDate(loan.IssueDate)
			s.ExpectedReturnDate = formatDate(loan.ExpectedReturnDate)
			s.ActualReturnDate = formatDate(loan.ActualReturnDate)
		}
		out = append(out, s)
	}
	return out
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

// Generator produces insights for a set of summaries. An empty result means
// no issues were found.
type Generator interface {
	Generate(ctx context.Context, today time.Time, items []Summary) ([]model.Insight, error)
}
