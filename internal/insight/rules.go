package insight

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

// DefaultDueSoon is how close a deadline must be for Rules to report it.
const DefaultDueSoon = 3 * 24 * time.Hour

// Rules reports overdue loans and loans due soon without calling out to a
// service. It is used when no API key is configured.
type Rules struct {
	DueSoon time.Duration
}

// Generate checks every issued summary's expected return date.
func (r Rules) Generate(ctx context.Context, today time.Time, items []Summary) ([]model.Insight, error) {
	dueSoon := r.DueSoon
	if dueSoon <= 0 {
		dueSoon = DefaultDueSoon
	}
	todayDate := truncateDay(today)

	out := []model.Insight{}
	for _, s := range items {
		if s.ExpectedReturnDate == "" || s.ActualReturnDate != "" {
			continue
		}
		due, err := time.ParseInLocation(DateLayout, s.ExpectedReturnDate, today.Location())
		if err != nil {
			continue
		}
		who := s.IssuedTo
		if who == "" {
			who = "the recipient"
		}

		switch {
		case s.Status == model.StatusOverdue:
			days := int(math.Round(todayDate.Sub(due).Hours() / 24))
			issue := fmt.Sprintf("Overdue since %s (%s).", s.ExpectedReturnDate, plural(days, "day"))
			if days < 1 {
				issue = fmt.Sprintf("Due back today (%s) and not yet returned.", s.ExpectedReturnDate)
			}
			out = append(out, model.Insight{
				Item:            s.ItemName,
				Issue:           issue,
				SuggestedAction: fmt.Sprintf("Contact %s to arrange the return.", who),
			})
		case s.Status == string(model.StatusIssued) && due.Sub(todayDate) <= dueSoon:
			out = append(out, model.Insight{
				Item:            s.ItemName,
				Issue:           fmt.Sprintf("Due back on %s.", s.ExpectedReturnDate),
				SuggestedAction: fmt.Sprintf("Remind %s of the upcoming return date.", who),
			})
		}
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
