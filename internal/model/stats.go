package model

import "time"

// Stats are the dashboard counters.
type Stats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Issued    int `json:"issued"`
	Overdue   int `json:"overdue"`
	Repair    int `json:"repair"`
}

// DeriveStats counts items by status in a single pass. Overdue items are also
// counted as issued.
func DeriveStats(items []Item, now time.Time) Stats {
	var s Stats
	for _, it := range items {
		s.Total++
		switch it.Status {
		case StatusAvailable:
			s.Available++
		case StatusIssued:
			s.Issued++
			if IsOverdue(it, now) {
				s.Overdue++
			}
		case StatusRepair:
			s.Repair++
		}
	}
	return s
}

// FilterByStatus returns the items with the given status in input order. An
// empty status returns all items.
func FilterByStatus(items []Item, status Status) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if status == "" || it.Status == status {
			out = append(out, it)
		}
	}
	return out
}

// FilterOverdue returns the overdue items in input order.
func FilterOverdue(items []Item, now time.Time) []Item {
	out := make([]Item, 0)
	for _, it := range items {
		if IsOverdue(it, now) {
			out = append(out, it)
		}
	}
	return out
}

// DueWithin returns issued, not yet overdue items whose expected return date
// falls within d of now, in input order.
func DueWithin(items []Item, now time.Time, d time.Duration) []Item {
	out := make([]Item, 0)
	for _, it := range items {
		if it.Status != StatusIssued || it.ExpectedReturnDate == nil || IsOverdue(it, now) {
			continue
		}
		if it.ExpectedReturnDate.Sub(now) <= d {
			out = append(out, it)
		}
	}
	return out
}
