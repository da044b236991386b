// Package report computes activity reports over a date range and moves item
// lists in and out of spreadsheets.
package report

import (
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

// DefaultRange is the reporting period used when none is given.
const DefaultRange = 30 * 24 * time.Hour

// Bar is one bar of the activity chart.
type Bar struct {
	Name    string `json:"name"`
	Value   int    `json:"value"`
	Percent int    `json:"percent"`
}

// Activity summarises item activity in an inclusive date range.
type Activity struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Added    int       `json:"added"`
	Issued   int       `json:"issued"`
	Returned int       `json:"returned"`
	Pending  int       `json:"pending"`
	Bars     []Bar     `json:"bars"`
}

// DefaultPeriod returns the last 30 days up to and including now.
func DefaultPeriod(now time.Time) (from, to time.Time) {
	return now.Add(-DefaultRange), now
}

// Compute counts items added, loans issued and loans returned between the
// start of from's day and the end of to's day. Pending is the number of
// items currently on loan regardless of the range. Issued and returned only
// see each item's most recent loan.
func Compute(items []model.Item, from, to time.Time) Activity {
	start := startOfDay(from)
	end := startOfDay(to).AddDate(0, 0, 1)
	if end.Before(start) {
		start, end = startOfDay(to), startOfDay(from).AddDate(0, 0, 1)
	}
	in := func(t *time.Time) bool {
		return t != nil && !t.Before(start) && t.Before(end)
	}

	a := Activity{From: start, To: end.AddDate(0, 0, -1)}
	for _, it := range items {
		if in(&it.DateAdded) {
			a.Added++
		}
		if in(it.IssueDate) {
			a.Issued++
		}
		if in(it.ActualReturnDate) {
			a.Returned++
		}
		if it.Status == model.StatusIssued {
			a.Pending++
		}
	}

	a.Bars = []Bar{
		{Name: "Added", Value: a.Added},
		{Name: "Issued", Value: a.Issued},
		{Name: "Returned", Value: a.Returned},
		{Name: "Pending", Value: a.Pending},
	}
	peak := 0
	for _, b := range a.Bars {
		peak = max(peak, b.Value)
	}
	if peak > 0 {
		for i := range a.Bars {
			a.Bars[i].Percent = a.Bars[i].Value * 100 / peak
		}
	}
	return a
}

// StatsBars turns dashboard counters into chart bars.
func StatsBars(s model.Stats) []Bar {
	bars := []Bar{
		{Name: "Available", Value: s.Available},
		{Name: "Issued", Value: s.Issued},
		{Name: "Overdue", Value: s.Overdue},
		{Name: "Repair", Value: s.Repair},
	}
	if s.Total > 0 {
		for i := range bars {
			bars[i].Percent = bars[i].Value * 100 / s.Total
		}
	}
	return bars
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
