package model

import (
	"reflect"
	"testing"
	"time"
)

func statsFixture() []Item {
	overdue := Item{ID: "2", Status: StatusIssued}
	overdue.ExpectedReturnDate = timePtr(testNow.Add(-24 * time.Hour))

	onTime := Item{ID: "3", Status: StatusIssued}
	onTime.ExpectedReturnDate = timePtr(testNow.Add(24 * time.Hour))

	return []Item{
		{ID: "1", Status: StatusAvailable},
		overdue,
		onTime,
		{ID: "4", Status: StatusRepair},
	}
}

func TestDeriveStats(t *testing.T) {
	got := DeriveStats(statsFixture(), testNow)
	want := Stats{Total: 4, Available: 1, Issued: 2, Overdue: 1, Repair: 1}
	if got != want {
		t.Errorf("DeriveStats = %+v, want %+v", got, want)
	}
}

func TestDeriveStatsOrderIndependent(t *testing.T) {
	items := statsFixture()
	reversed := make([]Item, len(items))
	for i, it := range items {
		reversed[len(items)-1-i] = it
	}
	if DeriveStats(items, testNow) != DeriveStats(reversed, testNow) {
		t.Error("expected stats to be independent of input order")
	}
}

func TestDeriveStatsEmpty(t *testing.T) {
	if got := DeriveStats(nil, testNow); got != (Stats{}) {
		t.Errorf("expected zero stats, got %+v", got)
	}
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestFilterByStatus(t *testing.T) {
	items := []Item{
		{ID: "a", Status: StatusIssued},
		{ID: "b", Status: StatusAvailable},
		{ID: "c", Status: StatusIssued},
		{ID: "d", Status: StatusRepair},
		{ID: "e", Status: StatusIssued},
	}

	tests := []struct {
		status Status
		want   []string
	}{
		{StatusIssued, []string{"a", "c", "e"}},
		{StatusAvailable, []string{"b"}},
		{StatusRepair, []string{"d"}},
		{"", []string{"a", "b", "c", "d", "e"}},
	}

	for _, tt := range tests {
		got := ids(FilterByStatus(items, tt.status))
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FilterByStatus(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestFilterOverdue(t *testing.T) {
	got := ids(FilterOverdue(statsFixture(), testNow))
	if !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("FilterOverdue = %v, want [2]", got)
	}
}

func TestDueWithin(t *testing.T) {
	items := statsFixture()
	if got := ids(DueWithin(items, testNow, 48*time.Hour)); !reflect.DeepEqual(got, []string{"3"}) {
		t.Errorf("DueWithin(48h) = %v, want [3]", got)
	}
	if got := DueWithin(items, testNow, time.Hour); len(got) != 0 {
		t.Errorf("DueWithin(1h) = %v, want none", ids(got))
	}
}
