package model

import (
	"reflect"
	"testing"
	"time"
)

func TestDiffAndApply(t *testing.T) {
	old := availableItem()
	updated, err := Issue(old, validLoan())
	if err != nil {
		t.Fatal(err)
	}
	updated.Name = "Wheelchair (large)"

	p := Diff(old, updated)
	if p.Name == nil || p.Status == nil || p.Loan == nil {
		t.Fatalf("expected name, status and loan in patch, got %+v", p)
	}
	if p.ItemCode != nil || p.Category != nil || p.ImageURL != nil || p.Description != nil {
		t.Errorf("expected unchanged fields to be omitted, got %+v", p)
	}

	if got := p.Apply(old); !reflect.DeepEqual(got, updated) {
		t.Errorf("Apply(Diff(old, new)) != new\n got: %+v\nwant: %+v", got, updated)
	}
}

func TestDiffNoChanges(t *testing.T) {
	it := availableItem()
	it.IssueDate = timePtr(testNow)
	same := it
	same.IssueDate = timePtr(testNow.In(time.FixedZone("CET", 3600)))

	if p := Diff(it, same); !p.Empty() {
		t.Errorf("expected empty patch for equal items, got %+v", p)
	}
}
