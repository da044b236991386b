package model

import (
	"strings"
	"time"
)

// Issue lends an available item. The loan replaces any fields left over from
// the previous loan.
func Issue(item Item, loan Loan) (Item, error) {
	if item.Status != StatusAvailable {
		return Item{}, &TransitionError{From: item.Status, To: StatusIssued}
	}
	if err := validateLoan(loan); err != nil {
		return Item{}, err
	}

	item.Loan = Loan{
		RecipientName:      strings.TrimSpace(loan.RecipientName),
		RecipientMobile:    strings.TrimSpace(loan.RecipientMobile),
		IssuerName:         strings.TrimSpace(loan.IssuerName),
		IssueDate:          loan.IssueDate,
		ExpectedReturnDate: loan.ExpectedReturnDate,
	}
	item.Status = StatusIssued
	return item, nil
}

// Return ends the loan of an issued item and makes it available again. The
// other loan fields are kept as a record of the last loan.
func Return(item Item, info ReturnInfo) (Item, error) {
	if item.Status != StatusIssued {
		return Item{}, &TransitionError{From: item.Status, To: StatusAvailable}
	}

	verr := &ValidationError{}
	switch {
	case info.ReturnDate.IsZero():
		verr.add("returnDate", RuleReturnDate, "Return date is required")
	case item.IssueDate != nil && info.ReturnDate.Before(*item.IssueDate):
		verr.add("returnDate", RuleReturnDate, "Return date cannot be before the issue date")
	}
	if err := verr.errOrNil(); err != nil {
		return Item{}, err
	}

	returned := info.ReturnDate
	item.ActualReturnDate = &returned
	item.CollectedBy = strings.TrimSpace(info.CollectedBy)
	item.Status = StatusAvailable
	return item, nil
}

// Edit applies an edit form to current. The date of entry and the loan fields
// are kept; status may only move between Available and Repair, loans go
// through Issue and Return.
func Edit(current Item, in ItemInput, existing []Item, now time.Time) (Item, error) {
	in.ID = current.ID
	in.DateAdded = current.DateAdded
	if in.Status == "" {
		in.Status = current.Status
	}

	if in.Status != current.Status && (in.Status == StatusIssued || current.Status == StatusIssued) {
		return Item{}, &TransitionError{From: current.Status, To: in.Status}
	}

	updated, err := ValidateItem(in, existing, now)
	if err != nil {
		return Item{}, err
	}
	updated.Loan = current.Loan
	return updated, nil
}

// IsOverdue reports whether an issued item is past its expected return date
// without having been returned.
func IsOverdue(item Item, now time.Time) bool {
	return item.Status == StatusIssued &&
		item.ExpectedReturnDate != nil &&
		item.ExpectedReturnDate.Before(now) &&
		item.ActualReturnDate == nil
}

// DisplayStatus returns the status shown to users, with overdue loans
// reported as Overdue.
func DisplayStatus(item Item, now time.Time) string {
	if IsOverdue(item, now) {
		return StatusOverdue
	}
	return string(item.Status)
}

// ActiveLoan returns the loan fields if the item is currently issued.
func ActiveLoan(item Item) (Loan, bool) {
	if item.Status != StatusIssued {
		return Loan{}, false
	}
	return item.Loan, true
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
