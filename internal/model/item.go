package model

import (
	"strings"
	"time"
)

// Status is the stored lifecycle state of an item.
type Status string

// Item statuses. Legacy "Returned" records are folded into Available.
const (
	StatusAvailable Status = "Available"
	StatusIssued    Status = "Issued"
	StatusRepair    Status = "Repair"
)

// StatusOverdue is a display-only status derived from an issued item's dates.
const StatusOverdue = "Overdue"

// Statuses lists the stored statuses in display order.
var Statuses = []Status{StatusAvailable, StatusIssued, StatusRepair}

// Valid reports whether s is one of the stored statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusIssued, StatusRepair:
		return true
	}
	return false
}

// ParseStatus parses a status name case-insensitively. "Returned" maps to
// Available.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available", "returned":
		return StatusAvailable, true
	case "issued":
		return StatusIssued, true
	case "repair":
		return StatusRepair, true
	}
	return "", false
}

// Loan holds the fields of the current or most recent loan of an item.
type Loan struct {
	RecipientName      string     `json:"recipientName,omitempty"`
	RecipientMobile    string     `json:"recipientMobile,omitempty"`
	IssuerName         string     `json:"issuerName,omitempty"`
	IssueDate          *time.Time `json:"issueDate,omitempty"`
	ExpectedReturnDate *time.Time `json:"expectedReturnDate,omitempty"`
	ActualReturnDate   *time.Time `json:"actualReturnDate,omitempty"`
	CollectedBy        string     `json:"collectedBy,omitempty"`
}

// Item is a lendable physical resource.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ItemCode    string    `json:"itemCode"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"imageUrl"`
	Status      Status    `json:"status"`
	DateAdded   time.Time `json:"dateAdded"`
	Loan
}

// ItemInput is the user-supplied part of an item, as submitted by the add and
// edit forms. ID is set when editing an existing item.
type ItemInput struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	ItemCode    string    `json:"itemCode"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	Status      Status    `json:"status"`
	DateAdded   time.Time `json:"dateAdded"`
}

// Input returns the editable fields of the item.
func (it Item) Input() ItemInput {
	return ItemInput{
		ID:          it.ID,
		Name:        it.Name,
		ItemCode:    it.ItemCode,
		Category:    it.Category,
		Description: it.Description,
		ImageURL:    it.ImageURL,
		Status:      it.Status,
		DateAdded:   it.DateAdded,
	}
}

// ReturnInfo describes a return of an issued item.
type ReturnInfo struct {
	ReturnDate  time.Time `json:"returnDate"`
	CollectedBy string    `json:"collectedBy"`
}

// Insight is a generated observation about one item plus a suggested action.
type Insight struct {
	Item            string `json:"item"`
	Issue           string `json:"issue"`
	SuggestedAction string `json:"suggestedAction"`
}

// Loan event kinds.
const (
	LoanEventIssued   = "issued"
	LoanEventReturned = "returned"
)

// LoanEvent is an entry in an item's lending history.
type LoanEvent struct {
	ID                 string     `json:"id"`
	ItemID             string     `json:"itemId"`
	ItemName           string     `json:"itemName"`
	ItemCode           string     `json:"itemCode"`
	Kind               string     `json:"kind"`
	RecipientName      string     `json:"recipientName,omitempty"`
	RecipientMobile    string     `json:"recipientMobile,omitempty"`
	IssuerName         string     `json:"issuerName,omitempty"`
	CollectedBy        string     `json:"collectedBy,omitempty"`
	IssueDate          *time.Time `json:"issueDate,omitempty"`
	ExpectedReturnDate *time.Time `json:"expectedReturnDate,omitempty"`
	ReturnDate         *time.Time `json:"returnDate,omitempty"`
	RecordedBy         string     `json:"recordedBy,omitempty"`
	RecordedAt         time.Time  `json:"recordedAt"`
}
