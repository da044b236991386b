package model

// ItemPatch is an explicit update of an item's mutable fields. Nil fields are
// left unchanged. A non-nil Loan replaces all loan fields.
type ItemPatch struct {
	Name        *string `json:"name,omitempty"`
	ItemCode    *string `json:"itemCode,omitempty"`
	Category    *string `json:"category,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
	Status      *Status `json:"status,omitempty"`
	Loan        *Loan   `json:"loan,omitempty"`

	// IfStatus makes the update conditional on the stored status.
	IfStatus *Status `json:"-"`
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.ItemCode == nil && p.Category == nil &&
		p.Description == nil && p.ImageURL == nil && p.Status == nil && p.Loan == nil
}

// Apply returns item with the patch applied.
func (p ItemPatch) Apply(item Item) Item {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.ItemCode != nil {
		item.ItemCode = *p.ItemCode
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.ImageURL != nil {
		item.ImageURL = *p.ImageURL
	}
	if p.Status != nil {
		item.Status = *p.Status
	}
	if p.Loan != nil {
		item.Loan = *p.Loan
	}
	return item
}

// Diff returns the patch that turns old into updated. ID and DateAdded are
// immutable and never part of a patch.
func Diff(old, updated Item) ItemPatch {
	var p ItemPatch
	if old.Name != updated.Name {
		p.Name = &updated.Name
	}
	if old.ItemCode != updated.ItemCode {
		p.ItemCode = &updated.ItemCode
	}
	if old.Category != updated.Category {
		p.Category = &updated.Category
	}
	if old.Description != updated.Description {
		p.Description = &updated.Description
	}
	if old.ImageURL != updated.ImageURL {
		p.ImageURL = &updated.ImageURL
	}
	if old.Status != updated.Status {
		p.Status = &updated.Status
	}
	if !loanEqual(old.Loan, updated.Loan) {
		loan := updated.Loan
		p.Loan = &loan
	}
	return p
}

func loanEqual(a, b Loan) bool {
	return a.RecipientName == b.RecipientName &&
		a.RecipientMobile == b.RecipientMobile &&
		a.IssuerName == b.IssuerName &&
		a.CollectedBy == b.CollectedBy &&
		timeEqual(a.IssueDate, b.IssueDate) &&
		timeEqual(a.ExpectedReturnDate, b.ExpectedReturnDate) &&
		timeEqual(a.ActualReturnDate, b.ActualReturnDate)
}
