package model

import (
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// ItemCodeLength is the exact length of an item code.
const ItemCodeLength = 6

// MinNameLength applies to item, recipient and issuer names.
const MinNameLength = 3

var (
	itemCodePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	mobilePattern   = regexp.MustCompile(`^\d{10}$`)
	dataURIPattern  = regexp.MustCompile(`^data:image/[a-zA-Z0-9.+-]+(;[a-zA-Z0-9=.+-]+)*(;base64)?,.+`)
)

// ValidateItem checks an add or edit form against the rules for items and
// returns the normalized item. existing is the full item set; the item whose
// ID equals in.ID is skipped by the uniqueness check so that an edited item can
// keep its own code. All violations are reported together.
func ValidateItem(in ItemInput, existing []Item, now time.Time) (Item, error) {
	item := Item{
		ID:          in.ID,
		Name:        strings.TrimSpace(in.Name),
		ItemCode:    strings.TrimSpace(in.ItemCode),
		Category:    strings.TrimSpace(in.Category),
		Description: strings.TrimSpace(in.Description),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Status:      in.Status,
		DateAdded:   in.DateAdded,
	}
	if item.Status == "" {
		item.Status = StatusAvailable
	}

	verr := &ValidationError{}

	if utf8.RuneCountInString(item.Name) < MinNameLength {
		verr.add("name", RuleNameLength, "Name must be at least 3 characters")
	}

	switch {
	case len(item.ItemCode) != ItemCodeLength:
		verr.add("itemCode", RuleCodeLength, "Item code must be 6 characters")
	case !itemCodePattern.MatchString(item.ItemCode):
		verr.add("itemCode", RuleCodeCharset, "Item code must be alphanumeric")
	case codeTaken(item.ItemCode, item.ID, existing):
		verr.add("itemCode", RuleCodeUnique, "Item code must be unique")
	}

	if !IsImageRef(item.ImageURL) {
		verr.add("imageUrl", RuleImageURL, "Must be a valid URL or data URI")
	}

	if item.Category == "" {
		verr.add("category", RuleCategoryRequired, "Category is required")
	}

	if !item.Status.Valid() {
		verr.add("status", RuleStatusInvalid, "Status must be Available, Issued or Repair")
	}

	if item.DateAdded.IsZero() {
		verr.add("dateAdded", RuleDateRequired, "Date of entry is required")
	} else if item.DateAdded.After(now) {
		verr.add("dateAdded", RuleDateInFuture, "Date of entry cannot be in the future")
	}

	if err := verr.errOrNil(); err != nil {
		return Item{}, err
	}
	return item, nil
}

func codeTaken(code, selfID string, existing []Item) bool {
	for _, other := range existing {
		if selfID != "" && other.ID == selfID {
			continue
		}
		if other.ItemCode == code {
			return true
		}
	}
	return false
}

// IsImageRef reports whether s is an absolute http(s) URL or an image data URI.
func IsImageRef(s string) bool {
	if strings.HasPrefix(s, "data:") {
		return dataURIPattern.MatchString(s)
	}
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// validateLoan checks the issue form.
func validateLoan(loan Loan) error {
	verr := &ValidationError{}

	if utf8.RuneCountInString(strings.TrimSpace(loan.RecipientName)) < MinNameLength {
		verr.add("recipientName", RuleRecipientName, "Recipient name is required")
	}
	if !mobilePattern.MatchString(strings.TrimSpace(loan.RecipientMobile)) {
		verr.add("recipientMobile", RuleRecipientMobile, "Must be a valid 10-digit mobile number")
	}
	if utf8.RuneCountInString(strings.TrimSpace(loan.IssuerName)) < MinNameLength {
		verr.add("issuerName", RuleIssuerName, "Issuer name is required")
	}
	if loan.IssueDate == nil || loan.IssueDate.IsZero() {
		verr.add("issueDate", RuleIssueDate, "Issue date is required")
	}
	switch {
	case loan.ExpectedReturnDate == nil || loan.ExpectedReturnDate.IsZero():
		verr.add("expectedReturnDate", RuleExpectedReturn, "Expected return date is required")
	case loan.IssueDate != nil && !loan.ExpectedReturnDate.After(*loan.IssueDate):
		verr.add("expectedReturnDate", RuleExpectedReturn, "Expected return date must be after the issue date")
	}

	return verr.errOrNil()
}
