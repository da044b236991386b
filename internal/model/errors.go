package model

import (
	"fmt"
	"strings"
)

// Validation rules reported in FieldError.Rule.
const (
	RuleNameLength       = "name_length"
	RuleCodeLength       = "code_length"
	RuleCodeCharset      = "code_charset"
	RuleCodeUnique       = "code_unique"
	RuleImageURL         = "image_url"
	RuleCategoryRequired = "category_required"
	RuleStatusInvalid    = "status_invalid"
	RuleDateRequired     = "date_required"
	RuleDateInFuture     = "date_in_future"
	RuleRecipientName    = "recipient_name"
	RuleRecipientMobile  = "recipient_mobile"
	RuleIssuerName       = "issuer_name"
	RuleIssueDate        = "issue_date"
	RuleExpectedReturn   = "expected_return_date"
	RuleReturnDate       = "return_date"
)

// FieldError is a single violated rule on a form field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError lists every violated field of an input.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Has reports whether the error contains the given rule.
func (e *ValidationError) Has(rule string) bool {
	for _, f := range e.Fields {
		if f.Rule == rule {
			return true
		}
	}
	return false
}

// ByField returns the first message per field, for inline form display.
func (e *ValidationError) ByField() map[string]string {
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, ok := m[f.Field]; !ok {
			m[f.Field] = f.Message
		}
	}
	return m
}

func (e *ValidationError) add(field, rule, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Rule: rule, Message: message})
}

// errOrNil keeps a nil *ValidationError from becoming a non-nil error.
func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// TransitionError is returned when a status change violates the lifecycle.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

// CodeTakenError reports an item code already used by another item.
func CodeTakenError() *ValidationError {
	verr := &ValidationError{}
	verr.add("itemCode", RuleCodeUnique, "Item code must be unique")
	return verr
}
