package model

import (
	"regexp"
	"strings"
)

var (
	isoDateRx = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	tagRx     = regexp.MustCompile(`^[a-zA-Z0-9:_\-\.\*]+$`)
)

// ValidateTransaction returns a list of problem codes for a canonical
// transaction. An empty list means the row is safe to persist.
func ValidateTransaction(t CanonicalTransaction) []string {
	var problems []string
	if !isoDateRx.MatchString(t.Date) {
		problems = append(problems, "invalid_date")
	}
	if strings.TrimSpace(t.RawDescription) == "" && strings.TrimSpace(t.NormalizedDescription) == "" {
		problems = append(problems, "missing_description")
	}
	if t.BankID == "" {
		problems = append(problems, "missing_bank_id")
	}
	if t.AccountID == "" {
		problems = append(problems, "missing_account_id")
	}
	return problems
}

// ValidateTags returns a problem code per tag that fails the allowed
// character set. These are warnings unless strict mode is active.
func ValidateTags(tags []string) []string {
	var problems []string
	for _, tag := range tags {
		if !tagRx.MatchString(tag) {
			problems = append(problems, "invalid_tag:"+tag)
		}
	}
	return problems
}
