// Package classify maps normalized statement rows onto ledger categories,
// merchants, statement periods, and transaction kinds using the compiled
// rule cascade from config.
package classify

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cuentas-dev/cuentas/internal/config"
)

// UnknownMerchant is the sentinel used when no alias matches and no usable
// token survives cleanup.
const UnknownMerchant = "unknown"

var merchantDigitRx = regexp.MustCompile(`\d+`)

// Merchant canonicalizes a description into a merchant slug for the
// merchant:<slug> tag. Aliases are tried in declaration order; without a
// match, the first two non-numeric tokens joined by "_" become the slug.
func Merchant(description string, aliases []config.Alias) string {
	desc := strings.Join(strings.Fields(strings.ToLower(description)), " ")
	if desc == "" {
		return UnknownMerchant
	}

	for _, alias := range aliases {
		for _, rx := range alias.Regexes {
			if rx.MatchString(desc) {
				if alias.Canon == "" {
					return UnknownMerchant
				}
				return alias.Canon
			}
		}
	}

	stripped := merchantDigitRx.ReplaceAllString(desc, "")
	fields := strings.Fields(stripped)
	if len(fields) == 0 {
		return UnknownMerchant
	}
	if len(fields) > 2 {
		fields = fields[:2]
	}
	return strings.Join(fields, "_")
}

// Outcome is the result of running a description through the rule cascade.
type Outcome struct {
	RuleName string
	Expense  string
	Tags     []string
	Matched  bool
}

// Apply runs the cascade: the first rule whose ANY regex matches wins.
// Unmatched descriptions fall back to the configured default expense.
func Apply(description string, cfg *config.Config) Outcome {
	for _, rule := range cfg.Rules {
		for _, rx := range rule.Regexes {
			if rx.MatchString(description) {
				return Outcome{
					RuleName: rule.Name,
					Expense:  rule.Expense,
					Tags:     rule.Tags,
					Matched:  true,
				}
			}
		}
	}
	return Outcome{
		RuleName: "fallback",
		Expense:  cfg.FallbackExpense,
	}
}

// Category extracts the reporting category from an expense path like
// "Expenses:Food:Restaurants" (the second segment). Single-segment paths
// are their own category.
func Category(expense string) string {
	parts := strings.Split(expense, ":")
	if len(parts) >= 2 {
		return parts[1]
	}
	return expense
}

// Period assigns a transaction to a statement period: days after the
// closing day belong to the next month's statement. December rolls the
// year forward.
func Period(isoDate string, closingDay int) (string, error) {
	if len(isoDate) != 10 {
		return "", fmt.Errorf("not an ISO date: %q", isoDate)
	}
	var year, month, day int
	if _, err := fmt.Sscanf(isoDate, "%4d-%2d-%2d", &year, &month, &day); err != nil {
		return "", fmt.Errorf("not an ISO date: %q", isoDate)
	}
	if closingDay <= 0 {
		closingDay = 31
	}
	if day > closingDay {
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	return fmt.Sprintf("%04d-%02d", year, month), nil
}

// AssembleTags merges rule tags, the per-card tag, and the statement period
// tag into one deduplicated, sorted, comma-separated string.
func AssembleTags(ruleTags []string, extra ...string) string {
	seen := map[string]struct{}{}
	var out []string
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	for _, t := range ruleTags {
		add(t)
	}
	for _, t := range extra {
		add(t)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}
