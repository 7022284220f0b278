// Package reconcile correlates two independently-extracted views of the
// same statement (typically a structured export and a PDF) and reports
// where they disagree.
package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/cuentas-dev/cuentas/internal/model"
)

// amountTolerance is the largest amount delta still treated as agreement.
var amountTolerance = decimal.RequireFromString("0.01")

// Difference records one matched pair whose descriptions or amounts
// disagree beyond tolerance.
type Difference struct {
	Date                 string
	PrimaryDescription   string
	SecondaryDescription string
	PrimaryAmount        decimal.Decimal
	SecondaryAmount      decimal.Decimal
}

// Summary is the outcome of one merge.
type Summary struct {
	Matched        int
	TotalPrimary   int
	TotalSecondary int
	PrimaryOnly    []model.RawTransaction
	SecondaryOnly  []model.RawTransaction
	Differences    []Difference
}

// Merge pairs primary rows against secondary rows by (date, absolute
// amount). When several secondary rows share a key, the one whose
// description is closest to the primary's wins; each secondary row matches
// at most once. Primary rows always survive into the returned slice;
// unmatched secondary rows are appended after them.
func Merge(primary, secondary []model.RawTransaction) ([]model.RawTransaction, Summary) {
	summary := Summary{
		TotalPrimary:   len(primary),
		TotalSecondary: len(secondary),
	}

	byKey := make(map[string][]int, len(secondary))
	for i, tx := range secondary {
		key := tx.MatchKey()
		byKey[key] = append(byKey[key], i)
	}
	used := make([]bool, len(secondary))

	merged := make([]model.RawTransaction, 0, len(primary))
	for _, tx := range primary {
		idx := bestCandidate(tx, secondary, byKey[tx.MatchKey()], used)
		if idx < 0 {
			summary.PrimaryOnly = append(summary.PrimaryOnly, tx)
			merged = append(merged, tx)
			continue
		}
		used[idx] = true
		summary.Matched++
		other := secondary[idx]
		if disagree(tx, other) {
			summary.Differences = append(summary.Differences, Difference{
				Date:                 tx.Date,
				PrimaryDescription:   tx.Description,
				SecondaryDescription: other.Description,
				PrimaryAmount:        tx.Amount,
				SecondaryAmount:      other.Amount,
			})
		}
		// The primary's fields win; the secondary only fills gaps.
		if tx.TaxID == "" {
			tx.TaxID = other.TaxID
		}
		if tx.AccountHint == "" {
			tx.AccountHint = other.AccountHint
		}
		merged = append(merged, tx)
	}

	for i, tx := range secondary {
		if used[i] {
			continue
		}
		summary.SecondaryOnly = append(summary.SecondaryOnly, tx)
		merged = append(merged, tx)
	}

	return merged, summary
}

// bestCandidate picks the unused secondary row whose description is most
// similar to the primary's. Index order breaks ties.
func bestCandidate(tx model.RawTransaction, secondary []model.RawTransaction, candidates []int, used []bool) int {
	best := -1
	bestScore := -1.0
	want := strings.ToLower(tx.Description)
	for _, i := range candidates {
		if used[i] {
			continue
		}
		score := similarity(want, strings.ToLower(secondary[i].Description))
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best
}

// similarity is edit distance normalized to [0,1]; 1 means identical.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)
	return 1 - float64(dist)/float64(longest)
}

// disagree compares the signed amounts: matching on absolute value but
// disagreeing on sign is a divergence worth reporting.
func disagree(a, b model.RawTransaction) bool {
	if !strings.EqualFold(strings.TrimSpace(a.Description), strings.TrimSpace(b.Description)) {
		return true
	}
	return a.Amount.Sub(b.Amount).Abs().GreaterThan(amountTolerance)
}
