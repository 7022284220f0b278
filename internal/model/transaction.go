package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// RawTransaction is a single statement row exactly as a reader produced it.
// It lives only for the duration of one pipeline invocation and is never
// persisted.
type RawTransaction struct {
	Date        string // ISO 8601 (YYYY-MM-DD)
	Description string
	Amount      decimal.Decimal // signed; sign convention varies per bank
	TaxID       string          // counterparty RFC when the source carries one
	AccountHint string          // account number hint from statement metadata
	Source      string          // "xml", "tabular", "generic", "pdf"
	Page        int             // 1-based page for PDF-derived rows, 0 otherwise
	SourceLine  string          // original text line, for diagnostics
}

// MatchKey is the (date, rounded absolute amount) pair used to correlate the
// same underlying movement across two independently-extracted sources.
func (t RawTransaction) MatchKey() string {
	return t.Date + "|" + t.Amount.Abs().StringFixed(2)
}

// Kind is the semantic role of a transaction, independent of the raw sign.
type Kind string

const (
	KindCharge   Kind = "charge"
	KindPayment  Kind = "payment"
	KindRefund   Kind = "refund"
	KindCashback Kind = "cashback"
)

// ClassifiedRow is the shape consumed by export/UI collaborators.
// Field order is fixed: type, date, amount, currency, description,
// source, destination, category, tags.
type ClassifiedRow struct {
	Type            string // "withdrawal" or "transfer"
	Date            string
	Amount          string // absolute value, 2 decimals
	Currency        string
	Description     string
	SourceName      string
	DestinationName string
	Category        string
	Tags            string // comma-separated, lexicographically sorted
}

// CanonicalTransaction is the persisted form of a statement row. Its ID is
// derived from its own fields, so re-importing an unchanged statement
// reproduces identical ids.
type CanonicalTransaction struct {
	Date                  string
	RawDescription        string
	NormalizedDescription string
	Amount                decimal.Decimal
	BankID                string
	AccountID             string
	CanonicalAccountID    string
	Source                string
	TaxID                 string
}

// ID returns the content-addressed identity of the transaction: a sha256
// digest over the composite key. Any single differing field changes the id.
func (t CanonicalTransaction) ID() string {
	desc := t.NormalizedDescription
	if strings.TrimSpace(desc) == "" {
		desc = t.RawDescription
	}
	parts := []string{
		t.BankID,
		t.AccountID,
		t.CanonicalAccountID,
		t.Date,
		t.Amount.StringFixed(2),
		strings.ToLower(strings.TrimSpace(desc)),
		strings.ToLower(strings.TrimSpace(t.TaxID)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
