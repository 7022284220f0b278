// Package reader turns bank statement exports into RawTransactions. Each
// supported format is a Parser; banks are bound to formats in rules.yml.
package reader

import (
	"sort"
	"strings"

	"github.com/cuentas-dev/cuentas/internal/model"
)

// Parser converts one statement export into raw transactions.
type Parser interface {
	Parse(data []byte) ([]model.RawTransaction, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&CFDIParser{})
	r.Register(&TabularParser{})
	r.Register(&GenericCSVParser{})
	return r
}

// sortRows puts rows into the canonical deterministic order used by every
// parser: date, then description, then amount, then tax id.
func sortRows(rows []model.RawTransaction) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Description != b.Description {
			return a.Description < b.Description
		}
		if cmp := a.Amount.Cmp(b.Amount); cmp != 0 {
			return cmp < 0
		}
		return a.TaxID < b.TaxID
	})
}
