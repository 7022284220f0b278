package reader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/cuentas-dev/cuentas/internal/dates"
	"github.com/cuentas-dev/cuentas/internal/model"
	"github.com/cuentas-dev/cuentas/internal/money"
)

// GenericCSVParser handles banks without a dedicated format: a CSV whose
// first row is a header, with columns mapped by substring containment.
type GenericCSVParser struct{}

func (p *GenericCSVParser) Format() string { return "csv" }

func (p *GenericCSVParser) Parse(data []byte) ([]model.RawTransaction, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	dateCol, descCol, amtCol, debitCol, creditCol := -1, -1, -1, -1, -1
	for j, name := range records[0] {
		n := strings.ToLower(strings.TrimSpace(name))
		switch {
		case containsAny(n, "fecha", "date"):
			dateCol = j
		case containsAny(n, "desc", "concepto"):
			descCol = j
		case containsAny(n, "importe", "amount", "monto"):
			amtCol = j
		case containsAny(n, "cargo", "debit"):
			debitCol = j
		case containsAny(n, "abono", "credit"):
			creditCol = j
		}
	}
	// A header that names no usable columns is not an error; the file just
	// has nothing this parser can read.
	if dateCol < 0 || descCol < 0 {
		return nil, nil
	}

	var rows []model.RawTransaction
	for _, record := range records[1:] {
		raw := cell(record, dateCol)
		date, ok := dates.ParseISO(raw)
		if !ok {
			date, ok = dates.ParseSpanish(raw)
		}
		if !ok {
			continue
		}
		desc := collapseWS(cell(record, descCol))
		if desc == "" {
			continue
		}
		amount, okAmt := money.Parse(cell(record, amtCol))
		if !okAmt {
			// Split cargo/abono layouts: charges negative, credits positive.
			if debit, okD := money.Parse(cell(record, debitCol)); okD && !debit.IsZero() {
				amount, okAmt = debit.Abs().Neg(), true
			} else if credit, okC := money.Parse(cell(record, creditCol)); okC {
				amount, okAmt = credit.Abs(), true
			}
		}
		if !okAmt {
			continue
		}
		rows = append(rows, model.RawTransaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Source:      "generic",
		})
	}

	sortRows(rows)
	return rows, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
