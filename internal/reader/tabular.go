package reader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/extrame/xls"

	"github.com/cuentas-dev/cuentas/internal/dates"
	"github.com/cuentas-dev/cuentas/internal/model"
	"github.com/cuentas-dev/cuentas/internal/money"
)

// headerScanLimit is how many leading rows may precede the header row.
// Santander pads exports with logo and account banner rows.
const headerScanLimit = 20

// xlsMagic is the OLE2 compound-document signature that opens every
// legacy .xls file.
var xlsMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}

// TabularParser reads Santander LikeU exports: an XLS (or CSV) whose header
// row names FECHA, CONCEPTO, and IMPORTE columns, preceded by a variable
// banner.
type TabularParser struct{}

func (p *TabularParser) Format() string { return "tabular" }

func (p *TabularParser) Parse(data []byte) ([]model.RawTransaction, error) {
	var grid [][]string
	var err error
	if bytes.HasPrefix(data, xlsMagic) {
		grid, err = readXLSGrid(data)
	} else {
		grid, err = readCSVGrid(data)
	}
	if err != nil {
		return nil, err
	}

	headerIdx, cols := findHeader(grid)
	if headerIdx < 0 {
		return nil, fmt.Errorf("no FECHA header row in first %d rows", headerScanLimit)
	}

	var rows []model.RawTransaction
	for _, record := range grid[headerIdx+1:] {
		date, ok := cellDate(record, cols.date)
		if !ok {
			continue
		}
		desc := collapseWS(cell(record, cols.concept))
		amount, okAmt := money.Parse(cell(record, cols.amount))
		if desc == "" || !okAmt {
			continue
		}
		rows = append(rows, model.RawTransaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Source:      "tabular",
		})
	}

	sortRows(rows)
	return rows, nil
}

type columnIndexes struct {
	date    int
	concept int
	amount  int
}

// findHeader locates the header row by the FECHA column and maps the three
// required columns by name.
func findHeader(grid [][]string) (int, columnIndexes) {
	limit := len(grid)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}
	for i := 0; i < limit; i++ {
		cols := columnIndexes{date: -1, concept: -1, amount: -1}
		for j, v := range grid[i] {
			switch {
			case strings.Contains(strings.ToUpper(v), "FECHA"):
				cols.date = j
			case strings.Contains(strings.ToUpper(v), "CONCEPTO"):
				cols.concept = j
			case strings.Contains(strings.ToUpper(v), "IMPORTE"):
				cols.amount = j
			}
		}
		if cols.date >= 0 && cols.concept >= 0 && cols.amount >= 0 {
			return i, cols
		}
	}
	return -1, columnIndexes{}
}

func readXLSGrid(data []byte) ([][]string, error) {
	book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("opening xls: %w", err)
	}
	if book.NumSheets() == 0 {
		return nil, fmt.Errorf("xls has no sheets")
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("xls first sheet unavailable")
	}

	var grid [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		var record []string
		for j := 0; j < row.LastCol(); j++ {
			record = append(record, row.Col(j))
		}
		grid = append(grid, record)
	}
	return grid, nil
}

func readCSVGrid(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	grid, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	return grid, nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func cellDate(record []string, idx int) (string, bool) {
	return dates.ParseSpanish(cell(record, idx))
}
