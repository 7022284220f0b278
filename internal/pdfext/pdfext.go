// Package pdfext extracts transaction rows and statement metadata from PDF
// statements. The embedded text layer is tried first; image-only pages fall
// back to OCR through the external pdftoppm and tesseract binaries.
package pdfext

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ledongthuc/pdf"

	"github.com/cuentas-dev/cuentas/internal/dates"
	"github.com/cuentas-dev/cuentas/internal/model"
	"github.com/cuentas-dev/cuentas/internal/money"
)

// ErrOCRTimeout is returned when the OCR toolchain exceeds the configured
// deadline. Callers distinguish it from extraction failures so a slow scan
// does not read as a corrupt file.
var ErrOCRTimeout = errors.New("ocr timed out")

// minTextLayerChars is the threshold below which a page's text layer is
// considered image-only and OCR kicks in.
const minTextLayerChars = 50

// rowRx matches one statement transaction line: a date ("12 ENE", "12ENE"
// or "12/01/24"), a description, and a trailing amount with mandatory
// two-digit cents.
// The amount class deliberately excludes spaces so that reference numbers
// before the amount stay in the description.
var rowRx = regexp.MustCompile(`(?i)(\d{1,2}(?:\s*[A-ZÁÉÍÓÚ]{3}|\s*[/-]\s*\d{1,2}\s*[/-]\s*\d{2,4}))\s+(.*?)\s+([-+]?[\d,.]+[,.]\d{2})\s*$`)

// Engine extracts rows and metadata from statement PDFs.
type Engine struct {
	Log        *log.Logger
	ForceOCR   bool
	Zoom       float64       // render scale over the PDF's 72 dpi base
	OCRTimeout time.Duration // per-document deadline for the OCR toolchain
	Languages  string        // passed to tesseract -l
}

// NewEngine returns an engine with the defaults tuned for Mexican credit
// card statements.
func NewEngine(logger *log.Logger) *Engine {
	return &Engine{
		Log:        logger,
		Zoom:       3.0,
		OCRTimeout: 2 * time.Minute,
		Languages:  "spa+eng",
	}
}

// Transactions extracts transaction rows from every page of the PDF. Year
// disambiguates day-month dates that carry no year of their own.
func (e *Engine) Transactions(ctx context.Context, path string, year int) ([]model.RawTransaction, error) {
	pages, err := textLayerPages(path)
	if err != nil {
		e.Log.Warn("text layer unavailable", "path", path, "error", err)
		pages = nil
	}

	var rows []model.RawTransaction
	pageCount := len(pages)
	if pageCount == 0 {
		pageCount = pdfPageCount(path)
	}

	for pageIdx := 1; pageIdx <= pageCount; pageIdx++ {
		text := ""
		if !e.ForceOCR && pageIdx <= len(pages) && len(strings.TrimSpace(pages[pageIdx-1])) > minTextLayerChars {
			text = pages[pageIdx-1]
		}

		pageRows := parseRows(text, pageIdx, year)

		if len(pageRows) == 0 {
			ocrText, ocrErr := e.ocrPage(ctx, path, pageIdx)
			if ocrErr != nil {
				if errors.Is(ocrErr, ErrOCRTimeout) {
					return rows, ocrErr
				}
				e.Log.Warn("ocr failed", "path", path, "page", pageIdx, "error", ocrErr)
				continue
			}
			pageRows = parseRows(cleanOCRText(ocrText), pageIdx, year)
		}

		e.Log.Debug("page extracted", "page", pageIdx, "rows", len(pageRows))
		rows = append(rows, pageRows...)
	}

	return rows, nil
}

// parseRows scans page text line by line for transaction rows.
func parseRows(text string, page, year int) []model.RawTransaction {
	var rows []model.RawTransaction
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := rowRx.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		date, ok := dates.ParseStatement(m[1], year)
		if !ok {
			continue
		}
		amount, okAmt := money.Parse(m[3])
		if !okAmt {
			continue
		}
		desc := strings.TrimSpace(m[2])
		if desc == "" {
			continue
		}
		rows = append(rows, model.RawTransaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Source:      "pdf",
			Page:        page,
			SourceLine:  line,
		})
	}
	return rows
}

// cleanOCRText repairs the artifacts tesseract introduces around currency
// symbols and negative signs.
func cleanOCRText(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.ReplaceAll(line, " - ", "-")
		line = strings.ReplaceAll(line, " $ ", "$")
		line = strings.ReplaceAll(line, "$", "")
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// textLayerPages pulls the embedded text of every page. The pdf library
// panics on some malformed files, so the recover converts that into an
// error.
func textLayerPages(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("pdf library panic")
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		rows, rowErr := page.GetTextByRow()
		if rowErr != nil {
			pages = append(pages, "")
			continue
		}
		var lines []string
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages, nil
}
