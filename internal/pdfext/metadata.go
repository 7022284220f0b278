package pdfext

import (
	"context"
	"image"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cuentas-dev/cuentas/internal/money"
)

// Metadata is the statement summary block: cutoff and due dates, period,
// and the three payment amounts printed on page one.
type Metadata struct {
	CutoffDate      string
	DueDate         string
	Period          string
	PagoMinimo      decimal.NullDecimal
	PagoNoIntereses decimal.NullDecimal
	TotalPagar      decimal.NullDecimal
}

// Each field is tried against its patterns in order; the first match wins.
var (
	cutoffRxs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:fecha|periodo)\s*de\s*corte[:.\s]*(\d{1,2}\s*[/-]\s*[A-Za-z]{3}\s*[/-]\s*\d{2,4})`),
		regexp.MustCompile(`(?i)corte[:.\s]*(\d{1,2}\s*[/-]\s*\w{3}\s*[/-]\s*\d{2,4})`),
	}
	dueRxs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:fecha|l[íi]mite)\s*de\s*pago[:.\s]*(\d{1,2}\s*[/-]\s*[A-Za-z]{3}\s*[/-]\s*\d{2,4})`),
	}
	periodRxs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)periodo[:.\s]*(\d{1,2}\s*\w{3}\s*\d{2,4}\s*-\s*\d{1,2}\s*\w{3}\s*\d{2,4})`),
	}
	pagoMinimoRxs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)pago\s*m[íi]nimo[:.\s]*\$?\s*([\d,]+\.\d{2})`),
	}
	pagoNoInteresesRxs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)pago\s*para\s*no\s*generar\s*intereses[:.\s]*\$?\s*([\d,]+\.\d{2})`),
	}
	totalPagarRxs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:total\s*a\s*pagar|saldo\s*total)[:.\s]*\$?\s*([\d,]+\.\d{2})`),
	}
)

// Metadata extracts the summary block from page one. The text layer is
// tried first; when the cutoff date or total due is still missing, the
// header band of page one is OCRed.
func (e *Engine) Metadata(ctx context.Context, path string) (Metadata, error) {
	var meta Metadata

	pages, err := textLayerPages(path)
	if err == nil && len(pages) > 0 {
		fillMetadata(&meta, pages[0])
	}

	if meta.CutoffDate != "" && meta.TotalPagar.Valid {
		return meta, nil
	}

	headerText, ocrErr := e.ocrHeader(ctx, path)
	if ocrErr != nil {
		e.Log.Debug("header ocr unavailable", "path", path, "error", ocrErr)
		return meta, nil
	}
	fillMetadata(&meta, headerText)
	return meta, nil
}

func fillMetadata(meta *Metadata, text string) {
	if meta.CutoffDate == "" {
		meta.CutoffDate = firstMatch(text, cutoffRxs)
	}
	if meta.DueDate == "" {
		meta.DueDate = firstMatch(text, dueRxs)
	}
	if meta.Period == "" {
		meta.Period = firstMatch(text, periodRxs)
	}
	if !meta.PagoMinimo.Valid {
		meta.PagoMinimo = matchAmount(text, pagoMinimoRxs)
	}
	if !meta.PagoNoIntereses.Valid {
		meta.PagoNoIntereses = matchAmount(text, pagoNoInteresesRxs)
	}
	if !meta.TotalPagar.Valid {
		meta.TotalPagar = matchAmount(text, totalPagarRxs)
	}
}

func firstMatch(text string, rxs []*regexp.Regexp) string {
	for _, rx := range rxs {
		if m := rx.FindStringSubmatch(text); m != nil {
			return strings.Join(strings.Fields(m[1]), " ")
		}
	}
	return ""
}

func matchAmount(text string, rxs []*regexp.Regexp) decimal.NullDecimal {
	for _, rx := range rxs {
		if m := rx.FindStringSubmatch(text); m != nil {
			if d, ok := money.Parse(m[1]); ok {
				return decimal.NullDecimal{Decimal: d, Valid: true}
			}
		}
	}
	return decimal.NullDecimal{}
}

// ocrHeader OCRs the summary band of page one: the top half of the page
// minus the logo strip and margins, where banks print cutoff and totals.
func (e *Engine) ocrHeader(ctx context.Context, path string) (string, error) {
	text, err := e.ocrRegion(ctx, path, 1, func(b image.Rectangle) image.Rectangle {
		w, h := b.Dx(), b.Dy()
		return image.Rect(
			b.Min.X+w*5/100,
			b.Min.Y+h*5/100,
			b.Max.X-w*5/100,
			b.Min.Y+h*50/100,
		)
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
