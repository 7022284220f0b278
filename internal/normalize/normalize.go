// Package normalize turns raw shouted-case statement descriptions into
// human-readable text. Description is a pure function and idempotent:
// normalizing twice equals normalizing once.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// glossary maps all-caps bank terms to their proper form: Spanish words that
// lose accents in shouted case, plus common bank abbreviations.
var glossary = map[string]string{
	// -ción endings (lose the accent in all-caps)
	"COMISION":     "Comisión",
	"ADMINISTRACION": "Administración",
	"CANCELACION":  "Cancelación",
	"DEVOLUCION":   "Devolución",
	"DISPOSICION":  "Disposición",
	"RENOVACION":   "Renovación",
	"OPERACION":    "Operación",
	"TRANSACCION":  "Transacción",
	"PROTECCION":   "Protección",
	"REPOSICION":   "Reposición",
	"FACTURACION":  "Facturación",
	"COMUNICACION": "Comunicación",
	"NOTIFICACION": "Notificación",
	"PUBLICACION":  "Publicación",
	"PENSION":      "Pensión",
	// Proparoxytones
	"DEPOSITO":    "Depósito",
	"CREDITO":     "Crédito",
	"DEBITO":      "Débito",
	"AUTOMATICO":  "Automático",
	"ELECTRONICO": "Electrónico",
	"MEDICO":      "Médico",
	"NUMERO":      "Número",
	"MINIMO":      "Mínimo",
	"MAXIMO":      "Máximo",
	"UNICO":       "Único",
	"PUBLICO":     "Público",
	"NOMINA":      "Nómina",
	"INTERES":     "Interés",
	// Abbreviations
	"TRANSF":      "Transferencia",
	"TRANSFER":    "Transferencia",
	"SUPERCT":     "Supercenter",
	"MERPAGO":     "MercadoPago",
	"MERCADOPAGO": "MercadoPago",
}

// acronyms stay fully uppercase regardless of context.
var acronyms = map[string]struct{}{
	"SPEI": {}, "IVA": {}, "RFC": {}, "ATM": {}, "PIN": {}, "CVV": {},
	"CIE": {}, "CLABE": {}, "SAT": {}, "CFE": {}, "IMSS": {},
	"ISSSTE": {}, "INFONAVIT": {},
}

var (
	noiseRx = regexp.MustCompile(`^[\d\-_/]+$`)
	wsRx    = regexp.MustCompile(`\s+`)
	digitRx = regexp.MustCompile(`^\d+$`)
)

// longDigitRun is the token length at which an all-digit token is treated
// as a reference number.
const longDigitRun = 12

// Description normalizes a raw bank description: unicode canonicalization,
// whitespace collapse, reference-number removal, accent restoration, and
// title casing. Known acronyms survive in upper case.
func Description(raw string) string {
	text := wsRx.ReplaceAllString(strings.TrimSpace(norm.NFKC.String(raw)), " ")
	if text == "" {
		return ""
	}

	tokens := strings.Split(strings.ToUpper(text), " ")
	cleaned := classifyTokens(tokens)
	merged := mergeBrands(cleaned)

	// Trailing reference numbers that survived classification.
	for len(merged) > 0 {
		last := merged[len(merged)-1]
		if !noiseRx.MatchString(last) && !digitRx.MatchString(last) {
			break
		}
		merged = merged[:len(merged)-1]
	}

	return strings.Join(merged, " ")
}

func classifyTokens(tokens []string) []string {
	titler := cases.Title(language.Spanish)

	var out []string
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if noiseRx.MatchString(tok) {
			continue
		}
		if len(tok) >= longDigitRun && digitRx.MatchString(tok) {
			continue
		}
		if proper, ok := glossary[tok]; ok {
			out = append(out, proper)
			continue
		}
		if _, ok := acronyms[tok]; ok {
			out = append(out, tok)
			continue
		}
		out = append(out, titler.String(tok))
	}
	return out
}

// mergeBrands collapses adjacent brand fragments into the canonical
// compound form ("Mercado Pago" -> "MercadoPago").
func mergeBrands(tokens []string) []string {
	var out []string
	for i := 0; i < len(tokens); i++ {
		if strings.EqualFold(tokens[i], "mercado") && i+1 < len(tokens) && strings.EqualFold(tokens[i+1], "pago") {
			out = append(out, "MercadoPago")
			i++
			continue
		}
		out = append(out, tokens[i])
	}
	return out
}
