package classify

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cuentas-dev/cuentas/internal/model"
)

// KindInferrer decides the semantic role of a row from its description,
// amount sign, and counterparty tax id. The strategy is fixed per bank in
// config; each implementation must be deterministic.
type KindInferrer interface {
	Infer(description string, amount decimal.Decimal, taxID string) model.Kind
	Name() string
}

// InferrerFor returns the inferrer for a configured strategy name. The
// empty string and "sign" both select the sign strategy.
func InferrerFor(strategy string) (KindInferrer, bool) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", "sign":
		return signInferrer{}, true
	case "heuristic":
		return heuristicInferrer{}, true
	}
	return nil, false
}

// signInferrer trusts the amount sign: negative is a charge, positive a
// payment. Suits banks whose exports carry a reliable sign convention.
type signInferrer struct{}

func (signInferrer) Name() string { return "sign" }

func (signInferrer) Infer(_ string, amount decimal.Decimal, _ string) model.Kind {
	if amount.IsNegative() {
		return model.KindCharge
	}
	return model.KindPayment
}

// Description patterns for the heuristic strategy, checked in priority
// order. Service brands always bill, so they outrank the generic payment
// keywords even on positive amounts.
var (
	chargeServiceRx = regexp.MustCompile(`(?i)(netflix|spotify|nintendo|hbo|disney|openai|chatgpt|duolingo|google|youtube)`)
	cashbackRx      = regexp.MustCompile(`(?i)\b(cashback|bonificaci[oó]n)\b`)
	refundRx        = regexp.MustCompile(`(?i)\b(reembolso|devoluci[oó]n|refund)\b`)
	processorRx     = regexp.MustCompile(`(?i)\b(mercadopago|merpago|paypal|alipay|clip\s+mx|conekta)\b`)
	paymentRx       = regexp.MustCompile(`(?i)\b(pagos?|abono|payment|pymt)\b`)
	thanksRx        = regexp.MustCompile(`(?i)(su\s+pago\s+gracias|gracias\s+spei)`)
)

// heuristicInferrer implements the priority ladder used for statements whose
// amounts are all positive: brand and keyword evidence first, tax id
// presence next, raw sign last.
type heuristicInferrer struct{}

func (heuristicInferrer) Name() string { return "heuristic" }

func (heuristicInferrer) Infer(description string, amount decimal.Decimal, taxID string) model.Kind {
	switch {
	case chargeServiceRx.MatchString(description):
		return model.KindCharge
	case cashbackRx.MatchString(description):
		return model.KindCashback
	case refundRx.MatchString(description):
		return model.KindRefund
	case processorRx.MatchString(description):
		// Payment processors move money both ways. The statement's own
		// thank-you phrasing marks inbound card payments.
		if thanksRx.MatchString(description) {
			return model.KindPayment
		}
		return model.KindCharge
	case paymentRx.MatchString(description):
		return model.KindPayment
	case strings.TrimSpace(taxID) != "":
		return model.KindCharge
	case amount.IsNegative():
		return model.KindCharge
	default:
		return model.KindPayment
	}
}
