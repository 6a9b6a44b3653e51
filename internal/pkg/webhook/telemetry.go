package webhook

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Triage flags. None of them rejects a webhook.
const (
	FlagLookupMiss         = "lookup_miss"
	FlagUnknownStatus      = "unknown_status"
	FlagAmountMismatch     = "amount_mismatch"
	FlagFeeExceedsAmount   = "fee_exceeds_amount"
	FlagFailedAfterSent    = "failed_after_sent"
	FlagConfirmedAfterFail = "confirmed_after_failed"
	FlagSignatureMismatch  = "signature_mismatch"
	FlagNotSubmitted       = "not_submitted"
)

const (
	anomalyNegative        = "negative"
	anomalyZero            = "zero"
	anomalyNonFinite       = "non_finite"
	anomalyScientific      = "scientific_notation"
	anomalyNonDecimalRadix = "non_decimal_radix"
	anomalyUnparsable      = "unparsable"
)

var radixPrefix = regexp.MustCompile(`^[+-]?0[xXoObB]`)

// Telemetry is the advisory analysis of a notification's numeric fields.
type Telemetry struct {
	Flags  []string
	Amount *decimal.Decimal
	Fee    *decimal.Decimal
}

// Analyze inspects amount and fee. Flags are prefixed with the field name,
// e.g. "amount_negative".
func Analyze(n Notification) Telemetry {
	var t Telemetry
	t.Amount = t.inspect("amount", n.Amount)
	t.Fee = t.inspect("fee", n.Fee)
	if t.Amount != nil && t.Fee != nil && t.Fee.GreaterThan(*t.Amount) {
		t.Flags = append(t.Flags, FlagFeeExceedsAmount)
	}
	return t
}

func (t *Telemetry) inspect(name, raw string) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	lower := strings.ToLower(raw)
	flag := func(anomaly string) {
		t.Flags = append(t.Flags, name+"_"+anomaly)
	}

	switch {
	case strings.Contains(lower, "nan") || strings.Contains(lower, "inf"):
		flag(anomalyNonFinite)
		return nil
	case radixPrefix.MatchString(raw):
		flag(anomalyNonDecimalRadix)
		return nil
	case strings.Contains(lower, "e"):
		flag(anomalyScientific)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		flag(anomalyUnparsable)
		return nil
	}
	if d.IsNegative() {
		flag(anomalyNegative)
	} else if d.IsZero() {
		flag(anomalyZero)
	}
	return &d
}
