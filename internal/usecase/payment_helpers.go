package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// GenerateOrderID produces a caller-side unique order id for a transaction.
// Format: {prefix}-{timestamp}-{user fragment}-{ulid fragment},
// e.g. AP-20251005142530-9f1c2a3b-01hq4e.
func GenerateOrderID(prefix, userID string) string {
	if prefix == "" {
		prefix = "AP"
	}
	ts := time.Now().UTC().Format("20060102150405")
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.DefaultEntropy()).String()
	suffix := strings.ToLower(id[len(id)-6:])
	if userID != "" {
		frag := userID
		if i := strings.IndexByte(frag, '-'); i > 0 {
			frag = frag[:i]
		}
		return fmt.Sprintf("%s-%s-%s-%s", prefix, ts, frag, suffix)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, ts, suffix)
}

// CalculateSubscriptionAmount prices a subscription of the given duration.
// Longer commitments get a flat discount: 5% at 3 months, 10% at 6, 15% at 12.
func CalculateSubscriptionAmount(months int, baseMonthlyPriceIRR int64) int64 {
	var discountPct int64
	switch {
	case months >= 12:
		discountPct = 15
	case months >= 6:
		discountPct = 10
	case months >= 3:
		discountPct = 5
	}
	total := baseMonthlyPriceIRR * int64(months)
	return total * (100 - discountPct) / 100
}

// FormatAmountDisplay renders an IRR amount with thousand separators.
func FormatAmountDisplay(amountIRR int64) string {
	s := fmt.Sprintf("%d", amountIRR)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String() + " ریال"
}

// MaskCardPAN hides the middle digits of a card number, keeping the issuer
// prefix and the last four. Inputs shorter than a full PAN pass through.
func MaskCardPAN(cardNumber string) string {
	if cardNumber == "" {
		return ""
	}
	var digits []byte
	for i := 0; i < len(cardNumber); i++ {
		if cardNumber[i] >= '0' && cardNumber[i] <= '9' {
			digits = append(digits, cardNumber[i])
		}
	}
	if len(digits) < 16 {
		return cardNumber
	}
	return fmt.Sprintf("%s-%s**-****-%s", digits[:4], digits[4:6], digits[len(digits)-4:])
}
