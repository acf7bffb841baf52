// Package core holds the domain model for the finance dashboard: the
// transaction and summary rows returned by the row-filtered views, the
// user's filter selection, and money formatting helpers.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrency renders an amount as a dollar string with thousands
// separators and two decimal places, e.g. "$1,234.50". Negative amounts
// keep the sign in front of the dollar symbol.
func FormatCurrency(amount decimal.Decimal) string {
	neg := amount.IsNegative()
	s := amount.Abs().StringFixed(2)

	intPart, fracPart, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(fracPart)
	return b.String()
}

// FormatCount renders a row count with thousands separators, e.g.
// "12,480".
func FormatCount(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SumAmounts adds the Amount of every transaction. Decimal arithmetic, so
// the result is exact regardless of row order.
func SumAmounts(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}
