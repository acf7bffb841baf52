// Package analytics contains the pure aggregation and insight derivation
// functions behind the dashboard. Every function takes rows that are
// already access-filtered by the database's row policy; nothing here
// re-derives department visibility. Given the same rows and selection the
// output is always the same.
package analytics

import (
	"campusledger/internal/core"
)

// Filter applies the selection predicate to txs: a row survives iff its
// fiscal year and category are selected and the department matches (or the
// selection is "All"). Input order is preserved, so rows keep the view's
// descending-date ordering unless the caller re-sorts. Idempotent.
//
// An empty year or category set returns the corresponding core sentinel;
// callers surface it as a corrective prompt and skip rendering.
func Filter(txs []core.Transaction, sel core.Selection) ([]core.Transaction, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if sel.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ByCategory returns the subset of txs in the given category, preserving
// order. Used for the category deep-dive pass.
func ByCategory(txs []core.Transaction, category string) []core.Transaction {
	var out []core.Transaction
	for _, t := range txs {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}
