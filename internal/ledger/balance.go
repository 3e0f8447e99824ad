// Package ledger implements the balance-consistency rules that tie accounts,
// movements, and savings goals together. Every lifecycle operation on a
// movement keeps the owning account's balance and any linked goal total in
// step, inside a single store transaction.
package ledger

import (
	"github.com/shopspring/decimal"

	"hucha/internal/core"
)

// applyBalance returns the account balance after a movement takes effect:
// income increments, expense decrements. Called exactly once per movement
// creation.
func applyBalance(balance decimal.Decimal, kind core.Kind, amount decimal.Decimal) decimal.Decimal {
	return balance.Add(core.Signed(kind, amount))
}

// reverseBalance undoes the effect of applyBalance for the same tuple.
// Called exactly once per movement deletion, and before re-applying the new
// tuple on update, even when only the amount changed.
func reverseBalance(balance decimal.Decimal, kind core.Kind, amount decimal.Decimal) decimal.Decimal {
	return balance.Sub(core.Signed(kind, amount))
}
