// Package settle holds the pure settlement math: normalizing raw player
// records into integer-cent net balances and matching debtors against
// creditors into a near-minimal payment list. Nothing in this package
// performs I/O.
package settle

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/chiptally/settlement-api/internal/domain"
)

// Normalize converts player records into exact integer-cent net balances
// and enforces the zero-sum invariant. Each monetary value is rounded to
// the nearest cent (half to even) before subtraction, so everything
// downstream is integer math.
//
// A nonzero sum within one cent per player is treated as accumulated
// rounding and absorbed by the largest-magnitude balance; anything larger
// means the chips were not reconciled upstream and is rejected.
func Normalize(records []domain.PlayerRecord) ([]domain.NetBalance, error) {
	balances := make([]domain.NetBalance, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		if rec.UserID == "" {
			return nil, fmt.Errorf("Normalize: empty user id: %w", domain.ErrInvalidRecord)
		}
		if rec.TotalBuyIn.IsNegative() || rec.CashOut.IsNegative() {
			return nil, fmt.Errorf("Normalize: user %s: negative amount: %w", rec.UserID, domain.ErrInvalidRecord)
		}
		if _, dup := seen[rec.UserID]; dup {
			return nil, fmt.Errorf("Normalize: duplicate user %s: %w", rec.UserID, domain.ErrInvalidRecord)
		}
		seen[rec.UserID] = struct{}{}

		balances = append(balances, domain.NetBalance{
			UserID: rec.UserID,
			Amount: toCents(rec.CashOut) - toCents(rec.TotalBuyIn),
		})
	}

	var residue int64
	for _, b := range balances {
		residue += b.Amount
	}
	if residue != 0 {
		if abs(residue) > int64(len(balances)) {
			return nil, fmt.Errorf("Normalize: residue of %d cents across %d players: %w",
				residue, len(balances), domain.ErrUnbalancedLedger)
		}
		absorbResidue(balances, residue)
	}

	sort.Slice(balances, func(i, j int) bool {
		return balances[i].UserID < balances[j].UserID
	})
	return balances, nil
}

// toCents rounds a monetary value to integer cents, half to even.
func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).RoundBank(0).IntPart()
}

// absorbResidue charges the rounding residue to the balance with the
// largest absolute magnitude, ties broken by smallest user id.
func absorbResidue(balances []domain.NetBalance, residue int64) {
	target := 0
	for i := 1; i < len(balances); i++ {
		mi, mt := abs(balances[i].Amount), abs(balances[target].Amount)
		if mi > mt || (mi == mt && balances[i].UserID < balances[target].UserID) {
			target = i
		}
	}
	balances[target].Amount -= residue
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
