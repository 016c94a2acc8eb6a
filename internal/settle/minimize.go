package settle

import (
	"container/heap"

	"github.com/chiptally/settlement-api/internal/domain"
)

// Transfer is one computed payment: FromUser (a debtor) pays ToUser
// (a creditor) Amount cents.
type Transfer struct {
	FromUser string
	ToUser   string
	Amount   int64
}

// Minimize matches debtors against creditors with greedy largest-pair
// matching: repeatedly pair the largest open credit with the largest open
// debt and settle the smaller of the two. Every step zeroes at least one
// participant, so the result has at most n-1 transfers for n nonzero
// balances. The true minimum would require solving a zero-sum partition
// problem (NP-hard); this heuristic is the documented contract.
//
// Output is fully deterministic: both sides are ordered by
// (magnitude desc, user id asc), so the same balances always produce the
// same transfer list regardless of input order.
func Minimize(balances []domain.NetBalance) []Transfer {
	var creditors, debtors partyHeap
	for _, b := range balances {
		switch {
		case b.Amount > 0:
			creditors = append(creditors, party{userID: b.UserID, amount: b.Amount})
		case b.Amount < 0:
			debtors = append(debtors, party{userID: b.UserID, amount: -b.Amount})
		}
	}
	heap.Init(&creditors)
	heap.Init(&debtors)

	transfers := make([]Transfer, 0, max(len(creditors)+len(debtors)-1, 0))
	for creditors.Len() > 0 && debtors.Len() > 0 {
		c := heap.Pop(&creditors).(party)
		d := heap.Pop(&debtors).(party)

		pay := min(c.amount, d.amount)
		transfers = append(transfers, Transfer{
			FromUser: d.userID,
			ToUser:   c.userID,
			Amount:   pay,
		})

		if c.amount -= pay; c.amount > 0 {
			heap.Push(&creditors, c)
		}
		if d.amount -= pay; d.amount > 0 {
			heap.Push(&debtors, d)
		}
	}
	return transfers
}

// party is one side of an open debt; amount is always positive.
type party struct {
	userID string
	amount int64
}

// partyHeap is a max-heap on amount with user id as tie-break.
type partyHeap []party

func (h partyHeap) Len() int { return len(h) }

func (h partyHeap) Less(i, j int) bool {
	if h[i].amount != h[j].amount {
		return h[i].amount > h[j].amount
	}
	return h[i].userID < h[j].userID
}

func (h partyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *partyHeap) Push(x any) { *h = append(*h, x.(party)) }

func (h *partyHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
