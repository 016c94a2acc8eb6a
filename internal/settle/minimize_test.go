package settle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiptally/settlement-api/internal/domain"
)

func bal(userID string, amount int64) domain.NetBalance {
	return domain.NetBalance{UserID: userID, Amount: amount}
}

func TestMinimize(t *testing.T) {
	tests := []struct {
		name     string
		balances []domain.NetBalance
		want     []Transfer
	}{
		{
			name: "one creditor two debtors",
			balances: []domain.NetBalance{
				bal("A", 1500), bal("B", -1000), bal("C", -500),
			},
			want: []Transfer{
				{FromUser: "B", ToUser: "A", Amount: 1000},
				{FromUser: "C", ToUser: "A", Amount: 500},
			},
		},
		{
			name: "four players settle in three payments",
			balances: []domain.NetBalance{
				bal("A", 2000), bal("B", 500), bal("C", -1500), bal("D", -1000),
			},
			want: []Transfer{
				{FromUser: "C", ToUser: "A", Amount: 1500},
				{FromUser: "D", ToUser: "A", Amount: 500},
				{FromUser: "D", ToUser: "B", Amount: 500},
			},
		},
		{
			name: "single pair",
			balances: []domain.NetBalance{
				bal("winner", 2500), bal("loser", -2500),
			},
			want: []Transfer{
				{FromUser: "loser", ToUser: "winner", Amount: 2500},
			},
		},
		{
			name: "everyone broke even",
			balances: []domain.NetBalance{
				bal("A", 0), bal("B", 0), bal("C", 0),
			},
			want: []Transfer{},
		},
		{
			name:     "empty input",
			balances: nil,
			want:     []Transfer{},
		},
		{
			name: "zero balances dropped",
			balances: []domain.NetBalance{
				bal("A", 700), bal("B", 0), bal("C", -700),
			},
			want: []Transfer{
				{FromUser: "C", ToUser: "A", Amount: 700},
			},
		},
		{
			name: "equal magnitudes break ties by user id",
			balances: []domain.NetBalance{
				bal("D", -500), bal("C", -500), bal("B", 500), bal("A", 500),
			},
			want: []Transfer{
				{FromUser: "C", ToUser: "A", Amount: 500},
				{FromUser: "D", ToUser: "B", Amount: 500},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Minimize(tc.balances)
			assert.Equal(t, tc.want, got)
			assertConservation(t, tc.balances, got)
		})
	}
}

func TestMinimize_DeterministicAcrossInputOrders(t *testing.T) {
	balances := []domain.NetBalance{
		bal("A", 2000), bal("B", 500), bal("C", -1500), bal("D", -1000),
	}

	orderings := [][]domain.NetBalance{
		{balances[0], balances[1], balances[2], balances[3]},
		{balances[3], balances[2], balances[1], balances[0]},
		{balances[2], balances[0], balances[3], balances[1]},
		{balances[1], balances[3], balances[0], balances[2]},
	}

	want := Minimize(orderings[0])
	for i, ord := range orderings[1:] {
		assert.Equal(t, want, Minimize(ord), "ordering %d diverged", i+1)
	}
}

func TestMinimize_BoundedCardinality(t *testing.T) {
	balances := []domain.NetBalance{
		bal("a", 1200), bal("b", 3400), bal("c", -600), bal("d", -2200),
		bal("e", -1800), bal("f", 900), bal("g", -900), bal("h", 0),
	}

	transfers := Minimize(balances)

	nonzero := 0
	for _, b := range balances {
		if b.Amount != 0 {
			nonzero++
		}
	}
	assert.LessOrEqual(t, len(transfers), nonzero-1)
	assertConservation(t, balances, transfers)
}

// assertConservation verifies that applying every transfer returns each
// user to exactly zero: paid minus received equals the original balance.
func assertConservation(t *testing.T, balances []domain.NetBalance, transfers []Transfer) {
	t.Helper()

	net := make(map[string]int64, len(balances))
	for _, b := range balances {
		net[b.UserID] = b.Amount
	}
	for _, tr := range transfers {
		require.Positive(t, tr.Amount, "payments must be positive")
		net[tr.FromUser] += tr.Amount
		net[tr.ToUser] -= tr.Amount
	}
	for user, remaining := range net {
		assert.Zerof(t, remaining, "user %s not settled", user)
	}
}
