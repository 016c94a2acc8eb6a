package testutil

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chiptally/settlement-api/internal/domain"
)

// Record builds a PlayerRecord from decimal strings, failing the test on
// malformed input so fixtures stay readable at call sites.
func Record(t *testing.T, userID, buyIn, cashOut string) domain.PlayerRecord {
	t.Helper()

	buy, err := decimal.NewFromString(buyIn)
	if err != nil {
		t.Fatalf("parse buy-in %q: %v", buyIn, err)
	}
	cash, err := decimal.NewFromString(cashOut)
	if err != nil {
		t.Fatalf("parse cash-out %q: %v", cashOut, err)
	}
	return domain.PlayerRecord{UserID: userID, TotalBuyIn: buy, CashOut: cash}
}

func GetSettlementStatus(t *testing.T, db *sql.DB, gameID string) domain.SettlementStatus {
	t.Helper()

	var status domain.SettlementStatus
	err := db.QueryRow(`SELECT status FROM settlements WHERE game_id = $1`, gameID).Scan(&status)
	if err != nil {
		t.Fatalf("get settlement status %s: %v", gameID, err)
	}
	return status
}

func CountPayments(t *testing.T, db *sql.DB, gameID string) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM settlement_payments WHERE game_id = $1`, gameID).Scan(&count)
	if err != nil {
		t.Fatalf("count payments for game %s: %v", gameID, err)
	}
	return count
}

func GetPaymentStatus(t *testing.T, db *sql.DB, paymentID uuid.UUID) domain.PaymentStatus {
	t.Helper()

	var status domain.PaymentStatus
	err := db.QueryRow(`SELECT status FROM settlement_payments WHERE id = $1`, paymentID).Scan(&status)
	if err != nil {
		t.Fatalf("get payment status %s: %v", paymentID, err)
	}
	return status
}

// ForceSettlementStatus overwrites a game's lifecycle status directly,
// bypassing the compare-and-swap, to stage takeover and race scenarios.
func ForceSettlementStatus(t *testing.T, db *sql.DB, gameID string, status domain.SettlementStatus, age string) {
	t.Helper()

	_, err := db.Exec(
		`UPDATE settlements SET status = $2, updated_at = now() - $3::interval WHERE game_id = $1`,
		gameID, status, age,
	)
	if err != nil {
		t.Fatalf("force settlement status %s: %v", gameID, err)
	}
}
