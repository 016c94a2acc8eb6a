package domain

import (
	"time"

	"github.com/google/uuid"
)

type SettlementStatus string

const (
	SettlementStatusUnsettled SettlementStatus = "unsettled"
	SettlementStatusSettling  SettlementStatus = "settling"
	SettlementStatusSettled   SettlementStatus = "settled"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// SettlementPayment is one ledger row: a point-to-point transfer that,
// together with the other rows of the same game, returns every player's
// net balance to zero. Amount is integer cents, always > 0; the payer is
// a debtor and the payee a creditor.
type SettlementPayment struct {
	ID        uuid.UUID
	GameID    string
	FromUser  string
	ToUser    string
	Amount    int64
	Status    PaymentStatus
	CreatedAt time.Time
	PaidAt    *time.Time
}

// Settlement is the per-game aggregate. It transitions
// unsettled -> settling -> settled exactly once; after that only the
// Status of individual payments may change (pending -> paid, driven by
// players acknowledging real-world transfers).
type Settlement struct {
	GameID    string
	Status    SettlementStatus
	Payments  []SettlementPayment
	CreatedAt time.Time
	UpdatedAt time.Time
	SettledAt *time.Time
}
