package domain

import "github.com/shopspring/decimal"

// PlayerRecord is the per-player financial snapshot supplied by the game
// lifecycle manager at settlement time. Monetary values are kept as exact
// decimals until the normalizer converts them to integer cents.
type PlayerRecord struct {
	UserID     string
	TotalBuyIn decimal.Decimal
	CashOut    decimal.Decimal
}

// NetBalance is a player's net result for one game in integer cents.
// Positive means the player is owed money, negative means they owe.
type NetBalance struct {
	UserID string
	Amount int64
}
