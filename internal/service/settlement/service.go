// Package settlement implements the settlement coordinator: the
// exactly-once "settle this game" operation over the pure normalize and
// minimize steps, plus the read side of the persisted ledger.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chiptally/settlement-api/internal/config"
	"github.com/chiptally/settlement-api/internal/domain"
)

type settlementRepo interface {
	EnsureGame(ctx context.Context, gameID string) error
	Claim(ctx context.Context, gameID string, takeoverAfter time.Duration) (bool, error)
	Release(ctx context.Context, gameID string) error
	Complete(ctx context.Context, gameID string, payments []domain.SettlementPayment) error
	GetByGameID(ctx context.Context, gameID string) (*domain.Settlement, error)
	GetStatus(ctx context.Context, gameID string) (domain.SettlementStatus, error)
	MarkPaymentPaid(ctx context.Context, paymentID uuid.UUID) (*domain.SettlementPayment, error)
}

type Service struct {
	settlements settlementRepo
	config      *config.Config
}

func NewService(settlements settlementRepo, cfg *config.Config) *Service {
	return &Service{settlements: settlements, config: cfg}
}

// GetSettlement returns the persisted settlement for a game, whatever its
// current lifecycle state.
func (s *Service) GetSettlement(ctx context.Context, gameID string) (*domain.Settlement, error) {
	st, err := s.settlements.GetByGameID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("GetSettlement: %w", err)
	}
	return st, nil
}

// MarkPaymentPaid records a player's acknowledgement of a real-world
// transfer. Idempotent: re-marking a paid payment returns it unchanged.
func (s *Service) MarkPaymentPaid(ctx context.Context, paymentID uuid.UUID) (*domain.SettlementPayment, error) {
	p, err := s.settlements.MarkPaymentPaid(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("MarkPaymentPaid: %w", err)
	}
	return p, nil
}
