package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chiptally/settlement-api/internal/domain"
	"github.com/chiptally/settlement-api/internal/logging"
	"github.com/chiptally/settlement-api/internal/metrics"
	"github.com/chiptally/settlement-api/internal/settle"
)

// errClaimable signals a waiter that the previous claim was released and
// the game can be claimed again.
var errClaimable = errors.New("claim released")

// Settle computes and persists the payment list for a game exactly once.
// The first caller to win the unsettled -> settling transition computes;
// everyone else waits for (or immediately receives) that caller's result.
// The returned bool reports whether this call did the computation.
//
// Compute failures (invalid records, unbalanced ledger) revert the game
// to unsettled so a corrected retry is possible, and the error is
// surfaced verbatim.
func (s *Service) Settle(ctx context.Context, gameID string, records []domain.PlayerRecord) (*domain.Settlement, bool, error) {
	log := logging.FromContext(ctx)
	timer := prometheus.NewTimer(metrics.SettleDuration)
	defer timer.ObserveDuration()

	if gameID == "" {
		return nil, false, fmt.Errorf("Settle: empty game id: %w", domain.ErrInvalidRequest)
	}

	if err := s.settlements.EnsureGame(ctx, gameID); err != nil {
		metrics.SettlementsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, false, fmt.Errorf("Settle: %w", err)
	}

	for {
		claimed, err := s.settlements.Claim(ctx, gameID, s.config.SettleTakeoverAfter)
		if err != nil {
			metrics.SettlementsTotal.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, false, fmt.Errorf("Settle: %w", err)
		}

		if claimed {
			st, err := s.computeAndPersist(ctx, gameID, records)
			if err != nil {
				if errors.Is(err, domain.ErrConcurrentSettlement) {
					// Claim was taken over while we computed; defer to the
					// new owner's result.
					continue
				}
				if relErr := s.settlements.Release(ctx, gameID); relErr != nil {
					log.Error("failed to release settlement claim", "game_id", gameID, "error", relErr)
				}
				metrics.SettlementsTotal.WithLabelValues(metrics.OutcomeError).Inc()
				return nil, false, fmt.Errorf("Settle: %w", err)
			}

			metrics.SettlementsTotal.WithLabelValues(metrics.OutcomeComputed).Inc()
			metrics.PaymentsEmitted.Add(float64(len(st.Payments)))
			log.Info("settlement computed",
				"game_id", gameID,
				"players", len(records),
				"payments", len(st.Payments),
			)
			return st, true, nil
		}

		status, err := s.settlements.GetStatus(ctx, gameID)
		if err != nil {
			metrics.SettlementsTotal.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, false, fmt.Errorf("Settle: %w", err)
		}

		switch status {
		case domain.SettlementStatusSettled:
			st, err := s.settlements.GetByGameID(ctx, gameID)
			if err != nil {
				metrics.SettlementsTotal.WithLabelValues(metrics.OutcomeError).Inc()
				return nil, false, fmt.Errorf("Settle: %w", err)
			}
			metrics.SettlementsTotal.WithLabelValues(metrics.OutcomeReplayed).Inc()
			return st, false, nil

		case domain.SettlementStatusSettling:
			st, err := s.waitForResult(ctx, gameID)
			if errors.Is(err, errClaimable) {
				continue
			}
			if err != nil {
				metrics.SettlementsTotal.WithLabelValues(metrics.OutcomeError).Inc()
				return nil, false, fmt.Errorf("Settle: %w", err)
			}
			metrics.SettlementsTotal.WithLabelValues(metrics.OutcomeWaited).Inc()
			return st, false, nil

		default:
			// Row went back to unsettled between our claim attempt and the
			// status read; try to claim again.
		}
	}
}

func (s *Service) computeAndPersist(ctx context.Context, gameID string, records []domain.PlayerRecord) (*domain.Settlement, error) {
	balances, err := settle.Normalize(records)
	if err != nil {
		return nil, err
	}
	transfers := settle.Minimize(balances)

	now := time.Now().UTC()
	payments := make([]domain.SettlementPayment, len(transfers))
	for i, tr := range transfers {
		payments[i] = domain.SettlementPayment{
			ID:        uuid.New(),
			GameID:    gameID,
			FromUser:  tr.FromUser,
			ToUser:    tr.ToUser,
			Amount:    tr.Amount,
			Status:    domain.PaymentStatusPending,
			CreatedAt: now,
		}
	}

	if err := s.settlements.Complete(ctx, gameID, payments); err != nil {
		return nil, err
	}

	return s.settlements.GetByGameID(ctx, gameID)
}

// waitForResult polls the settlement row until the computing caller
// finishes. Returns errClaimable if the claim was released so the caller
// can try to take over, or ErrConcurrentSettlement once the wait budget
// is exhausted.
func (s *Service) waitForResult(ctx context.Context, gameID string) (*domain.Settlement, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.config.SettleWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(s.config.SettlePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("waitForResult: %w", domain.ErrConcurrentSettlement)
		case <-ticker.C:
		}

		status, err := s.settlements.GetStatus(ctx, gameID)
		if err != nil {
			return nil, fmt.Errorf("waitForResult: %w", err)
		}

		switch status {
		case domain.SettlementStatusSettled:
			return s.settlements.GetByGameID(ctx, gameID)
		case domain.SettlementStatusUnsettled:
			return nil, errClaimable
		}
	}
}
