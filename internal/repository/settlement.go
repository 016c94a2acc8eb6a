package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/chiptally/settlement-api/internal/domain"
)

type scanner interface {
	Scan(dest ...any) error
}

const paymentColumns = `id, game_id, from_user, to_user, amount, status, created_at, paid_at`

type SettlementRepository struct {
	db *sql.DB
}

func NewSettlementRepository(db *sql.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// EnsureGame creates the unsettled row for a game if it does not exist
// yet. Safe to call from any number of concurrent settle attempts.
func (r *SettlementRepository) EnsureGame(ctx context.Context, gameID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settlements (game_id, status, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (game_id) DO NOTHING`,
		gameID, domain.SettlementStatusUnsettled,
	)
	if err != nil {
		return fmt.Errorf("EnsureGame: %w", err)
	}
	return nil
}

// Claim atomically moves a game from unsettled to settling and reports
// whether this caller won. A settling row older than takeoverAfter is
// treated as abandoned by a crashed worker and may be re-claimed.
func (r *SettlementRepository) Claim(ctx context.Context, gameID string, takeoverAfter time.Duration) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE settlements SET status = $2, updated_at = now()
		WHERE game_id = $1
		  AND (status = $3 OR (status = $2 AND updated_at < now() - make_interval(secs => $4)))`,
		gameID, domain.SettlementStatusSettling, domain.SettlementStatusUnsettled,
		takeoverAfter.Seconds(),
	)
	if err != nil {
		return false, fmt.Errorf("Claim: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Claim: rows affected: %w", err)
	}
	return rows == 1, nil
}

// Release reverts a claimed game to unsettled so a corrected retry can
// run after a compute failure.
func (r *SettlementRepository) Release(ctx context.Context, gameID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE settlements SET status = $2, updated_at = now()
		WHERE game_id = $1 AND status = $3`,
		gameID, domain.SettlementStatusUnsettled, domain.SettlementStatusSettling,
	)
	if err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}

// Complete persists the computed payment list and flips the game to
// settled in one transaction. It fails with ErrConcurrentSettlement if
// the claim was taken over while this caller was computing, so a stale
// worker can never overwrite another worker's result.
func (r *SettlementRepository) Complete(ctx context.Context, gameID string, payments []domain.SettlementPayment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Complete: begin tx: %w", err)
	}
	defer tx.Rollback()

	for seq, p := range payments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settlement_payments (id, game_id, seq, from_user, to_user, amount, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, p.GameID, seq, p.FromUser, p.ToUser, p.Amount, p.Status, p.CreatedAt,
		)
		if err != nil {
			// A duplicate (game_id, seq) means another worker took over the
			// claim and already persisted its result.
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return fmt.Errorf("Complete: claim lost: %w", domain.ErrConcurrentSettlement)
			}
			return fmt.Errorf("Complete: insert payment: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE settlements SET status = $2, settled_at = now(), updated_at = now()
		WHERE game_id = $1 AND status = $3`,
		gameID, domain.SettlementStatusSettled, domain.SettlementStatusSettling,
	)
	if err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Complete: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Complete: claim lost: %w", domain.ErrConcurrentSettlement)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Complete: commit: %w", err)
	}
	return nil
}

func (r *SettlementRepository) GetByGameID(ctx context.Context, gameID string) (*domain.Settlement, error) {
	s := &domain.Settlement{GameID: gameID}
	err := r.db.QueryRowContext(ctx,
		`SELECT status, created_at, updated_at, settled_at FROM settlements WHERE game_id = $1`,
		gameID,
	).Scan(&s.Status, &s.CreatedAt, &s.UpdatedAt, &s.SettledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetByGameID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetByGameID: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM settlement_payments WHERE game_id = $1 ORDER BY seq`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByGameID: payments: %w", err)
	}
	defer rows.Close()

	s.Payments = []domain.SettlementPayment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByGameID: scan payment: %w", err)
		}
		s.Payments = append(s.Payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByGameID: iterate payments: %w", err)
	}

	return s, nil
}

func (r *SettlementRepository) GetStatus(ctx context.Context, gameID string) (domain.SettlementStatus, error) {
	var status domain.SettlementStatus
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM settlements WHERE game_id = $1`, gameID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("GetStatus: %w", domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("GetStatus: %w", err)
	}
	return status, nil
}

// MarkPaymentPaid flips a payment from pending to paid. The flip is
// idempotent: marking an already-paid payment returns it unchanged.
func (r *SettlementRepository) MarkPaymentPaid(ctx context.Context, paymentID uuid.UUID) (*domain.SettlementPayment, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE settlement_payments SET status = $2, paid_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+paymentColumns,
		paymentID, domain.PaymentStatusPaid, domain.PaymentStatusPending,
	)
	p, err := scanPayment(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("MarkPaymentPaid: %w", err)
	}

	// No pending row matched: either the payment is already paid or it
	// does not exist.
	p, err = r.getPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("MarkPaymentPaid: %w", err)
	}
	return p, nil
}

func (r *SettlementRepository) getPayment(ctx context.Context, paymentID uuid.UUID) (*domain.SettlementPayment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM settlement_payments WHERE id = $1`, paymentID,
	)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanPayment(s scanner) (*domain.SettlementPayment, error) {
	var p domain.SettlementPayment
	err := s.Scan(
		&p.ID, &p.GameID, &p.FromUser, &p.ToUser, &p.Amount,
		&p.Status, &p.CreatedAt, &p.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
