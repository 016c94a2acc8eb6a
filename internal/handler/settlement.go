package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chiptally/settlement-api/internal/domain"
	"github.com/chiptally/settlement-api/internal/logging"
)

type settlementService interface {
	Settle(ctx context.Context, gameID string, records []domain.PlayerRecord) (*domain.Settlement, bool, error)
	GetSettlement(ctx context.Context, gameID string) (*domain.Settlement, error)
	MarkPaymentPaid(ctx context.Context, paymentID uuid.UUID) (*domain.SettlementPayment, error)
}

type SettlementHandler struct {
	settlements settlementService
}

func NewSettlementHandler(settlements settlementService) *SettlementHandler {
	return &SettlementHandler{settlements: settlements}
}

type playerRecordRequest struct {
	UserID     string          `json:"user_id"`
	TotalBuyIn decimal.Decimal `json:"total_buy_in"`
	CashOut    decimal.Decimal `json:"cash_out"`
}

type settleRequest struct {
	Players []playerRecordRequest `json:"players"`
}

func (r settleRequest) Validate() []FieldError {
	var errs []FieldError

	for i, p := range r.Players {
		if p.UserID == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("players[%d].user_id", i),
				Message: "required",
			})
		}
		if p.TotalBuyIn.IsNegative() {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("players[%d].total_buy_in", i),
				Message: "must not be negative",
			})
		}
		if p.CashOut.IsNegative() {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("players[%d].cash_out", i),
				Message: "must not be negative",
			})
		}
	}

	return errs
}

type paymentDTO struct {
	ID        uuid.UUID  `json:"id"`
	GameID    string     `json:"game_id"`
	FromUser  string     `json:"from_user"`
	ToUser    string     `json:"to_user"`
	Amount    int64      `json:"amount"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

type settlementDTO struct {
	GameID    string       `json:"game_id"`
	Status    string       `json:"status"`
	Payments  []paymentDTO `json:"payments"`
	SettledAt *time.Time   `json:"settled_at,omitempty"`
}

func toPaymentDTO(p *domain.SettlementPayment) paymentDTO {
	return paymentDTO{
		ID:        p.ID,
		GameID:    p.GameID,
		FromUser:  p.FromUser,
		ToUser:    p.ToUser,
		Amount:    p.Amount,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
		PaidAt:    p.PaidAt,
	}
}

func toSettlementDTO(s *domain.Settlement) settlementDTO {
	payments := make([]paymentDTO, len(s.Payments))
	for i := range s.Payments {
		payments[i] = toPaymentDTO(&s.Payments[i])
	}
	return settlementDTO{
		GameID:    s.GameID,
		Status:    string(s.Status),
		Payments:  payments,
		SettledAt: s.SettledAt,
	}
}

// Settle handles POST /api/v1/games/{id}/settlement. The body carries the
// per-player buy-in/cash-out snapshot from the game lifecycle manager.
// Responds 201 when this request computed the settlement, 200 when an
// existing one is returned.
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	gameID := r.PathValue("id")
	if gameID == "" {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	records := make([]domain.PlayerRecord, len(req.Players))
	for i, p := range req.Players {
		records[i] = domain.PlayerRecord{
			UserID:     p.UserID,
			TotalBuyIn: p.TotalBuyIn,
			CashOut:    p.CashOut,
		}
	}

	st, computed, err := h.settlements.Settle(r.Context(), gameID, records)
	if err != nil {
		log.Warn("settle failed", "game_id", gameID, "error", err)
		RespondDomainError(w, err)
		return
	}

	status := http.StatusOK
	if computed {
		status = http.StatusCreated
	}
	RespondSuccess(w, status, toSettlementDTO(st))
}

// Get handles GET /api/v1/games/{id}/settlement.
func (h *SettlementHandler) Get(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	if gameID == "" {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	st, err := h.settlements.GetSettlement(r.Context(), gameID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("settlement lookup failed", "game_id", gameID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toSettlementDTO(st))
}

// MarkPaid handles POST /api/v1/payments/{id}/paid. The flip is owned by
// the players acknowledging a real-world transfer; the core only
// persists it.
func (h *SettlementHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrPaymentNotFound, nil)
		return
	}

	p, err := h.settlements.MarkPaymentPaid(r.Context(), paymentID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("mark paid failed", "payment_id", paymentID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}
