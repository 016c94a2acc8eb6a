package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidRecord        = &AppError{http.StatusUnprocessableEntity, "INVALID_PLAYER_RECORD", "Cannot settle: check buy-ins and cash-outs"}
	ErrUnbalancedLedger     = &AppError{http.StatusUnprocessableEntity, "UNBALANCED_LEDGER", "Cannot settle: buy-ins and cash-outs do not reconcile"}
	ErrConcurrentSettlement = &AppError{http.StatusConflict, "SETTLEMENT_IN_PROGRESS", "Settlement is being computed, retry shortly"}
	ErrPaymentNotFound      = &AppError{http.StatusNotFound, "PAYMENT_NOT_FOUND", "Payment not found"}
)
