package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidRecord        = errors.New("invalid player record")
	ErrUnbalancedLedger     = errors.New("net balances do not sum to zero")
	ErrConcurrentSettlement = errors.New("settlement in progress by another caller")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrInvalidRequest       = errors.New("invalid request")
)
