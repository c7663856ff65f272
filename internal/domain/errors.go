package domain

import "errors"

// Every error the engine can return is deterministic, caused by caller
// input or current ledger state, so nothing is retried internally. The
// boundary maps these to HTTP statuses with errors.Is.
var (
	ErrInvalidOrder            = errors.New("invalid order")
	ErrUnknownSecurity         = errors.New("unknown security")
	ErrInsufficientBuyingPower = errors.New("insufficient buying power")
	ErrInsufficientInventory   = errors.New("insufficient inventory")
	ErrOrderNotFound           = errors.New("order not found")
	ErrOrderNotCancellable     = errors.New("order cannot be cancelled")
)
