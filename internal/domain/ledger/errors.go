package ledger

import "errors"

var (
	ErrNegativeAmount     = errors.New("amount must be non-negative")
	ErrBadPaymentMode     = errors.New("unknown payment mode")
	ErrMissingCounterpart = errors.New("counterpart is required")
)
