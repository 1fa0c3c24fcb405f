// internal/domain/ledger/entity.go
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMode string

const (
	ModeCash   PaymentMode = "cash"
	ModeUPI    PaymentMode = "upi"
	ModeCheque PaymentMode = "cheque"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case ModeCash, ModeUPI, ModeCheque:
		return true
	}
	return false
}

type Verification string

const (
	VerificationPending  Verification = "pending"
	VerificationVerified Verification = "verified"
	VerificationFailed   Verification = "failed"
)

func (v Verification) Valid() bool {
	switch v {
	case VerificationPending, VerificationVerified, VerificationFailed:
		return true
	}
	return false
}

// Entry is a money movement recorded by field staff. For collections the
// counterpart is a customer name, for expenses an expense category. Everything
// except Verification is write-once after creation.
type Entry struct {
	ID           string          `json:"id"`
	At           time.Time       `json:"at"`
	Amount       decimal.Decimal `json:"amount"`
	Counterpart  string          `json:"counterpart"`
	Mode         PaymentMode     `json:"mode"`
	Staff        string          `json:"staff"`
	Verification Verification    `json:"verification"`
	Remarks      string          `json:"remarks,omitempty"`
}

func (e *Entry) Validate() error {
	if e.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if !e.Mode.Valid() {
		return ErrBadPaymentMode
	}
	if e.Counterpart == "" {
		return ErrMissingCounterpart
	}
	return nil
}
