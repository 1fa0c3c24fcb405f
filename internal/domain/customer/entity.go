// internal/domain/customer/entity.go
package customer

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Record is a customer ledger account owned by the admin console.
type Record struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Phone   string          `json:"phone,omitempty"`
	City    string          `json:"city,omitempty"`
	Zone    string          `json:"zone,omitempty"`
	Balance decimal.Decimal `json:"balance"`
	Status  Status          `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
