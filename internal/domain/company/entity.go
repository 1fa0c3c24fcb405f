// internal/domain/company/entity.go
package company

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProfileID is the fixed document id of the singleton company profile.
const ProfileID = "company_profile"

// Profile is the singleton company record broadcast to all devices on change.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	LogoRef   string    `json:"logo_ref,omitempty"`
	TaxID     string    `json:"tax_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type GoalPeriod string

const (
	PeriodDaily   GoalPeriod = "daily"
	PeriodWeekly  GoalPeriod = "weekly"
	PeriodMonthly GoalPeriod = "monthly"
	PeriodYearly  GoalPeriod = "yearly"
)

func (p GoalPeriod) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return true
	}
	return false
}

// Goal holds the user-set target for one period. Progress is derived from
// collection entries and never persisted here.
type Goal struct {
	ID        string          `json:"id"`
	Period    GoalPeriod      `json:"period"`
	Target    decimal.Decimal `json:"target"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// GoalID returns the fixed document id for a period's goal.
func GoalID(p GoalPeriod) string {
	return "goal_" + string(p)
}
