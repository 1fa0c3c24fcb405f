// internal/domain/staff/entity.go
package staff

import "time"

type Role string

const (
	RoleAgent         Role = "agent"
	RoleSeniorAgent   Role = "senior_agent"
	RoleAdminDelegate Role = "admin_delegate"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAgent, RoleSeniorAgent, RoleAdminDelegate:
		return true
	}
	return false
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Account is a field-staff account. Accounts are never deleted in place;
// removal is a status transition followed by an eventual purge.
type Account struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	PINHash string `json:"pin_hash"` // bcrypt hash of the 4-digit PIN
	Status  Status `json:"status"`

	// Stamped by the presence tracker only, monotonically non-decreasing
	// while a session is active.
	LastSeen *time.Time `json:"last_seen,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}
