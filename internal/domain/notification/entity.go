// internal/domain/notification/entity.go
package notification

import "time"

// AudienceAll addresses a notification to every signed-in device.
const AudienceAll = "all"

// Record is a single notification. OTP codes for two-factor login travel
// through these records as well, there is no separate transport.
type Record struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	At       time.Time `json:"at"`
	Audience string    `json:"audience"` // AudienceAll or a staff account id
	Read     bool      `json:"read"`

	// ExpiresAt marks short-lived records (OTP codes) for the purge job.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// For reports whether the record addresses the given staff account.
func (r *Record) For(staffID string) bool {
	return r.Audience == AudienceAll || r.Audience == staffID
}

// Expired reports whether the record should be purged.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}
