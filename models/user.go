package models

import "time"

// User is read-only for this service: identity snapshots on payout records
// and the timezone offset feeding the deadline calculation. Accounts are
// managed elsewhere.
type User struct {
	ID             int       `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	DisplayName    string    `json:"display_name" db:"display_name"`
	UTCOffsetHours *int      `json:"utc_offset_hours,omitempty" db:"utc_offset_hours"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
