package models

import "time"

// UserTrial is a time-limited trial grant, unique per (user, trial_type,
// source). Re-granting resets the expiry rather than stacking.
type UserTrial struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	TrialType string    `json:"trial_type"`
	Source    string    `json:"source"`
	GrantedAt time.Time `json:"granted_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
