package models

import "time"

// Participant связывает пользователя с соревнованием.
// Once ScoreLockedAt is set it is never cleared or moved earlier: it is set
// either by the user's own sync process or, at most once, by the force-lock
// step of the completion scheduler.
type Participant struct {
	ID            int        `json:"id"`
	UserID        int        `json:"user_id"`
	CompetitionID int        `json:"competition_id"`
	TeamID        *int       `json:"team_id,omitempty"`
	TotalPoints   float64    `json:"total_points"`
	ScoreLockedAt *time.Time `json:"score_locked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ActiveDayCount is the number of distinct calendar days a user recorded
// points > 0 within a competition.
type ActiveDayCount struct {
	UserID int `json:"user_id"`
	Days   int `json:"days"`
}
