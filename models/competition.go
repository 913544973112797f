package models

import "time"

// CompetitionStatus представляет статусы соревнования, соответствующие ENUM в БД.
type CompetitionStatus string

const (
	StatusUpcoming  CompetitionStatus = "upcoming"
	StatusActive    CompetitionStatus = "active"
	StatusCompleted CompetitionStatus = "completed"
)

// EventReward describes the trial reward attached to a seasonal event
// competition. Stored as JSONB on the competitions row.
type EventReward struct {
	Type             string `json:"type"`
	TrialHours       int    `json:"trial_hours"`
	MinDaysCompleted int    `json:"min_days_completed"`
	Source           string `json:"source"`
}

// Competition представляет соревнование.
// StartDate and EndDate are calendar dates, no time component.
type Competition struct {
	ID                int               `json:"id" db:"id"`
	Name              string            `json:"name" db:"name"`
	StartDate         time.Time         `json:"start_date" db:"start_date"`
	EndDate           time.Time         `json:"end_date" db:"end_date"`
	Status            CompetitionStatus `json:"status" db:"status"`
	IsTeamCompetition bool              `json:"is_team_competition" db:"is_team_competition"`
	IsSeasonalEvent   bool              `json:"is_seasonal_event" db:"is_seasonal_event"`
	EventReward       *EventReward      `json:"event_reward,omitempty" db:"event_reward"`
	HasPrizePool      bool              `json:"has_prize_pool" db:"has_prize_pool"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
}
