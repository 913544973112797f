package models

import "time"

// AuditLog записывает действия движка для последующего разбора.
type AuditLog struct {
	ID         int            `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   int            `json:"entity_id"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

const (
	AuditActionPrizePayoutCreated  = "prize_payout_created"
	AuditActionCompetitionComplete = "competition_completed"
)
