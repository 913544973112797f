package models

import "time"

type PrizePoolStatus string

const (
	PrizePoolActive       PrizePoolStatus = "active"
	PrizePoolDistributing PrizePoolStatus = "distributing"
	PrizePoolDistributed  PrizePoolStatus = "distributed"
)

// PrizePool хранит призовой фонд соревнования.
// PayoutStructure maps placement keys ("first".."fifth") to percentages of
// TotalAmount; the percentages need not sum to 100.
type PrizePool struct {
	ID              int                `json:"id" db:"id"`
	CompetitionID   int                `json:"competition_id" db:"competition_id"`
	TotalAmount     float64            `json:"total_amount" db:"total_amount"`
	PayoutStructure map[string]float64 `json:"payout_structure" db:"payout_structure"`
	Status          PrizePoolStatus    `json:"status" db:"status"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
}

type PayoutClaimStatus string

const (
	ClaimUnclaimed PayoutClaimStatus = "unclaimed"
	ClaimClaimed   PayoutClaimStatus = "claimed"
	ClaimExpired   PayoutClaimStatus = "expired"
)

// PrizePayout is one winner's share of a prize pool, created exactly once per
// (prize_pool, winner, placement) by settlement. WinnerEmail and WinnerName
// are snapshots taken at settlement time; the identity system may change
// afterwards without affecting the payout record.
type PrizePayout struct {
	ID             int               `json:"id" db:"id"`
	PrizePoolID    int               `json:"prize_pool_id" db:"prize_pool_id"`
	CompetitionID  int               `json:"competition_id" db:"competition_id"`
	WinnerID       int               `json:"winner_id" db:"winner_id"`
	Placement      int               `json:"placement" db:"placement"`
	PayoutAmount   float64           `json:"payout_amount" db:"payout_amount"`
	Status         string            `json:"status" db:"status"`
	ClaimStatus    PayoutClaimStatus `json:"claim_status" db:"claim_status"`
	ClaimExpiresAt time.Time         `json:"claim_expires_at" db:"claim_expires_at"`
	WinnerEmail    string            `json:"winner_email" db:"winner_email"`
	WinnerName     string            `json:"winner_name" db:"winner_name"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}

// PayoutStatusPending is the initial payout status; a downstream payment
// process later marks payouts as paid.
const PayoutStatusPending = "pending"
