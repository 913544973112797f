package models

import "time"

// Типы транзакций монет, начисляемых движком.
const (
	TransactionCompetitionWin      = "earn_competition_win"
	TransactionCompetitionComplete = "earn_competition_complete"
)

// ReferenceTypeCompetition is the reference_type used for every coin
// transaction created by competition settlement.
const ReferenceTypeCompetition = "competition"

// CoinTransaction is an append-only ledger entry. The existence of a row with
// transaction_type = earn_competition_win for a competition is the idempotency
// guard for that competition's entire coin distribution.
type CoinTransaction struct {
	ID              int            `json:"id"`
	UserID          int            `json:"user_id"`
	EarnedAmount    int            `json:"earned_amount"`
	PremiumAmount   int            `json:"premium_amount"`
	TransactionType string         `json:"transaction_type"`
	ReferenceType   string         `json:"reference_type"`
	ReferenceID     int            `json:"reference_id"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}
