package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/strideteam/competition-engine/models"
)

var (
	ErrPrizePoolNotFound = errors.New("prize pool not found")

	// ErrPayoutConflict maps the unique constraint on
	// (prize_pool_id, winner_id, placement): a concurrent invocation already
	// inserted this payout.
	ErrPayoutConflict = errors.New("prize payout already exists for this winner and placement")
)

type PrizePoolRepository interface {
	// GetActiveByCompetition returns the competition's prize pool in status
	// 'active'. ErrPrizePoolNotFound when there is none (absent, or already
	// moved to distributing/distributed).
	GetActiveByCompetition(ctx context.Context, competitionID int) (*models.PrizePool, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.PrizePoolStatus) error
}

type PrizePayoutRepository interface {
	// CountByCompetition is the settlement idempotency guard: any existing
	// payout row means the competition was already settled.
	CountByCompetition(ctx context.Context, competitionID int) (int, error)
	Create(ctx context.Context, exec SQLExecutor, p *models.PrizePayout) error
	ListByCompetition(ctx context.Context, competitionID int) ([]*models.PrizePayout, error)
}

type postgresPrizePoolRepository struct {
	db *sql.DB
}

func NewPostgresPrizePoolRepository(db *sql.DB) PrizePoolRepository {
	return &postgresPrizePoolRepository{db: db}
}

func (r *postgresPrizePoolRepository) GetActiveByCompetition(ctx context.Context, competitionID int) (*models.PrizePool, error) {
	query := `
		SELECT id, competition_id, total_amount, payout_structure, status, created_at
		FROM prize_pools
		WHERE competition_id = $1 AND status = $2`

	p := &models.PrizePool{}
	var structureRaw []byte
	err := r.db.QueryRowContext(ctx, query, competitionID, models.PrizePoolActive).Scan(
		&p.ID, &p.CompetitionID, &p.TotalAmount, &structureRaw, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrizePoolNotFound
		}
		return nil, fmt.Errorf("failed to get active prize pool: %w", err)
	}
	if len(structureRaw) > 0 {
		if err := json.Unmarshal(structureRaw, &p.PayoutStructure); err != nil {
			return nil, fmt.Errorf("failed to decode payout_structure for pool %d: %w", p.ID, err)
		}
	}
	return p, nil
}

func (r *postgresPrizePoolRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.PrizePoolStatus) error {
	executor := SQLExecutor(r.db)
	if exec != nil {
		executor = exec
	}
	query := `UPDATE prize_pools SET status = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update prize pool status: %w", err)
	}
	return checkAffectedRows(result, ErrPrizePoolNotFound)
}

type postgresPrizePayoutRepository struct {
	db *sql.DB
}

func NewPostgresPrizePayoutRepository(db *sql.DB) PrizePayoutRepository {
	return &postgresPrizePayoutRepository{db: db}
}

func (r *postgresPrizePayoutRepository) CountByCompetition(ctx context.Context, competitionID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM prize_payouts WHERE competition_id = $1`
	if err := r.db.QueryRowContext(ctx, query, competitionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count prize payouts: %w", err)
	}
	return count, nil
}

func (r *postgresPrizePayoutRepository) Create(ctx context.Context, exec SQLExecutor, p *models.PrizePayout) error {
	executor := SQLExecutor(r.db)
	if exec != nil {
		executor = exec
	}
	query := `
		INSERT INTO prize_payouts (
			prize_pool_id, competition_id, winner_id, placement, payout_amount,
			status, claim_status, claim_expires_at, winner_email, winner_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		p.PrizePoolID, p.CompetitionID, p.WinnerID, p.Placement, p.PayoutAmount,
		p.Status, p.ClaimStatus, p.ClaimExpiresAt, p.WinnerEmail, p.WinnerName,
	).Scan(&p.ID, &p.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "prize_payouts_pool_winner_placement_key" {
				return ErrPayoutConflict
			}
		}
		return fmt.Errorf("failed to create prize payout: %w", err)
	}
	return nil
}

func (r *postgresPrizePayoutRepository) ListByCompetition(ctx context.Context, competitionID int) ([]*models.PrizePayout, error) {
	query := `
		SELECT id, prize_pool_id, competition_id, winner_id, placement, payout_amount,
			status, claim_status, claim_expires_at, winner_email, winner_name, created_at
		FROM prize_payouts
		WHERE competition_id = $1
		ORDER BY placement ASC, payout_amount DESC`

	rows, err := r.db.QueryContext(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prize payouts: %w", err)
	}
	defer rows.Close()

	payouts := make([]*models.PrizePayout, 0)
	for rows.Next() {
		var p models.PrizePayout
		if scanErr := rows.Scan(
			&p.ID, &p.PrizePoolID, &p.CompetitionID, &p.WinnerID, &p.Placement, &p.PayoutAmount,
			&p.Status, &p.ClaimStatus, &p.ClaimExpiresAt, &p.WinnerEmail, &p.WinnerName, &p.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan prize payout row: %w", scanErr)
		}
		payouts = append(payouts, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prize payout rows: %w", err)
	}
	return payouts, nil
}
