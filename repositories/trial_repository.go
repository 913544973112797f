package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/strideteam/competition-engine/models"
)

var ErrTrialNotFound = errors.New("user trial not found")

type UserTrialRepository interface {
	GetByUserTypeSource(ctx context.Context, userID int, trialType, source string) (*models.UserTrial, error)
	Create(ctx context.Context, t *models.UserTrial) error
	UpdateExpiry(ctx context.Context, id int, grantedAt, expiresAt time.Time) error
}

type postgresUserTrialRepository struct {
	db *sql.DB
}

func NewPostgresUserTrialRepository(db *sql.DB) UserTrialRepository {
	return &postgresUserTrialRepository{db: db}
}

func (r *postgresUserTrialRepository) GetByUserTypeSource(ctx context.Context, userID int, trialType, source string) (*models.UserTrial, error) {
	query := `
		SELECT id, user_id, trial_type, source, granted_at, expires_at
		FROM user_trials
		WHERE user_id = $1 AND trial_type = $2 AND source = $3`

	t := &models.UserTrial{}
	err := r.db.QueryRowContext(ctx, query, userID, trialType, source).Scan(
		&t.ID, &t.UserID, &t.TrialType, &t.Source, &t.GrantedAt, &t.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTrialNotFound
		}
		return nil, fmt.Errorf("failed to get user trial: %w", err)
	}
	return t, nil
}

func (r *postgresUserTrialRepository) Create(ctx context.Context, t *models.UserTrial) error {
	query := `
		INSERT INTO user_trials (user_id, trial_type, source, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		t.UserID, t.TrialType, t.Source, t.GrantedAt, t.ExpiresAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to create user trial: %w", err)
	}
	return nil
}

func (r *postgresUserTrialRepository) UpdateExpiry(ctx context.Context, id int, grantedAt, expiresAt time.Time) error {
	query := `UPDATE user_trials SET granted_at = $1, expires_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, grantedAt, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to update user trial expiry: %w", err)
	}
	return checkAffectedRows(result, ErrTrialNotFound)
}
