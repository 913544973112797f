package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/strideteam/competition-engine/models"
)

var ErrParticipantNotFound = errors.New("participant not found")

type ParticipantRepository interface {
	// ListByCompetition returns all participants ordered by total_points
	// descending, ties broken by creation order.
	ListByCompetition(ctx context.Context, competitionID int) ([]*models.Participant, error)

	// ForceLockScores stamps score_locked_at on every participant of the
	// competition that has not locked yet and returns how many rows changed.
	// The NULL predicate makes repeated calls no-ops.
	ForceLockScores(ctx context.Context, exec SQLExecutor, competitionID int, lockedAt time.Time) (int64, error)

	// ActiveDayCounts returns, per user, the number of distinct calendar days
	// with recorded points > 0 within the competition.
	ActiveDayCounts(ctx context.Context, competitionID int) ([]models.ActiveDayCount, error)

	// LatestTimezoneOffset returns the UTC offset (hours, negative = west) of
	// the most-western participant's timezone, or nil when no participant has
	// a known timezone.
	LatestTimezoneOffset(ctx context.Context, competitionID int) (*int, error)
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) ListByCompetition(ctx context.Context, competitionID int) ([]*models.Participant, error) {
	query := `
		SELECT id, user_id, competition_id, team_id, total_points, score_locked_at, created_at
		FROM participants
		WHERE competition_id = $1
		ORDER BY total_points DESC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants by competition: %w", err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		if scanErr := rows.Scan(
			&p.ID, &p.UserID, &p.CompetitionID, &p.TeamID, &p.TotalPoints, &p.ScoreLockedAt, &p.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", scanErr)
		}
		participants = append(participants, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) ForceLockScores(ctx context.Context, exec SQLExecutor, competitionID int, lockedAt time.Time) (int64, error) {
	executor := SQLExecutor(r.db)
	if exec != nil {
		executor = exec
	}
	query := `
		UPDATE participants
		SET score_locked_at = $1
		WHERE competition_id = $2 AND score_locked_at IS NULL`

	result, err := executor.ExecContext(ctx, query, lockedAt, competitionID)
	if err != nil {
		return 0, fmt.Errorf("failed to force-lock scores for competition %d: %w", competitionID, err)
	}
	locked, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count force-locked participants: %w", err)
	}
	return locked, nil
}

func (r *postgresParticipantRepository) ActiveDayCounts(ctx context.Context, competitionID int) ([]models.ActiveDayCount, error) {
	query := `
		SELECT user_id, COUNT(DISTINCT entry_date)
		FROM score_entries
		WHERE competition_id = $1 AND points > 0
		GROUP BY user_id`

	rows, err := r.db.QueryContext(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active day counts: %w", err)
	}
	defer rows.Close()

	counts := make([]models.ActiveDayCount, 0)
	for rows.Next() {
		var c models.ActiveDayCount
		if scanErr := rows.Scan(&c.UserID, &c.Days); scanErr != nil {
			return nil, fmt.Errorf("failed to scan active day count: %w", scanErr)
		}
		counts = append(counts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active day counts: %w", err)
	}
	return counts, nil
}

func (r *postgresParticipantRepository) LatestTimezoneOffset(ctx context.Context, competitionID int) (*int, error) {
	// Минимальное смещение = самый западный участник = самая поздняя полночь.
	query := `
		SELECT MIN(u.utc_offset_hours)
		FROM participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.competition_id = $1 AND u.utc_offset_hours IS NOT NULL`

	var offset sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query, competitionID).Scan(&offset); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve westernmost timezone offset: %w", err)
	}
	if !offset.Valid {
		return nil, nil
	}
	v := int(offset.Int64)
	return &v, nil
}
