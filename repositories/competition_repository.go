package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/strideteam/competition-engine/models"
)

var (
	ErrCompetitionNotFound = errors.New("competition not found")

	// ErrCompetitionStatusConflict means a compare-and-set status update
	// matched no row: another invocation already moved the competition.
	ErrCompetitionStatusConflict = errors.New("competition status changed concurrently")
)

type ListCompetitionsFilter struct {
	Status *models.CompetitionStatus
	Limit  int
	Offset int
}

type CompetitionRepository interface {
	GetByID(ctx context.Context, id int) (*models.Competition, error)
	List(ctx context.Context, filter ListCompetitionsFilter) ([]models.Competition, error)

	// ActivateDue promotes every upcoming competition whose start_date has
	// arrived to active and returns the affected IDs. The date predicate
	// doubles as the compare-and-set guard.
	ActivateDue(ctx context.Context, exec SQLExecutor, today time.Time) ([]int, error)

	// ListCompletionCandidates returns active competitions whose end_date is
	// strictly before today (UTC calendar date). Whether each one is actually
	// due is decided later against its per-competition deadline.
	ListCompletionCandidates(ctx context.Context, exec SQLExecutor, today time.Time) ([]*models.Competition, error)

	// MarkCompleted sets status=completed only if the competition is still
	// active, so the transition stays monotonic under concurrent runs.
	MarkCompleted(ctx context.Context, exec SQLExecutor, id int) error

	CountByStatus(ctx context.Context) (map[models.CompetitionStatus]int, error)
}

type postgresCompetitionRepository struct {
	db *sql.DB
}

func NewPostgresCompetitionRepository(db *sql.DB) CompetitionRepository {
	return &postgresCompetitionRepository{db: db}
}

func (r *postgresCompetitionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const competitionColumns = `
	id, name, start_date, end_date, status,
	is_team_competition, is_seasonal_event, event_reward, has_prize_pool, created_at`

func scanCompetition(rowScanner interface {
	Scan(dest ...interface{}) error
}, c *models.Competition) error {
	var rewardRaw []byte
	if err := rowScanner.Scan(
		&c.ID, &c.Name, &c.StartDate, &c.EndDate, &c.Status,
		&c.IsTeamCompetition, &c.IsSeasonalEvent, &rewardRaw, &c.HasPrizePool, &c.CreatedAt,
	); err != nil {
		return err
	}
	if len(rewardRaw) > 0 {
		var reward models.EventReward
		if err := json.Unmarshal(rewardRaw, &reward); err != nil {
			return fmt.Errorf("failed to decode event_reward for competition %d: %w", c.ID, err)
		}
		c.EventReward = &reward
	}
	return nil
}

func (r *postgresCompetitionRepository) GetByID(ctx context.Context, id int) (*models.Competition, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + competitionColumns + ` FROM competitions WHERE id = $1`

	c := &models.Competition{}
	err := scanCompetition(executor.QueryRowContext(ctx, query, id), c)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("failed to get competition: %w", err)
	}
	return c, nil
}

func (r *postgresCompetitionRepository) List(ctx context.Context, filter ListCompetitionsFilter) ([]models.Competition, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + competitionColumns + ` FROM competitions WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}

	query += " ORDER BY end_date DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitions: %w", err)
	}
	defer rows.Close()

	competitions := make([]models.Competition, 0)
	for rows.Next() {
		var c models.Competition
		if scanErr := scanCompetition(rows, &c); scanErr != nil {
			return nil, fmt.Errorf("failed to scan competition row: %w", scanErr)
		}
		competitions = append(competitions, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating competition rows: %w", err)
	}
	return competitions, nil
}

func (r *postgresCompetitionRepository) ActivateDue(ctx context.Context, exec SQLExecutor, today time.Time) ([]int, error) {
	executor := r.getExecutor(exec)
	query := `
		UPDATE competitions
		SET status = $1
		WHERE status = $2 AND start_date <= $3
		RETURNING id`

	rows, err := executor.QueryContext(ctx, query, models.StatusActive, models.StatusUpcoming, today)
	if err != nil {
		return nil, fmt.Errorf("failed to activate due competitions: %w", err)
	}
	defer rows.Close()

	var activated []int
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("failed to scan activated competition id: %w", scanErr)
		}
		activated = append(activated, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activated competitions: %w", err)
	}
	return activated, nil
}

func (r *postgresCompetitionRepository) ListCompletionCandidates(ctx context.Context, exec SQLExecutor, today time.Time) ([]*models.Competition, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + competitionColumns + `
		FROM competitions
		WHERE status = $1 AND end_date < $2
		ORDER BY end_date ASC`

	rows, err := executor.QueryContext(ctx, query, models.StatusActive, today)
	if err != nil {
		return nil, fmt.Errorf("failed to query completion candidates: %w", err)
	}
	defer rows.Close()

	var competitions []*models.Competition
	for rows.Next() {
		var c models.Competition
		if scanErr := scanCompetition(rows, &c); scanErr != nil {
			return nil, fmt.Errorf("failed to scan completion candidate: %w", scanErr)
		}
		competitions = append(competitions, &c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completion candidates: %w", err)
	}
	return competitions, nil
}

func (r *postgresCompetitionRepository) MarkCompleted(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE competitions SET status = $1 WHERE id = $2 AND status = $3`
	result, err := executor.ExecContext(ctx, query, models.StatusCompleted, id, models.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to mark competition %d completed: %w", id, err)
	}
	return checkAffectedRows(result, ErrCompetitionStatusConflict)
}

func (r *postgresCompetitionRepository) CountByStatus(ctx context.Context) (map[models.CompetitionStatus]int, error) {
	executor := r.getExecutor(nil)
	query := `SELECT status, COUNT(*) FROM competitions GROUP BY status`

	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count competitions by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.CompetitionStatus]int)
	for rows.Next() {
		var status models.CompetitionStatus
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", scanErr)
		}
		counts[status] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}
	return counts, nil
}
