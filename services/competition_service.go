package services

import (
	"context"
	"errors"

	"github.com/strideteam/competition-engine/models"
	"github.com/strideteam/competition-engine/repositories"
)

// CompetitionService — read-only доступ к соревнованиям и их выплатам для
// HTTP-слоя.
type CompetitionService struct {
	competitions repositories.CompetitionRepository
	payouts      repositories.PrizePayoutRepository
}

func NewCompetitionService(
	competitions repositories.CompetitionRepository,
	payouts repositories.PrizePayoutRepository,
) *CompetitionService {
	return &CompetitionService{competitions: competitions, payouts: payouts}
}

func (s *CompetitionService) List(ctx context.Context, filter repositories.ListCompetitionsFilter) ([]models.Competition, error) {
	return s.competitions.List(ctx, filter)
}

func (s *CompetitionService) GetByID(ctx context.Context, id int) (*models.Competition, error) {
	if id <= 0 {
		return nil, ErrInvalidCompetitionID
	}
	comp, err := s.competitions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCompetitionNotFound) {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}
	return comp, nil
}

func (s *CompetitionService) ListPayouts(ctx context.Context, competitionID int) ([]*models.PrizePayout, error) {
	if _, err := s.GetByID(ctx, competitionID); err != nil {
		return nil, err
	}
	return s.payouts.ListByCompetition(ctx, competitionID)
}
