package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/strideteam/competition-engine/clock"
	"github.com/strideteam/competition-engine/events"
	"github.com/strideteam/competition-engine/models"
	"github.com/strideteam/competition-engine/repositories"
)

// TrialService выдаёт триальные периоды участникам сезонных событий,
// выполнившим порог активности.
type TrialService struct {
	participants repositories.ParticipantRepository
	trials       repositories.UserTrialRepository
	clock        clock.Clock
	notifier     Notifier
	logger       *slog.Logger
}

func NewTrialService(
	participants repositories.ParticipantRepository,
	trials repositories.UserTrialRepository,
	clk clock.Clock,
	notifier Notifier,
	logger *slog.Logger,
) *TrialService {
	return &TrialService{
		participants: participants,
		trials:       trials,
		clock:        clk,
		notifier:     notifier,
		logger:       logger,
	}
}

// DistributeSeasonalRewards выдаёт триалы всем квалифицировавшимся участникам
// завершённого сезонного события. Возвращает число участников, чей триал
// выдан, продлён или уже действует дольше нового срока. Ошибка по одному
// пользователю не прерывает остальных.
func (s *TrialService) DistributeSeasonalRewards(ctx context.Context, comp *models.Competition) (int, error) {
	if !comp.IsSeasonalEvent || comp.EventReward == nil {
		return 0, nil
	}

	reward := comp.EventReward
	if reward.TrialHours <= 0 || reward.Type == "" {
		s.logger.Warn("seasonal event has incomplete reward, skipping trial distribution",
			slog.Int("competition_id", comp.ID))
		return 0, nil
	}

	counts, err := s.participants.ActiveDayCounts(ctx, comp.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load active day counts for competition %d: %w", comp.ID, err)
	}

	granted := 0
	for _, c := range counts {
		if c.Days < reward.MinDaysCompleted {
			continue
		}
		if err := s.grantTrial(ctx, comp, c.UserID); err != nil {
			s.logger.Error("failed to grant seasonal trial",
				slog.Int("competition_id", comp.ID),
				slog.Int("user_id", c.UserID),
				slog.Any("error", err))
			continue
		}
		granted++
	}

	s.logger.Info("seasonal trial distribution finished",
		slog.Int("competition_id", comp.ID),
		slog.Int("qualified", granted))
	return granted, nil
}

// grantTrial выдаёт новый триал либо продлевает существующий. Срок действия
// никогда не сокращается: если текущий триал истекает позже, он остаётся.
func (s *TrialService) grantTrial(ctx context.Context, comp *models.Competition, userID int) error {
	now := s.clock.Now()
	expiresAt := now.Add(time.Duration(comp.EventReward.TrialHours) * time.Hour)
	trialType := comp.EventReward.Type
	source := comp.EventReward.Source

	existing, err := s.trials.GetByUserTypeSource(ctx, userID, trialType, source)
	switch {
	case errors.Is(err, repositories.ErrTrialNotFound):
		trial := &models.UserTrial{
			UserID:    userID,
			TrialType: trialType,
			Source:    source,
			GrantedAt: now,
			ExpiresAt: expiresAt,
		}
		if err := s.trials.Create(ctx, trial); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if !existing.ExpiresAt.Before(expiresAt) {
			return nil
		}
		if err := s.trials.UpdateExpiry(ctx, existing.ID, now, expiresAt); err != nil {
			return err
		}
	}

	s.notifier.Notify(Notification{
		Type:          events.EventTrialGranted,
		CompetitionID: comp.ID,
		Data: map[string]any{
			"user_id":     userID,
			"trial_type":  trialType,
			"trial_hours": comp.EventReward.TrialHours,
			"expires_at":  expiresAt,
		},
	})
	return nil
}
