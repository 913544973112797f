package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/strideteam/competition-engine/events"
	"github.com/strideteam/competition-engine/models"
	"github.com/strideteam/competition-engine/repositories"
)

// RewardConfig задаёт размеры монетных бонусов за завершённое соревнование.
type RewardConfig struct {
	FirstPlaceBonus    int
	SecondPlaceBonus   int
	ThirdPlaceBonus    int
	ParticipationBonus int
}

func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		FirstPlaceBonus:    100,
		SecondPlaceBonus:   50,
		ThirdPlaceBonus:    25,
		ParticipationBonus: 10,
	}
}

func (c RewardConfig) Validate() error {
	if c.FirstPlaceBonus < 0 || c.SecondPlaceBonus < 0 || c.ThirdPlaceBonus < 0 || c.ParticipationBonus < 0 {
		return ErrRewardConfigInvalid
	}
	return nil
}

// CoinLedger атомарно начисляет монеты: запись в журнал и баланс кошелька.
type CoinLedger interface {
	Credit(ctx context.Context, userID, earnedAmount, premiumAmount int, transactionType, referenceType string, referenceID int, metadata map[string]any) error
}

// CoinService начисляет монеты участникам завершённого соревнования.
type CoinService struct {
	transactions repositories.CoinTransactionRepository
	ledger       CoinLedger
	participants repositories.ParticipantRepository
	config       RewardConfig
	notifier     Notifier
	logger       *slog.Logger
}

func NewCoinService(
	transactions repositories.CoinTransactionRepository,
	ledger CoinLedger,
	participants repositories.ParticipantRepository,
	config RewardConfig,
	notifier Notifier,
	logger *slog.Logger,
) *CoinService {
	return &CoinService{
		transactions: transactions,
		ledger:       ledger,
		participants: participants,
		config:       config,
		notifier:     notifier,
		logger:       logger,
	}
}

// DistributeCompletionRewards начисляет бонусы за места и за участие.
// Повторный вызов безопасен: существующая win-транзакция по соревнованию
// означает, что начисление уже прошло; остальное ловит уникальный индекс
// журнала. Возвращает число успешных начислений.
func (s *CoinService) DistributeCompletionRewards(ctx context.Context, comp *models.Competition) (int, error) {
	parts, err := s.participants.ListByCompetition(ctx, comp.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load participants for competition %d: %w", comp.ID, err)
	}
	if len(parts) == 0 {
		return 0, nil
	}

	alreadyPaid, err := s.transactions.ExistsByReference(ctx, models.ReferenceTypeCompetition, comp.ID, models.TransactionCompetitionWin)
	if err != nil {
		return 0, fmt.Errorf("failed to check coin reward idempotency for competition %d: %w", comp.ID, err)
	}
	if alreadyPaid {
		s.logger.Info("coin rewards already distributed, skipping",
			slog.Int("competition_id", comp.ID))
		return 0, nil
	}

	// Бонусы за места начисляются только при реальном соперничестве:
	// единственный участник получает лишь бонус за участие.
	hasRealCompetition := len(parts) >= 2
	winBonuses := []int{s.config.FirstPlaceBonus, s.config.SecondPlaceBonus, s.config.ThirdPlaceBonus}

	credited := 0
	for i, p := range parts {
		amount := s.config.ParticipationBonus
		transactionType := models.TransactionCompetitionComplete
		metadata := map[string]any{
			"competition_id":   comp.ID,
			"competition_name": comp.Name,
		}

		if hasRealCompetition && i < len(winBonuses) && winBonuses[i] > 0 {
			amount += winBonuses[i]
			transactionType = models.TransactionCompetitionWin
			metadata["placement"] = i + 1
		}
		if amount <= 0 {
			continue
		}

		if s.credit(ctx, p.UserID, amount, transactionType, comp.ID, metadata) {
			credited++
		}
	}

	if credited > 0 {
		s.notifier.Notify(Notification{
			Type:          events.EventCoinsDistributed,
			CompetitionID: comp.ID,
			Data: map[string]any{
				"credits": credited,
			},
		})
	}
	return credited, nil
}

func (s *CoinService) credit(ctx context.Context, userID, amount int, transactionType string, competitionID int, metadata map[string]any) bool {
	err := s.ledger.Credit(ctx, userID, amount, 0, transactionType, models.ReferenceTypeCompetition, competitionID, metadata)
	switch {
	case err == nil:
		return true
	case errors.Is(err, repositories.ErrCoinTransactionConflict):
		s.logger.Warn("coin credit already recorded by concurrent run",
			slog.Int("competition_id", competitionID),
			slog.Int("user_id", userID),
			slog.String("transaction_type", transactionType))
	default:
		s.logger.Error("failed to credit coins",
			slog.Int("competition_id", competitionID),
			slog.Int("user_id", userID),
			slog.String("transaction_type", transactionType),
			slog.Any("error", err))
	}
	return false
}
