package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/strideteam/competition-engine/clock"
	"github.com/strideteam/competition-engine/events"
	"github.com/strideteam/competition-engine/models"
	"github.com/strideteam/competition-engine/repositories"
)

// ClaimExpiryDays — срок, в течение которого победитель может забрать приз.
const ClaimExpiryDays = 7

// placementKeys задаёт порядок мест в payout_structure. Ключи без доли в
// структуре пула пропускаются.
var placementKeys = []string{"first", "second", "third", "fourth", "fifth"}

// PrizeService распределяет денежный призовой фонд завершённого соревнования.
type PrizeService struct {
	pools        repositories.PrizePoolRepository
	payouts      repositories.PrizePayoutRepository
	participants repositories.ParticipantRepository
	users        repositories.UserRepository
	audit        repositories.AuditLogRepository
	clock        clock.Clock
	notifier     Notifier
	logger       *slog.Logger
}

func NewPrizeService(
	pools repositories.PrizePoolRepository,
	payouts repositories.PrizePayoutRepository,
	participants repositories.ParticipantRepository,
	users repositories.UserRepository,
	audit repositories.AuditLogRepository,
	clk clock.Clock,
	notifier Notifier,
	logger *slog.Logger,
) *PrizeService {
	return &PrizeService{
		pools:        pools,
		payouts:      payouts,
		participants: participants,
		users:        users,
		audit:        audit,
		clock:        clk,
		notifier:     notifier,
		logger:       logger,
	}
}

type payoutAward struct {
	userID    int
	placement int
	amount    float64
}

// SettleCompetition создаёт записи выплат для призовых мест. Повторный вызов
// безопасен: существующие выплаты означают, что расчёт уже прошёл, и новые
// записи не создаются. Возвращает число созданных выплат.
func (s *PrizeService) SettleCompetition(ctx context.Context, comp *models.Competition) (int, error) {
	if !comp.HasPrizePool {
		return 0, nil
	}

	existing, err := s.payouts.CountByCompetition(ctx, comp.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to check existing payouts for competition %d: %w", comp.ID, err)
	}
	if existing > 0 {
		s.logger.Info("competition already settled, skipping prize distribution",
			slog.Int("competition_id", comp.ID),
			slog.Int("existing_payouts", existing))
		return 0, nil
	}

	pool, err := s.pools.GetActiveByCompetition(ctx, comp.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrPrizePoolNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to load prize pool for competition %d: %w", comp.ID, err)
	}
	if len(pool.PayoutStructure) == 0 {
		return 0, ErrPayoutStructureEmpty
	}

	parts, err := s.participants.ListByCompetition(ctx, comp.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load participants for competition %d: %w", comp.ID, err)
	}
	if len(parts) == 0 {
		s.logger.Warn("competition has prize pool but no participants",
			slog.Int("competition_id", comp.ID))
		return 0, nil
	}

	var awards []payoutAward
	if comp.IsTeamCompetition {
		awards = teamAwards(pool, parts)
	} else {
		awards = individualAwards(pool, parts)
	}

	now := s.clock.Now()
	claimExpiresAt := now.AddDate(0, 0, ClaimExpiryDays)
	created := 0
	distributedTotal := 0.0

	for _, award := range awards {
		payout := &models.PrizePayout{
			PrizePoolID:    pool.ID,
			CompetitionID:  comp.ID,
			WinnerID:       award.userID,
			Placement:      award.placement,
			PayoutAmount:   award.amount,
			Status:         models.PayoutStatusPending,
			ClaimStatus:    models.ClaimUnclaimed,
			ClaimExpiresAt: claimExpiresAt,
		}

		if user, userErr := s.users.GetByID(ctx, award.userID); userErr == nil {
			payout.WinnerEmail = user.Email
			payout.WinnerName = user.DisplayName
		} else {
			s.logger.Warn("failed to snapshot winner profile",
				slog.Int("user_id", award.userID),
				slog.Any("error", userErr))
		}

		if err := s.payouts.Create(ctx, nil, payout); err != nil {
			if errors.Is(err, repositories.ErrPayoutConflict) {
				s.logger.Warn("payout already created by concurrent run",
					slog.Int("competition_id", comp.ID),
					slog.Int("winner_id", award.userID),
					slog.Int("placement", award.placement))
				continue
			}
			s.logger.Error("failed to create prize payout",
				slog.Int("competition_id", comp.ID),
				slog.Int("winner_id", award.userID),
				slog.Any("error", err))
			continue
		}
		created++
		distributedTotal += payout.PayoutAmount

		auditErr := s.audit.Create(ctx, &models.AuditLog{
			Action:     models.AuditActionPrizePayoutCreated,
			EntityType: "prize_payout",
			EntityID:   payout.ID,
			Details: map[string]any{
				"competition_id": comp.ID,
				"prize_pool_id":  pool.ID,
				"winner_id":      award.userID,
				"placement":      award.placement,
				"payout_amount":  payout.PayoutAmount,
			},
		})
		if auditErr != nil {
			s.logger.Error("failed to write payout audit entry",
				slog.Int("payout_id", payout.ID),
				slog.Any("error", auditErr))
		}
	}

	// Статус пула двигает запуск, создавший выплаты. Если все вставки ушли
	// в конфликт, перевод в distributing уже выполнил конкурирующий запуск.
	if created > 0 {
		if err := s.pools.UpdateStatus(ctx, nil, pool.ID, models.PrizePoolDistributing); err != nil {
			s.logger.Error("failed to move prize pool to distributing",
				slog.Int("prize_pool_id", pool.ID),
				slog.Any("error", err))
		}
		s.notifier.Notify(Notification{
			Type:          events.EventPrizesDistributed,
			CompetitionID: comp.ID,
			Data: map[string]any{
				"payouts":     created,
				"distributed": distributedTotal,
			},
		})
	}

	return created, nil
}

// individualAwards назначает места участникам в порядке убывания очков.
func individualAwards(pool *models.PrizePool, parts []*models.Participant) []payoutAward {
	var awards []payoutAward
	for i, key := range placementKeys {
		if i >= len(parts) {
			break
		}
		share, ok := pool.PayoutStructure[key]
		if !ok || share <= 0 {
			continue
		}
		tierAmount := pool.TotalAmount * share / 100
		awards = append(awards, payoutAward{
			userID:    parts[i].UserID,
			placement: i + 1,
			amount:    floorCents(tierAmount),
		})
	}
	return awards
}

type teamStanding struct {
	teamID  int
	members []*models.Participant
	average float64
}

// teamAwards ранжирует команды по среднему числу очков на участника, чтобы
// размер команды не давал преимущества. Сумма места делится поровну между
// участниками команды с округлением вниз до цента. Участники без команды в
// командном зачёте не участвуют.
func teamAwards(pool *models.PrizePool, parts []*models.Participant) []payoutAward {
	byTeam := make(map[int][]*models.Participant)
	for _, p := range parts {
		if p.TeamID == nil {
			continue
		}
		byTeam[*p.TeamID] = append(byTeam[*p.TeamID], p)
	}

	standings := make([]teamStanding, 0, len(byTeam))
	for teamID, members := range byTeam {
		total := 0.0
		for _, m := range members {
			total += m.TotalPoints
		}
		standings = append(standings, teamStanding{
			teamID:  teamID,
			members: members,
			average: total / float64(len(members)),
		})
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].average != standings[j].average {
			return standings[i].average > standings[j].average
		}
		return standings[i].teamID < standings[j].teamID
	})

	var awards []payoutAward
	for i, key := range placementKeys {
		if i >= len(standings) {
			break
		}
		share, ok := pool.PayoutStructure[key]
		if !ok || share <= 0 {
			continue
		}
		tierAmount := pool.TotalAmount * share / 100
		memberShare := floorCents(tierAmount / float64(len(standings[i].members)))
		for _, m := range standings[i].members {
			awards = append(awards, payoutAward{
				userID:    m.UserID,
				placement: i + 1,
				amount:    memberShare,
			})
		}
	}
	return awards
}

// floorCents округляет вниз до цента, чтобы сумма выплат никогда не превысила
// фонд.
func floorCents(amount float64) float64 {
	return math.Floor(amount*100) / 100
}
