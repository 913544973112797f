package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/strideteam/competition-engine/clock"
	"github.com/strideteam/competition-engine/events"
	"github.com/strideteam/competition-engine/models"
	"github.com/strideteam/competition-engine/repositories"
)

// completionParallelism ограничивает число соревнований, закрываемых
// одновременно, чтобы не выжирать пул соединений.
const completionParallelism = 4

// SettlementLocker выдаёт эксклюзивную блокировку на расчёт одного
// соревнования. ok=false означает, что блокировку держит другой запуск.
type SettlementLocker interface {
	Acquire(ctx context.Context, key int64) (release func(), ok bool, err error)
}

type seasonalRewarder interface {
	DistributeSeasonalRewards(ctx context.Context, comp *models.Competition) (int, error)
}

type prizeSettler interface {
	SettleCompetition(ctx context.Context, comp *models.Competition) (int, error)
}

type coinDistributor interface {
	DistributeCompletionRewards(ctx context.Context, comp *models.Competition) (int, error)
}

// StatusCounts — срез по статусам после запуска.
type StatusCounts struct {
	Upcoming  int `json:"upcoming"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

// RunSummary — итог одного запуска планировщика.
type RunSummary struct {
	RunID       string       `json:"run_id"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Activated   int          `json:"activated"`
	Completed   int          `json:"completed"`
	ForceLocked int64        `json:"force_locked"`
	Counts      StatusCounts `json:"counts"`
}

// SchedulerService продвигает соревнования по жизненному циклу:
// upcoming -> active -> completed, с расчётом наград при завершении.
type SchedulerService struct {
	competitions repositories.CompetitionRepository
	participants repositories.ParticipantRepository
	audit        repositories.AuditLogRepository
	deadlines    *DeadlineCalculator
	locker       SettlementLocker
	trials       seasonalRewarder
	prizes       prizeSettler
	coins        coinDistributor
	reporter     *RunReporter
	clock        clock.Clock
	notifier     Notifier
	logger       *slog.Logger
}

func NewSchedulerService(
	competitions repositories.CompetitionRepository,
	participants repositories.ParticipantRepository,
	audit repositories.AuditLogRepository,
	deadlines *DeadlineCalculator,
	locker SettlementLocker,
	trials seasonalRewarder,
	prizes prizeSettler,
	coins coinDistributor,
	reporter *RunReporter,
	clk clock.Clock,
	notifier Notifier,
	logger *slog.Logger,
) *SchedulerService {
	return &SchedulerService{
		competitions: competitions,
		participants: participants,
		audit:        audit,
		deadlines:    deadlines,
		locker:       locker,
		trials:       trials,
		prizes:       prizes,
		coins:        coins,
		reporter:     reporter,
		clock:        clk,
		notifier:     notifier,
		logger:       logger,
	}
}

// Run выполняет один проход планировщика. Активация — одним UPDATE по дате;
// завершение — по кандидату, под advisory-блокировкой, параллельно с
// ограничением. Ошибка одного соревнования не прерывает остальные.
func (s *SchedulerService) Run(ctx context.Context) (*RunSummary, error) {
	now := s.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	summary := &RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: now,
	}
	logger := s.logger.With(slog.String("run_id", summary.RunID))
	logger.Info("scheduler run started")

	activatedIDs, err := s.competitions.ActivateDue(ctx, nil, today)
	if err != nil {
		return nil, err
	}
	summary.Activated = len(activatedIDs)
	for _, id := range activatedIDs {
		s.notifier.Notify(Notification{
			Type:          events.EventCompetitionActivated,
			CompetitionID: id,
		})
	}
	if summary.Activated > 0 {
		logger.Info("competitions activated", slog.Int("count", summary.Activated))
	}

	candidates, err := s.competitions.ListCompletionCandidates(ctx, nil, today)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(completionParallelism)

	for _, comp := range candidates {
		comp := comp
		g.Go(func() error {
			completed, forceLocked := s.completeOne(gctx, logger, comp, now)
			mu.Lock()
			if completed {
				summary.Completed++
			}
			summary.ForceLocked += forceLocked
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts, err := s.competitions.CountByStatus(ctx)
	if err != nil {
		logger.Error("failed to count competitions by status", slog.Any("error", err))
	} else {
		summary.Counts = StatusCounts{
			Upcoming:  counts[models.StatusUpcoming],
			Active:    counts[models.StatusActive],
			Completed: counts[models.StatusCompleted],
		}
	}

	summary.FinishedAt = s.clock.Now().UTC()
	logger.Info("scheduler run finished",
		slog.Int("activated", summary.Activated),
		slog.Int("completed", summary.Completed),
		slog.Int64("force_locked", summary.ForceLocked),
		slog.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)))

	if s.reporter != nil {
		s.reporter.Archive(ctx, summary)
	}
	return summary, nil
}

// completeOne закрывает одно соревнование: проверяет дедлайн, принудительно
// фиксирует незалоченные очки, переводит статус и запускает расчёты наград.
// Возвращает факт завершения и число принудительно залоченных участников.
func (s *SchedulerService) completeOne(ctx context.Context, logger *slog.Logger, comp *models.Competition, now time.Time) (bool, int64) {
	compLogger := logger.With(slog.Int("competition_id", comp.ID))

	// Завершать можно только строго после дедлайна.
	deadline := s.deadlines.CompletionDeadline(ctx, comp.ID, comp.EndDate)
	if !now.After(deadline) {
		compLogger.Debug("completion deadline not reached yet",
			slog.Time("deadline", deadline))
		return false, 0
	}

	release, ok, err := s.locker.Acquire(ctx, int64(comp.ID))
	if err != nil {
		compLogger.Error("failed to acquire settlement lock", slog.Any("error", err))
		return false, 0
	}
	if !ok {
		compLogger.Info("settlement lock held by another run, skipping")
		return false, 0
	}
	defer release()

	forceLocked, err := s.participants.ForceLockScores(ctx, nil, comp.ID, now)
	if err != nil {
		compLogger.Error("failed to force-lock scores", slog.Any("error", err))
		return false, 0
	}
	if forceLocked > 0 {
		compLogger.Warn("scores force-locked at completion",
			slog.Int64("participants", forceLocked))
	}

	if err := s.competitions.MarkCompleted(ctx, nil, comp.ID); err != nil {
		if errors.Is(err, repositories.ErrCompetitionStatusConflict) {
			compLogger.Info("competition already completed by another run, skipping")
		} else {
			compLogger.Error("failed to mark competition completed", slog.Any("error", err))
		}
		return false, forceLocked
	}
	compLogger.Info("competition completed")

	if auditErr := s.audit.Create(ctx, &models.AuditLog{
		Action:     models.AuditActionCompetitionComplete,
		EntityType: "competition",
		EntityID:   comp.ID,
		Details: map[string]any{
			"force_locked": forceLocked,
			"deadline":     deadline,
		},
	}); auditErr != nil {
		compLogger.Error("failed to write completion audit entry", slog.Any("error", auditErr))
	}

	s.notifier.Notify(Notification{
		Type:          events.EventCompetitionCompleted,
		CompetitionID: comp.ID,
		Data: map[string]any{
			"name": comp.Name,
		},
	})

	// Награды считаются best-effort: сбой одного вида наград не откатывает
	// завершение и не мешает остальным видам.
	if _, err := s.trials.DistributeSeasonalRewards(ctx, comp); err != nil {
		compLogger.Error("seasonal trial distribution failed", slog.Any("error", err))
	}
	if _, err := s.prizes.SettleCompetition(ctx, comp); err != nil {
		compLogger.Error("prize settlement failed", slog.Any("error", err))
	}
	if _, err := s.coins.DistributeCompletionRewards(ctx, comp); err != nil {
		compLogger.Error("coin distribution failed", slog.Any("error", err))
	}

	return true, forceLocked
}
