package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/strideteam/competition-engine/clock"
	"github.com/strideteam/competition-engine/events"
	"github.com/strideteam/competition-engine/models"
	"github.com/strideteam/competition-engine/repositories"
)

type fakeCompetitionRepo struct {
	mu sync.Mutex

	activatedIDs []int
	activateErr  error
	candidates   []*models.Competition
	conflictIDs  map[int]bool
	counts       map[models.CompetitionStatus]int

	completed []int
}

func (f *fakeCompetitionRepo) GetByID(ctx context.Context, id int) (*models.Competition, error) {
	return nil, repositories.ErrCompetitionNotFound
}

func (f *fakeCompetitionRepo) List(ctx context.Context, filter repositories.ListCompetitionsFilter) ([]models.Competition, error) {
	return nil, nil
}

func (f *fakeCompetitionRepo) ActivateDue(ctx context.Context, exec repositories.SQLExecutor, today time.Time) ([]int, error) {
	if f.activateErr != nil {
		return nil, f.activateErr
	}
	return f.activatedIDs, nil
}

func (f *fakeCompetitionRepo) ListCompletionCandidates(ctx context.Context, exec repositories.SQLExecutor, today time.Time) ([]*models.Competition, error) {
	return f.candidates, nil
}

func (f *fakeCompetitionRepo) MarkCompleted(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflictIDs[id] {
		return repositories.ErrCompetitionStatusConflict
	}
	// Уже завершённое соревнование не проходит compare-and-set повторно.
	for _, done := range f.completed {
		if done == id {
			return repositories.ErrCompetitionStatusConflict
		}
	}
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeCompetitionRepo) CountByStatus(ctx context.Context) (map[models.CompetitionStatus]int, error) {
	return f.counts, nil
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[int64]bool
	err      error
	released []int64
}

func (f *fakeLocker) Acquire(ctx context.Context, key int64) (func(), bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held[key] {
		return nil, false, nil
	}
	return func() {
		f.mu.Lock()
		f.released = append(f.released, key)
		f.mu.Unlock()
	}, true, nil
}

type stubSeasonalRewarder struct {
	calls int
	err   error
}

func (s *stubSeasonalRewarder) DistributeSeasonalRewards(ctx context.Context, comp *models.Competition) (int, error) {
	s.calls++
	return 0, s.err
}

type stubPrizeSettler struct {
	calls int
	err   error
}

func (s *stubPrizeSettler) SettleCompetition(ctx context.Context, comp *models.Competition) (int, error) {
	s.calls++
	return 0, s.err
}

type stubCoinDistributor struct {
	calls int
	err   error
}

func (s *stubCoinDistributor) DistributeCompletionRewards(ctx context.Context, comp *models.Competition) (int, error) {
	s.calls++
	return 0, s.err
}

type schedulerFixture struct {
	competitions *fakeCompetitionRepo
	participants *fakeParticipantRepo
	audit        *fakeAuditRepo
	locker       *fakeLocker
	trials       *stubSeasonalRewarder
	prizes       *stubPrizeSettler
	coins        *stubCoinDistributor
	notifier     *fakeNotifier
	service      *SchedulerService
}

func newSchedulerFixture(competitions *fakeCompetitionRepo, participants *fakeParticipantRepo, locker *fakeLocker, now time.Time) *schedulerFixture {
	f := &schedulerFixture{
		competitions: competitions,
		participants: participants,
		audit:        &fakeAuditRepo{},
		locker:       locker,
		trials:       &stubSeasonalRewarder{},
		prizes:       &stubPrizeSettler{},
		coins:        &stubCoinDistributor{},
		notifier:     &fakeNotifier{},
	}
	deadlines := NewDeadlineCalculator(participants, discardLogger())
	f.service = NewSchedulerService(
		competitions,
		participants,
		f.audit,
		deadlines,
		locker,
		f.trials,
		f.prizes,
		f.coins,
		NewRunReporter(nil, discardLogger()),
		clock.Mock{T: now},
		f.notifier,
		discardLogger(),
	)
	return f
}

func endedCompetition(id int) *models.Competition {
	return &models.Competition{
		ID:      id,
		Name:    "Ended",
		Status:  models.StatusActive,
		EndDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestRunActivatesDueCompetitions(t *testing.T) {
	competitions := &fakeCompetitionRepo{activatedIDs: []int{1, 2}}
	fixture := newSchedulerFixture(competitions, &fakeParticipantRepo{}, &fakeLocker{}, time.Date(2024, 1, 5, 3, 0, 0, 0, time.UTC))

	summary, err := fixture.service.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Activated != 2 {
		t.Errorf("activated = %d, want 2", summary.Activated)
	}
	if summary.RunID == "" {
		t.Error("run id is empty")
	}
	if got := fixture.notifier.byType(events.EventCompetitionActivated); len(got) != 2 {
		t.Errorf("activation notifications = %d, want 2", len(got))
	}
}

func TestRunCompletesPastDeadline(t *testing.T) {
	// Дедлайн для end_date 2024-01-10 и смещения UTC-5: 2024-01-11 17:00 UTC.
	competitions := &fakeCompetitionRepo{
		candidates: []*models.Competition{endedCompetition(7)},
		counts: map[models.CompetitionStatus]int{
			models.StatusUpcoming:  1,
			models.StatusActive:    2,
			models.StatusCompleted: 3,
		},
	}
	participants := &fakeParticipantRepo{offset: intPtr(-5), participants: []*models.Participant{
		participant(1, 400),
		participant(2, 300),
		participant(3, 200),
		participant(4, 100),
	}}
	fixture := newSchedulerFixture(competitions, participants, &fakeLocker{}, time.Date(2024, 1, 11, 18, 0, 0, 0, time.UTC))

	summary, err := fixture.service.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Completed != 1 {
		t.Errorf("completed = %d, want 1", summary.Completed)
	}
	if summary.ForceLocked != 4 {
		t.Errorf("force locked = %d, want 4", summary.ForceLocked)
	}
	if summary.Counts != (StatusCounts{Upcoming: 1, Active: 2, Completed: 3}) {
		t.Errorf("counts = %+v", summary.Counts)
	}
	if len(competitions.completed) != 1 || competitions.completed[0] != 7 {
		t.Errorf("completed ids = %v", competitions.completed)
	}
	if fixture.trials.calls != 1 || fixture.prizes.calls != 1 || fixture.coins.calls != 1 {
		t.Errorf("reward calls = %d/%d/%d, want 1 each", fixture.trials.calls, fixture.prizes.calls, fixture.coins.calls)
	}
	if len(fixture.locker.released) != 1 {
		t.Errorf("lock released %d times, want 1", len(fixture.locker.released))
	}
	if len(fixture.audit.entries) != 1 {
		t.Errorf("audit entries = %d, want 1", len(fixture.audit.entries))
	}
	if got := fixture.notifier.byType(events.EventCompetitionCompleted); len(got) != 1 {
		t.Errorf("completion notifications = %d, want 1", len(got))
	}
}

func TestRunRespectsDeadline(t *testing.T) {
	competitions := &fakeCompetitionRepo{candidates: []*models.Competition{endedCompetition(7)}}
	participants := &fakeParticipantRepo{offset: intPtr(-5)}
	// 2024-01-11 10:00 UTC — раньше дедлайна 17:00.
	fixture := newSchedulerFixture(competitions, participants, &fakeLocker{}, time.Date(2024, 1, 11, 10, 0, 0, 0, time.UTC))

	summary, err := fixture.service.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Completed != 0 {
		t.Errorf("completed = %d, want 0 before deadline", summary.Completed)
	}
	if participants.lockedAt != nil {
		t.Error("scores locked before deadline")
	}
	if fixture.coins.calls != 0 {
		t.Error("rewards distributed before deadline")
	}
}

func TestRunForceLockSecondPassIsNoOp(t *testing.T) {
	competitions := &fakeCompetitionRepo{candidates: []*models.Competition{endedCompetition(7)}}
	participants := &fakeParticipantRepo{offset: intPtr(-5), participants: []*models.Participant{
		participant(1, 200),
		participant(2, 100),
	}}
	fixture := newSchedulerFixture(competitions, participants, &fakeLocker{}, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC))

	first, err := fixture.service.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on first run: %v", err)
	}
	if first.ForceLocked != 2 {
		t.Fatalf("first run force locked = %d, want 2", first.ForceLocked)
	}
	for _, p := range participants.participants {
		if p.ScoreLockedAt == nil {
			t.Fatalf("participant %d not locked after first run", p.UserID)
		}
	}

	// Повторный запуск: все очки уже зафиксированы, переход статуса не
	// проходит compare-and-set — ни одна строка не меняется.
	second, err := fixture.service.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on second run: %v", err)
	}
	if second.ForceLocked != 0 {
		t.Errorf("second run force locked = %d, want 0", second.ForceLocked)
	}
	if second.Completed != 0 {
		t.Errorf("second run completed = %d, want 0", second.Completed)
	}
	if len(competitions.completed) != 1 {
		t.Errorf("completed ids = %v, want exactly one entry", competitions.completed)
	}
}

func TestRunRespectsHawaiiDeadline(t *testing.T) {
	// Дедлайн для end_date 2024-01-10 при участнике из UTC-10:
	// 2024-01-11 22:00 UTC. В 18:00 (когда UTC-5 уже завершилось бы)
	// соревнование ещё не закрывается.
	competitions := &fakeCompetitionRepo{candidates: []*models.Competition{endedCompetition(7)}}
	participants := &fakeParticipantRepo{offset: intPtr(-10), participants: []*models.Participant{
		participant(1, 200),
		participant(2, 100),
	}}
	fixture := newSchedulerFixture(competitions, participants, &fakeLocker{}, time.Date(2024, 1, 11, 18, 0, 0, 0, time.UTC))

	summary, err := fixture.service.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Completed != 0 {
		t.Errorf("completed = %d, want 0 before Hawaii deadline", summary.Completed)
	}
	for _, p := range participants.participants {
		if p.ScoreLockedAt != nil {
			t.Errorf("participant %d locked before deadline", p.UserID)
		}
	}
}

func TestRunSkipsWhenLockHeld(t *testing.T) {
	competitions := &fakeCompetitionRepo{candidates: []*models.Competition{endedCompetition(7)}}
	participants := &fakeParticipantRepo{offset: intPtr(-5)}
	locker := &fakeLocker{held: map[int64]bool{7: true}}
	fixture := newSchedulerFixture(competitions, participants, locker, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC))

	summary, err := fixture.service.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Completed != 0 {
		t.Errorf("completed = %d, want 0 when lock is held", summary.Completed)
	}
	if len(competitions.completed) != 0 {
		t.Errorf("competition completed despite held lock: %v", competitions.completed)
	}
}

func TestRunStatusConflictIsNotFatal(t *testing.T) {
	competitions := &fakeCompetitionRepo{
		candidates:  []*models.Competition{endedCompetition(7), endedCompetition(8)},
		conflictIDs: map[int]bool{7: true},
	}
	participants := &fakeParticipantRepo{offset: intPtr(-5)}
	fixture := newSchedulerFixture(competitions, participants, &fakeLocker{}, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC))

	summary, err := fixture.service.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Конкурентный запуск успел завершить 7; 8 завершается нормально.
	if summary.Completed != 1 {
		t.Errorf("completed = %d, want 1", summary.Completed)
	}
	if len(competitions.completed) != 1 || competitions.completed[0] != 8 {
		t.Errorf("completed ids = %v, want [8]", competitions.completed)
	}
}

func TestRunRewardFailuresAreIsolated(t *testing.T) {
	competitions := &fakeCompetitionRepo{candidates: []*models.Competition{endedCompetition(7)}}
	participants := &fakeParticipantRepo{offset: intPtr(-5)}
	fixture := newSchedulerFixture(competitions, participants, &fakeLocker{}, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC))
	fixture.trials.err = errors.New("trials down")
	fixture.prizes.err = errors.New("prizes down")

	summary, err := fixture.service.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Completed != 1 {
		t.Errorf("completed = %d, want 1 despite reward failures", summary.Completed)
	}
	// Сбой триалов и призов не мешает монетам.
	if fixture.coins.calls != 1 {
		t.Errorf("coin calls = %d, want 1", fixture.coins.calls)
	}
}

func TestRunActivationErrorIsFatal(t *testing.T) {
	competitions := &fakeCompetitionRepo{activateErr: errors.New("db down")}
	fixture := newSchedulerFixture(competitions, &fakeParticipantRepo{}, &fakeLocker{}, time.Now())

	if _, err := fixture.service.Run(context.Background()); err == nil {
		t.Fatal("expected error when activation fails")
	}
}
