package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/strideteam/competition-engine/models"
	"github.com/strideteam/competition-engine/repositories"
)

// Общие фейки репозиториев для тестов сервисного слоя.

type fakeParticipantRepo struct {
	participants []*models.Participant
	dayCounts    []models.ActiveDayCount
	offset       *int

	listErr      error
	lockErr      error
	lockedAt     *time.Time
	lockedCompID int
}

func (f *fakeParticipantRepo) ListByCompetition(ctx context.Context, competitionID int) ([]*models.Participant, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.participants, nil
}

// ForceLockScores повторяет NULL-предикат настоящего репозитория: штампуются
// только незалоченные участники, повторный вызов меняет ноль строк.
func (f *fakeParticipantRepo) ForceLockScores(ctx context.Context, exec repositories.SQLExecutor, competitionID int, lockedAt time.Time) (int64, error) {
	if f.lockErr != nil {
		return 0, f.lockErr
	}
	f.lockedAt = &lockedAt
	f.lockedCompID = competitionID

	var locked int64
	for _, p := range f.participants {
		if p.ScoreLockedAt == nil {
			stamp := lockedAt
			p.ScoreLockedAt = &stamp
			locked++
		}
	}
	return locked, nil
}

func (f *fakeParticipantRepo) ActiveDayCounts(ctx context.Context, competitionID int) ([]models.ActiveDayCount, error) {
	return f.dayCounts, nil
}

func (f *fakeParticipantRepo) LatestTimezoneOffset(ctx context.Context, competitionID int) (*int, error) {
	return f.offset, nil
}

type fakeUserRepo struct {
	users map[int]*models.User
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, repositories.ErrUserNotFound
}

type fakeAuditRepo struct {
	entries []*models.AuditLog
}

func (f *fakeAuditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeNotifier struct {
	mu            sync.Mutex
	notifications []Notification
}

func (f *fakeNotifier) Notify(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
}

func (f *fakeNotifier) byType(eventType string) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Notification
	for _, n := range f.notifications {
		if n.Type == eventType {
			out = append(out, n)
		}
	}
	return out
}

type fakePrizePoolRepo struct {
	pool     *models.PrizePool
	statuses []models.PrizePoolStatus
}

func (f *fakePrizePoolRepo) GetActiveByCompetition(ctx context.Context, competitionID int) (*models.PrizePool, error) {
	if f.pool == nil {
		return nil, repositories.ErrPrizePoolNotFound
	}
	return f.pool, nil
}

func (f *fakePrizePoolRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.PrizePoolStatus) error {
	f.statuses = append(f.statuses, status)
	return nil
}

type payoutKey struct {
	winnerID  int
	placement int
}

type fakePayoutRepo struct {
	existing   int
	created    []*models.PrizePayout
	conflicts  map[payoutKey]bool
	listResult []*models.PrizePayout
	nextID     int
}

func (f *fakePayoutRepo) CountByCompetition(ctx context.Context, competitionID int) (int, error) {
	return f.existing, nil
}

func (f *fakePayoutRepo) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.PrizePayout) error {
	if f.conflicts[payoutKey{winnerID: p.WinnerID, placement: p.Placement}] {
		return repositories.ErrPayoutConflict
	}
	f.nextID++
	p.ID = f.nextID
	f.created = append(f.created, p)
	return nil
}

func (f *fakePayoutRepo) ListByCompetition(ctx context.Context, competitionID int) ([]*models.PrizePayout, error) {
	return f.listResult, nil
}

type creditCall struct {
	userID          int
	earnedAmount    int
	transactionType string
	referenceID     int
	metadata        map[string]any
}

type fakeLedger struct {
	credits []creditCall
	failAll error
}

func (f *fakeLedger) Credit(ctx context.Context, userID, earnedAmount, premiumAmount int, transactionType, referenceType string, referenceID int, metadata map[string]any) error {
	if f.failAll != nil {
		return f.failAll
	}
	for _, c := range f.credits {
		if c.userID == userID && c.transactionType == transactionType && c.referenceID == referenceID {
			return repositories.ErrCoinTransactionConflict
		}
	}
	f.credits = append(f.credits, creditCall{
		userID:          userID,
		earnedAmount:    earnedAmount,
		transactionType: transactionType,
		referenceID:     referenceID,
		metadata:        metadata,
	})
	return nil
}

type fakeCoinTxRepo struct {
	exists bool
	err    error
}

func (f *fakeCoinTxRepo) ExistsByReference(ctx context.Context, referenceType string, referenceID int, transactionType string) (bool, error) {
	return f.exists, f.err
}

type fakeTrialRepo struct {
	trials  map[string]*models.UserTrial // key: userID/type/source через trialKey
	created []*models.UserTrial
	updated []*models.UserTrial
	nextID  int
}

func trialKey(userID int, trialType, source string) string {
	return trialType + "|" + source + "|" + strconv.Itoa(userID)
}

func newFakeTrialRepo() *fakeTrialRepo {
	return &fakeTrialRepo{trials: make(map[string]*models.UserTrial)}
}

func (f *fakeTrialRepo) GetByUserTypeSource(ctx context.Context, userID int, trialType, source string) (*models.UserTrial, error) {
	if t, ok := f.trials[trialKey(userID, trialType, source)]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, repositories.ErrTrialNotFound
}

func (f *fakeTrialRepo) Create(ctx context.Context, t *models.UserTrial) error {
	f.nextID++
	t.ID = f.nextID
	stored := *t
	f.trials[trialKey(t.UserID, t.TrialType, t.Source)] = &stored
	f.created = append(f.created, &stored)
	return nil
}

func (f *fakeTrialRepo) UpdateExpiry(ctx context.Context, id int, grantedAt, expiresAt time.Time) error {
	for _, t := range f.trials {
		if t.ID == id {
			t.GrantedAt = grantedAt
			t.ExpiresAt = expiresAt
			f.updated = append(f.updated, t)
			return nil
		}
	}
	return repositories.ErrTrialNotFound
}
