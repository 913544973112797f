package services

import (
	"context"
	"testing"

	"github.com/strideteam/competition-engine/events"
	"github.com/strideteam/competition-engine/models"
)

func newCoinService(txRepo *fakeCoinTxRepo, ledger *fakeLedger, parts *fakeParticipantRepo, cfg RewardConfig, notifier *fakeNotifier) *CoinService {
	return NewCoinService(txRepo, ledger, parts, cfg, notifier, discardLogger())
}

func countByType(ledger *fakeLedger, transactionType string) int {
	n := 0
	for _, c := range ledger.credits {
		if c.transactionType == transactionType {
			n++
		}
	}
	return n
}

func TestDistributeCompletionRewardsDefaults(t *testing.T) {
	ledger := &fakeLedger{}
	parts := &fakeParticipantRepo{participants: []*models.Participant{
		participant(1, 400),
		participant(2, 300),
		participant(3, 200),
		participant(4, 100),
	}}
	notifier := &fakeNotifier{}
	svc := newCoinService(&fakeCoinTxRepo{}, ledger, parts, DefaultRewardConfig(), notifier)

	credited, err := svc.DistributeCompletionRewards(context.Background(), &models.Competition{ID: 9, Name: "Spring Dash"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Одно начисление на участника: бонус за место плюс бонус за участие.
	if credited != 4 {
		t.Fatalf("credited = %d, want 4", credited)
	}
	if got := countByType(ledger, models.TransactionCompetitionWin); got != 3 {
		t.Errorf("win credits = %d, want 3", got)
	}
	if got := countByType(ledger, models.TransactionCompetitionComplete); got != 1 {
		t.Errorf("participation credits = %d, want 1", got)
	}

	wantAmounts := map[int]int{1: 110, 2: 60, 3: 35, 4: 10}
	for _, c := range ledger.credits {
		if want := wantAmounts[c.userID]; c.earnedAmount != want {
			t.Errorf("user %d credit = %d, want %d", c.userID, c.earnedAmount, want)
		}
		if c.transactionType == models.TransactionCompetitionWin && c.metadata["placement"] == nil {
			t.Errorf("win credit for user %d missing placement metadata", c.userID)
		}
	}
	if got := notifier.byType(events.EventCoinsDistributed); len(got) != 1 {
		t.Errorf("coin notifications = %d, want 1", len(got))
	}
}

func TestDistributeCompletionRewardsIdempotent(t *testing.T) {
	ledger := &fakeLedger{}
	parts := &fakeParticipantRepo{participants: []*models.Participant{
		participant(1, 400),
		participant(2, 300),
	}}
	svc := newCoinService(&fakeCoinTxRepo{exists: true}, ledger, parts, DefaultRewardConfig(), &fakeNotifier{})

	credited, err := svc.DistributeCompletionRewards(context.Background(), &models.Competition{ID: 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if credited != 0 {
		t.Errorf("credited = %d, want 0 (already distributed)", credited)
	}
	if len(ledger.credits) != 0 {
		t.Errorf("ledger received %d credits on re-run", len(ledger.credits))
	}
}

func TestDistributeCompletionRewardsSingleParticipant(t *testing.T) {
	ledger := &fakeLedger{}
	parts := &fakeParticipantRepo{participants: []*models.Participant{participant(1, 400)}}
	svc := newCoinService(&fakeCoinTxRepo{}, ledger, parts, DefaultRewardConfig(), &fakeNotifier{})

	credited, err := svc.DistributeCompletionRewards(context.Background(), &models.Competition{ID: 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Без соперников нет призовых мест, остаётся только бонус за участие.
	if credited != 1 {
		t.Fatalf("credited = %d, want 1", credited)
	}
	if got := countByType(ledger, models.TransactionCompetitionWin); got != 0 {
		t.Errorf("win credits = %d, want 0 for single participant", got)
	}
	if got := countByType(ledger, models.TransactionCompetitionComplete); got != 1 {
		t.Errorf("participation credits = %d, want 1", got)
	}
}

func TestDistributeCompletionRewardsOverrides(t *testing.T) {
	ledger := &fakeLedger{}
	parts := &fakeParticipantRepo{participants: []*models.Participant{
		participant(1, 400),
		participant(2, 300),
	}}
	cfg := RewardConfig{FirstPlaceBonus: 500, SecondPlaceBonus: 0, ThirdPlaceBonus: 0, ParticipationBonus: 0}
	svc := newCoinService(&fakeCoinTxRepo{}, ledger, parts, cfg, &fakeNotifier{})

	credited, err := svc.DistributeCompletionRewards(context.Background(), &models.Competition{ID: 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Нулевые бонусы не порождают транзакций.
	if credited != 1 {
		t.Fatalf("credited = %d, want 1", credited)
	}
	if ledger.credits[0].userID != 1 || ledger.credits[0].earnedAmount != 500 {
		t.Errorf("credit = %+v, want user 1 x 500", ledger.credits[0])
	}
}

func TestDistributeCompletionRewardsNoParticipants(t *testing.T) {
	svc := newCoinService(&fakeCoinTxRepo{}, &fakeLedger{}, &fakeParticipantRepo{}, DefaultRewardConfig(), &fakeNotifier{})

	credited, err := svc.DistributeCompletionRewards(context.Background(), &models.Competition{ID: 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if credited != 0 {
		t.Errorf("credited = %d, want 0", credited)
	}
}
