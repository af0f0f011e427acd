package rewards

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engage/internal/apperr"
)

// fakeLedger holds balances in memory with the repo's error contract.
type fakeLedger struct {
	balances map[string]int
	records  map[string][]Redemption
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: map[string]int{}, records: map[string][]Redemption{}}
}

func (f *fakeLedger) Redeem(_ context.Context, studentID string, rewardID, cost int) error {
	points, ok := f.balances[studentID]
	if !ok {
		return ErrNoBalance
	}
	if points < cost {
		return ErrInsufficient
	}
	f.balances[studentID] = points - cost
	f.records[studentID] = append(f.records[studentID], Redemption{
		ID:        int64(len(f.records[studentID]) + 1),
		StudentID: studentID,
		RewardID:  rewardID,
		Timestamp: time.Now(),
	})
	return nil
}

func (f *fakeLedger) Balance(_ context.Context, studentID string) (int, error) {
	points, ok := f.balances[studentID]
	if !ok {
		return 0, ErrNoBalance
	}
	return points, nil
}

func (f *fakeLedger) Redemptions(_ context.Context, studentID string) ([]Redemption, error) {
	return f.records[studentID], nil
}

func TestRedeemUnknownReward(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances["z100"] = 500
	svc := NewService(ledger)

	err := svc.Redeem(context.Background(), "z100", 99)
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
	assert.Equal(t, 500, ledger.balances["z100"])
}

func TestRedeemUnknownStudent(t *testing.T) {
	svc := NewService(newFakeLedger())

	err := svc.Redeem(context.Background(), "ghost", 1)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestRedeemInsufficientPoints(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances["z100"] = 40
	svc := NewService(ledger)

	err := svc.Redeem(context.Background(), "z100", 2)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, 40, ledger.balances["z100"], "failed redemption must not touch the balance")
	assert.Empty(t, ledger.records["z100"])
}

func TestRedeemDeductsAndRecords(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances["z100"] = 100
	svc := NewService(ledger)

	require.NoError(t, svc.Redeem(context.Background(), "z100", 1))
	assert.Equal(t, 80, ledger.balances["z100"])
	require.Len(t, ledger.records["z100"], 1)
	assert.EqualValues(t, 1, ledger.records["z100"][0].ID)
	assert.Equal(t, 1, ledger.records["z100"][0].RewardID)
}

func TestRewardStatusCountsAllCatalogEntries(t *testing.T) {
	ledger := newFakeLedger()
	ledger.balances["z100"] = 200
	svc := NewService(ledger)

	require.NoError(t, svc.Redeem(context.Background(), "z100", 1))
	require.NoError(t, svc.Redeem(context.Background(), "z100", 1))
	require.NoError(t, svc.Redeem(context.Background(), "z100", 2))

	status, err := svc.RewardStatus(context.Background(), "z100")
	require.NoError(t, err)
	assert.Equal(t, 110, status.Points)
	assert.Equal(t, map[int]int{1: 2, 2: 1, 3: 0}, status.RewardCounts)
	assert.Len(t, status.Records, 3)
}

func TestRewardStatusUnknownStudent(t *testing.T) {
	svc := NewService(newFakeLedger())

	_, err := svc.RewardStatus(context.Background(), "ghost")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestCatalogCosts(t *testing.T) {
	for id, want := range map[int]int{1: 20, 2: 50, 3: 100} {
		cost, ok := Cost(id)
		assert.True(t, ok)
		assert.Equal(t, want, cost)
	}
	_, ok := Cost(0)
	assert.False(t, ok)
}
