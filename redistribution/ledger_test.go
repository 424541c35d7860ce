package redistribution

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/mevshield/mevshield/core/types"
)

const testChainID = 7

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestLedger_AccrueAndCloseEpochSplitsByScore(t *testing.T) {
	l := NewLedger(DefaultPolicy())
	alice, bob := addr(1), addr(2)

	if err := l.Accrue(1, uint256.NewInt(1000), testChainID); err != nil {
		t.Fatalf("Accrue: %v", err)
	}
	if err := l.RecordContribution(testChainID, 1, alice, 100, 0); err != nil {
		t.Fatalf("RecordContribution alice: %v", err)
	}
	if err := l.RecordContribution(testChainID, 1, bob, 300, 0); err != nil {
		t.Fatalf("RecordContribution bob: %v", err)
	}

	rows, err := l.CloseEpoch(testChainID, 1)
	if err != nil {
		t.Fatalf("CloseEpoch: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("CloseEpoch: want 2 distributions, got %d", len(rows))
	}

	var aliceReward, bobReward *uint256.Int
	for _, r := range rows {
		if r.ChainID != testChainID {
			t.Fatalf("distribution chain_id: want %d, got %d", testChainID, r.ChainID)
		}
		switch r.Recipient {
		case alice:
			aliceReward = r.Reward
		case bob:
			bobReward = r.Reward
		}
		if r.Status != StatusPending {
			t.Fatalf("new distribution should start Pending, got %v", r.Status)
		}
	}
	if aliceReward == nil || bobReward == nil {
		t.Fatalf("missing reward rows: %+v", rows)
	}
	// bob contributed 3x alice's gas_used and should receive 3x the reward.
	want := new(uint256.Int).Mul(aliceReward, uint256.NewInt(3))
	if bobReward.Cmp(want) != 0 {
		t.Fatalf("bob reward: want %v (3x alice's %v), got %v", want, aliceReward, bobReward)
	}

	// distributable_to_users = 1000 * 0.80 = 800, split 100:300 -> 200:600
	if aliceReward.Uint64() != 200 {
		t.Fatalf("alice reward: want 200, got %v", aliceReward)
	}
	if bobReward.Uint64() != 600 {
		t.Fatalf("bob reward: want 600, got %v", bobReward)
	}
}

func TestLedger_CloseEpochIdempotent(t *testing.T) {
	l := NewLedger(DefaultPolicy())
	alice := addr(1)
	if err := l.Accrue(1, uint256.NewInt(1000), testChainID); err != nil {
		t.Fatalf("Accrue: %v", err)
	}
	if err := l.RecordContribution(testChainID, 1, alice, 100, 0); err != nil {
		t.Fatalf("RecordContribution: %v", err)
	}

	first, err := l.CloseEpoch(testChainID, 1)
	if err != nil {
		t.Fatalf("CloseEpoch first: %v", err)
	}

	// A second accrual attempt after close must be rejected rather than
	// silently folded into an already-closed pool.
	if err := l.Accrue(1, uint256.NewInt(500), testChainID); err != ErrEpochClosed {
		t.Fatalf("Accrue after close: want ErrEpochClosed, got %v", err)
	}

	second, err := l.CloseEpoch(testChainID, 1)
	if err != nil {
		t.Fatalf("CloseEpoch second: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("CloseEpoch not idempotent: first=%d rows, second=%d rows", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("CloseEpoch not idempotent: row %d pointer changed", i)
		}
		if first[i].Reward.Cmp(second[i].Reward) != 0 {
			t.Fatalf("CloseEpoch not idempotent: reward changed on second call")
		}
	}
}

func TestLedger_DustThresholdDropsTinyRewards(t *testing.T) {
	policy := DefaultPolicy()
	policy.DustThreshold = uint256.NewInt(50)
	l := NewLedger(policy)
	whale, dust := addr(1), addr(2)

	if err := l.Accrue(1, uint256.NewInt(1000), testChainID); err != nil {
		t.Fatalf("Accrue: %v", err)
	}
	if err := l.RecordContribution(testChainID, 1, whale, 999, 0); err != nil {
		t.Fatalf("RecordContribution whale: %v", err)
	}
	if err := l.RecordContribution(testChainID, 1, dust, 1, 0); err != nil {
		t.Fatalf("RecordContribution dust: %v", err)
	}

	rows, err := l.CloseEpoch(testChainID, 1)
	if err != nil {
		t.Fatalf("CloseEpoch: %v", err)
	}
	for _, r := range rows {
		if r.Recipient == dust {
			t.Fatalf("dust contributor should be filtered out below dust_threshold, got %+v", r)
		}
	}
	if len(rows) != 1 || rows[0].Recipient != whale {
		t.Fatalf("want exactly whale's distribution, got %+v", rows)
	}
}

func TestLedger_PoolsArePartitionedPerChain(t *testing.T) {
	l := NewLedger(DefaultPolicy())
	alice := addr(1)
	const otherChainID = 9

	if err := l.Accrue(1, uint256.NewInt(1000), testChainID); err != nil {
		t.Fatalf("Accrue chain A: %v", err)
	}
	if err := l.Accrue(1, uint256.NewInt(4000), otherChainID); err != nil {
		t.Fatalf("Accrue chain B: %v", err)
	}
	if err := l.RecordContribution(testChainID, 1, alice, 1, 0); err != nil {
		t.Fatalf("RecordContribution chain A: %v", err)
	}
	if err := l.RecordContribution(otherChainID, 1, alice, 1, 0); err != nil {
		t.Fatalf("RecordContribution chain B: %v", err)
	}

	rowsA, err := l.CloseEpoch(testChainID, 1)
	if err != nil || len(rowsA) != 1 {
		t.Fatalf("CloseEpoch chain A: rows=%v err=%v", rowsA, err)
	}
	rowsB, err := l.CloseEpoch(otherChainID, 1)
	if err != nil || len(rowsB) != 1 {
		t.Fatalf("CloseEpoch chain B: rows=%v err=%v", rowsB, err)
	}
	if rowsA[0].Reward.Cmp(rowsB[0].Reward) == 0 {
		t.Fatalf("identically-numbered epochs on different chains should not share a pool: got equal rewards %v", rowsA[0].Reward)
	}
}

func TestLedger_AdvanceEnforcesAtMostOnceSequence(t *testing.T) {
	l := NewLedger(DefaultPolicy())
	alice := addr(1)
	if err := l.Accrue(1, uint256.NewInt(1000), testChainID); err != nil {
		t.Fatalf("Accrue: %v", err)
	}
	if err := l.RecordContribution(testChainID, 1, alice, 100, 0); err != nil {
		t.Fatalf("RecordContribution: %v", err)
	}
	rows, err := l.CloseEpoch(testChainID, 1)
	if err != nil || len(rows) != 1 {
		t.Fatalf("CloseEpoch: rows=%v err=%v", rows, err)
	}
	d := rows[0]

	if err := l.Advance(d, StatusSettled); err != ErrBadTransition {
		t.Fatalf("Advance Pending->Settled: want ErrBadTransition, got %v", err)
	}
	if err := l.Advance(d, StatusSubmitted); err != nil {
		t.Fatalf("Advance Pending->Submitted: %v", err)
	}
	if err := l.Advance(d, StatusSubmitted); err != ErrBadTransition {
		t.Fatalf("Advance Submitted->Submitted: want ErrBadTransition, got %v", err)
	}
	if err := l.Advance(d, StatusSettled); err != nil {
		t.Fatalf("Advance Submitted->Settled: %v", err)
	}
	if d.Status != StatusSettled {
		t.Fatalf("final status: want Settled, got %v", d.Status)
	}
}

func TestLedger_RecordContributionAfterCloseRejected(t *testing.T) {
	l := NewLedger(DefaultPolicy())
	alice := addr(1)
	if _, err := l.CloseEpoch(testChainID, 1); err != nil {
		t.Fatalf("CloseEpoch empty epoch: %v", err)
	}
	if err := l.RecordContribution(testChainID, 1, alice, 100, 0); err != ErrEpochClosed {
		t.Fatalf("RecordContribution after close: want ErrEpochClosed, got %v", err)
	}
}

func TestLedger_EpochCapturedTracksAccrual(t *testing.T) {
	l := NewLedger(DefaultPolicy())
	if err := l.Accrue(1, uint256.NewInt(400), testChainID); err != nil {
		t.Fatalf("Accrue: %v", err)
	}
	if err := l.Accrue(1, uint256.NewInt(600), testChainID); err != nil {
		t.Fatalf("Accrue: %v", err)
	}
	if got := l.EpochCaptured(testChainID, 1); got.Uint64() != 1000 {
		t.Fatalf("EpochCaptured: want 1000, got %v", got)
	}
}

func TestLedger_RewardsForAccumulatesPendingAcrossEpochs(t *testing.T) {
	l := NewLedger(DefaultPolicy())
	alice := addr(1)

	if err := l.Accrue(1, uint256.NewInt(1000), testChainID); err != nil {
		t.Fatalf("Accrue epoch 1: %v", err)
	}
	if err := l.RecordContribution(testChainID, 1, alice, 1, 0); err != nil {
		t.Fatalf("RecordContribution epoch 1: %v", err)
	}
	if _, err := l.CloseEpoch(testChainID, 1); err != nil {
		t.Fatalf("CloseEpoch epoch 1: %v", err)
	}

	if err := l.Accrue(2, uint256.NewInt(1000), testChainID); err != nil {
		t.Fatalf("Accrue epoch 2: %v", err)
	}
	if err := l.RecordContribution(testChainID, 2, alice, 1, 0); err != nil {
		t.Fatalf("RecordContribution epoch 2: %v", err)
	}
	if _, err := l.CloseEpoch(testChainID, 2); err != nil {
		t.Fatalf("CloseEpoch epoch 2: %v", err)
	}

	pending, history := l.RewardsFor(alice)
	if len(history) != 2 {
		t.Fatalf("RewardsFor history: want 2 rows, got %d", len(history))
	}
	want := new(uint256.Int).Add(history[0].Reward, history[1].Reward)
	if pending.Cmp(want) != 0 {
		t.Fatalf("RewardsFor pending: want %v, got %v", want, pending)
	}

	if err := l.Advance(history[0], StatusSubmitted); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := l.Advance(history[0], StatusSettled); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	pending, _ = l.RewardsFor(alice)
	if pending.Cmp(history[1].Reward) != 0 {
		t.Fatalf("RewardsFor pending after settling one row: want %v, got %v", history[1].Reward, pending)
	}
}
