// Package redistribution implements the Redistribution Ledger (C7):
// per-chain epoch pools accrue captured MEV value and, on close, pay it out
// to the users whose activity was protected, weighted by their
// contribution.
package redistribution

import (
	"errors"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/mevshield/mevshield/core/types"
)

var (
	ErrEpochClosed       = errors.New("redistribution: epoch already closed")
	ErrDuplicatePending  = errors.New("redistribution: a Pending distribution already exists for this (epoch, recipient, reason)")
	ErrUnknownDistribution = errors.New("redistribution: unknown distribution")
	ErrBadTransition     = errors.New("redistribution: invalid status transition")
)

// DistributionStatus tracks a Distribution's at-most-once payout lifecycle.
type DistributionStatus uint8

const (
	StatusPending DistributionStatus = iota
	StatusSubmitted
	StatusSettled
)

// Reason identifies why a Distribution row was created.
type Reason string

const ReasonUserReward Reason = "user_reward"

// Distribution is one payout owed to a user at the close of an epoch.
type Distribution struct {
	Epoch     uint64
	ChainID   uint64
	Recipient types.Address
	Reward    *uint256.Int
	Reason    Reason
	Status    DistributionStatus
}

// Policy configures one chain's redistribution parameters.
type Policy struct {
	ReservedForGas        *uint256.Int
	RedistributionFraction float64 // default 0.80
	WeightGas             float64 // w_gas
	WeightValue           float64 // w_value
	DustThreshold         *uint256.Int
}

// DefaultPolicy returns the spec's suggested tuning.
func DefaultPolicy() Policy {
	return Policy{
		ReservedForGas:         uint256.NewInt(0),
		RedistributionFraction: 0.80,
		WeightGas:              0.5,
		WeightValue:            0.5,
		DustThreshold:          uint256.NewInt(1),
	}
}

type contribution struct {
	gasUsed uint64
	value   uint64
}

// epochPool is one chain's accrual/contribution state for a single epoch.
type epochPool struct {
	captured      *uint256.Int
	contributions map[types.Address]*contribution
	closed        bool
	distributed   *uint256.Int
	rows          []*Distribution
}

func newEpochPool() *epochPool {
	return &epochPool{
		captured:      uint256.NewInt(0),
		contributions: make(map[types.Address]*contribution),
		distributed:   uint256.NewInt(0),
	}
}

// Ledger tracks epoch pools and settled distributions across every chain it
// is told about, partitioned by (chain_id, epoch) per the abstract
// EpochPool/Distribution table layout.
type Ledger struct {
	mu     sync.Mutex
	policy Policy
	pools  map[poolKey]*epochPool
	// pending guards at-most-once payout: (epoch,chain_id,recipient,reason)
	// with a live Pending or Submitted row may never get a second Pending row.
	pending map[pendingKey]*Distribution
	// byRecipient indexes every Distribution ever created, for get_user_rewards.
	byRecipient map[types.Address][]*Distribution
}

type poolKey struct {
	chainID uint64
	epoch   uint64
}

type pendingKey struct {
	chainID   uint64
	epoch     uint64
	recipient types.Address
	reason    Reason
}

// NewLedger creates an empty Ledger using the given policy.
func NewLedger(policy Policy) *Ledger {
	return &Ledger{
		policy:      policy,
		pools:       make(map[poolKey]*epochPool),
		pending:     make(map[pendingKey]*Distribution),
		byRecipient: make(map[types.Address][]*Distribution),
	}
}

func (l *Ledger) pool(chainID, epoch uint64) *epochPool {
	key := poolKey{chainID: chainID, epoch: epoch}
	p, ok := l.pools[key]
	if !ok {
		p = newEpochPool()
		l.pools[key] = p
	}
	return p
}

// Accrue implements accrue(slot, captured_value, chain_id) → void: adds a
// proposal's captured value to its chain's epoch pool.
func (l *Ledger) Accrue(epoch uint64, capturedValue *uint256.Int, chainID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.pool(chainID, epoch)
	if p.closed {
		return ErrEpochClosed
	}
	p.captured = new(uint256.Int).Add(p.captured, capturedValue)
	return nil
}

// RecordContribution implements record_contribution(epoch, user, gas_used,
// value) → void: accumulates one user's contribution within a chain's epoch.
func (l *Ledger) RecordContribution(chainID, epoch uint64, user types.Address, gasUsed, value uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.pool(chainID, epoch)
	if p.closed {
		return ErrEpochClosed
	}
	c, ok := p.contributions[user]
	if !ok {
		c = &contribution{}
		p.contributions[user] = c
	}
	c.gasUsed += gasUsed
	c.value += value
	return nil
}

// CloseEpoch implements close_epoch(chain_id, epoch) → list<Distribution>.
// It is idempotent: a second call on an already-closed epoch returns the
// same rows without recomputing or creating new side effects.
func (l *Ledger) CloseEpoch(chainID, epoch uint64) ([]*Distribution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.pool(chainID, epoch)
	if p.closed {
		return p.rows, nil
	}
	p.closed = true

	distributable := new(uint256.Int).Sub(p.captured, l.policy.ReservedForGas)
	if distributable.Sign() < 0 {
		distributable = uint256.NewInt(0)
	}
	distributableToUsers := scaleByFraction(distributable, l.policy.RedistributionFraction)

	type scored struct {
		user  types.Address
		score float64
	}
	var scores []scored
	var totalScore float64
	for user, c := range p.contributions {
		s := l.policy.WeightGas*float64(c.gasUsed) + l.policy.WeightValue*float64(c.value)
		if s <= 0 {
			continue
		}
		scores = append(scores, scored{user: user, score: s})
		totalScore += s
	}

	var rows []*Distribution
	if totalScore > 0 {
		distributableF := bigIntToFloat(distributableToUsers)
		for _, s := range scores {
			rewardF := distributableF * s.score / totalScore
			reward := floatToUint256(rewardF)
			if reward.Cmp(l.policy.DustThreshold) < 0 {
				continue
			}
			key := pendingKey{chainID: chainID, epoch: epoch, recipient: s.user, reason: ReasonUserReward}
			if _, dup := l.pending[key]; dup {
				continue // at-most-once: never create a second Pending row
			}
			d := &Distribution{Epoch: epoch, ChainID: chainID, Recipient: s.user, Reward: reward, Reason: ReasonUserReward, Status: StatusPending}
			l.pending[key] = d
			l.byRecipient[s.user] = append(l.byRecipient[s.user], d)
			p.distributed = new(uint256.Int).Add(p.distributed, reward)
			rows = append(rows, d)
		}
	}

	p.rows = rows
	return rows, nil
}

// Advance transitions a Distribution Pending → Submitted → Settled under
// an external payer; it rejects any transition that is not the next step
// in that sequence, enforcing at-most-once payout end to end.
func (l *Ledger) Advance(d *Distribution, next DistributionStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d == nil {
		return ErrUnknownDistribution
	}
	switch {
	case d.Status == StatusPending && next == StatusSubmitted:
	case d.Status == StatusSubmitted && next == StatusSettled:
	default:
		return ErrBadTransition
	}
	d.Status = next
	return nil
}

// RewardsFor implements get_user_rewards(address) → { pending, history }:
// pending is the sum of every Pending/Submitted (not yet Settled) reward
// owed to the address, and history is every Distribution row it has ever
// been party to, oldest first.
func (l *Ledger) RewardsFor(recipient types.Address) (pending *uint256.Int, history []*Distribution) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pending = uint256.NewInt(0)
	rows := l.byRecipient[recipient]
	history = make([]*Distribution, len(rows))
	copy(history, rows)
	for _, d := range history {
		if d.Status != StatusSettled {
			pending = new(uint256.Int).Add(pending, d.Reward)
		}
	}
	return pending, history
}

// EpochCaptured returns the cumulative captured_value accrued for a chain's
// epoch, for telemetry.
func (l *Ledger) EpochCaptured(chainID, epoch uint64) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pools[poolKey{chainID: chainID, epoch: epoch}]
	if !ok {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(p.captured)
}

func scaleByFraction(v *uint256.Int, frac float64) *uint256.Int {
	if frac <= 0 {
		return uint256.NewInt(0)
	}
	// Scale in basis points to stay in integer arithmetic as long as
	// possible, matching the teacher's basis-points penalty computation.
	bps := uint64(frac * 10000)
	scaled := new(uint256.Int).Mul(v, uint256.NewInt(bps))
	return scaled.Div(scaled, uint256.NewInt(10000))
}

func bigIntToFloat(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}

func floatToUint256(f float64) *uint256.Int {
	if f <= 0 {
		return uint256.NewInt(0)
	}
	bi, _ := new(big.Float).SetFloat64(f).Int(nil)
	out, overflow := uint256.FromBig(bi)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return out
}
