package builder

import (
	"math"
	"math/big"
	"sort"

	"github.com/mevshield/mevshield/core/types"
	"github.com/mevshield/mevshield/crypto"
)

// SelectionPolicy configures the active-set filter, weighting, and rotation
// cap for select_builder.
type SelectionPolicy struct {
	MinReputation float64
	MinStake      uint64
	ActiveWindow  uint64 // slots since LastActive a builder remains eligible
	RotationCap   uint64 // R_max: consecutive primary slots allowed
}

// DefaultSelectionPolicy returns conservative defaults.
func DefaultSelectionPolicy() SelectionPolicy {
	return SelectionPolicy{
		MinReputation: 10,
		MinStake:      1,
		ActiveWindow:  256,
		RotationCap:   4,
	}
}

var maxHashFloat = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 256))

// weight implements w(builder) = reputation * log(1 + stake).
func weight(info Info) float64 {
	if info.Reputation <= 0 {
		return 0
	}
	return info.Reputation * math.Log1p(float64(info.Stake))
}

// selectionKey derives a uniform float in (0,1] from (seed, slot, chainID,
// address) via Keccak256, used for the Efraimidis-Spirakis weighted
// sampling scheme: each candidate's priority is -ln(u)/weight, and the
// candidate with the smallest priority wins — giving each candidate a
// selection probability proportional to its weight without requiring a
// running cumulative-weight table.
func selectionKey(seed []byte, slot, chainID uint64, addr types.Address) float64 {
	h := crypto.Keccak256(seed, uint64Bytes(slot), uint64Bytes(chainID), addr.Bytes())
	u := new(big.Float).SetInt(new(big.Int).SetBytes(h))
	u.Quo(u, maxHashFloat)
	f, _ := u.Float64()
	if f <= 0 {
		f = 1e-12
	}
	if f >= 1 {
		f = 1 - 1e-12
	}
	return f
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// Select implements select_builder(slot, chain_id) → Builder. seed is the
// chain's current fair-ordering VDF output (or any per-slot unpredictable
// value), making selection bias-resistant the same way batch ordering is.
// It returns the primary builder and a deterministic fallback order over
// the rest of the active set.
func (r *Registry) Select(policy SelectionPolicy, chainID, slot uint64, seed []byte) (primary Info, fallback []Info, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type candidate struct {
		info     Info
		priority float64
	}
	var candidates []candidate
	for _, e := range r.builders {
		info := e.info
		if !info.Active {
			continue
		}
		if info.Reputation < policy.MinReputation || info.Stake < policy.MinStake {
			continue
		}
		if policy.ActiveWindow > 0 && info.LastActive > 0 && slot > info.LastActive+policy.ActiveWindow {
			continue
		}
		w := weight(info)
		if w <= 0 {
			continue
		}
		u := selectionKey(seed, slot, chainID, info.Address)
		candidates = append(candidates, candidate{info: info, priority: -math.Log(u) / w})
	}
	if len(candidates) == 0 {
		return Info{}, nil, ErrNotFound
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].priority < candidates[j].priority })

	rot := r.rotation[chainID]
	if rot == nil {
		rot = &chainRotation{}
		r.rotation[chainID] = rot
	}

	// Rotation cap: skip the candidate who has already been primary for
	// RotationCap consecutive slots on this chain, promoting the next-best.
	chosen := 0
	for i, c := range candidates {
		if policy.RotationCap > 0 && rot.lastPrimary == c.info.Address && rot.consecutiveCount >= policy.RotationCap {
			continue
		}
		chosen = i
		break
	}

	primary = candidates[chosen].info
	if rot.lastPrimary == primary.Address {
		rot.consecutiveCount++
	} else {
		rot.lastPrimary = primary.Address
		rot.consecutiveCount = 1
	}

	for i, c := range candidates {
		if i == chosen {
			continue
		}
		fallback = append(fallback, c.info)
	}
	return primary, fallback, nil
}
