package builder

import "github.com/mevshield/mevshield/core/types"

// ReputationParams configures finalize's reputation update rule.
type ReputationParams struct {
	AlphaAccept float64 // reward added on Accepted
	BetaAge     float64 // per-slot decay since last active, applied on Accepted
	GammaReject float64 // penalty subtracted on Rejected
	Sigma       uint64  // stake slashed on a provable violation
	DeltaSlash  float64 // extra reputation penalty on a provable violation
}

// DefaultReputationParams returns the spec's suggested tuning.
func DefaultReputationParams() ReputationParams {
	return ReputationParams{
		AlphaAccept: 2,
		BetaAge:     0.01,
		GammaReject: 10,
		Sigma:       1000,
		DeltaSlash:  25,
	}
}

// ReputationUpdate is finalize's typed result.
type ReputationUpdate struct {
	Builder       types.Address
	NewReputation float64
	Slashed       bool
	Deactivated   bool
}

// Finalize implements finalize(slot, outcome) → ReputationUpdate: applies
// the reputation update rule for a proposal's accept/reject outcome,
// slashing stake when the rejection evidences a provable violation
// (the proof contained an item that should have been stripped).
func (r *Registry) Finalize(params ReputationParams, slot uint64, builderAddr types.Address, outcome Outcome) (ReputationUpdate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.builders[builderAddr]
	if !ok {
		return ReputationUpdate{}, ErrNotFound
	}
	info := &e.info

	switch {
	case outcome.Accepted:
		age := float64(0)
		if info.LastActive > 0 && slot > info.LastActive {
			age = float64(slot - info.LastActive)
		}
		info.Reputation = clamp(info.Reputation+params.AlphaAccept-params.BetaAge*age, 0, 100)
		info.BlocksBuilt++
		info.BlocksAccepted++
		info.LastActive = slot

	default:
		info.Reputation = clamp(info.Reputation-params.GammaReject, 0, 100)
		info.BlocksBuilt++

		update := ReputationUpdate{Builder: builderAddr, NewReputation: info.Reputation}
		if outcome.Reason == ReasonBadProof {
			// Provable violation: the proposal's included set still
			// contained an item that should have been stripped.
			if info.Stake > params.Sigma {
				info.Stake -= params.Sigma
			} else {
				info.Stake = 0
			}
			info.Reputation = clamp(info.Reputation-params.DeltaSlash, 0, 100)
			update.Slashed = true
			update.NewReputation = info.Reputation
		}
		if info.Reputation == 0 {
			info.Active = false
			update.Deactivated = true
		}
		return update, nil
	}

	update := ReputationUpdate{Builder: builderAddr, NewReputation: info.Reputation}
	if info.Reputation == 0 {
		info.Active = false
		update.Deactivated = true
	}
	return update, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
