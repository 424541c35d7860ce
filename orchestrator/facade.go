package orchestrator

import (
	"github.com/holiman/uint256"
	"github.com/mevshield/mevshield/builder"
	"github.com/mevshield/mevshield/core/types"
	"github.com/mevshield/mevshield/mempool"
	"github.com/mevshield/mevshield/redistribution"
)

// SubmitTransaction implements submit_transaction(ETX) → Accepted |
// Rejected{reason}. RunSlot drives everything downstream of acceptance; this
// method only gates entry into the encrypted mempool.
func (o *Orchestrator) SubmitTransaction(etx *mempool.ETX) mempool.Outcome {
	return o.Mempool.Submit(etx)
}

// AttachDecryptionShare implements attach_decryption_share(DecryptionShare)
// → Accepted | Rejected{reason}.
func (o *Orchestrator) AttachDecryptionShare(share mempool.DecryptionShare) mempool.Outcome {
	return o.Mempool.AttachShare(share)
}

// GetTransactionStatus implements get_transaction_status(tx_id) → Status.
// The bool is false when tx_id names no ETX this orchestrator has seen.
func (o *Orchestrator) GetTransactionStatus(txID types.Hash) (mempool.Status, bool) {
	etx, ok := o.Mempool.Get(txID)
	if !ok {
		return 0, false
	}
	return etx.Status, true
}

// GetSlotOutcome implements get_slot_outcome(chain_id, slot) → SlotOutcome.
func (o *Orchestrator) GetSlotOutcome(chainID, slot uint64) (SlotOutcome, bool) {
	return o.Storage.SlotOutcome(chainID, slot)
}

// GetUserRewards implements get_user_rewards(address) → { pending, history }.
func (o *Orchestrator) GetUserRewards(recipient types.Address) (pending *uint256.Int, history []*redistribution.Distribution) {
	return o.Ledger.RewardsFor(recipient)
}

// RegisterBuilder implements register_builder(address, pubkey, stake) → void.
func (o *Orchestrator) RegisterBuilder(addr types.Address, pubkey []byte, stake uint64) error {
	return o.Builders.Register(addr, pubkey, stake)
}

// SubmitProposal implements the façade's submit_proposal(BlockProposal) →
// Accepted | Rejected{reason} operation. It is a verification-only path:
// RunSlot already drove its own Propose/Finalize round trip through the
// chain's configured BuilderTransport, updating reputation and accrual
// exactly once for (chain_id, slot). This method lets an external builder
// (or an operator) check whether a proposal it holds would have been
// accepted against the recorded slot outcome, without re-running Finalize
// or MarkIncluded — doing so here would double-count an already-settled
// slot.
func (o *Orchestrator) SubmitProposal(p builder.BlockProposal) (builder.Outcome, error) {
	outcome, ok := o.Storage.SlotOutcome(p.ChainID, p.Slot)
	if !ok {
		return builder.Outcome{}, ErrSlotOutcomeUnknown
	}
	return o.Builders.SubmitProposal(p, outcome.OrderedBatchHash, outcome.Included, outcome.Deferred), nil
}

// CloseEpoch implements close_epoch(chain_id, epoch) → list<Distribution>.
func (o *Orchestrator) CloseEpoch(chainID, epoch uint64) ([]*redistribution.Distribution, error) {
	return o.Ledger.CloseEpoch(chainID, epoch)
}
