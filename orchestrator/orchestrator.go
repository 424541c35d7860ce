// Package orchestrator implements the Core Orchestrator (C8): it binds the
// encrypted mempool, fair-ordering engine, MEV detection, builder
// coordinator, and redistribution ledger into one per-chain slot pipeline
// (Collect → Drain → Decrypt → Order → Detect → Propose → Finalize →
// Accrue) and exposes the stable façade every external surface calls
// through.
package orchestrator

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"
	"github.com/mevshield/mevshield/builder"
	"github.com/mevshield/mevshield/core/types"
	"github.com/mevshield/mevshield/crypto"
	"github.com/mevshield/mevshield/detection"
	"github.com/mevshield/mevshield/mempool"
	"github.com/mevshield/mevshield/ordering"
	"github.com/mevshield/mevshield/redistribution"
)

var (
	ErrChainNotRegistered = errors.New("orchestrator: chain not registered")
	ErrSlotOutOfOrder     = errors.New("orchestrator: slot must advance monotonically per chain")
	ErrSlotOutcomeUnknown = errors.New("orchestrator: no recorded slot outcome for this (chain_id, slot)")
)

// SlotOutcome is get_slot_outcome's return shape: the batch_hash a proposal
// was judged against, the incidents detection surfaced, and what became of
// the proposal.
type SlotOutcome struct {
	ChainID          uint64
	Slot             uint64
	OrderedBatchHash types.Hash
	Incidents        []detection.Incident
	ProposalStatus   string // "accepted" | "rejected" | "missed" | "no_builder" | "no_proposal"
	// Included/Deferred are the expected final sets a BlockProposal for this
	// slot must match; external builders read these off get_slot_outcome to
	// build a conforming proposal.
	Included []types.Hash
	Deferred []types.Hash
}

const (
	ProposalStatusAccepted   = "accepted"
	ProposalStatusRejected   = "rejected"
	ProposalStatusMissed     = "missed"
	ProposalStatusNoBuilder  = "no_builder"
	ProposalStatusNoProposal = "no_proposal"
)

// ChainSetup configures one chain's slot pipeline.
type ChainSetup struct {
	Ordering   ordering.Policy
	Detection  *detection.Engine
	Selection  builder.SelectionPolicy
	Reputation builder.ReputationParams
	Transport  BuilderTransport
	// EpochSlots is how many slots form one redistribution epoch; slot/EpochSlots
	// is the epoch a slot's accrual and contributions are recorded against.
	EpochSlots uint64
	// SlotDeadline bounds how long past a proposal request's issue time a
	// BlockProposal may arrive; SubmittedAt/SlotDeadline are both counted in
	// the same units the caller's Clock uses.
	SlotDeadline uint64
}

type chainState struct {
	mu      sync.Mutex
	setup   ChainSetup
	hasRun  bool
	lastSlot uint64
}

// Orchestrator wires the C3–C7 components into the end-to-end pipeline.
type Orchestrator struct {
	Mempool   *mempool.Mempool
	Ordering  *ordering.Engine
	Builders  *builder.Registry
	Ledger    *redistribution.Ledger
	Clock     Clock
	Storage   Storage
	Telemetry Telemetry
	Payer     Payer
	Alerts    *AlertSink

	mu     sync.RWMutex
	chains map[uint64]*chainState
}

// New builds an Orchestrator around already-constructed components. Callers
// assemble the C1–C7 pieces (threshold scheme, VDF evaluator, detectors,
// builder registry, ledger) and hand them here; the orchestrator owns only
// the slot pipeline and façade on top of them.
func New(mp *mempool.Mempool, orderingEngine *ordering.Engine, builders *builder.Registry, ledger *redistribution.Ledger, clock Clock, storage Storage, telemetry Telemetry, payer Payer) *Orchestrator {
	if clock == nil {
		clock = SystemClock{}
	}
	if storage == nil {
		storage = NewMemoryStorage()
	}
	if telemetry == nil {
		telemetry = NoopTelemetry{}
	}
	if payer == nil {
		payer = NoopPayer{}
	}
	return &Orchestrator{
		Mempool:   mp,
		Ordering:  orderingEngine,
		Builders:  builders,
		Ledger:    ledger,
		Clock:     clock,
		Storage:   storage,
		Telemetry: telemetry,
		Payer:     payer,
		Alerts:    NewAlertSink(256),
		chains:    make(map[uint64]*chainState),
	}
}

// RegisterChain installs a chain's pipeline configuration. The mempool's own
// chain registration (threshold keys, admission policy) is separate and
// must be done directly against o.Mempool beforehand.
func (o *Orchestrator) RegisterChain(chainID uint64, setup ChainSetup) {
	if setup.EpochSlots == 0 {
		setup.EpochSlots = 32
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.chains[chainID] = &chainState{setup: setup}
}

func (o *Orchestrator) chain(chainID uint64) (*chainState, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	cs, ok := o.chains[chainID]
	return cs, ok
}

// RunSlot advances one chain's state machine by exactly one slot:
// Collect → Drain → Decrypt → Order → Detect → Propose → Finalize → Accrue.
// Slots for a chain are totally ordered: a slot must exceed the chain's
// previously-run slot (I-mutations for slot s happen-before slot s+1).
func (o *Orchestrator) RunSlot(chainID, slot, chainEpochNonce uint64) (*SlotOutcome, error) {
	cs, ok := o.chain(chainID)
	if !ok {
		return nil, ErrChainNotRegistered
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.hasRun && slot <= cs.lastSlot {
		return nil, ErrSlotOutOfOrder
	}

	now := o.Clock.Now()

	// Collect + Drain: the mempool sweep combines any ETX with enough
	// verified shares into a plaintext TX, expiring the rest.
	drain, err := o.Mempool.Drain(chainID, slot, now)
	if err != nil {
		return nil, err
	}
	for _, a := range drain.Alerts {
		alert := o.Alerts.Push(SecurityAlert{Severity: SeverityWarning, Kind: a.Kind, Message: a.Message, Details: a.TxID.Hex(), Timestamp: now})
		o.Telemetry.RecordAlert(alert)
	}

	// Decrypt is implicit in Drain's combine step above; Order consumes its
	// plaintext output directly.
	ordered, err := o.Ordering.Order(cs.setup.Ordering, drain.Items, slot, chainEpochNonce)
	if err != nil {
		// VDF cancelled (or any ordering failure): the slot yields no
		// proposal candidate; record a SlotMissed outcome and move on.
		outcome := SlotOutcome{ChainID: chainID, Slot: slot, ProposalStatus: ProposalStatusMissed}
		o.finishSlot(cs, slot, outcome)
		return &outcome, nil
	}

	// Detect: annotate the ordered batch with incidents and remediation.
	annotations := cs.setup.Detection.Analyze(ordered)
	allIDs := idsOf(ordered.Items)
	included, deferred := builder.ExpectedIncludedSet(allIDs, annotations.Actions)
	batchHash := computeBatchHash(ordered, included, deferred)

	outcome := SlotOutcome{ChainID: chainID, Slot: slot, OrderedBatchHash: batchHash, Incidents: annotations.Incidents, Included: included, Deferred: deferred}

	// Propose: select this slot's primary builder (bias-resistant: keyed on
	// the VDF seed) and request its signed proposal over the transport.
	primary, _, err := o.Builders.Select(cs.setup.Selection, chainID, slot, ordered.Seed)
	if err != nil {
		outcome.ProposalStatus = ProposalStatusNoBuilder
		o.finishSlot(cs, slot, outcome)
		return &outcome, nil
	}

	req := ProposalRequest{Slot: slot, ChainID: chainID, BatchHash: batchHash, Included: included, Deferred: deferred, Deadline: now + cs.setup.SlotDeadline}
	transport := cs.setup.Transport
	if transport == nil {
		transport = InProcessBuilderTransport{}
	}
	proposal, err := transport.RequestProposal(primary, req)
	if err != nil {
		outcome.ProposalStatus = ProposalStatusNoProposal
		o.finishSlot(cs, slot, outcome)
		return &outcome, nil
	}

	// Finalize: verify the proposal against the expected set, then update
	// the builder's reputation/stake atomically with that verdict.
	result := o.Builders.SubmitProposal(proposal, batchHash, included, deferred)
	if _, err := o.Builders.Finalize(cs.setup.Reputation, slot, primary.Address, result); err != nil {
		return nil, err
	}

	if result.Accepted {
		outcome.ProposalStatus = ProposalStatusAccepted
		for _, id := range included {
			o.Mempool.MarkIncluded(id)
		}
		o.accrue(cs, chainID, slot, ordered, annotations)
	} else {
		outcome.ProposalStatus = ProposalStatusRejected
	}

	o.finishSlot(cs, slot, outcome)
	return &outcome, nil
}

// accrue implements the redistribution ledger's bookkeeping for an accepted
// proposal: captured_value is the sum of estimated_value over every
// incident whose action was a redistributable remediation (Strip or
// Quarantine — a mere Flag takes no value out of the batch), and each
// included tx's sender gets a contribution credited for the epoch. There is
// no builder-bid surplus to add: per SPEC_FULL.md's resolution of the
// builder-bid-model Open Question, proposals are single signed submissions
// with no auction, so no surplus term exists to include.
func (o *Orchestrator) accrue(cs *chainState, chainID, slot uint64, ordered *ordering.OrderedBatch, annotations detection.Annotations) {
	policy := cs.setup.Detection.Policy()
	captured := uint256.NewInt(0)
	for _, inc := range annotations.Incidents {
		if inc.Confidence < policy.ConfidenceThreshold {
			continue
		}
		action, ok := policy.ActionFor[inc.Kind]
		if !ok {
			continue
		}
		if action == detection.ActionStrip || action == detection.ActionQuarantine {
			captured = new(uint256.Int).Add(captured, uint256.NewInt(inc.EstimatedValue))
		}
	}

	epoch := slot / cs.setup.EpochSlots
	_ = o.Ledger.Accrue(epoch, captured, chainID)

	// gas_used has no meaning without EVM execution (a Non-goal); tx.Size is
	// used as its proxy, and value_contributed uses the tx's declared gas
	// price as a stand-in for economic activity, matching the same
	// oracle-free philosophy as the capture-value estimate in detection.
	for _, tx := range ordered.Items {
		gasUsed := tx.Size
		value := uint64(0)
		if tx.GasPrice != nil {
			value = tx.GasPrice.Uint64() * tx.Size
		}
		_ = o.Ledger.RecordContribution(chainID, epoch, tx.Sender, gasUsed, value)
	}
}

func (o *Orchestrator) finishSlot(cs *chainState, slot uint64, outcome SlotOutcome) {
	cs.hasRun = true
	cs.lastSlot = slot
	o.Storage.SaveSlotOutcome(outcome)
	o.Telemetry.RecordSlot(outcome)
}

func idsOf(txs []*types.TX) []types.Hash {
	ids := make([]types.Hash, len(txs))
	for i, tx := range txs {
		id, _ := tx.Fingerprint()
		ids[i] = id
	}
	return ids
}

// computeBatchHash binds a proposal's batch_hash to both the fair-ordering
// commitment and the detection annotations applied on top of it, so a
// proposal cannot be judged against one batch while actually building
// another.
func computeBatchHash(ordered *ordering.OrderedBatch, included, deferred []types.Hash) types.Hash {
	parts := make([][]byte, 0, 2+len(included)+len(deferred))
	parts = append(parts, ordered.Commitment.Bytes())
	for _, id := range included {
		parts = append(parts, id.Bytes())
	}
	for _, id := range deferred {
		parts = append(parts, id.Bytes())
	}
	return crypto.Keccak256Hash(parts...)
}
