package orchestrator

import (
	"errors"
	"sync"
	"time"

	"github.com/mevshield/mevshield/builder"
	"github.com/mevshield/mevshield/core/types"
	"github.com/mevshield/mevshield/redistribution"
)

// Clock abstracts wall/slot time so tests can drive the pipeline without a
// real clock; production wires a SystemClock.
type Clock interface {
	Now() uint64
}

// SystemClock reports Unix time in seconds.
type SystemClock struct{}

func (SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// ProposalRequest is what the orchestrator hands a builder transport once a
// slot's ordered, annotated batch and primary builder are known.
type ProposalRequest struct {
	Slot      uint64
	ChainID   uint64
	BatchHash types.Hash
	Included  []types.Hash
	Deferred  []types.Hash
	Deadline  uint64
}

// BuilderTransport delivers a proposal request to the selected builder (over
// whatever wire protocol a deployment uses) and returns its signed response.
// No production backend ships in the core, per the transport/persistence
// Non-goal; InProcessBuilderTransport is the in-memory reference used by
// tests and single-process deployments.
type BuilderTransport interface {
	RequestProposal(primary builder.Info, req ProposalRequest) (builder.BlockProposal, error)
}

// ErrNoTransportResponse is returned by a transport that could not reach the
// selected builder before the slot deadline.
var ErrNoTransportResponse = errors.New("orchestrator: builder transport produced no proposal")

// BuildProposalFunc lets a test or a simple in-process deployment answer
// proposal requests without standing up a network transport.
type BuildProposalFunc func(primary builder.Info, req ProposalRequest) (builder.BlockProposal, error)

// InProcessBuilderTransport calls a local function in place of a network
// round-trip; the default behavior for a single-process deployment where
// the "builder" is just another in-process component.
type InProcessBuilderTransport struct {
	Build BuildProposalFunc
}

func (t InProcessBuilderTransport) RequestProposal(primary builder.Info, req ProposalRequest) (builder.BlockProposal, error) {
	if t.Build == nil {
		return builder.BlockProposal{}, ErrNoTransportResponse
	}
	return t.Build(primary, req)
}

// Payer submits a Pending Distribution for on-chain (or off-chain) payout;
// no production payment backend ships in the core. NoopPayer is the
// reference implementation: it does nothing and leaves the row's status as
// it was.
type Payer interface {
	Pay(d *redistribution.Distribution) error
}

// NoopPayer's Pay returns nil without changing the Distribution's status;
// real deployments replace this with an on-chain transfer or batched payout job.
type NoopPayer struct{}

func (NoopPayer) Pay(d *redistribution.Distribution) error { return nil }

// Telemetry receives slot outcomes and security alerts for external
// observability; it has no bearing on pipeline correctness.
type Telemetry interface {
	RecordSlot(o SlotOutcome)
	RecordAlert(a SecurityAlert)
}

// NoopTelemetry discards everything; RecordingTelemetry below is the
// in-memory reference implementation used by tests.
type NoopTelemetry struct{}

func (NoopTelemetry) RecordSlot(SlotOutcome)   {}
func (NoopTelemetry) RecordAlert(SecurityAlert) {}

// RecordingTelemetry keeps every slot outcome and alert it receives, for
// tests that need to assert on what the pipeline emitted.
type RecordingTelemetry struct {
	mu     sync.Mutex
	Slots  []SlotOutcome
	Alerts []SecurityAlert
}

func (t *RecordingTelemetry) RecordSlot(o SlotOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Slots = append(t.Slots, o)
}

func (t *RecordingTelemetry) RecordAlert(a SecurityAlert) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Alerts = append(t.Alerts, a)
}

// Storage persists slot outcomes for later retrieval by get_slot_outcome.
// No SQL/cache driver ships in the core (per the persistence Non-goal);
// MemoryStorage is the in-memory reference implementation.
type Storage interface {
	SaveSlotOutcome(o SlotOutcome)
	SlotOutcome(chainID, slot uint64) (SlotOutcome, bool)
}

type slotKey struct {
	chainID uint64
	slot    uint64
}

// MemoryStorage is a process-local Storage backed by a guarded map.
type MemoryStorage struct {
	mu      sync.RWMutex
	outcomes map[slotKey]SlotOutcome
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{outcomes: make(map[slotKey]SlotOutcome)}
}

func (s *MemoryStorage) SaveSlotOutcome(o SlotOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[slotKey{o.ChainID, o.Slot}] = o
}

func (s *MemoryStorage) SlotOutcome(chainID, slot uint64) (SlotOutcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.outcomes[slotKey{chainID, slot}]
	return o, ok
}
