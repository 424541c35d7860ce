package mempool

import (
	"errors"
	"math/big"
	"sync"

	"github.com/mevshield/mevshield/core/types"
	"github.com/mevshield/mevshield/crypto"
)

// Sentinel errors for operations that have no typed Outcome of their own
// (RegisterChain, Drain) — submit/attach_share use Outcome instead, per
// the error-handling design in SPEC_FULL.md §7.
var (
	ErrChainAlreadyRegistered = errors.New("mempool: chain already registered")
	ErrChainNotRegistered     = errors.New("mempool: chain not registered")
	ErrAlreadyDrained         = errors.New("mempool: slot already drained for this chain")
)

// ChainConfig holds the per-chain threshold scheme and admission policy.
// One key set (k-of-n) is shared by every ETX submitted on a chain: it is
// the encryption key of that chain's validator committee, not a per-tx key.
type ChainConfig struct {
	ChainID     uint64
	K, N        int
	PublicKey   *big.Int
	Commitments []*big.Int
	Validators  []ValidatorKey // indexed by ValidatorKey.Index, 1..N

	GraceWindow   uint64 // seconds beyond UnlockTime a tx may still combine
	RetryLimit    int    // bounded retries within GraceWindow
	MaxUnlockSkew uint64 // max allowed UnlockTime - SubmissionTime
	HighWatermark int    // pending ETX count above which submit is Busy
}

// DrainResult is C3's output of a single drain sweep for one (chain, slot).
type DrainResult struct {
	ChainID  uint64
	Slot     uint64
	Items    []*types.TX
	Expired  []types.Hash
	Alerts   []SecurityAlert
}

type chainPool struct {
	mu   sync.RWMutex
	cfg  ChainConfig
	etxs map[types.Hash]*ETX
	// shares[txID][validatorIndex] = share
	shares map[types.Hash]map[int]*DecryptionShare
	// drainedSlots guards drain()'s "exactly once per (slot,chain_id)" rule.
	drainedSlots map[uint64]bool
}

// Mempool partitions encrypted-transaction state by chain_id: each chain
// has its own exclusive-write pool, and distinct chains never block each
// other (per SPEC_FULL.md §5).
type Mempool struct {
	mu     sync.RWMutex
	chains map[uint64]*chainPool
}

// New creates an empty Mempool with no registered chains.
func New() *Mempool {
	return &Mempool{chains: make(map[uint64]*chainPool)}
}

// RegisterChain installs a chain's threshold key set and admission policy.
func (m *Mempool) RegisterChain(cfg ChainConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chains[cfg.ChainID]; ok {
		return ErrChainAlreadyRegistered
	}
	m.chains[cfg.ChainID] = &chainPool{
		cfg:          cfg,
		etxs:         make(map[types.Hash]*ETX),
		shares:       make(map[types.Hash]map[int]*DecryptionShare),
		drainedSlots: make(map[uint64]bool),
	}
	return nil
}

func (m *Mempool) chain(chainID uint64) (*chainPool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.chains[chainID]
	return cp, ok
}

// Submit accepts or rejects an encrypted transaction. Accepted ETXs start
// in StatusPending.
func (m *Mempool) Submit(etx *ETX) Outcome {
	if etx == nil || etx.Ciphertext == nil {
		return rejected(ReasonBadCiphertext)
	}
	cp, ok := m.chain(etx.ChainID)
	if !ok {
		return rejected(ReasonUnsupportedChain)
	}

	cp.mu.Lock()
	defer cp.mu.Unlock()

	if existing, dup := cp.etxs[etx.ID]; dup {
		// Replay of an identical submit returns the existing receipt
		// rather than creating a new ETX (round-trip law L4).
		_ = existing
		return accepted()
	}
	if etx.UnlockTime <= etx.SubmissionTime || etx.UnlockTime-etx.SubmissionTime > cp.cfg.MaxUnlockSkew {
		return rejected(ReasonBadUnlockWindow)
	}
	if cp.cfg.HighWatermark > 0 && len(cp.etxs) >= cp.cfg.HighWatermark {
		return rejected(ReasonBusy)
	}

	etx.Status = StatusPending
	cp.etxs[etx.ID] = etx
	cp.shares[etx.ID] = make(map[int]*DecryptionShare)
	return accepted()
}

// AttachShare records a validator's decryption share against a known ETX.
func (m *Mempool) AttachShare(share DecryptionShare) Outcome {
	cp, ok := m.chainForTx(share.TxID)
	if !ok {
		return rejected(ReasonUnknownTx)
	}

	cp.mu.Lock()
	defer cp.mu.Unlock()

	etx, ok := cp.etxs[share.TxID]
	if !ok {
		return rejected(ReasonUnknownTx)
	}
	if _, dup := cp.shares[share.TxID][share.ValidatorIndex]; dup {
		return rejected(ReasonDuplicateShare)
	}
	if share.Value.Value == nil || share.ValidatorIndex != share.Value.Index {
		return rejected(ReasonInvalidShare)
	}
	// A per-ciphertext decryption share carries no Feldman proof of its own
	// (crypto.VerifyShare applies only to the raw KeyGeneration share, which
	// is never transmitted); its authenticity comes from the validator's BLS
	// signature instead.
	if pubkey := validatorPubkey(cp.cfg.Validators, share.ValidatorIndex); len(pubkey) > 0 && len(share.Signature) > 0 {
		if !crypto.VerifyShareSignature(pubkey, share.TxID, share.ValidatorIndex, share.Value.Value, share.Signature) {
			return rejected(ReasonInvalidShare)
		}
	}

	cp.shares[share.TxID][share.ValidatorIndex] = &share
	if len(cp.shares[share.TxID]) >= cp.cfg.K && etx.Status == StatusPending {
		etx.Status = StatusUnlockable
	}
	return accepted()
}

// chainForTx finds the chainPool owning a tx id without requiring the
// caller to know its chain_id up front (the façade only has tx_id).
func (m *Mempool) chainForTx(txID types.Hash) (*chainPool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, cp := range m.chains {
		cp.mu.RLock()
		_, ok := cp.etxs[txID]
		cp.mu.RUnlock()
		if ok {
			return cp, true
		}
	}
	return nil, false
}

// Drain performs the slot-boundary sweep for one (chain_id, slot): combines
// any ETX with >=k verified shares and unlock_time<=now into plaintexts,
// advances under-shared ETX into a bounded retry, and expires those that
// exhaust it. Produces exactly one DrainResult per (slot, chain_id).
func (m *Mempool) Drain(chainID, slot, now uint64) (*DrainResult, error) {
	cp, ok := m.chain(chainID)
	if !ok {
		return nil, ErrChainNotRegistered
	}

	cp.mu.Lock()
	defer cp.mu.Unlock()

	if cp.drainedSlots[slot] {
		return nil, ErrAlreadyDrained
	}
	cp.drainedSlots[slot] = true

	result := &DrainResult{ChainID: chainID, Slot: slot}

	for id, etx := range cp.etxs {
		if etx.UnlockTime > now {
			continue
		}
		switch etx.Status {
		case StatusIncluded, StatusExpired, StatusFailed:
			continue
		}

		shares := cp.shares[id]
		if len(shares) >= cp.cfg.K {
			plaintext, err := combine(cp.cfg, etx, shares)
			if err != nil {
				etx.Status = StatusFailed
				result.Alerts = append(result.Alerts, SecurityAlert{
					Kind: "share_inconsistency", TxID: id, Message: err.Error(),
				})
				continue
			}
			etx.Status = StatusDecrypted
			etx.plaintext = plaintext
			result.Items = append(result.Items, plaintext)
			continue
		}

		// Under-shared: retry within the grace window, else expire.
		if now <= etx.UnlockTime+cp.cfg.GraceWindow && etx.retries < cp.cfg.RetryLimit {
			etx.retries++
			continue
		}
		etx.Status = StatusExpired
		result.Expired = append(result.Expired, id)
	}

	return result, nil
}

// Pending reports how many ETX are tracked (any non-terminal status) for a
// chain; used for backpressure/telemetry.
func (m *Mempool) Pending(chainID uint64) int {
	cp, ok := m.chain(chainID)
	if !ok {
		return 0
	}
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	n := 0
	for _, e := range cp.etxs {
		switch e.Status {
		case StatusIncluded, StatusExpired, StatusFailed:
		default:
			n++
		}
	}
	return n
}

// Get returns a copy of an ETX's current state for status queries.
func (m *Mempool) Get(txID types.Hash) (ETX, bool) {
	cp, ok := m.chainForTx(txID)
	if !ok {
		return ETX{}, false
	}
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	etx, ok := cp.etxs[txID]
	if !ok {
		return ETX{}, false
	}
	return *etx, true
}

// MarkIncluded transitions an ETX to StatusIncluded once its proposal is
// Accepted; it is exclusively owned by the orchestrator's Finalize phase.
func (m *Mempool) MarkIncluded(txID types.Hash) {
	cp, ok := m.chainForTx(txID)
	if !ok {
		return
	}
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if etx, ok := cp.etxs[txID]; ok {
		etx.Status = StatusIncluded
	}
}

func validatorPubkey(vs []ValidatorKey, index int) []byte {
	for _, v := range vs {
		if v.Index == index {
			return v.BLSPubkey
		}
	}
	return nil
}

// combine reconstructs the plaintext TX from >=k decryption shares using
// the threshold scheme's Lagrange-in-exponent combination, then decodes the
// wire-encoded TX from the recovered plaintext bytes.
func combine(cfg ChainConfig, etx *ETX, shares map[int]*DecryptionShare) (*types.TX, error) {
	ds := make([]crypto.DecryptionShare, 0, cfg.K)
	for _, s := range shares {
		if len(ds) >= cfg.K {
			break // shares beyond k are discarded, per the C1 contract
		}
		ds = append(ds, s.Value)
	}

	plaintext, err := crypto.CombineShares(ds, etx.Ciphertext)
	if err != nil {
		return nil, err
	}
	tx, err := types.UnmarshalTX(plaintext)
	if err != nil {
		return nil, err
	}
	if tx.ChainID != cfg.ChainID {
		return nil, errors.New("mempool: decrypted chain_id mismatch")
	}
	tx.SubmissionTime = etx.SubmissionTime
	return tx, nil
}
