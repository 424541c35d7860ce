// Package builder implements the Builder Coordinator (C6): registration,
// weighted rotation-capped selection, proposal verification, and the
// reputation/slashing update that runs on every finalize.
package builder

import (
	"errors"
	"sync"

	"github.com/mevshield/mevshield/core/types"
)

var (
	ErrAlreadyRegistered = errors.New("builder: already registered")
	ErrNotFound          = errors.New("builder: not found")
	ErrZeroStake         = errors.New("builder: stake must be greater than zero")
)

// Info is a builder's registration record.
type Info struct {
	Address      types.Address
	BLSPubkey    []byte
	Stake        uint64
	Reputation   float64 // 0..100
	LastActive   uint64  // slot of last accepted proposal
	Active       bool
	BlocksBuilt  uint64
	BlocksAccepted uint64
}

// chainRotation tracks which builder has most recently been primary on one
// chain and for how many consecutive slots, enforcing R_max.
type chainRotation struct {
	lastPrimary      types.Address
	consecutiveCount uint64
}

type builderEntry struct {
	info Info
}

// Registry tracks builder registrations and per-chain rotation state.
// Thread-safe.
type Registry struct {
	mu       sync.RWMutex
	builders map[types.Address]*builderEntry
	rotation map[uint64]*chainRotation // chainID -> rotation state
}

// NewRegistry creates an empty builder registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[types.Address]*builderEntry),
		rotation: make(map[uint64]*chainRotation),
	}
}

// Register adds a new builder with an initial reputation of 100.
func (r *Registry) Register(addr types.Address, pubkey []byte, stake uint64) error {
	if stake == 0 {
		return ErrZeroStake
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builders[addr]; ok {
		return ErrAlreadyRegistered
	}
	r.builders[addr] = &builderEntry{
		info: Info{
			Address:    addr,
			BLSPubkey:  pubkey,
			Stake:      stake,
			Reputation: 100,
			Active:     true,
		},
	}
	return nil
}

// Get returns a copy of a builder's registration info.
func (r *Registry) Get(addr types.Address) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.builders[addr]
	if !ok {
		return Info{}, false
	}
	return e.info, true
}

// Active returns every currently-active builder's info.
func (r *Registry) Active() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Info
	for _, e := range r.builders {
		if e.info.Active {
			out = append(out, e.info)
		}
	}
	return out
}

// Reactivate re-registers a deactivated builder (reputation=0) with a fresh
// reputation of 100, per the spec's "reactivation requires re-registration".
func (r *Registry) Reactivate(addr types.Address, stake uint64) error {
	if stake == 0 {
		return ErrZeroStake
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.builders[addr]
	if !ok {
		return ErrNotFound
	}
	e.info.Active = true
	e.info.Reputation = 100
	e.info.Stake = stake
	return nil
}
