// Package ordering implements the Fair Ordering Engine (C4): it turns a
// decrypted batch into a deterministic, VDF-seeded sequence so that no
// party can predict — let alone pay for — a favorable position before the
// VDF finishes.
package ordering

import (
	"encoding/binary"
	"errors"
	"math/big"
	"sort"

	"github.com/mevshield/mevshield/core/types"
	"github.com/mevshield/mevshield/crypto"
)

// ErrVDFCancelled is returned by Order when the VDF evaluation is aborted
// mid-flight; the caller should treat the slot as missed rather than retry
// with a partial seed.
var ErrVDFCancelled = errors.New("ordering: vdf evaluation cancelled")

// Policy configures one chain's ordering parameters: which commitment
// scheme its batch_commitment uses and how hard its VDF runs.
type Policy struct {
	ChainID          uint64
	CommitmentScheme crypto.CommitmentScheme
	VDFParams        *crypto.VDFParams
}

// DefaultPolicy returns a Policy using the default Merkle commitment and
// the default VDF difficulty.
func DefaultPolicy(chainID uint64) Policy {
	return Policy{
		ChainID:          chainID,
		CommitmentScheme: crypto.CommitmentMerkle,
		VDFParams:        crypto.DefaultVDFParams(),
	}
}

// OrderedBatch is C4's output: a deterministically ordered sequence of
// transactions plus the seed and proof any party can use to re-derive it.
type OrderedBatch struct {
	Items      []*types.TX
	Seed       []byte
	VDFProof   *crypto.VDFProof
	Commitment types.Hash
}

// Engine runs the fair-ordering algorithm for a chain using a VDF
// evaluator; the evaluator is injected so callers can swap in a faster
// modulus for tests or a cancellable evaluator in production.
type Engine struct {
	vdf crypto.VDFEvaluator
}

// NewEngine builds an ordering Engine around the given VDF evaluator.
func NewEngine(vdf crypto.VDFEvaluator) *Engine {
	return &Engine{vdf: vdf}
}

// Order implements the Fair Ordering Engine's public contract:
//
//	order(batch_pre, slot, chain_id) → OrderedBatch{items, seed, vdf_proof}
//
// It is a pure function of (batchPre, slot, chainID, chainEpochNonce): the
// same inputs always produce the same ordering, and any party holding
// those inputs plus (seed, vdf_proof) can recompute ranks and confirm it.
func (e *Engine) Order(policy Policy, batchPre []*types.TX, slot uint64, chainEpochNonce uint64) (*OrderedBatch, error) {
	ids := make([]types.Hash, len(batchPre))
	byID := make(map[types.Hash]*types.TX, len(batchPre))
	for i, tx := range batchPre {
		id, err := tx.Fingerprint()
		if err != nil {
			return nil, err
		}
		ids[i] = id
		byID[id] = tx
	}

	commitment, err := crypto.ComputeBatchCommitment(policy.CommitmentScheme, ids)
	if err != nil {
		return nil, err
	}

	seedIn := seedInput(commitment, slot, policy.ChainID, chainEpochNonce)

	params := policy.VDFParams
	if params == nil {
		params = crypto.DefaultVDFParams()
	}
	proof, err := e.vdf.Evaluate(seedIn, params.T)
	if err != nil {
		return nil, ErrVDFCancelled
	}
	y := proof.Output

	type ranked struct {
		tx   *types.TX
		id   types.Hash
		rank *big.Int
	}
	rs := make([]ranked, len(batchPre))
	for i, tx := range batchPre {
		id := ids[i]
		rank := new(big.Int).SetBytes(crypto.Keccak256(y, id.Bytes()))
		rs[i] = ranked{tx: tx, id: id, rank: rank}
	}

	sort.Slice(rs, func(i, j int) bool {
		c := rs[i].rank.Cmp(rs[j].rank)
		if c != 0 {
			return c < 0
		}
		return lessHash(rs[i].id, rs[j].id)
	})

	items := make([]*types.TX, len(rs))
	for i, r := range rs {
		items[i] = r.tx
	}

	return &OrderedBatch{
		Items:      items,
		Seed:       y,
		VDFProof:   proof,
		Commitment: commitment,
	}, nil
}

// seedInput builds H-input bytes for seed_in = H(batch_commitment ∥ slot ∥
// chain_id ∥ chain_epoch_nonce); the VDF itself hashes its own input
// internally (via the squaring modulus reduction), so this just needs to
// be a canonical, order-sensitive encoding of the four fields.
func seedInput(commitment types.Hash, slot, chainID, chainEpochNonce uint64) []byte {
	buf := make([]byte, 8+8+8)
	binary.BigEndian.PutUint64(buf[0:8], slot)
	binary.BigEndian.PutUint64(buf[8:16], chainID)
	binary.BigEndian.PutUint64(buf[16:24], chainEpochNonce)
	return crypto.Keccak256(commitment.Bytes(), buf)
}

func lessHash(a, b types.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Verify re-derives an OrderedBatch's seed and ranking from the same
// inputs plus the published (seed, vdf_proof) and confirms the ordering
// matches, per the fair-ordering engine's verifiability contract.
func Verify(vdf crypto.VDFEvaluator, policy Policy, batchPre []*types.TX, slot, chainEpochNonce uint64, got *OrderedBatch) bool {
	if got == nil || got.VDFProof == nil {
		return false
	}
	if !vdf.Verify(got.VDFProof) {
		return false
	}

	ids := make([]types.Hash, len(batchPre))
	for i, tx := range batchPre {
		id, err := tx.Fingerprint()
		if err != nil {
			return false
		}
		ids[i] = id
	}
	commitment, err := crypto.ComputeBatchCommitment(policy.CommitmentScheme, ids)
	if err != nil || commitment != got.Commitment {
		return false
	}
	wantSeedIn := seedInput(commitment, slot, policy.ChainID, chainEpochNonce)
	if string(wantSeedIn) != string(got.VDFProof.Input) {
		return false
	}

	want, err := reorder(got.Seed, batchPre, ids)
	if err != nil || len(want) != len(got.Items) {
		return false
	}
	for i := range want {
		wantID, _ := want[i].Fingerprint()
		gotID, _ := got.Items[i].Fingerprint()
		if wantID != gotID {
			return false
		}
	}
	return true
}

func reorder(y []byte, batchPre []*types.TX, ids []types.Hash) ([]*types.TX, error) {
	type ranked struct {
		tx   *types.TX
		id   types.Hash
		rank *big.Int
	}
	rs := make([]ranked, len(batchPre))
	for i, tx := range batchPre {
		rs[i] = ranked{tx: tx, id: ids[i], rank: new(big.Int).SetBytes(crypto.Keccak256(y, ids[i].Bytes()))}
	}
	sort.Slice(rs, func(i, j int) bool {
		c := rs[i].rank.Cmp(rs[j].rank)
		if c != 0 {
			return c < 0
		}
		return lessHash(rs[i].id, rs[j].id)
	})
	out := make([]*types.TX, len(rs))
	for i, r := range rs {
		out[i] = r.tx
	}
	return out, nil
}
