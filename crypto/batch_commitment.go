package crypto

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/mevshield/mevshield/core/types"
)

// CommitmentScheme selects how a Fair Ordering Engine batch computes its
// batch_commitment over the multiset of unlocked transaction ids. Both
// schemes satisfy the same determinism/verifiability contract; which one a
// chain uses is a per-chain configuration choice (see SPEC_FULL.md §4.4).
type CommitmentScheme uint8

const (
	// CommitmentMerkle is the default: a Merkle root over sorted tx ids,
	// built on the generalized-index binary tree in merkle_multi_proof.go.
	CommitmentMerkle CommitmentScheme = iota
	// CommitmentKZG commits to the sorted tx ids as a polynomial via KZG,
	// letting a party prove a single id's membership without a full
	// Merkle path.
	CommitmentKZG
)

// ComputeBatchCommitment sorts txIDs ascending and commits to them under
// the requested scheme, returning a 32-byte commitment usable directly as
// input to the VDF seed derivation H(batch_commitment || slot || chain_id
// || chain_epoch_nonce).
func ComputeBatchCommitment(scheme CommitmentScheme, txIDs []types.Hash) (types.Hash, error) {
	sorted := make([]types.Hash, len(txIDs))
	copy(sorted, txIDs)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	switch scheme {
	case CommitmentKZG:
		return computeKZGBatchCommitment(sorted)
	default:
		return computeMerkleBatchCommitment(sorted), nil
	}
}

func computeMerkleBatchCommitment(sorted []types.Hash) types.Hash {
	if len(sorted) == 0 {
		return types.Hash{}
	}
	leaves := make([][32]byte, len(sorted))
	for i, id := range sorted {
		leaves[i] = [32]byte(id)
	}
	root := MerkleRoot(leaves)
	return types.Hash(root)
}

// computeKZGBatchCommitment packs the sorted tx ids as field elements of a
// single blob (reducing each id modulo the BLS scalar field to keep it
// canonical) and commits with the configured KZG backend. Batches larger
// than one blob's worth of ids are folded by committing per-blob-chunk and
// hashing the chunk commitments together, since the spec does not require
// a single opening proof across an unbounded number of ids.
func computeKZGBatchCommitment(sorted []types.Hash) (types.Hash, error) {
	if len(sorted) == 0 {
		return types.Hash{}, nil
	}

	backend := DefaultKZGBackend()
	var chunkCommitments [][]byte

	for start := 0; start < len(sorted); start += KZGFieldElementsPerBlob {
		end := start + KZGFieldElementsPerBlob
		if end > len(sorted) {
			end = len(sorted)
		}
		blob := make([]byte, KZGBytesPerBlob)
		for i, id := range sorted[start:end] {
			fe := reduceToScalarField(id)
			offset := i * KZGBytesPerFieldElement
			copy(blob[offset:offset+KZGBytesPerFieldElement], fe)
		}
		commitment, err := backend.BlobToCommitment(blob)
		if err != nil {
			return types.Hash{}, err
		}
		chunkCommitments = append(chunkCommitments, commitment[:])
	}

	return Keccak256Hash(chunkCommitments...), nil
}

// reduceToScalarField reduces a 32-byte id modulo the BLS12-381 scalar
// field order so it is a canonical field element, and re-encodes it
// big-endian in KZGBytesPerFieldElement bytes.
func reduceToScalarField(id types.Hash) []byte {
	v := new(big.Int).SetBytes(id.Bytes())
	v.Mod(v, BLSSubgroupOrder)
	out := make([]byte, KZGBytesPerFieldElement)
	vb := v.Bytes()
	copy(out[KZGBytesPerFieldElement-len(vb):], vb)
	return out
}
