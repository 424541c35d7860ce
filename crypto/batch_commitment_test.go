package crypto

import (
	"testing"

	"github.com/mevshield/mevshield/core/types"
)

func TestComputeBatchCommitment_MerkleDeterministicOrderIndependent(t *testing.T) {
	a := types.BytesToHash([]byte("tx-a"))
	b := types.BytesToHash([]byte("tx-b"))
	c := types.BytesToHash([]byte("tx-c"))

	c1, err := ComputeBatchCommitment(CommitmentMerkle, []types.Hash{a, b, c})
	if err != nil {
		t.Fatalf("ComputeBatchCommitment: %v", err)
	}
	c2, err := ComputeBatchCommitment(CommitmentMerkle, []types.Hash{c, a, b})
	if err != nil {
		t.Fatalf("ComputeBatchCommitment: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("commitment should be independent of input order: %x != %x", c1, c2)
	}
	if c1.IsZero() {
		t.Fatalf("commitment should not be zero for non-empty input")
	}
}

func TestComputeBatchCommitment_KZGDeterministic(t *testing.T) {
	a := types.BytesToHash([]byte("tx-a"))
	b := types.BytesToHash([]byte("tx-b"))

	c1, err := ComputeBatchCommitment(CommitmentKZG, []types.Hash{a, b})
	if err != nil {
		t.Fatalf("ComputeBatchCommitment: %v", err)
	}
	c2, err := ComputeBatchCommitment(CommitmentKZG, []types.Hash{b, a})
	if err != nil {
		t.Fatalf("ComputeBatchCommitment: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("KZG commitment should be independent of input order")
	}
}

func TestComputeBatchCommitment_Empty(t *testing.T) {
	c, err := ComputeBatchCommitment(CommitmentMerkle, nil)
	if err != nil {
		t.Fatalf("ComputeBatchCommitment: %v", err)
	}
	if !c.IsZero() {
		t.Fatalf("expected zero commitment for empty batch")
	}
}
