package types

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestTX_FingerprintDeterministic(t *testing.T) {
	tx := &TX{
		ChainID:  1,
		Sender:   BytesToAddress([]byte{1, 2, 3}),
		Nonce:    7,
		GasPrice: uint256.NewInt(1_000_000_000),
		Size:     128,
		Payload:  []byte("hello"),
	}

	f1, err := tx.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	f2, err := tx.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if f1 != f2 {
		t.Fatalf("fingerprint not deterministic: %x != %x", f1, f2)
	}
	if f1.IsZero() {
		t.Fatalf("fingerprint should not be zero")
	}
}

func TestTX_FingerprintDiffersOnNonce(t *testing.T) {
	base := &TX{ChainID: 1, Sender: BytesToAddress([]byte{9}), GasPrice: uint256.NewInt(1), Payload: []byte("x")}
	a := *base
	a.Nonce = 1
	b := *base
	b.Nonce = 2

	fa, _ := a.Fingerprint()
	fb, _ := b.Fingerprint()
	if fa == fb {
		t.Fatalf("expected different fingerprints for different nonces")
	}
}
