package crypto

import (
	"encoding/binary"
	"math/big"

	"github.com/mevshield/mevshield/core/types"
)

// ShareMessage builds the canonical message a validator signs (and a
// verifier re-derives) over a single decryption share: the transaction id,
// the validator index, and the share value. It is the BLS signing message
// that VerifyShareSignature checks.
func ShareMessage(txID types.Hash, validatorIndex int, shareValue *big.Int) []byte {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(validatorIndex))
	val := []byte{}
	if shareValue != nil {
		val = shareValue.Bytes()
	}
	return Keccak256(txID.Bytes(), idx[:], val)
}

// VerifyShareSignature checks a validator's BLS signature over a decryption
// share using the currently configured BLS backend (pure-Go by default;
// see SetBLSBackend). A zero-length pubkey or signature always fails closed.
func VerifyShareSignature(pubkey []byte, txID types.Hash, validatorIndex int, shareValue *big.Int, sig []byte) bool {
	if len(pubkey) == 0 || len(sig) == 0 {
		return false
	}
	msg := ShareMessage(txID, validatorIndex, shareValue)
	return DefaultBLSBackend().Verify(pubkey, msg, sig)
}
