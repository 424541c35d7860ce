package types

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// ProtectionLevel is a public hint a submitter attaches to a transaction,
// read by the detection and ordering layers but never altering the
// ciphertext contents.
type ProtectionLevel uint8

const (
	// ProtectionStandard applies the chain's default detection policy.
	ProtectionStandard ProtectionLevel = iota
	// ProtectionStrict asks for more aggressive quarantining of incidents
	// touching this transaction's sender.
	ProtectionStrict
	// ProtectionNone opts the sender out of protective actions (it may
	// still be flagged, but never stripped or quarantined).
	ProtectionNone
)

// FeeBand is a coarse public hint about a transaction's fee tier, usable by
// detectors and builders without revealing the exact encrypted gas price.
type FeeBand uint8

const (
	FeeBandLow FeeBand = iota
	FeeBandMedium
	FeeBandHigh
)

// SubmissionHints are the public, non-encrypted attributes a submitter may
// attach to an otherwise opaque transaction blob.
type SubmissionHints struct {
	FeeBand    FeeBand
	Protection ProtectionLevel
}

// TX is a decrypted transaction as produced by the encrypted mempool's
// drain sweep and consumed by the fair-ordering engine and detectors. Per
// the data model, it is otherwise an opaque blob: only the fields below are
// inspected by the core, everything else round-trips as Payload.
type TX struct {
	ChainID  uint64
	Sender   Address
	Nonce    uint64
	GasPrice *uint256.Int
	Size     uint64
	Hints    SubmissionHints

	// Target is the contract/pool address the transaction calls, when
	// known; the zero address means "unknown" (e.g. a plain transfer).
	Target Address
	// Selector is the first 4 bytes of calldata, when known.
	Selector [4]byte

	// Payload is the decrypted transaction body, opaque to the core.
	Payload []byte

	// SubmissionTime is the encrypted mempool's record of when this tx's
	// ciphertext arrived — public even before decryption, so it is not part
	// of the RLP-encoded ciphertext payload. The mempool's drain sweep
	// stamps it onto the decoded TX; it plays no role in Fingerprint.
	SubmissionTime uint64
}

// rlpTX is the wire shape encoded via RLP for Fingerprint/canonical hashing.
// It excludes fields not known at submission time.
type rlpTX struct {
	ChainID  uint64
	Sender   Address
	Nonce    uint64
	GasPrice []byte
	Size     uint64
	Target   Address
	Selector [4]byte
	Payload  []byte
}

// Fingerprint returns the canonical identifier of a transaction: the
// Keccak256 hash of its RLP-encoded canonical fields. Two TX values with
// identical economically-relevant fields always produce the same
// fingerprint, which is what the mempool uses as the ETX/TX id.
func (tx *TX) Fingerprint() (Hash, error) {
	gp := []byte{}
	if tx.GasPrice != nil {
		gp = tx.GasPrice.Bytes()
	}
	enc, err := rlp.EncodeToBytes(&rlpTX{
		ChainID:  tx.ChainID,
		Sender:   tx.Sender,
		Nonce:    tx.Nonce,
		GasPrice: gp,
		Size:     tx.Size,
		Target:   tx.Target,
		Selector: tx.Selector,
		Payload:  tx.Payload,
	})
	if err != nil {
		return Hash{}, err
	}
	return keccak256Hash(enc), nil
}

// rlpTXWire is the full wire shape for MarshalBinary/UnmarshalTX, used as
// the plaintext payload carried inside an encrypted-mempool ciphertext.
// Unlike rlpTX (used only for Fingerprint), it round-trips every field.
type rlpTXWire struct {
	ChainID    uint64
	Sender     Address
	Nonce      uint64
	GasPrice   []byte
	Size       uint64
	FeeBand    uint8
	Protection uint8
	Target     Address
	Selector   [4]byte
	Payload    []byte
}

// MarshalBinary encodes the full TX (including submission hints) for
// threshold encryption. This is what ShareEncrypt/CombineShares carry as
// the message, and UnmarshalTX is its inverse.
func (tx *TX) MarshalBinary() ([]byte, error) {
	gp := []byte{}
	if tx.GasPrice != nil {
		gp = tx.GasPrice.Bytes()
	}
	return rlp.EncodeToBytes(&rlpTXWire{
		ChainID:    tx.ChainID,
		Sender:     tx.Sender,
		Nonce:      tx.Nonce,
		GasPrice:   gp,
		Size:       tx.Size,
		FeeBand:    uint8(tx.Hints.FeeBand),
		Protection: uint8(tx.Hints.Protection),
		Target:     tx.Target,
		Selector:   tx.Selector,
		Payload:    tx.Payload,
	})
}

// UnmarshalTX decodes a TX previously produced by MarshalBinary.
func UnmarshalTX(data []byte) (*TX, error) {
	var w rlpTXWire
	if err := rlp.DecodeBytes(data, &w); err != nil {
		return nil, err
	}
	return &TX{
		ChainID:  w.ChainID,
		Sender:   w.Sender,
		Nonce:    w.Nonce,
		GasPrice: new(uint256.Int).SetBytes(w.GasPrice),
		Size:     w.Size,
		Hints:    SubmissionHints{FeeBand: FeeBand(w.FeeBand), Protection: ProtectionLevel(w.Protection)},
		Target:   w.Target,
		Selector: w.Selector,
		Payload:  w.Payload,
	}, nil
}

// keccak256Hash hashes data with Keccak-256. Duplicated from the crypto
// package (rather than imported) because crypto itself depends on
// core/types for Hash/Address and importing back would cycle.
func keccak256Hash(data []byte) Hash {
	d := sha3.NewLegacyKeccak256()
	d.Write(data)
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}
