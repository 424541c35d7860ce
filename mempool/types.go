// Package mempool implements the encrypted mempool (C3): transactions are
// submitted as threshold-encrypted ciphertexts and held until a slot's
// unlock time, at which point enough decryption shares unlock the
// plaintext for the fair-ordering engine to consume.
package mempool

import (
	"github.com/mevshield/mevshield/core/types"
	"github.com/mevshield/mevshield/crypto"
)

// Status is the lifecycle state of an encrypted transaction.
type Status uint8

const (
	StatusPending Status = iota
	StatusUnlockable
	StatusDecrypted
	StatusIncluded
	StatusExpired
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusUnlockable:
		return "Unlockable"
	case StatusDecrypted:
		return "Decrypted"
	case StatusIncluded:
		return "Included"
	case StatusExpired:
		return "Expired"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Priority is a public submission hint carried on the ETX; it never affects
// decryption, and the mempool does not use it to order drains or retries.
type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// ETX is an encrypted transaction held by the mempool.
type ETX struct {
	ID             types.Hash
	ChainID        uint64
	Ciphertext     *crypto.EncryptedMessage
	SubmissionTime uint64
	UnlockTime     uint64
	Priority       Priority
	Status         Status
	SubmitterAddr  types.Address

	// retries counts grace-window retry sweeps attempted since UnlockTime.
	retries int
	// plaintext is populated once Status reaches StatusDecrypted.
	plaintext *types.TX
}

// Plaintext returns the decrypted transaction, if available.
func (e *ETX) Plaintext() *types.TX {
	return e.plaintext
}

// DecryptionShare is one validator's contribution toward reconstructing an
// ETX's plaintext, unique per (tx_id, validator_index). Value is
// ciphertext-bound (crypto.ShareDecrypt(localShare, etx.Ciphertext.Ephemeral)),
// never the validator's persistent Feldman share — that value is reused by
// every ETX on the chain and must never be transmitted.
type DecryptionShare struct {
	TxID           types.Hash
	ValidatorIndex int
	Value          crypto.DecryptionShare
	Signature      []byte
}

// ValidatorKey is a registered validator's public key material, used to
// verify decryption-share signatures and as a Feldman VSS share holder.
type ValidatorKey struct {
	Index     int
	BLSPubkey []byte
}

// SecurityAlert mirrors the orchestrator's alert sink shape so the mempool
// can emit share-inconsistency alerts without importing orchestrator
// (which in turn depends on mempool).
type SecurityAlert struct {
	Kind    string
	TxID    types.Hash
	Message string
}

// RejectReason explains a Rejected outcome from submit/attach_share.
type RejectReason string

const (
	ReasonBadCiphertext     RejectReason = "bad_ciphertext"
	ReasonDuplicateID       RejectReason = "duplicate_id"
	ReasonUnsupportedChain  RejectReason = "chain_unsupported"
	ReasonBusy              RejectReason = "busy"
	ReasonBadUnlockWindow   RejectReason = "bad_unlock_window"
	ReasonUnknownTx         RejectReason = "unknown_tx"
	ReasonDuplicateShare    RejectReason = "duplicate_validator_share"
	ReasonInvalidShare      RejectReason = "invalid_share"
)

// Outcome is the typed result of submit/attach_share, replacing exception
// flow per SPEC_FULL.md's error-handling design.
type Outcome struct {
	Accepted bool
	Reason   RejectReason
}

func accepted() Outcome { return Outcome{Accepted: true} }
func rejected(r RejectReason) Outcome { return Outcome{Accepted: false, Reason: r} }
