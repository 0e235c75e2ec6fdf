package batch

import (
	"bytes"

	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/asagiri-dev/mst/crypto"
)

type (
	// Signature is a single (public key, signed data) pair attached to a
	// transaction. Signatures are identified by public key: a transaction
	// never holds two signatures with the same key.
	Signature struct {
		PublicKey []byte
		Data      []byte
	}

	// Transaction is a generic transaction interface.
	// Transactions which have equal hashes are considered equal;
	// the hash never covers signatures.
	Transaction interface {
		// Hash must return cryptographic hash of the signable
		// transaction content.
		Hash() util.Uint256
		// Payload returns opaque command bytes carried by the transaction.
		Payload() []byte
		// Quorum returns the number of signatures the transaction needs
		// to collect before it can enter consensus.
		Quorum() uint32
		// CreatedAt returns transaction creation time
		// in milliseconds since epoch.
		CreatedAt() uint64
		// Signatures returns all signatures collected so far.
		Signatures() []Signature
		// AddSignature attaches a signature to the transaction. It returns
		// false if a signature with the same public key is already present.
		AddSignature(data, pub []byte) bool
		// Clone returns a deep copy sharing no signature storage
		// with the original.
		Clone() Transaction
	}

	// Tx is the default Transaction implementation.
	Tx struct {
		payload   []byte
		quorum    uint32
		createdAt uint64
		sigs      []Signature

		hash *util.Uint256
	}
)

var _ Transaction = (*Tx)(nil)
var _ io.Serializable = (*Tx)(nil)

// NewTx returns a transaction carrying payload, requiring quorum signatures
// and created at the given millisecond timestamp.
func NewTx(payload []byte, quorum uint32, createdAt uint64) *Tx {
	return &Tx{
		payload:   payload,
		quorum:    quorum,
		createdAt: createdAt,
	}
}

// Hash implements Transaction interface.
func (t *Tx) Hash() util.Uint256 {
	if t.hash != nil {
		return *t.hash
	}

	w := io.NewBufBinWriter()
	t.encodeSignable(w.BinWriter)

	h := crypto.Hash256(w.Bytes())
	t.hash = &h

	return h
}

// Payload implements Transaction interface.
func (t *Tx) Payload() []byte {
	return t.payload
}

// Quorum implements Transaction interface.
func (t *Tx) Quorum() uint32 {
	return t.quorum
}

// CreatedAt implements Transaction interface.
func (t *Tx) CreatedAt() uint64 {
	return t.createdAt
}

// Signatures implements Transaction interface.
func (t *Tx) Signatures() []Signature {
	return t.sigs
}

// AddSignature implements Transaction interface.
func (t *Tx) AddSignature(data, pub []byte) bool {
	for i := range t.sigs {
		if bytes.Equal(t.sigs[i].PublicKey, pub) {
			return false
		}
	}

	t.sigs = append(t.sigs, Signature{PublicKey: pub, Data: data})

	return true
}

// Clone implements Transaction interface.
func (t *Tx) Clone() Transaction {
	cp := &Tx{
		payload:   t.payload,
		quorum:    t.quorum,
		createdAt: t.createdAt,
		hash:      t.hash,
	}

	if t.sigs != nil {
		cp.sigs = make([]Signature, len(t.sigs))
		copy(cp.sigs, t.sigs)
	}

	return cp
}

// encodeSignable writes all fields covered by the transaction hash,
// i.e. everything except signatures.
func (t Tx) encodeSignable(w *io.BinWriter) {
	w.WriteU64LE(t.createdAt)
	w.WriteU32LE(t.quorum)
	w.WriteVarBytes(t.payload)
}

// EncodeBinary implements io.Serializable interface.
func (t Tx) EncodeBinary(w *io.BinWriter) {
	t.encodeSignable(w)
	w.WriteVarUint(uint64(len(t.sigs)))

	for i := range t.sigs {
		w.WriteVarBytes(t.sigs[i].PublicKey)
		w.WriteVarBytes(t.sigs[i].Data)
	}
}

// DecodeBinary implements io.Serializable interface.
func (t *Tx) DecodeBinary(r *io.BinReader) {
	t.createdAt = r.ReadU64LE()
	t.quorum = r.ReadU32LE()
	t.payload = r.ReadVarBytes()

	n := r.ReadVarUint()
	t.sigs = nil
	t.hash = nil

	for i := uint64(0); i < n && r.Err == nil; i++ {
		t.sigs = append(t.sigs, Signature{
			PublicKey: r.ReadVarBytes(),
			Data:      r.ReadVarBytes(),
		})
	}
}
