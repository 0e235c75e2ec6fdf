// Package batch implements the multi-signature transaction batch model:
// groups of transactions sharing one signature collection process and
// identified by a reduced hash which never covers signatures.
package batch

import (
	"bytes"

	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/pkg/errors"

	"github.com/asagiri-dev/mst/crypto"
)

type (
	// Batch is a generic batch interface. Batches which have equal reduced
	// hashes are considered equal, signature contents do not affect identity.
	Batch interface {
		// ReducedHash returns the batch identity: a content hash over the
		// contained transactions excluding their signatures. It is fixed
		// for the whole batch lifetime.
		ReducedHash() util.Uint256
		// Transactions returns the ordered transaction list.
		Transactions() []Transaction
		// CreatedAt returns the earliest creation time among the contained
		// transactions in milliseconds since epoch.
		CreatedAt() uint64
		// Clone returns a deep copy: same identity, independent
		// signature storage.
		Clone() Batch
	}

	// TxBatch is the default Batch implementation.
	TxBatch struct {
		txs       []Transaction
		reduced   util.Uint256
		createdAt uint64
	}
)

var _ Batch = (*TxBatch)(nil)
var _ io.Serializable = (*TxBatch)(nil)

// New returns a batch of the given transactions. The reduced hash and the
// creation time are fixed here and never recomputed.
func New(txs ...Transaction) (*TxBatch, error) {
	if len(txs) == 0 {
		return nil, errors.New("batch must contain at least one transaction")
	}

	b := &TxBatch{txs: txs}
	b.seal()

	return b, nil
}

// seal computes identity fields from the transaction list.
func (b *TxBatch) seal() {
	w := io.NewBufBinWriter()

	b.createdAt = b.txs[0].CreatedAt()
	for _, tx := range b.txs {
		h := tx.Hash()
		w.BinWriter.WriteBytes(h[:])

		if at := tx.CreatedAt(); at < b.createdAt {
			b.createdAt = at
		}
	}

	b.reduced = crypto.Hash256(w.Bytes())
}

// ReducedHash implements Batch interface.
func (b *TxBatch) ReducedHash() util.Uint256 {
	return b.reduced
}

// Transactions implements Batch interface.
func (b *TxBatch) Transactions() []Transaction {
	return b.txs
}

// CreatedAt implements Batch interface.
func (b *TxBatch) CreatedAt() uint64 {
	return b.createdAt
}

// Clone implements Batch interface.
func (b *TxBatch) Clone() Batch {
	txs := make([]Transaction, len(b.txs))
	for i := range b.txs {
		txs[i] = b.txs[i].Clone()
	}

	return &TxBatch{
		txs:       txs,
		reduced:   b.reduced,
		createdAt: b.createdAt,
	}
}

// EncodeBinary implements io.Serializable interface. Only batches of the
// default transaction type can be encoded.
func (b TxBatch) EncodeBinary(w *io.BinWriter) {
	w.WriteVarUint(uint64(len(b.txs)))

	for _, tx := range b.txs {
		t, ok := tx.(*Tx)
		if !ok {
			w.Err = errors.Errorf("transaction %s is not serializable", tx.Hash())
			return
		}

		t.EncodeBinary(w)
	}
}

// DecodeBinary implements io.Serializable interface. Identity fields are
// recomputed from the decoded transactions rather than trusted from the wire.
func (b *TxBatch) DecodeBinary(r *io.BinReader) {
	n := r.ReadVarUint()

	b.txs = nil
	for i := uint64(0); i < n && r.Err == nil; i++ {
		tx := new(Tx)
		tx.DecodeBinary(r)
		b.txs = append(b.txs, tx)
	}

	if r.Err == nil {
		if len(b.txs) == 0 {
			r.Err = errors.New("batch must contain at least one transaction")
			return
		}

		b.seal()
	}
}

// Equal returns true iff both batches share the reduced hash and carry
// identical signature sets on every transaction. Signature order within a
// transaction is not significant.
func Equal(a, b Batch) bool {
	if a.ReducedHash() != b.ReducedHash() {
		return false
	}

	atx, btx := a.Transactions(), b.Transactions()
	if len(atx) != len(btx) {
		return false
	}

	for i := range atx {
		if !sameSignatures(atx[i].Signatures(), btx[i].Signatures()) {
			return false
		}
	}

	return true
}

func sameSignatures(a, b []Signature) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		found := false
		for j := range b {
			if bytes.Equal(a[i].PublicKey, b[j].PublicKey) {
				found = bytes.Equal(a[i].Data, b[j].Data)
				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}
