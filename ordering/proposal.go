package ordering

import (
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/pkg/errors"

	"github.com/asagiri-dev/mst/batch"
)

// Proposal is an ordered bundle of fully-signed transactions stamped with a
// height assigned by the producing node. Heights emitted by one node are
// strictly increasing.
type Proposal struct {
	height    uint64
	createdAt uint64
	txs       []batch.Transaction
}

var _ io.Serializable = (*Proposal)(nil)

// NewProposal returns a proposal of the given transactions.
func NewProposal(height, createdAt uint64, txs []batch.Transaction) *Proposal {
	return &Proposal{
		height:    height,
		createdAt: createdAt,
		txs:       txs,
	}
}

// Height returns the sequence number assigned by the producing node.
func (p *Proposal) Height() uint64 {
	return p.height
}

// CreatedAt returns proposal creation time in milliseconds since epoch.
func (p *Proposal) CreatedAt() uint64 {
	return p.createdAt
}

// Transactions returns the transactions in intake order.
func (p *Proposal) Transactions() []batch.Transaction {
	return p.txs
}

// EncodeBinary implements io.Serializable interface. Only proposals of the
// default transaction type can be encoded.
func (p Proposal) EncodeBinary(w *io.BinWriter) {
	w.WriteU64LE(p.height)
	w.WriteU64LE(p.createdAt)
	w.WriteVarUint(uint64(len(p.txs)))

	for _, tx := range p.txs {
		t, ok := tx.(*batch.Tx)
		if !ok {
			w.Err = errors.Errorf("transaction %s is not serializable", tx.Hash())
			return
		}

		t.EncodeBinary(w)
	}
}

// DecodeBinary implements io.Serializable interface.
func (p *Proposal) DecodeBinary(r *io.BinReader) {
	p.height = r.ReadU64LE()
	p.createdAt = r.ReadU64LE()

	n := r.ReadVarUint()
	p.txs = nil

	for i := uint64(0); i < n && r.Err == nil; i++ {
		tx := new(batch.Tx)
		tx.DecodeBinary(r)
		p.txs = append(p.txs, tx)
	}
}
