package ordering

import (
	"context"

	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/pkg/errors"

	"github.com/asagiri-dev/mst/batch"
)

type (
	// PeerStub is the outbound side of a consensus peer. Implementations
	// wrap the actual transport client; OnProposal is expected to be
	// non-blocking for the caller apart from the network round-trip
	// itself, dispatch happens on a goroutine per peer.
	PeerStub interface {
		OnProposal(ctx context.Context, p *Proposal) error
	}

	// Decoder converts wire bytes received from a client into a model
	// transaction. Signature verification happens in the transport layer
	// before the bytes reach the service.
	Decoder interface {
		FromWire(data []byte) (batch.Transaction, error)
	}

	// WireDecoder is the default Decoder over the binary
	// transaction codec.
	WireDecoder struct{}
)

var _ Decoder = (*WireDecoder)(nil)

// FromWire implements Decoder interface.
func (WireDecoder) FromWire(data []byte) (batch.Transaction, error) {
	if len(data) == 0 {
		return nil, errors.New("empty transaction")
	}

	tx := new(batch.Tx)

	r := io.NewBinReaderFromBuf(data)
	tx.DecodeBinary(r)
	if r.Err != nil {
		return nil, errors.Wrap(r.Err, "can't decode transaction")
	}

	return tx, nil
}
