package ordering

import (
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/stretchr/testify/require"

	"github.com/asagiri-dev/mst/batch"
)

func TestProposalCodec(t *testing.T) {
	tx1 := batch.NewTx([]byte("a"), 1, 100)
	tx1.AddSignature([]byte("sig"), []byte("pk"))
	tx2 := batch.NewTx([]byte("b"), 2, 200)

	p := NewProposal(7, 12345, []batch.Transaction{tx1, tx2})

	w := io.NewBufBinWriter()
	p.EncodeBinary(w.BinWriter)
	require.NoError(t, w.Err)

	restored := new(Proposal)
	r := io.NewBinReaderFromBuf(w.Bytes())
	restored.DecodeBinary(r)
	require.NoError(t, r.Err)

	require.EqualValues(t, 7, restored.Height())
	require.EqualValues(t, 12345, restored.CreatedAt())
	require.Len(t, restored.Transactions(), 2)
	require.Equal(t, tx1.Hash(), restored.Transactions()[0].Hash())
	require.Len(t, restored.Transactions()[0].Signatures(), 1)
	require.Equal(t, tx2.Hash(), restored.Transactions()[1].Hash())
}
