package mst

import (
	"testing"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"

	"github.com/asagiri-dev/mst/batch"
)

const testTTL = 10 * time.Second

func TestInsertNewBatch(t *testing.T) {
	s := New(NewDefaultCompleter(testTTL))
	b := signedBatch(t, 2, 0, "pk1")

	diff, completed := s.Insert(b)
	require.False(t, completed)
	require.Equal(t, 1, diff.Len())
	require.True(t, s.Contains(b.ReducedHash()))

	// The stored copy is independent from the caller's batch.
	b.Transactions()[0].AddSignature([]byte("x"), []byte("pk9"))
	require.Len(t, s.Batches()[0].Transactions()[0].Signatures(), 1)
}

func TestMergeSignaturesCompletes(t *testing.T) {
	s := New(NewDefaultCompleter(testTTL))

	diff, completed := s.Insert(signedBatch(t, 2, 0, "pk1"))
	require.False(t, completed)
	require.Equal(t, 1, diff.Len())

	diff, completed = s.Insert(signedBatch(t, 2, 0, "pk2"))
	require.True(t, completed)
	require.Equal(t, 1, diff.Len())

	merged := diff.Batches()[0]
	require.Len(t, merged.Transactions()[0].Signatures(), 2)

	// Completion evicts.
	require.True(t, s.IsEmpty())
	require.Empty(t, s.Batches())
}

func TestDuplicateSignature(t *testing.T) {
	s := New(NewDefaultCompleter(testTTL))

	_, completed := s.Insert(signedBatch(t, 2, 0, "pk1"))
	require.False(t, completed)

	diff, completed := s.Insert(signedBatch(t, 2, 0, "pk1"))
	require.False(t, completed)
	require.True(t, diff.IsEmpty())

	require.Len(t, s.Batches()[0].Transactions()[0].Signatures(), 1)
}

func TestSignatureMonotonicity(t *testing.T) {
	s := New(NewDefaultCompleter(testTTL))

	s.Insert(signedBatch(t, 3, 0, "pk1"))
	s.Insert(signedBatch(t, 3, 0, "pk2"))
	s.Insert(signedBatch(t, 3, 0, "pk1"))

	sigs := s.Batches()[0].Transactions()[0].Signatures()
	require.Len(t, sigs, 2)

	keys := make(map[string]bool)
	for _, sig := range sigs {
		keys[string(sig.PublicKey)] = true
	}
	require.True(t, keys["pk1"] && keys["pk2"])
}

func TestEraseByTime(t *testing.T) {
	ttlMs := uint64(testTTL / time.Millisecond)
	s := New(NewDefaultCompleter(testTTL))

	b1 := payloadBatch(t, "b1", 2, 0)
	b2 := payloadBatch(t, "b2", 2, 5000)
	s.Insert(b1)
	s.Insert(b2)

	expired := s.EraseByTime(ttlMs + 2000)
	require.Equal(t, 1, expired.Len())
	require.Equal(t, b1.ReducedHash(), expired.Batches()[0].ReducedHash())

	require.Equal(t, 1, s.Len())
	require.True(t, s.Contains(b2.ReducedHash()))

	// Expiry is total: nothing left is expired at that instant.
	c := NewDefaultCompleter(testTTL)
	for _, m := range s.Batches() {
		require.False(t, c.IsExpired(m, ttlMs+2000))
	}

	expired = s.EraseByTime(ttlMs + 6000)
	require.Equal(t, 1, expired.Len())
	require.True(t, s.IsEmpty())
}

func TestDifference(t *testing.T) {
	s := New(NewDefaultCompleter(testTTL))
	other := New(NewDefaultCompleter(testTTL))

	b1 := payloadBatch(t, "b1", 2, 0)
	b2 := payloadBatch(t, "b2", 2, 0)
	b3 := payloadBatch(t, "b3", 2, 0)

	s.Insert(b1)
	s.Insert(b2)
	s.Insert(b3)
	other.Insert(b2)

	res := s.Difference(other)
	require.Equal(t, 2, res.Len())
	require.True(t, res.Contains(b1.ReducedHash()))
	require.True(t, res.Contains(b3.ReducedHash()))
	require.False(t, res.Contains(b2.ReducedHash()))

	// Source state is untouched.
	require.Equal(t, 3, s.Len())
}

func TestMergeIdentity(t *testing.T) {
	s := New(NewDefaultCompleter(testTTL))
	s.Insert(signedBatch(t, 2, 0, "pk1"))
	s.Insert(payloadBatch(t, "other", 2, 100))

	empty := New(NewDefaultCompleter(testTTL))
	empty.Merge(s)
	require.True(t, empty.Equal(s))

	before := s.Batches()
	diff := s.Merge(New(NewDefaultCompleter(testTTL)))
	require.True(t, diff.IsEmpty())
	require.Equal(t, len(before), s.Len())
}

func TestInsertCommutative(t *testing.T) {
	b1 := signedBatch(t, 3, 0, "pk1")
	b2 := payloadBatch(t, "other", 3, 100)

	a := New(NewDefaultCompleter(testTTL))
	a.Insert(b1)
	a.Insert(b2)

	b := New(NewDefaultCompleter(testTTL))
	b.Insert(b2)
	b.Insert(b1)

	require.True(t, a.Equal(b))

	lhs, rhs := a.Batches(), b.Batches()
	require.Equal(t, len(lhs), len(rhs))
	for i := range lhs {
		require.Equal(t, lhs[i].ReducedHash(), rhs[i].ReducedHash())
	}
}

func TestMergeDiffUnion(t *testing.T) {
	a := New(NewDefaultCompleter(testTTL))
	b := New(NewDefaultCompleter(testTTL))

	b1 := payloadBatch(t, "b1", 2, 0)
	b2 := payloadBatch(t, "b2", 2, 0)
	b3 := payloadBatch(t, "b3", 2, 0)

	a.Insert(b1)
	a.Insert(b2)
	b.Insert(b2)
	b.Insert(b3)

	diff := a.Merge(b)

	// Union of members, b2 unchanged so not part of the diff.
	require.Equal(t, 3, a.Len())
	require.True(t, a.Contains(b3.ReducedHash()))
	require.Equal(t, 1, diff.Len())
	require.True(t, diff.Contains(b3.ReducedHash()))
}

func TestStateEqual(t *testing.T) {
	a := New(NewDefaultCompleter(testTTL))
	b := New(NewDefaultCompleter(testTTL))

	a.Insert(signedBatch(t, 3, 0, "pk1"))
	b.Insert(signedBatch(t, 3, 0, "pk1"))
	require.True(t, a.Equal(b))

	// Same members, different signature sets: not equal.
	b.Insert(signedBatch(t, 3, 0, "pk2"))
	require.False(t, a.Equal(b))
}

func TestHeapSetCoherence(t *testing.T) {
	s := New(NewDefaultCompleter(testTTL))

	s.Insert(signedBatch(t, 2, 0, "pk1"))
	s.Insert(payloadBatch(t, "b2", 2, 2000))
	s.Insert(payloadBatch(t, "b3", 2, 4000))
	require.Equal(t, s.Len(), s.liveIndexLen())

	// Completion leaves a lazy index entry behind.
	_, completed := s.Insert(signedBatch(t, 2, 0, "pk2"))
	require.True(t, completed)
	require.Equal(t, s.Len(), s.liveIndexLen())

	s.EraseByTime(uint64(testTTL/time.Millisecond) + 3000)
	require.Equal(t, s.Len(), s.liveIndexLen())
	require.Equal(t, 1, s.Len())
}

func TestStateCodec(t *testing.T) {
	s := New(NewDefaultCompleter(testTTL))
	s.Insert(signedBatch(t, 2, 0, "pk1"))
	s.Insert(payloadBatch(t, "b2", 2, 2000))

	w := io.NewBufBinWriter()
	s.EncodeBinary(w.BinWriter)
	require.NoError(t, w.Err)

	restored := New(NewDefaultCompleter(testTTL))
	r := io.NewBinReaderFromBuf(w.Bytes())
	restored.DecodeBinary(r)
	require.NoError(t, r.Err)

	require.True(t, s.Equal(restored))
	require.Equal(t, restored.Len(), restored.liveIndexLen())
}

func TestMismatchedBatchesPanic(t *testing.T) {
	s := New(NewDefaultCompleter(testTTL))

	h := util.Uint256{0x42}
	s.Insert(&forgedBatch{hash: h, txs: []batch.Transaction{
		batch.NewTx([]byte("a"), 2, 0),
	}})

	require.Panics(t, func() {
		s.Insert(&forgedBatch{hash: h, txs: []batch.Transaction{
			batch.NewTx([]byte("a"), 2, 0),
			batch.NewTx([]byte("b"), 2, 0),
		}})
	})
}

// forgedBatch carries an arbitrary reduced hash, modelling a misbehaving
// peer whose batch content does not match its identity.
type forgedBatch struct {
	hash util.Uint256
	txs  []batch.Transaction
}

func (f *forgedBatch) ReducedHash() util.Uint256 { return f.hash }

func (f *forgedBatch) Transactions() []batch.Transaction { return f.txs }

func (f *forgedBatch) CreatedAt() uint64 { return 0 }

func (f *forgedBatch) Clone() batch.Batch {
	txs := make([]batch.Transaction, len(f.txs))
	for i := range f.txs {
		txs[i] = f.txs[i].Clone()
	}

	return &forgedBatch{hash: f.hash, txs: txs}
}

// signedBatch returns the canonical two-transaction test batch carrying one
// signature from each listed key on every transaction.
func signedBatch(t *testing.T, quorum uint32, createdAt uint64, keys ...string) batch.Batch {
	b := payloadBatch(t, "transfer", quorum, createdAt)
	for _, tx := range b.Transactions() {
		for _, k := range keys {
			tx.AddSignature([]byte("sig_"+k), []byte(k))
		}
	}

	return b
}

func payloadBatch(t *testing.T, payload string, quorum uint32, createdAt uint64) batch.Batch {
	b, err := batch.New(
		batch.NewTx([]byte(payload), quorum, createdAt),
		batch.NewTx([]byte(payload+"_2"), quorum, createdAt),
	)
	require.NoError(t, err)

	return b
}
