// Package mst implements the multi-signature transaction state: a set of
// transaction batches accumulating signatures from peers until a completion
// predicate is satisfied or the batch expires.
package mst

import (
	"container/heap"
	"sort"

	"github.com/asagiri-dev/mst/batch"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"go.uber.org/zap"
)

type (
	// State is a set of batches keyed by reduced hash, with a time index
	// for expiry. It is not safe for concurrent use: the owner serializes
	// access. All operations are synchronous and total.
	State struct {
		completer Completer
		members   map[util.Uint256]batch.Batch
		index     *expiryIndex
		log       *zap.Logger
	}

	// Option configures a State.
	Option func(*State)

	indexEntry struct {
		createdAt uint64
		hash      util.Uint256
	}

	// expiryIndex is a min-heap of batch identities ordered by the
	// creation time captured at push. Entries of batches which have
	// already left the member set are dropped lazily at pop time.
	expiryIndex []indexEntry
)

// WithLogger sets the logger used for diagnostics and invariant failures.
func WithLogger(log *zap.Logger) Option {
	return func(s *State) {
		s.log = log
	}
}

// New returns an empty state sharing the given completer.
func New(completer Completer, opts ...Option) *State {
	s := &State{
		completer: completer,
		members:   make(map[util.Uint256]batch.Batch),
		index:     new(expiryIndex),
		log:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Insert folds a single batch into the state. The returned diff state
// contains only batches that changed observably: a newly stored batch, a
// batch which got new signatures, or a just-completed batch. The second
// return value is true iff the batch completed and was evicted.
func (s *State) Insert(b batch.Batch) (*State, bool) {
	diff := New(s.completer, WithLogger(s.log))
	completed := s.insertOne(diff, b)

	return diff, completed
}

// Merge folds every batch of other into s and returns the union of the
// produced diffs. The fold order is unspecified, the final state does not
// depend on it.
func (s *State) Merge(other *State) *State {
	diff := New(s.completer, WithLogger(s.log))
	for _, b := range other.members {
		s.insertOne(diff, b)
	}

	return diff
}

// Difference returns a new state holding the members of s whose reduced
// hash is not present in other. Signatures are not compared.
func (s *State) Difference(other *State) *State {
	res := New(s.completer, WithLogger(s.log))
	for h, b := range s.members {
		if _, ok := other.members[h]; !ok {
			res.rawInsert(b.Clone())
		}
	}

	return res
}

// Equal returns true iff both states contain the same batches under full
// structural equality: same reduced hashes and same signature sets.
func (s *State) Equal(other *State) bool {
	lhs, rhs := s.Batches(), other.Batches()
	if len(lhs) != len(rhs) {
		return false
	}

	for i := range lhs {
		if !batch.Equal(lhs[i], rhs[i]) {
			return false
		}
	}

	return true
}

// Batches returns all members sorted ascending by hex of the reduced hash.
// Stable ordering is what makes state comparison deterministic.
func (s *State) Batches() []batch.Batch {
	res := make([]batch.Batch, 0, len(s.members))
	for _, b := range s.members {
		res = append(res, b)
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].ReducedHash().String() < res[j].ReducedHash().String()
	})

	return res
}

// EraseByTime removes every member considered expired at the given
// millisecond timestamp and returns them as a state, so that callers may
// notify batch originators.
func (s *State) EraseByTime(now uint64) *State {
	out := New(s.completer, WithLogger(s.log))

	for s.index.Len() > 0 {
		top := (*s.index)[0]

		b, ok := s.members[top.hash]
		if !ok {
			// Entry of a batch which left on completion or difference.
			heap.Pop(s.index)
			continue
		}

		if !s.completer.IsExpired(b, now) {
			break
		}

		heap.Pop(s.index)
		delete(s.members, top.hash)
		out.rawInsert(b)

		s.log.Debug("batch expired",
			zap.Stringer("reduced_hash", top.hash),
			zap.Uint64("created_at", top.createdAt),
			zap.Uint64("now", now))
	}

	return out
}

// IsEmpty returns true iff the state has no members.
func (s *State) IsEmpty() bool {
	return len(s.members) == 0
}

// Len returns the number of members.
func (s *State) Len() int {
	return len(s.members)
}

// Contains returns true iff a member with the given reduced hash is present.
func (s *State) Contains(h util.Uint256) bool {
	_, ok := s.members[h]
	return ok
}

// EncodeBinary implements io.Serializable interface. Only batches are
// encoded: the receiving side supplies its own completer.
func (s State) EncodeBinary(w *io.BinWriter) {
	batches := s.Batches()
	w.WriteVarUint(uint64(len(batches)))

	for _, b := range batches {
		sb, ok := b.(io.Serializable)
		if !ok {
			w.Err = errNotSerializable(b.ReducedHash())
			return
		}

		sb.EncodeBinary(w)
	}
}

// DecodeBinary implements io.Serializable interface.
func (s *State) DecodeBinary(r *io.BinReader) {
	n := r.ReadVarUint()

	for i := uint64(0); i < n && r.Err == nil; i++ {
		b := new(batch.TxBatch)
		b.DecodeBinary(r)

		if r.Err == nil {
			s.rawInsert(b)
		}
	}
}

func (s *State) insertOne(out *State, b batch.Batch) bool {
	found, ok := s.members[b.ReducedHash()]
	if !ok {
		// First observation: the stored batch reflects only the
		// incoming signatures.
		stored := b.Clone()
		s.rawInsert(stored)
		out.rawInsert(stored.Clone())

		return false
	}

	added := s.mergeSignatures(found, b)

	if s.completer.IsComplete(found) {
		s.rawErase(found.ReducedHash())
		out.rawInsert(found)

		s.log.Info("batch completed",
			zap.Stringer("reduced_hash", found.ReducedHash()),
			zap.Int("txs", len(found.Transactions())))

		return true
	}

	if added {
		out.rawInsert(found.Clone())
	}

	return false
}

// mergeSignatures copies donor signatures into target transaction by
// transaction. Both batches share a reduced hash, so their transaction
// lists must match positionally; a mismatch means peer misbehavior or a
// broken hash and is fatal.
func (s *State) mergeSignatures(target, donor batch.Batch) bool {
	ttx, dtx := target.Transactions(), donor.Transactions()
	if len(ttx) != len(dtx) {
		s.log.Panic("batches with equal reduced hash have different transaction count",
			zap.Stringer("reduced_hash", target.ReducedHash()),
			zap.Int("stored", len(ttx)),
			zap.Int("incoming", len(dtx)))
	}

	added := false
	for i := range dtx {
		for _, sig := range dtx[i].Signatures() {
			added = ttx[i].AddSignature(sig.Data, sig.PublicKey) || added
		}
	}

	return added
}

// rawInsert is the single mutation point adding a batch to both the member
// set and the expiry index. Re-inserting a present hash replaces the member
// without duplicating its index entry.
func (s *State) rawInsert(b batch.Batch) {
	_, present := s.members[b.ReducedHash()]
	s.members[b.ReducedHash()] = b

	if !present {
		heap.Push(s.index, indexEntry{
			createdAt: b.CreatedAt(),
			hash:      b.ReducedHash(),
		})
	}
}

// rawErase removes a member; its index entry is dropped lazily.
func (s *State) rawErase(h util.Uint256) {
	delete(s.members, h)
}

// liveIndexLen counts index entries whose batch is still a member.
func (s *State) liveIndexLen() int {
	n := 0
	for _, e := range *s.index {
		if _, ok := s.members[e.hash]; ok {
			n++
		}
	}

	return n
}

// Len implements heap.Interface.
func (idx expiryIndex) Len() int { return len(idx) }

// Less implements heap.Interface.
func (idx expiryIndex) Less(i, j int) bool { return idx[i].createdAt < idx[j].createdAt }

// Swap implements heap.Interface.
func (idx expiryIndex) Swap(i, j int) { idx[i], idx[j] = idx[j], idx[i] }

// Push implements heap.Interface.
func (idx *expiryIndex) Push(x any) { *idx = append(*idx, x.(indexEntry)) }

// Pop implements heap.Interface.
func (idx *expiryIndex) Pop() any {
	old := *idx
	n := len(old)
	e := old[n-1]
	*idx = old[:n-1]

	return e
}
