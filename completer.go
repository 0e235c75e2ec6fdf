package mst

import (
	"time"

	"github.com/asagiri-dev/mst/batch"
)

type (
	// Completer is an oracle deciding when a batch has collected enough
	// signatures to enter consensus and when it is too old to keep.
	// The state performs no reasoning about quorum thresholds or time
	// units on its own.
	Completer interface {
		// IsComplete returns true iff every transaction in the batch has
		// collected its required signature quorum.
		IsComplete(b batch.Batch) bool
		// IsExpired returns true iff the batch is stale at the given
		// millisecond timestamp.
		IsExpired(b batch.Batch, now uint64) bool
	}

	// DefaultCompleter completes batches by per-transaction quorum and
	// expires them after a fixed TTL counted from batch creation.
	DefaultCompleter struct {
		ttl uint64
	}
)

// DefaultExpirationTime is the TTL applied by NewDefaultCompleter
// when none is configured.
const DefaultExpirationTime = 24 * time.Hour

var _ Completer = (*DefaultCompleter)(nil)

// NewDefaultCompleter returns a completer with the given batch TTL.
// Non-positive ttl falls back to DefaultExpirationTime.
func NewDefaultCompleter(ttl time.Duration) *DefaultCompleter {
	if ttl <= 0 {
		ttl = DefaultExpirationTime
	}

	return &DefaultCompleter{
		ttl: uint64(ttl / time.Millisecond),
	}
}

// IsComplete implements Completer interface.
func (c *DefaultCompleter) IsComplete(b batch.Batch) bool {
	for _, tx := range b.Transactions() {
		if uint32(len(tx.Signatures())) < tx.Quorum() {
			return false
		}
	}

	return true
}

// IsExpired implements Completer interface.
func (c *DefaultCompleter) IsExpired(b batch.Batch, now uint64) bool {
	return now >= b.CreatedAt() && now-b.CreatedAt() >= c.ttl
}
