package ordering

import (
	"github.com/pkg/errors"

	"github.com/asagiri-dev/mst/batch"
)

// ErrQueueFull is returned on enqueue when the intake queue is at capacity.
var ErrQueueFull = errors.New("transaction queue is full")

// queue is a bounded multi-producer single-consumer FIFO of transactions
// waiting to be put into a proposal. Enqueue never blocks; the single
// consumer is the service loop.
type queue struct {
	ch chan batch.Transaction
}

func newQueue(capacity int) *queue {
	return &queue{
		ch: make(chan batch.Transaction, capacity),
	}
}

// push enqueues tx, failing with ErrQueueFull at capacity.
func (q *queue) push(tx batch.Transaction) error {
	select {
	case q.ch <- tx:
		return nil
	default:
		return ErrQueueFull
	}
}

// drain pops up to max transactions preserving FIFO order. It never blocks:
// an empty queue yields an empty slice.
func (q *queue) drain(max int) []batch.Transaction {
	var txs []batch.Transaction

	for len(txs) < max {
		select {
		case tx := <-q.ch:
			txs = append(txs, tx)
		default:
			return txs
		}
	}

	return txs
}

// size is a point-in-time queue length, only used for the overflow signal.
func (q *queue) size() int {
	return len(q.ch)
}
