package ordering

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asagiri-dev/mst/batch"
)

func TestQueueFIFO(t *testing.T) {
	q := newQueue(10)

	for i := byte(0); i < 5; i++ {
		require.NoError(t, q.push(batch.NewTx([]byte{i}, 1, uint64(i))))
	}

	txs := q.drain(3)
	require.Len(t, txs, 3)
	for i := byte(0); i < 3; i++ {
		require.Equal(t, []byte{i}, txs[i].Payload())
	}

	txs = q.drain(10)
	require.Len(t, txs, 2)
	require.Equal(t, []byte{3}, txs[0].Payload())

	require.Empty(t, q.drain(10))
}

func TestQueueFull(t *testing.T) {
	q := newQueue(2)

	require.NoError(t, q.push(batch.NewTx([]byte("a"), 1, 0)))
	require.NoError(t, q.push(batch.NewTx([]byte("b"), 1, 0)))
	require.ErrorIs(t, q.push(batch.NewTx([]byte("c"), 1, 0)), ErrQueueFull)

	q.drain(1)
	require.NoError(t, q.push(batch.NewTx([]byte("c"), 1, 0)))
}

func TestQueueConcurrentProducers(t *testing.T) {
	const (
		producers = 8
		perWorker = 100
	)

	q := newQueue(producers * perWorker)

	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				require.NoError(t, q.push(batch.NewTx([]byte{byte(id), byte(j)}, 1, 0)))
			}
		}(i)
	}
	wg.Wait()

	var total int
	for {
		txs := q.drain(64)
		if len(txs) == 0 {
			break
		}
		total += len(txs)
		require.LessOrEqual(t, len(txs), 64)
	}

	require.Equal(t, producers*perWorker, total)
}
