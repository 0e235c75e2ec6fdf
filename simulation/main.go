package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"

	"github.com/asagiri-dev/mst"
	"github.com/asagiri-dev/mst/batch"
	"github.com/asagiri-dev/mst/crypto"
	"github.com/asagiri-dev/mst/ordering"
)

type (
	// simNode is one node of the in-process cluster: it originates
	// batches, signs and gossips partial batches of the others and runs
	// its own ordering service fed by completed batches.
	simNode struct {
		id      int
		log     *zap.Logger
		key     crypto.PrivateKey
		pub     crypto.PublicKey
		pubData []byte
		addr    string

		state   *mst.State
		svc     *ordering.Service
		gossip  chan *mst.State
		cluster []*simNode

		seq int
	}

	// loopbackPeer delivers proposals of one node to another in-process.
	loopbackPeer struct {
		to *simNode
	}
)

const defaultChanSize = 100

var (
	nodebug  = flag.Bool("nodebug", false, "disable debug logging")
	count    = flag.Int("count", 4, "node count")
	quorum   = flag.Int("quorum", 3, "signatures required per transaction")
	batchGap = flag.Duration("batchgap", time.Second, "pause between originated batches")
	ttl      = flag.Duration("ttl", 30*time.Second, "batch expiration time")
	maxSize  = flag.Int("maxsize", 10, "max transactions per proposal")
	delay    = flag.Duration("delay", 2*time.Second, "proposal delay")
	duration = flag.Duration("duration", 20*time.Second, "duration of simulation")
)

func main() {
	flag.Parse()

	initDebugger()

	logger := initLogger()
	nodes := make([]*simNode, *count)

	initNodes(nodes, logger)

	ctx, cancel := initContext(*duration)
	defer cancel()

	wg := new(sync.WaitGroup)
	wg.Add(len(nodes))

	for i := range nodes {
		go func(i int) {
			defer wg.Done()

			nodes[i].Run(ctx)
		}(i)
	}

	wg.Wait()
}

// Run implements the node event loop: originate a batch every batchgap,
// merge incoming gossip and expire stale batches.
func (n *simNode) Run(ctx context.Context) {
	n.svc.Start()
	defer n.svc.Stop()

	originate := time.NewTicker(*batchGap)
	defer originate.Stop()

	expire := time.NewTicker(*ttl / 2)
	defer expire.Stop()

	for {
		select {
		case <-ctx.Done():
			n.log.Info("context cancelled")
			return
		case <-originate.C:
			n.originateBatch()
		case incoming := <-n.gossip:
			n.onGossip(incoming)
		case <-expire.C:
			expired := n.state.EraseByTime(nowMs())
			if !expired.IsEmpty() {
				n.log.Info("expired batches", zap.Int("count", expired.Len()))
			}
		}
	}
}

// originateBatch builds a fresh batch signed only by this node and gossips
// the resulting diff.
func (n *simNode) originateBatch() {
	n.seq++

	tx := batch.NewTx(
		[]byte(fmt.Sprintf("node-%d/seq-%d", n.id, n.seq)),
		uint32(*quorum),
		nowMs(),
	)

	b, err := batch.New(tx)
	if err != nil {
		n.log.Error("can't create batch", zap.Error(err))
		return
	}

	n.sign(b)

	diff, completed := n.state.Insert(b)
	if completed {
		n.submitCompleted(diff)
		return
	}

	n.broadcast(diff)
}

// onGossip signs every batch of the incoming state, merges it and
// forwards whatever changed. Completed batches go to the ordering service.
func (n *simNode) onGossip(incoming *mst.State) {
	outgoing := mst.New(mst.NewDefaultCompleter(*ttl), mst.WithLogger(n.log))

	for _, b := range incoming.Batches() {
		n.sign(b)

		diff, completed := n.state.Insert(b)
		if completed {
			n.submitCompleted(diff)
			continue
		}

		outgoing.Merge(diff)
	}

	if !outgoing.IsEmpty() {
		n.broadcast(outgoing)
	}
}

// sign adds this node's signature to every transaction of the batch.
func (n *simNode) sign(b batch.Batch) {
	for _, tx := range b.Transactions() {
		h := tx.Hash()

		sig, err := n.key.Sign(h[:])
		if err != nil {
			n.log.Error("can't sign transaction", zap.Error(err))
			return
		}

		tx.AddSignature(sig, n.pubData)
	}
}

// submitCompleted feeds transactions of completed batches into the local
// ordering service through the wire codec, as a real ingress would.
func (n *simNode) submitCompleted(diff *mst.State) {
	for _, b := range diff.Batches() {
		n.log.Info("batch completed", zap.Stringer("reduced_hash", b.ReducedHash()))

		for _, tx := range b.Transactions() {
			stx, ok := tx.(*batch.Tx)
			if !ok {
				continue
			}

			w := io.NewBufBinWriter()
			stx.EncodeBinary(w.BinWriter)
			if w.Err != nil {
				n.log.Error("can't encode transaction", zap.Error(w.Err))
				continue
			}

			if err := n.svc.SendTransaction(context.Background(), w.Bytes()); err != nil {
				n.log.Warn("ordering rejected transaction", zap.Error(err))
			}
		}
	}
}

func (n *simNode) broadcast(diff *mst.State) {
	for i, node := range n.cluster {
		if i == n.id {
			continue
		}

		// Every receiver gets its own copy: states are single-owner.
		cp := mst.New(mst.NewDefaultCompleter(*ttl), mst.WithLogger(node.log))
		cp.Merge(diff)

		select {
		case node.gossip <- cp:
		default:
			n.log.Warn("can't gossip state: channel is full")
		}
	}
}

// OnProposal implements ordering.PeerStub interface.
func (p *loopbackPeer) OnProposal(_ context.Context, prop *ordering.Proposal) error {
	p.to.log.Info("received proposal",
		zap.Uint64("height", prop.Height()),
		zap.Int("txs", len(prop.Transactions())))

	return nil
}

func initNodes(nodes []*simNode, log *zap.Logger) {
	for i := range nodes {
		key, pub := crypto.Generate(rand.Reader)
		if key == nil {
			panic("can't generate key pair")
		}

		pubData, err := pub.MarshalBinary()
		if err != nil {
			panic(err)
		}

		id, err := crypto.PeerID(pub)
		if err != nil {
			panic(err)
		}

		nodes[i] = &simNode{
			id:      i,
			log:     log.With(zap.Int("id", i)),
			key:     key,
			pub:     pub,
			pubData: pubData,
			addr:    id.String(),
			state:   mst.New(mst.NewDefaultCompleter(*ttl), mst.WithLogger(log.With(zap.Int("id", i)))),
			gossip:  make(chan *mst.State, defaultChanSize),
			cluster: nodes,
		}
	}

	sortNodes(nodes)

	for i := range nodes {
		opts := []ordering.Option{
			ordering.WithLogger(nodes[i].log),
			ordering.WithMaxSize(*maxSize),
			ordering.WithDelay(*delay),
		}

		for j := range nodes {
			if j != i {
				opts = append(opts, ordering.WithPeer(nodes[j].addr, &loopbackPeer{to: nodes[j]}))
			}
		}

		nodes[i].svc = ordering.New(opts...)
		if nodes[i].svc == nil {
			panic("can't initialize ordering service")
		}
	}
}

// sortNodes gives the cluster a deterministic peer order regardless of key
// generation order.
func sortNodes(nodes []*simNode) {
	sort.Slice(nodes, func(i, j int) bool {
		return murmur3.Sum64(nodes[i].pubData) < murmur3.Sum64(nodes[j].pubData)
	})

	for i := range nodes {
		nodes[i].id = i
		nodes[i].log = nodes[i].log.With(zap.Int("sorted", i))
	}
}

func nowMs() uint64 {
	return uint64(time.Now().UnixMilli())
}

// initDebugger initializes pprof debug facilities.
func initDebugger() {
	r := http.NewServeMux()
	r.HandleFunc("/debug/pprof/", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)

	go func() {
		err := http.ListenAndServe("localhost:6060", r)
		if err != nil {
			panic(err)
		}
	}()
}

// initLogger initializes new logger.
func initLogger() *zap.Logger {
	if *nodebug {
		return zap.L()
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't init logger")
	}

	return logger
}

// initContext creates new context which will be cancelled by Ctrl+C.
func initContext(d time.Duration) (ctx context.Context, cancel func()) {
	// exit by Ctrl+C
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel = newContext(d)

	go func() {
		<-c
		cancel()
	}()

	return ctx, cancel
}

func newContext(d time.Duration) (context.Context, func()) {
	if d != 0 {
		return context.WithTimeout(context.Background(), d)
	}

	return context.WithCancel(context.Background())
}
