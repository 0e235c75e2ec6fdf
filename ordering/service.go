// Package ordering implements the ordering service: a concurrent intake
// queue of fully-signed transactions drained at a fixed cadence, or as soon
// as a proposal's worth has accumulated, into height-stamped proposals
// broadcast to the configured peer set.
package ordering

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/asagiri-dev/mst/batch"
	"github.com/asagiri-dev/mst/timer"
)

// Service receives transactions from clients and peers, buffers them and
// periodically publishes proposals. A single loop goroutine owns the timer
// and the height counter; SendTransaction may be called from any number of
// transport goroutines concurrently.
type Service struct {
	Config

	queue    *queue
	height   uint64
	full     chan struct{}
	quit     chan struct{}
	loopDone chan struct{}
	inflight sync.WaitGroup
	down     *atomic.Bool
	started  *atomic.Bool
}

// New returns a new ordering service with the provided options and nil if
// some of the options are invalid.
func New(options ...Option) *Service {
	cfg := defaultConfig()

	for _, option := range options {
		option(cfg)
	}

	if err := checkConfig(cfg); err != nil {
		return nil
	}

	return &Service{
		Config:   *cfg,
		queue:    newQueue(2 * cfg.MaxSize),
		height:   cfg.InitialHeight,
		full:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
		down:     atomic.NewBool(false),
		started:  atomic.NewBool(false),
	}
}

// Start arms the proposal timer and launches the service loop.
func (s *Service) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	s.Timer.Reset(timer.Tick{Height: s.height + 1}, s.Delay)
	go s.loop()
}

// SendTransaction is the transport ingress. It converts wire bytes into a
// transaction and enqueues it, mapping every failure to a gRPC status:
// InvalidArgument on malformed input, ResourceExhausted when the queue is
// at capacity and Unavailable during shutdown. A nil return means the
// transaction was accepted for ordering.
func (s *Service) SendTransaction(ctx context.Context, wire []byte) error {
	if err := ctx.Err(); err != nil {
		return status.FromContextError(err).Err()
	}

	if s.down.Load() {
		droppedTransactions.WithLabelValues(dropReasonShutdown).Inc()
		return status.Error(codes.Unavailable, "ordering service is shutting down")
	}

	tx, err := s.Decoder.FromWire(wire)
	if err != nil {
		droppedTransactions.WithLabelValues(dropReasonDecode).Inc()
		s.Logger.Debug("rejecting malformed transaction", zap.Error(err))

		return status.Errorf(codes.InvalidArgument, "malformed transaction: %v", err)
	}

	if err := s.OnTransaction(tx); err != nil {
		droppedTransactions.WithLabelValues(dropReasonFull).Inc()
		s.Logger.Warn("dropping transaction: queue is full", zap.Stringer("hash", tx.Hash()))

		return status.Error(codes.ResourceExhausted, "transaction queue is full")
	}

	return nil
}

// OnTransaction enqueues an already-decoded transaction. When the queue
// accumulates a full proposal's worth, the loop is woken up immediately so
// that proposals are bounded in size as well as in time.
func (s *Service) OnTransaction(tx batch.Transaction) error {
	if err := s.queue.push(tx); err != nil {
		return err
	}

	if s.queue.size() >= s.MaxSize {
		select {
		case s.full <- struct{}{}:
		default:
		}
	}

	return nil
}

// Stop shuts the service down: ingress starts failing with Unavailable,
// the loop exits (flushing one final proposal if configured), and in-flight
// peer dispatches are awaited up to ShutdownTimeout.
func (s *Service) Stop() {
	if !s.down.CompareAndSwap(false, true) {
		return
	}

	close(s.quit)
	if s.started.Load() {
		<-s.loopDone
	}
	s.Timer.Stop()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.ShutdownTimeout):
		s.Logger.Warn("shutdown timeout: abandoning in-flight dispatches")
	}
}

func (s *Service) loop() {
	defer close(s.loopDone)

	for {
		select {
		case <-s.quit:
			if s.FlushOnShutdown {
				s.emitProposal()
			}

			return
		case tick := <-s.Timer.C():
			if tick.Height != s.height+1 {
				s.Logger.Debug("ignore stale timer tick",
					zap.Uint64("tick_height", tick.Height),
					zap.Uint64("next_height", s.height+1))
				continue
			}

			s.emitProposal()
			s.Timer.Reset(timer.Tick{Height: s.height + 1}, s.Delay)
		case <-s.full:
			s.emitProposal()
			s.Timer.Reset(timer.Tick{Height: s.height + 1}, s.Delay)
		}
	}
}

// emitProposal drains up to MaxSize transactions and publishes them under
// the next height. An empty drain emits nothing and burns no height.
func (s *Service) emitProposal() {
	txs := s.queue.drain(s.MaxSize)
	if len(txs) == 0 {
		return
	}

	s.height++
	p := NewProposal(s.height, uint64(s.Timer.Now().UnixMilli()), txs)

	proposalsEmitted.Inc()
	proposalTransactions.Add(float64(len(txs)))
	s.Logger.Info("proposal formed",
		zap.Uint64("height", p.Height()),
		zap.Int("txs", len(txs)))

	s.publish(p)
}

// publish dispatches the proposal to every peer, a goroutine per peer.
// Failures are logged and counted, never propagated: there are no retries,
// the next proposal supersedes this one.
func (s *Service) publish(p *Proposal) {
	for addr, stub := range s.Peers {
		s.inflight.Add(1)

		go func(addr string, stub PeerStub) {
			defer s.inflight.Done()

			if err := stub.OnProposal(context.Background(), p); err != nil {
				peerDispatchFailures.WithLabelValues(addr).Inc()
				s.Logger.Warn("proposal dispatch failed",
					zap.String("peer", addr),
					zap.Uint64("height", p.Height()),
					zap.Error(err))
			}
		}(addr, stub)
	}
}

// Height returns the height of the last emitted proposal. It is owned by
// the loop goroutine; external readers should only consult it after Stop.
func (s *Service) Height() uint64 {
	return s.height
}
