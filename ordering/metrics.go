package ordering

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	proposalsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ordering",
		Name:      "proposals_emitted_total",
		Help:      "Number of proposals published by this node.",
	})
	proposalTransactions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ordering",
		Name:      "proposal_transactions_total",
		Help:      "Number of transactions packed into proposals.",
	})
	droppedTransactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordering",
		Name:      "dropped_transactions_total",
		Help:      "Number of inbound transactions rejected before ordering.",
	}, []string{"reason"})
	peerDispatchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordering",
		Name:      "peer_dispatch_failures_total",
		Help:      "Number of failed proposal dispatches per peer.",
	}, []string{"peer"})
)

const (
	dropReasonDecode   = "decode"
	dropReasonFull     = "queue_full"
	dropReasonShutdown = "shutdown"
)

func init() {
	prometheus.MustRegister(
		proposalsEmitted,
		proposalTransactions,
		droppedTransactions,
		peerDispatchFailures,
	)
}
