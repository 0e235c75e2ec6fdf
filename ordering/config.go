package ordering

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/asagiri-dev/mst/timer"
)

// Config contains initialization and working parameters for the
// ordering service.
type Config struct {
	// Logger
	Logger *zap.Logger
	// Timer drives the proposal cadence. It can be mocked for testing.
	Timer timer.Timer
	// Decoder converts wire bytes into model transactions.
	Decoder Decoder
	// Peers maps peer address to its transport stub. The table is fixed
	// for the service lifetime.
	Peers map[string]PeerStub
	// MaxSize is the maximum number of transactions in a proposal. The
	// intake queue holds up to twice this number.
	MaxSize int
	// Delay is the longest time a non-empty intake queue waits before
	// the next proposal is formed.
	Delay time.Duration
	// InitialHeight seeds the proposal height counter, letting an
	// external collaborator restore a checkpointed sequence.
	InitialHeight uint64
	// FlushOnShutdown makes Stop emit one final proposal from whatever
	// remains queued instead of discarding it.
	FlushOnShutdown bool
	// ShutdownTimeout bounds the wait for in-flight peer dispatches
	// during Stop.
	ShutdownTimeout time.Duration
}

const (
	defaultMaxSize         = 100
	defaultDelay           = 5 * time.Second
	defaultShutdownTimeout = time.Second
)

func defaultConfig() *Config {
	return &Config{
		Logger:          zap.NewNop(),
		Timer:           timer.New(),
		Decoder:         WireDecoder{},
		Peers:           make(map[string]PeerStub),
		MaxSize:         defaultMaxSize,
		Delay:           defaultDelay,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

func checkConfig(cfg *Config) error {
	if cfg.Logger == nil {
		return errors.New("Logger is nil")
	} else if cfg.Timer == nil {
		return errors.New("Timer is nil")
	} else if cfg.Decoder == nil {
		return errors.New("Decoder is nil")
	} else if cfg.MaxSize <= 0 {
		return errors.New("MaxSize must be positive")
	} else if cfg.Delay < 0 {
		return errors.New("Delay must be non-negative")
	}

	return nil
}

// Option configures the ordering service.
type Option func(*Config)

// WithLogger sets Logger.
func WithLogger(log *zap.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = log
	}
}

// WithTimer sets Timer.
func WithTimer(t timer.Timer) Option {
	return func(cfg *Config) {
		cfg.Timer = t
	}
}

// WithDecoder sets Decoder.
func WithDecoder(d Decoder) Option {
	return func(cfg *Config) {
		cfg.Decoder = d
	}
}

// WithPeers sets the whole peer table.
func WithPeers(peers map[string]PeerStub) Option {
	return func(cfg *Config) {
		cfg.Peers = peers
	}
}

// WithPeer adds a single peer to the table.
func WithPeer(addr string, stub PeerStub) Option {
	return func(cfg *Config) {
		cfg.Peers[addr] = stub
	}
}

// WithMaxSize sets MaxSize.
func WithMaxSize(n int) Option {
	return func(cfg *Config) {
		cfg.MaxSize = n
	}
}

// WithDelay sets Delay.
func WithDelay(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.Delay = d
	}
}

// WithInitialHeight sets InitialHeight.
func WithInitialHeight(h uint64) Option {
	return func(cfg *Config) {
		cfg.InitialHeight = h
	}
}

// WithFlushOnShutdown sets FlushOnShutdown.
func WithFlushOnShutdown(flush bool) Option {
	return func(cfg *Config) {
		cfg.FlushOnShutdown = flush
	}
}

// WithShutdownTimeout sets ShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.ShutdownTimeout = d
	}
}
