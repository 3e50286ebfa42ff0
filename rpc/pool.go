package rpc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.miragespace.co/chord/spec/chord"
	"go.miragespace.co/chord/timing"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

const DefaultPoolSize = 1024

var ErrPoolClosed = errors.New("rpc: channel pool is closed")

type ClientConfig struct {
	ConnectTimeout   time.Duration `yaml:"connectTimeout"`
	RequestTimeout   time.Duration `yaml:"requestTimeout"`
	KeepAliveTimeout time.Duration `yaml:"keepAliveTimeout"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout:   timing.ChordConnectTimeout,
		RequestTimeout:   timing.ChordRPCTimeout,
		KeepAliveTimeout: timing.ChordKeepAliveTimeout,
	}
}

func (c ClientConfig) Validate() error {
	if c.ConnectTimeout <= 0 {
		return errors.New("invalid ConnectTimeout, must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("invalid RequestTimeout, must be positive")
	}
	if c.KeepAliveTimeout <= 0 {
		return errors.New("invalid KeepAliveTimeout, must be positive")
	}
	return nil
}

type PoolConfig struct {
	Logger *zap.Logger
	Size   int
	Client ClientConfig
	// appended after the defaults, mostly for tests with in-memory listeners
	DialOptions []grpc.DialOption
}

func (c *PoolConfig) Validate() error {
	if c == nil {
		return errors.New("nil PoolConfig")
	}
	if c.Logger == nil {
		return errors.New("nil Logger")
	}
	if c.Size <= 0 {
		return errors.New("invalid Size, must be positive")
	}
	return c.Client.Validate()
}

// Channel is a pooled, lazily connected gRPC client connection. Every holder
// obtained from Pool.Acquire must call Release once; the connection is closed
// after the pool and all holders let go of it.
type Channel struct {
	conn    *grpc.ClientConn
	peer    chord.Peer
	config  ClientConfig
	refs    *atomic.Int32
	logger  *zap.Logger
	onClose func()
}

func (c *Channel) Conn() grpc.ClientConnInterface {
	return c.conn
}

// Peer returns the descriptor the channel was created for
func (c *Channel) Peer() chord.Peer {
	return c.peer
}

func (c *Channel) RequestTimeout() time.Duration {
	return c.config.RequestTimeout
}

func (c *Channel) acquire() {
	c.refs.Inc()
}

func (c *Channel) Release() {
	remain := c.refs.Dec()
	switch {
	case remain == 0:
		c.logger.Debug("Closing pooled channel", zap.String("target", c.conn.Target()))
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("Error closing pooled channel", zap.Error(err))
		}
		if c.onClose != nil {
			c.onClose()
		}
	case remain < 0:
		panic("BUG: pooled channel released more than acquired")
	}
}

// Pool keeps at most Size channels keyed by peer ID only. A peer that shows
// up again with the same ID but a different address reuses the existing
// channel: IDs are assumed to stay bound to one address for the lifetime of
// the process.
type Pool struct {
	PoolConfig

	mu      sync.Mutex
	lru     *simplelru.LRU[uint64, *Channel]
	dropped []*Channel
	closed  bool

	created *atomic.Uint64
	open    *atomic.Int64
}

func NewPool(conf PoolConfig) *Pool {
	if err := conf.Validate(); err != nil {
		panic(err)
	}
	p := &Pool{
		PoolConfig: conf,
		created:    atomic.NewUint64(0),
		open:       atomic.NewInt64(0),
	}
	lru, err := simplelru.NewLRU[uint64, *Channel](conf.Size, p.onEvict)
	if err != nil {
		panic("BUG: " + err.Error())
	}
	p.lru = lru
	return p
}

// called with p.mu held
func (p *Pool) onEvict(id uint64, ch *Channel) {
	p.Logger.Debug("Dropping channel from pool", zap.Uint64("peer", id))
	p.dropped = append(p.dropped, ch)
}

func (p *Pool) dialOptions(conf ClientConfig) []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoff.DefaultConfig,
			MinConnectTimeout: conf.ConnectTimeout,
		}),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                timing.ChordKeepAliveInterval,
			Timeout:             conf.KeepAliveTimeout,
			PermitWithoutStream: true,
		}),
	}
	return append(opts, p.DialOptions...)
}

func (p *Pool) newChannel(peer chord.Peer) (*Channel, error) {
	// the config is captured now, later changes only apply to new channels
	conf := p.Client
	conn, err := grpc.NewClient("passthrough:///"+peer.Address(), p.dialOptions(conf)...)
	if err != nil {
		return nil, fmt.Errorf("creating channel to %s: %w", peer, err)
	}
	p.created.Inc()
	p.open.Inc()
	return &Channel{
		conn:    conn,
		peer:    peer,
		config:  conf,
		refs:    atomic.NewInt32(1), // held by the pool
		logger:  p.Logger.With(zap.Uint64("peer", peer.ID)),
		onClose: func() { p.open.Dec() },
	}, nil
}

// Acquire returns the pooled channel for peer.ID, creating it without any
// network I/O on a miss.
func (p *Pool) Acquire(peer chord.Peer) (*Channel, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	ch, ok := p.lru.Get(peer.ID)
	if !ok {
		var err error
		ch, err = p.newChannel(peer)
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		p.lru.Add(peer.ID, ch)
	}
	ch.acquire()
	dropped := p.dropped
	p.dropped = nil
	p.mu.Unlock()

	for _, d := range dropped {
		d.Release()
	}
	return ch, nil
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lru.Len()
}

// Stats returns the number of channels ever created and currently open,
// including evicted channels still held by someone.
func (p *Pool) Stats() (created uint64, open int64) {
	return p.created.Load(), p.open.Load()
}

// Close drops the pool's reference on every channel. Channels still held
// are closed when their last holder releases them.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.lru.Purge()
	dropped := p.dropped
	p.dropped = nil
	p.mu.Unlock()

	for _, d := range dropped {
		d.Release()
	}
}
