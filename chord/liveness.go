package chord

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.miragespace.co/chord/metrics"
	"go.miragespace.co/chord/spec/chord"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// LivenessProbe reports whether peer is reachable. Any error means Dead.
type LivenessProbe func(ctx context.Context, peer chord.Peer) error

type LivenessConfig struct {
	Logger       *zap.Logger
	Probe        LivenessProbe
	Size         int
	TTL          time.Duration
	ProbeTimeout time.Duration
}

func (c *LivenessConfig) Validate() error {
	if c == nil {
		return errors.New("nil LivenessConfig")
	}
	if c.Logger == nil {
		return errors.New("nil Logger")
	}
	if c.Probe == nil {
		return errors.New("nil Probe")
	}
	if c.Size <= 0 {
		return errors.New("invalid Size, must be positive")
	}
	if c.TTL <= 0 {
		return errors.New("invalid TTL, must be positive")
	}
	if c.ProbeTimeout <= 0 {
		return errors.New("invalid ProbeTimeout, must be positive")
	}
	return nil
}

type livenessRecord struct {
	status    chord.Status
	expiresAt time.Time
}

// livenessCall is an in-flight probe; status is written before done is closed
type livenessCall struct {
	done   chan struct{}
	status chord.Status
}

// Liveness memoizes probe results per peer descriptor. Concurrent checks of
// an unresolved peer share a single probe, and results expire after TTL.
type Liveness struct {
	LivenessConfig

	mu      sync.Mutex
	records *simplelru.LRU[chord.Peer, livenessRecord]
	pending map[chord.Peer]*livenessCall
	wg      sync.WaitGroup

	probes *atomic.Uint64
	hits   *atomic.Uint64
}

func NewLiveness(conf LivenessConfig) *Liveness {
	if err := conf.Validate(); err != nil {
		panic(err)
	}
	records, err := simplelru.NewLRU[chord.Peer, livenessRecord](conf.Size, nil)
	if err != nil {
		panic("BUG: " + err.Error())
	}
	return &Liveness{
		LivenessConfig: conf,
		records:        records,
		pending:        make(map[chord.Peer]*livenessCall),
		probes:         atomic.NewUint64(0),
		hits:           atomic.NewUint64(0),
	}
}

// Check returns the cached status of peer, probing it when the record is
// missing or expired. The returned error is only ever ctx.Err(), in which case
// the probe keeps running and still populates the cache.
func (l *Liveness) Check(ctx context.Context, peer chord.Peer) (chord.Status, error) {
	l.mu.Lock()
	if rec, ok := l.records.Get(peer); ok && time.Now().Before(rec.expiresAt) {
		l.mu.Unlock()
		l.hits.Inc()
		metrics.ObserveCacheHit()
		return rec.status, nil
	}
	call, ok := l.pending[peer]
	if !ok {
		call = &livenessCall{
			done: make(chan struct{}),
		}
		l.pending[peer] = call
		l.probes.Inc()
		l.wg.Add(1)
		go l.probe(ctx, peer, call)
	}
	l.mu.Unlock()

	select {
	case <-call.done:
		return call.status, nil
	case <-ctx.Done():
		return chord.Dead, ctx.Err()
	}
}

func (l *Liveness) probe(ctx context.Context, peer chord.Peer, call *livenessCall) {
	defer l.wg.Done()

	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.ProbeTimeout)
	defer cancel()

	start := time.Now()
	status := chord.Alive
	err := l.Probe(probeCtx, peer)
	metrics.ObserveProbe(err == nil, start)
	if err != nil {
		l.Logger.Debug("Peer failed liveness probe",
			zap.Uint64("peer", peer.ID),
			zap.String("address", peer.Address()),
			zap.Error(err),
		)
		status = chord.Dead
	}

	l.mu.Lock()
	l.records.Add(peer, livenessRecord{
		status:    status,
		expiresAt: time.Now().Add(l.TTL),
	})
	delete(l.pending, peer)
	call.status = status
	close(call.done)
	l.mu.Unlock()
}

// Peek returns an unexpired cached status without probing or touching recency
func (l *Liveness) Peek(peer chord.Peer) (chord.Status, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records.Peek(peer)
	if !ok || !time.Now().Before(rec.expiresAt) {
		return chord.Dead, false
	}
	return rec.status, true
}

func (l *Liveness) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records.Len()
}

// Stats returns the number of probes issued and checks answered from cache
func (l *Liveness) Stats() (probes uint64, hits uint64) {
	return l.probes.Load(), l.hits.Load()
}

// Wait blocks until every in-flight probe has finished
func (l *Liveness) Wait() {
	l.wg.Wait()
}
