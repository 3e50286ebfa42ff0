package chord

import (
	"context"
	"fmt"
	"sync"

	"go.miragespace.co/chord/spec/chord"

	"go.uber.org/zap"
)

// LocalNode is one virtual node hosted by this process. It answers lookups
// from its finger table and checks candidates through its own liveness cache.
type LocalNode struct {
	NodeConfig

	liveness *Liveness

	ftMu  sync.RWMutex
	table chord.FingerTable
}

var _ chord.VNode = (*LocalNode)(nil)

func NewLocalNode(conf NodeConfig) *LocalNode {
	if err := conf.Validate(); err != nil {
		panic(err)
	}
	conf.applyDefaults()

	n := &LocalNode{
		NodeConfig: conf,
		table:      chord.NewFingerTable(conf.FingerSize),
	}
	n.liveness = NewLiveness(LivenessConfig{
		Logger:       conf.Logger,
		Probe:        n.probe,
		Size:         conf.LivenessSize,
		TTL:          conf.LivenessTTL,
		ProbeTimeout: conf.ProbeTimeout,
	})
	return n
}

func (n *LocalNode) ID() uint64 {
	return n.NodeConfig.Identity.ID
}

func (n *LocalNode) Identity() chord.Peer {
	return n.NodeConfig.Identity
}

func (n *LocalNode) Liveness() *Liveness {
	return n.liveness
}

func (n *LocalNode) Ping(_ context.Context) error {
	return nil
}

func (n *LocalNode) probe(ctx context.Context, peer chord.Peer) error {
	handle, err := n.Factory.CreatePeerHandle(peer)
	if err != nil {
		return err
	}
	defer handle.Close()

	return handle.Ping(ctx)
}

func (n *LocalNode) alive(ctx context.Context, peer chord.Peer) (bool, error) {
	status, err := n.liveness.Check(ctx, peer)
	if err != nil {
		return false, err
	}
	return status == chord.Alive, nil
}

func (n *LocalNode) FindSuccessor(ctx context.Context, key uint64) (chord.Lookup, error) {
	n.ftMu.RLock()
	successors := append([]chord.Peer(nil), n.table.Successors...)
	fingers := make([]chord.Peer, 0, len(n.table.Entries))
	for i := len(n.table.Entries) - 1; i >= 0; i-- {
		if f := n.table.Entries[i]; f != nil {
			fingers = append(fingers, *f)
		}
	}
	n.ftMu.RUnlock()

	for _, succ := range successors {
		if !chord.BetweenInclusiveHigh(n.ID(), key, succ.ID) {
			continue
		}
		ok, err := n.alive(ctx, succ)
		if err != nil {
			return chord.Lookup{}, err
		}
		if ok {
			return chord.Lookup{Kind: chord.Successor, Node: succ}, nil
		}
		n.Logger.Debug("Skipping dead successor", zap.Uint64("key", key), zap.Uint64("peer", succ.ID))
	}

	for _, finger := range fingers {
		if !chord.BetweenStrict(n.ID(), finger.ID, key) {
			continue
		}
		ok, err := n.alive(ctx, finger)
		if err != nil {
			return chord.Lookup{}, err
		}
		if ok {
			return chord.Lookup{Kind: chord.ClosestPrecedingNode, Node: finger}, nil
		}
	}

	n.Logger.Debug("No viable candidate for lookup", zap.Uint64("key", key))
	return chord.Lookup{}, chord.ErrNoViableCandidate
}

func (n *LocalNode) GetPredecessor(ctx context.Context) (chord.Peer, error) {
	n.ftMu.RLock()
	predecessors := append([]chord.Peer(nil), n.table.Predecessors...)
	n.ftMu.RUnlock()

	for _, pre := range predecessors {
		ok, err := n.alive(ctx, pre)
		if err != nil {
			return chord.Peer{}, err
		}
		if ok {
			return pre, nil
		}
	}
	return chord.Peer{}, chord.ErrNoViableCandidate
}

// FingerTable returns a copy of the current table
func (n *LocalNode) FingerTable() chord.FingerTable {
	n.ftMu.RLock()
	defer n.ftMu.RUnlock()
	return n.table.Clone()
}

// SetFingerTable replaces the table after validating it against this node
func (n *LocalNode) SetFingerTable(table chord.FingerTable) error {
	if err := table.Validate(n.ID(), n.FingerSize); err != nil {
		return fmt.Errorf("node %d: %w", n.ID(), err)
	}
	table = table.Clone()

	n.ftMu.Lock()
	n.table = table
	n.ftMu.Unlock()

	n.Logger.Debug("Finger table replaced",
		zap.Int("predecessors", len(table.Predecessors)),
		zap.Int("successors", len(table.Successors)),
	)
	return nil
}

// UpdateFingerTable is the exclusive write path to the table. fn edits a copy
// while the write lock is held, and the copy is installed only if fn succeeds
// and the result validates. fn must not block on the network.
func (n *LocalNode) UpdateFingerTable(fn func(table *chord.FingerTable) error) error {
	n.ftMu.Lock()
	defer n.ftMu.Unlock()

	next := n.table.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.Validate(n.ID(), n.FingerSize); err != nil {
		return fmt.Errorf("node %d: %w", n.ID(), err)
	}
	n.table = next
	return nil
}
