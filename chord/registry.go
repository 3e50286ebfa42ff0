package chord

import (
	"fmt"

	"github.com/zhangyunhao116/skipmap"
	"go.uber.org/atomic"
)

// Registry resolves node ids to the virtual nodes hosted by this process.
// Initialize swaps in a complete snapshot, so readers never observe a
// partially built map.
type Registry struct {
	nodes *atomic.Pointer[skipmap.Uint64Map[*LocalNode]]
}

func NewRegistry() *Registry {
	return &Registry{
		nodes: atomic.NewPointer(skipmap.NewUint64[*LocalNode]()),
	}
}

// Initialize replaces the registry contents with nodes. Every key must equal
// the id of the node it maps to. Concurrent calls are not supported, the last
// one wins.
func (r *Registry) Initialize(nodes map[uint64]*LocalNode) error {
	m := skipmap.NewUint64[*LocalNode]()
	for id, node := range nodes {
		if node == nil {
			return fmt.Errorf("registry: nil node for id %d", id)
		}
		if node.ID() != id {
			return fmt.Errorf("registry: key %d does not match node id %d", id, node.ID())
		}
		m.Store(id, node)
	}
	r.nodes.Store(m)
	return nil
}

func (r *Registry) Get(id uint64) (*LocalNode, bool) {
	return r.nodes.Load().Load(id)
}

// Nodes returns the hosted nodes in ascending id order
func (r *Registry) Nodes() []*LocalNode {
	m := r.nodes.Load()
	nodes := make([]*LocalNode, 0, m.Len())
	m.Range(func(_ uint64, node *LocalNode) bool {
		nodes = append(nodes, node)
		return true
	})
	return nodes
}

func (r *Registry) Len() int {
	return r.nodes.Load().Len()
}
