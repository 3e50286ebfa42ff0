package chord

import (
	"sync"
	"testing"

	"go.miragespace.co/chord/spec/mocks"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	as := require.New(t)

	factory := new(mocks.HandleFactory)
	nodeA := NewLocalNode(devConfig(t, 1, factory))
	nodeB := NewLocalNode(devConfig(t, 2, factory))
	nodeC := NewLocalNode(devConfig(t, 3, factory))

	r := NewRegistry()
	as.Equal(0, r.Len())
	_, ok := r.Get(1)
	as.False(ok)

	as.NoError(r.Initialize(map[uint64]*LocalNode{1: nodeA, 2: nodeB}))

	n, ok := r.Get(1)
	as.True(ok)
	as.Same(nodeA, n)
	_, ok = r.Get(3)
	as.False(ok)
	as.Equal(2, r.Len())

	as.NoError(r.Initialize(map[uint64]*LocalNode{3: nodeC}))
	_, ok = r.Get(1)
	as.False(ok)
	n, ok = r.Get(3)
	as.True(ok)
	as.Same(nodeC, n)
}

func TestRegistryRejectsMismatchedKey(t *testing.T) {
	as := require.New(t)

	nodeA := NewLocalNode(devConfig(t, 1, new(mocks.HandleFactory)))

	r := NewRegistry()
	as.NoError(r.Initialize(map[uint64]*LocalNode{1: nodeA}))

	as.Error(r.Initialize(map[uint64]*LocalNode{2: nodeA}))
	as.Error(r.Initialize(map[uint64]*LocalNode{2: nil}))

	// a rejected map leaves the previous contents in place
	n, ok := r.Get(1)
	as.True(ok)
	as.Same(nodeA, n)
}

func TestRegistryNodesOrdered(t *testing.T) {
	as := require.New(t)

	factory := new(mocks.HandleFactory)
	nodes := map[uint64]*LocalNode{}
	for _, id := range []uint64{50, 3, ^uint64(0), 17} {
		nodes[id] = NewLocalNode(devConfig(t, id, factory))
	}

	r := NewRegistry()
	as.NoError(r.Initialize(nodes))

	ids := []uint64{}
	for _, n := range r.Nodes() {
		ids = append(ids, n.ID())
	}
	as.Equal([]uint64{3, 17, 50, ^uint64(0)}, ids)
}

func TestRegistryConcurrentReaders(t *testing.T) {
	as := require.New(t)

	factory := new(mocks.HandleFactory)
	first := map[uint64]*LocalNode{}
	second := map[uint64]*LocalNode{}
	for id := uint64(1); id <= 8; id++ {
		first[id] = NewLocalNode(devConfig(t, id, factory))
		second[id+100] = NewLocalNode(devConfig(t, id+100, factory))
	}

	r := NewRegistry()
	as.NoError(r.Initialize(first))

	var wg sync.WaitGroup
	partial := make(chan int, 64)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if l := len(r.Nodes()); l != 8 {
					partial <- l
					return
				}
			}
		}()
	}
	as.NoError(r.Initialize(second))
	wg.Wait()
	close(partial)

	for l := range partial {
		as.Failf("observed partial registry", "saw %d nodes", l)
	}
}
