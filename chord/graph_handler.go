package chord

import (
	"fmt"
	"net/http"
	"strconv"

	"go.miragespace.co/chord/spec/chord"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

const defaultRingLimit = 64

func formatNode(p chord.Peer) string {
	return fmt.Sprintf("%s/%d", p.Address(), p.ID)
}

var vOptions = []func(*graph.VertexProperties){
	graph.VertexAttribute("shape", "box"),
}

var rootVOptions = append(vOptions,
	graph.VertexAttribute("style", "filled"),
	graph.VertexAttribute("color", "yellow"),
)

var selfVOptions = append(vOptions,
	graph.VertexAttribute("style", "filled"),
	graph.VertexAttribute("color", "lightgrey"),
)

func ringGraphHandler(registry *Registry, factory chord.HandleFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		root, ok := nodeFromRequest(registry, w, r)
		if !ok {
			return
		}

		limit := defaultRingLimit
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		resolver := NewResolver(ResolverConfig{
			Logger:  root.Logger,
			Factory: factory,
			Entry:   root,
		})
		defer resolver.Close()

		nodes := []chord.Peer{root.Identity()}
		seen := map[uint64]bool{root.ID(): true}
		next := root.Identity()

		for {
			route, err := resolver.Walk(r.Context(), chord.ModuloSum(next.ID, 1))
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			next = route.Successor
			if next.ID == root.ID() {
				break
			}
			if seen[next.ID] {
				http.Error(w, "ring is unstable", http.StatusInternalServerError)
				return
			}
			if len(nodes) >= limit {
				http.Error(w, "ring walk exceeded limit", http.StatusInternalServerError)
				return
			}
			nodes = append(nodes, next)
			seen[next.ID] = true
		}

		ring := graph.New(formatNode, graph.Directed())

		for _, node := range nodes {
			if node.ID == root.ID() {
				ring.AddVertex(node, rootVOptions...)
			} else if _, local := registry.Get(node.ID); local {
				ring.AddVertex(node, selfVOptions...)
			} else {
				ring.AddVertex(node, vOptions...)
			}
		}

		for i := 0; i < len(nodes)-1; i++ {
			ring.AddEdge(formatNode(nodes[i]), formatNode(nodes[i+1]))
		}
		ring.AddEdge(formatNode(nodes[len(nodes)-1]), formatNode(nodes[0]))

		w.Header().Set("content-type", "text/plain")
		draw.DOT(ring, w)
	}
}
