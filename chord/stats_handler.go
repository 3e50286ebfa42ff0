package chord

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.miragespace.co/chord/spec/chord"
	"go.miragespace.co/chord/util/promise"

	"github.com/go-chi/chi/v5"
	"github.com/jedib0t/go-pretty/v6/table"
)

func cachedStatus(l *Liveness, peer chord.Peer) string {
	status, ok := l.Peek(peer)
	if !ok {
		return "unknown"
	}
	return status.String()
}

func nodeFromRequest(registry *Registry, w http.ResponseWriter, r *http.Request) (*LocalNode, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid node id: %v", err), http.StatusBadRequest)
		return nil, false
	}
	node, ok := registry.Get(id)
	if !ok {
		http.Error(w, chord.NodeNotFound(id).Error(), http.StatusNotFound)
		return nil, false
	}
	return node, true
}

func printNodes(registry *Registry, w io.Writer) {
	nodesTable := table.NewWriter()
	nodesTable.SetOutputMirror(w)
	nodesTable.AppendHeader(table.Row{"ID", "Address", "Predecessors", "Successors", "Fingers", "Probes", "Cache hits"})

	for _, node := range registry.Nodes() {
		ft := node.FingerTable()
		fingers := 0
		for _, e := range ft.Entries {
			if e != nil {
				fingers++
			}
		}
		probes, hits := node.Liveness().Stats()
		nodesTable.AppendRow(table.Row{
			node.ID(),
			node.Identity().Address(),
			len(ft.Predecessors),
			len(ft.Successors),
			fmt.Sprintf("%d/%d", fingers, ft.Size()),
			probes,
			hits,
		})
	}

	nodesTable.SetStyle(table.StyleDefault)
	nodesTable.Style().Options.SeparateRows = true
	nodesTable.Render()
}

// probeTable checks every distinct peer of the table concurrently so that the
// dump below shows fresh liveness
func probeTable(ctx context.Context, node *LocalNode, ft chord.FingerTable) {
	seen := make(map[chord.Peer]bool)
	jobs := make([]func(context.Context) (chord.Status, error), 0)
	add := func(peer chord.Peer) {
		if seen[peer] {
			return
		}
		seen[peer] = true
		jobs = append(jobs, func(ctx context.Context) (chord.Status, error) {
			return node.Liveness().Check(ctx, peer)
		})
	}
	for _, p := range ft.Predecessors {
		add(p)
	}
	for _, p := range ft.Successors {
		add(p)
	}
	for _, p := range ft.Entries {
		if p != nil {
			add(*p)
		}
	}
	promise.All(ctx, jobs...)
}

func printNode(node *LocalNode, w io.Writer) {
	ft := node.FingerTable()
	l := node.Liveness()

	fmt.Fprintf(w, "Node: %s\n", node.Identity())
	fmt.Fprintf(w, "Cached liveness records: %d\n", l.Len())
	fmt.Fprintf(w, "---\n")

	nodesTable := table.NewWriter()
	nodesTable.SetOutputMirror(w)
	nodesTable.AppendHeader(table.Row{"Where", "ID", "Address", "Liveness"})
	for i, p := range ft.Predecessors {
		nodesTable.AppendRow(table.Row{fmt.Sprintf("Predecessor %d", i), p.ID, p.Address(), cachedStatus(l, p)})
	}
	nodesTable.AppendRow(table.Row{"Local", node.ID(), node.Identity().Address(), "-"})
	for i, p := range ft.Successors {
		nodesTable.AppendRow(table.Row{fmt.Sprintf("Successor %d", i), p.ID, p.Address(), cachedStatus(l, p)})
	}
	nodesTable.SetStyle(table.StyleDefault)
	nodesTable.Style().Options.SeparateRows = true
	nodesTable.Render()

	fmt.Fprintf(w, "---\n")

	fingerTable := table.NewWriter()
	fingerTable.SetOutputMirror(w)
	fingerTable.AppendHeader(table.Row{"k", "Start", "ID", "Address", "Liveness"})
	for k, p := range ft.Entries {
		if p == nil {
			continue
		}
		fingerTable.AppendRow(table.Row{k, chord.FingerStart(node.ID(), k), p.ID, p.Address(), cachedStatus(l, *p)})
	}
	fingerTable.SetStyle(table.StyleDefault)
	fingerTable.Style().Options.SeparateRows = true
	fingerTable.Render()
}

func nodesHandler(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/plain; charset=utf-8")
		printNodes(registry, w)
	}
}

func nodeHandler(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		node, ok := nodeFromRequest(registry, w, r)
		if !ok {
			return
		}
		if r.URL.Query().Has("probe") {
			probeTable(r.Context(), node, node.FingerTable())
		}
		w.Header().Set("content-type", "text/plain; charset=utf-8")
		printNode(node, w)
	}
}
