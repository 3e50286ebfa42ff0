package chord

import "fmt"

// FingerTable holds the routing state of one ring node. Predecessors and
// Successors are ordered closest first. Entries has a fixed length m, and
// Entries[k] should point near (self + 2^k); empty slots are nil.
type FingerTable struct {
	Predecessors []Peer
	Successors   []Peer
	Entries      []*Peer
}

func NewFingerTable(size int) FingerTable {
	if size < 0 {
		size = 0
	}
	return FingerTable{
		Predecessors: []Peer{},
		Successors:   []Peer{},
		Entries:      make([]*Peer, size),
	}
}

func (t FingerTable) Size() int {
	return len(t.Entries)
}

func (t FingerTable) Clone() FingerTable {
	c := FingerTable{
		Predecessors: append([]Peer{}, t.Predecessors...),
		Successors:   append([]Peer{}, t.Successors...),
		Entries:      make([]*Peer, len(t.Entries)),
	}
	for i, e := range t.Entries {
		if e == nil {
			continue
		}
		p := *e
		c.Entries[i] = &p
	}
	return c
}

// Validate checks the table against its owner: the entries length must be m
// and no slot may point back at the owner.
func (t FingerTable) Validate(owner uint64, m int) error {
	if len(t.Entries) != m {
		return fmt.Errorf("finger table has %d entries, expecting %d", len(t.Entries), m)
	}
	for i, p := range t.Predecessors {
		if p.ID == owner {
			return fmt.Errorf("predecessor %d references the owning node %d", i, owner)
		}
	}
	for i, p := range t.Successors {
		if p.ID == owner {
			return fmt.Errorf("successor %d references the owning node %d", i, owner)
		}
	}
	for i, p := range t.Entries {
		if p != nil && p.ID == owner {
			return fmt.Errorf("finger %d references the owning node %d", i, owner)
		}
	}
	return nil
}
