package server

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"time"

	"go.miragespace.co/chord/rpc"
	"go.miragespace.co/chord/spec/chord"

	"gopkg.in/yaml.v3"
)

const configVersion = 1

type Liveness struct {
	Size         int           `yaml:"size,omitempty" json:"size,omitempty"`
	TTL          time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	ProbeTimeout time.Duration `yaml:"probeTimeout,omitempty" json:"probeTimeout,omitempty"`
}

type Finger struct {
	Index      int `yaml:"index" json:"index"`
	chord.Peer `yaml:",inline"`
}

// Node is the routing state of one hosted virtual node
type Node struct {
	ID           uint64       `yaml:"id" json:"id"`
	Predecessors []chord.Peer `yaml:"predecessors,omitempty" json:"predecessors,omitempty"`
	Successors   []chord.Peer `yaml:"successors,omitempty" json:"successors,omitempty"`
	Fingers      []Finger     `yaml:"fingers,omitempty" json:"fingers,omitempty"`
}

func checkPeers(owner uint64, where string, peers ...chord.Peer) error {
	for _, p := range peers {
		if !p.Host.IsValid() {
			return fmt.Errorf("node %d: %s %d has no valid host", owner, where, p.ID)
		}
	}
	return nil
}

func (n Node) FingerTable(m int) (chord.FingerTable, error) {
	if err := checkPeers(n.ID, "predecessor", n.Predecessors...); err != nil {
		return chord.FingerTable{}, err
	}
	if err := checkPeers(n.ID, "successor", n.Successors...); err != nil {
		return chord.FingerTable{}, err
	}

	t := chord.NewFingerTable(m)
	t.Predecessors = append(t.Predecessors, n.Predecessors...)
	t.Successors = append(t.Successors, n.Successors...)
	for _, f := range n.Fingers {
		if f.Index < 0 || f.Index >= m {
			return chord.FingerTable{}, fmt.Errorf("node %d: finger index %d out of range [0, %d)", n.ID, f.Index, m)
		}
		if t.Entries[f.Index] != nil {
			return chord.FingerTable{}, fmt.Errorf("node %d: duplicated finger index %d", n.ID, f.Index)
		}
		if err := checkPeers(n.ID, "finger", f.Peer); err != nil {
			return chord.FingerTable{}, err
		}
		p := f.Peer
		t.Entries[f.Index] = &p
	}
	if err := t.Validate(n.ID, m); err != nil {
		return chord.FingerTable{}, fmt.Errorf("node %d: %w", n.ID, err)
	}
	return t, nil
}

// Config is the node file accepted by --config. Zero values fall back to
// the defaults of the corresponding flags.
type Config struct {
	path       string
	advertise  netip.AddrPort
	Version    int              `yaml:"version" json:"version"`
	Advertise  string           `yaml:"advertise,omitempty" json:"advertise,omitempty"`
	FingerSize int              `yaml:"fingerSize,omitempty" json:"fingerSize,omitempty"`
	PoolSize   int              `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`
	Client     rpc.ClientConfig `yaml:"client,omitempty" json:"client,omitempty"`
	Liveness   Liveness         `yaml:"liveness,omitempty" json:"liveness,omitempty"`
	Nodes      []Node           `yaml:"nodes,omitempty" json:"nodes,omitempty"`
}

func NewConfig(path string) (*Config, error) {
	cfg := &Config{
		path: path,
	}
	if err := cfg.readFile(); err != nil {
		return nil, err
	}
	if err := cfg.checkVersion(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile() error {
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("reading node file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("decoding node file %s: %w", c.path, err)
	}
	return nil
}

func (c *Config) checkVersion() error {
	if c.Version != configVersion {
		return fmt.Errorf("expecting node file version %d, got %d", configVersion, c.Version)
	}
	return nil
}

func (c *Config) validate() error {
	if c.FingerSize < 0 || c.FingerSize > chord.MaxFingerEntries {
		return fmt.Errorf("invalid fingerSize %d, must be within [0, %d]", c.FingerSize, chord.MaxFingerEntries)
	}
	if c.PoolSize < 0 {
		return errors.New("invalid poolSize, must not be negative")
	}
	if c.Client.ConnectTimeout < 0 || c.Client.RequestTimeout < 0 || c.Client.KeepAliveTimeout < 0 {
		return errors.New("invalid client timeouts, must not be negative")
	}
	if c.Liveness.Size < 0 || c.Liveness.TTL < 0 || c.Liveness.ProbeTimeout < 0 {
		return errors.New("invalid liveness settings, must not be negative")
	}
	if c.Advertise != "" {
		ap, err := netip.ParseAddrPort(c.Advertise)
		if err != nil {
			return fmt.Errorf("error parsing advertise address: %w", err)
		}
		c.advertise = ap
	}

	m := c.FingerSize
	if m == 0 {
		m = chord.MaxFingerEntries
	}
	seen := make(map[uint64]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		if _, ok := seen[n.ID]; ok {
			return fmt.Errorf("duplicated node id %d", n.ID)
		}
		seen[n.ID] = struct{}{}
		if _, err := n.FingerTable(m); err != nil {
			return err
		}
	}
	return nil
}

// AdvertiseAddr returns the parsed advertise address, if one was given
func (c *Config) AdvertiseAddr() (netip.AddrPort, bool) {
	return c.advertise, c.advertise.IsValid()
}
