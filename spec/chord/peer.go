package chord

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// Peer describes a ring participant, local or remote.
type Peer struct {
	ID   uint64     `yaml:"id" json:"id"`
	Host netip.Addr `yaml:"host" json:"host"`
	Port uint16     `yaml:"port" json:"port"`
}

func NewPeer(id uint64, addrPort netip.AddrPort) Peer {
	return Peer{
		ID:   id,
		Host: addrPort.Addr(),
		Port: addrPort.Port(),
	}
}

func (p Peer) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(p.Host, p.Port)
}

func (p Peer) Address() string {
	return net.JoinHostPort(p.Host.String(), strconv.FormatUint(uint64(p.Port), 10))
}

func (p Peer) String() string {
	return fmt.Sprintf("%d@%s", p.ID, p.Address())
}

// ParsePeer accepts the id@host:port form produced by String
func ParsePeer(s string) (Peer, error) {
	for i := 0; i < len(s); i++ {
		if s[i] != '@' {
			continue
		}
		id, err := strconv.ParseUint(s[:i], 10, 64)
		if err != nil {
			return Peer{}, fmt.Errorf("invalid peer id %q: %w", s[:i], err)
		}
		ap, err := netip.ParseAddrPort(s[i+1:])
		if err != nil {
			return Peer{}, fmt.Errorf("invalid peer address %q: %w", s[i+1:], err)
		}
		return NewPeer(id, ap), nil
	}
	return Peer{}, fmt.Errorf("invalid peer %q: expecting id@host:port", s)
}
