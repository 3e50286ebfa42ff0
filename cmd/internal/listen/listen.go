package listen

import (
	"fmt"
	"net/netip"
	"strings"
)

type IPVersion int

const (
	IPAny IPVersion = iota
	IPV4
	IPV6
)

type Address struct {
	AddrPort netip.AddrPort
	Network  string
	Version  IPVersion
}

func (a Address) String() string {
	return a.AddrPort.String()
}

// ParseAddresses normalizes listen addresses. Each entry may hold several
// comma separated ip:port pairs; duplicates are dropped and order is kept.
func ParseAddresses(proto string, addrs []string) ([]Address, error) {
	seen := make(map[netip.AddrPort]struct{}, len(addrs))
	out := make([]Address, 0, len(addrs))
	for _, entry := range addrs {
		for _, a := range strings.Split(entry, ",") {
			v := strings.TrimSpace(a)
			if v == "" {
				continue
			}
			ap, err := netip.ParseAddrPort(v)
			if err != nil {
				return nil, fmt.Errorf("listen address must be ip:port (got %q): %w", v, err)
			}
			if _, ok := seen[ap]; ok {
				continue
			}
			seen[ap] = struct{}{}
			version := ClassifyIPVersion(ap.Addr())
			out = append(out, Address{
				AddrPort: ap,
				Version:  version,
				Network:  NetworkForVersion(proto, version),
			})
		}
	}
	return out, nil
}

func ClassifyIPVersion(ip netip.Addr) IPVersion {
	switch {
	case !ip.IsValid():
		return IPAny
	case ip.Is4(), ip.Is4In6():
		return IPV4
	default:
		return IPV6
	}
}

func NetworkForVersion(proto string, version IPVersion) string {
	switch version {
	case IPV4:
		return proto + "4"
	case IPV6:
		return proto + "6"
	default:
		return proto
	}
}
