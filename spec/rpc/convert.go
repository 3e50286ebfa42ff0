package rpc

import (
	"math"
	"net/netip"
	"strconv"

	"go.miragespace.co/chord/spec/chord"
)

func PeerToInfo(p chord.Peer) *PeerInfo {
	return &PeerInfo{
		Id:   strconv.FormatUint(p.ID, 10),
		Ip:   p.Host.String(),
		Port: uint32(p.Port),
	}
}

func PeerFromInfo(info *PeerInfo) (chord.Peer, error) {
	if info == nil {
		return chord.Peer{}, chord.ConversionFailed("missing peer info")
	}
	id, err := strconv.ParseUint(info.GetId(), 10, 64)
	if err != nil {
		return chord.Peer{}, chord.ConversionFailed("bad integer %q", info.GetId())
	}
	addr, err := netip.ParseAddr(info.GetIp())
	if err != nil {
		return chord.Peer{}, chord.ConversionFailed("bad address %q", info.GetIp())
	}
	if info.GetPort() > math.MaxUint16 {
		return chord.Peer{}, chord.ConversionFailed("port %d out of range", info.GetPort())
	}
	return chord.Peer{
		ID:   id,
		Host: addr,
		Port: uint16(info.GetPort()),
	}, nil
}

// ParseID parses a decimal ring identifier from a request
func ParseID(str string) (uint64, error) {
	id, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, chord.InvalidIdString(str, err)
	}
	return id, nil
}

func FormatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
