package timing

import "time"

const (
	ChordConnectTimeout    = time.Second * 5
	ChordRPCTimeout        = time.Second * 10
	ChordKeepAliveTimeout  = time.Second * 20
	ChordKeepAliveInterval = time.Second * 30
	ChordPingTimeout       = time.Second * 3
	ChordLookupTimeout     = time.Second * 30
)
