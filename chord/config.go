package chord

import (
	"errors"
	"fmt"
	"time"

	"go.miragespace.co/chord/spec/chord"
	"go.miragespace.co/chord/timing"

	"go.uber.org/zap"
)

const DefaultLivenessSize = 1024

type NodeConfig struct {
	Logger   *zap.Logger
	Identity chord.Peer
	Factory  chord.HandleFactory
	// FingerSize is m, the number of finger entries. Zero selects chord.MaxFingerEntries.
	FingerSize   int
	LivenessSize int
	LivenessTTL  time.Duration
	ProbeTimeout time.Duration
}

func (c *NodeConfig) applyDefaults() {
	if c.FingerSize == 0 {
		c.FingerSize = chord.MaxFingerEntries
	}
	if c.LivenessSize == 0 {
		c.LivenessSize = DefaultLivenessSize
	}
	if c.LivenessTTL == 0 {
		c.LivenessTTL = timing.LivenessTTL
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = timing.ChordPingTimeout
	}
}

func (c *NodeConfig) Validate() error {
	if c == nil {
		return errors.New("nil NodeConfig")
	}
	if c.Logger == nil {
		return errors.New("nil Logger")
	}
	if !c.Identity.Host.IsValid() {
		return errors.New("invalid Identity, missing host")
	}
	if c.Factory == nil {
		return errors.New("nil Factory")
	}
	if c.FingerSize < 0 || c.FingerSize > chord.MaxFingerEntries {
		return fmt.Errorf("invalid FingerSize, must be between 0 and %d", chord.MaxFingerEntries)
	}
	if c.LivenessSize < 0 {
		return errors.New("invalid LivenessSize, must not be negative")
	}
	if c.LivenessTTL < 0 {
		return errors.New("invalid LivenessTTL, must not be negative")
	}
	if c.ProbeTimeout < 0 {
		return errors.New("invalid ProbeTimeout, must not be negative")
	}
	return nil
}
