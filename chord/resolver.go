package chord

import (
	"context"
	"errors"
	"time"

	"go.miragespace.co/chord/spec/chord"
	"go.miragespace.co/chord/timing"

	"github.com/Yiling-J/theine-go"
	"go.uber.org/zap"
)

const (
	DefaultMaxHops       = 32
	DefaultRetryAttempts = 3
	defaultCacheEntries  = 4096
)

// Route is the outcome of an iterative lookup. Path lists every node that was
// asked, starting with the entry node.
type Route struct {
	Key       uint64
	Successor chord.Peer
	Path      []chord.Peer
}

type routeResult struct {
	err   error
	route Route
}

type ResolverConfig struct {
	Logger  *zap.Logger
	Factory chord.HandleFactory
	// Entry is asked first. The resolver never closes it.
	Entry chord.VNode
	// MaxHops bounds the number of ClosestPrecedingNode hops
	MaxHops       int
	RetryAttempts uint
	RetryDelay    time.Duration
	CacheEntries  int64
}

func (c *ResolverConfig) Validate() error {
	if c == nil {
		return errors.New("nil ResolverConfig")
	}
	if c.Logger == nil {
		return errors.New("nil Logger")
	}
	if c.Factory == nil {
		return errors.New("nil Factory")
	}
	if c.Entry == nil {
		return errors.New("nil Entry")
	}
	if c.MaxHops < 0 {
		return errors.New("invalid MaxHops, must not be negative")
	}
	return nil
}

// Resolver walks the ring from an entry node, following ClosestPrecedingNode
// answers until a node reports the Successor of the key.
type Resolver struct {
	ResolverConfig
	cache *theine.LoadingCache[uint64, routeResult]
}

func NewResolver(conf ResolverConfig) *Resolver {
	if err := conf.Validate(); err != nil {
		panic(err)
	}
	if conf.MaxHops == 0 {
		conf.MaxHops = DefaultMaxHops
	}
	if conf.RetryAttempts == 0 {
		conf.RetryAttempts = DefaultRetryAttempts
	}
	if conf.RetryDelay == 0 {
		conf.RetryDelay = timing.LookupRetryDelay
	}
	if conf.CacheEntries == 0 {
		conf.CacheEntries = defaultCacheEntries
	}

	r := &Resolver{
		ResolverConfig: conf,
	}
	cache, err := theine.NewBuilder[uint64, routeResult](conf.CacheEntries).
		RemovalListener(r.cacheEventListener).
		BuildWithLoader(r.cacheLoader)
	if err != nil {
		panic("BUG: " + err.Error())
	}
	r.cache = cache
	return r
}

func (r *Resolver) cacheEventListener(key uint64, ret routeResult, reason theine.RemoveReason) {
	var reasonStr string
	switch reason {
	case theine.EVICTED:
		reasonStr = "evicted"
	case theine.EXPIRED:
		reasonStr = "expired"
	case theine.REMOVED:
		reasonStr = "removed"
	default:
		reasonStr = "unknown"
	}
	r.Logger.Debug("Lookup cache entry removed", zap.Uint64("key", key), zap.String("reason", reasonStr))
}

// cacheLoader runs once for every concurrent Resolve of key, so the walk is
// detached from the cancellation of whichever caller triggered it.
func (r *Resolver) cacheLoader(ctx context.Context, key uint64) (ret theine.Loaded[routeResult], loadErr error) {
	lookupCtx, lookupCancel := context.WithTimeout(context.WithoutCancel(ctx), timing.ChordLookupTimeout)
	defer lookupCancel()

	route, err := r.Walk(lookupCtx, key)
	if err != nil {
		ret.Value.err = err
		ret.TTL = timing.LookupFailedTTL
	} else {
		ret.Value.route = route
		ret.TTL = timing.LookupPositiveTTL
	}
	ret.Cost = 1
	return
}

// Resolve returns the successor of key, answering repeated lookups from cache
func (r *Resolver) Resolve(ctx context.Context, key uint64) (Route, error) {
	ret, err := r.cache.Get(ctx, key)
	if err != nil {
		return Route{}, err
	}
	return ret.route, ret.err
}

// Walk performs an uncached lookup of key
func (r *Resolver) Walk(ctx context.Context, key uint64) (Route, error) {
	route := Route{
		Key:  key,
		Path: []chord.Peer{r.Entry.Identity()},
	}

	var (
		current = r.Entry
		handle  chord.PeerHandle
	)
	defer func() {
		if handle != nil {
			handle.Close()
		}
	}()

	for hop := 0; ; hop++ {
		next, err := chord.WrapRetry(current, r.RetryDelay, r.RetryAttempts).FindSuccessor(ctx, key)
		if err != nil {
			return route, err
		}
		if next.Kind == chord.Successor {
			route.Successor = next.Node
			return route, nil
		}
		if !chord.BetweenStrict(current.ID(), next.Node.ID, key) {
			r.Logger.Debug("Lookup did not advance",
				zap.Uint64("key", key),
				zap.Uint64("node", current.ID()),
				zap.Uint64("next", next.Node.ID),
			)
			return route, chord.ErrLookupNoProgress
		}
		if hop+1 > r.MaxHops {
			return route, chord.ErrLookupHopLimit
		}

		nextHandle, err := r.Factory.CreatePeerHandle(next.Node)
		if err != nil {
			return route, err
		}
		if handle != nil {
			handle.Close()
		}
		handle = nextHandle
		current = nextHandle
		route.Path = append(route.Path, next.Node)
	}
}

func (r *Resolver) Close() {
	r.cache.Close()
}
