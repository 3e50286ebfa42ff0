package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	chordImpl "go.miragespace.co/chord/chord"
	cmdlisten "go.miragespace.co/chord/cmd/internal/listen"
	"go.miragespace.co/chord/metrics"
	"go.miragespace.co/chord/rpc"
	"go.miragespace.co/chord/spec/chord"
	rpcSpec "go.miragespace.co/chord/spec/rpc"
	"go.miragespace.co/chord/timing"
	"go.miragespace.co/chord/util"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func Generate() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "host virtual nodes and answer chord lookups",
		Description: `Host one or more virtual nodes of a chord ring in this process and answer FindSuccessor,
	GetPredecessor and Ping calls on their behalf.

	Routing state is not maintained by this process: provide predecessors, successors and fingers of every
	node in the node file given by --config. Nodes added with --virtual-nodes start with an empty routing table.`,
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "address",
				Aliases:  []string{"a"},
				Usage:    "`IP:PORT` to accept chord RPC on. Repeat the flag or separate with commas to listen on multiple addresses",
				Category: "Network Options",
			},
			&cli.StringFlag{
				Name:        "advertise",
				DefaultText: "first address",
				Usage:       "`IP:PORT` stamped into the identity of every hosted node",
				Category:    "Network Options",
			},
			&cli.StringFlag{
				Name:     "stats-listen",
				Usage:    "`IP:PORT` to serve the plain-text stats and ring graph endpoints on. Absent of this flag disables them",
				Category: "Network Options",
			},

			&cli.PathFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML node file describing hosted nodes and their routing state",
				Category: "Chord Options",
			},
			&cli.IntFlag{
				Name:        "virtual-nodes",
				Aliases:     []string{"n"},
				Value:       1,
				DefaultText: "1, or 0 when the node file lists nodes",
				Usage:       "Number of additional virtual nodes with random ids",
				Category:    "Chord Options",
			},
			&cli.IntFlag{
				Name:     "finger-size",
				Value:    chord.MaxFingerEntries,
				Usage:    "Number of finger entries per node",
				Category: "Chord Options",
			},

			&cli.IntFlag{
				Name:     "pool-size",
				Value:    rpc.DefaultPoolSize,
				Usage:    "Maximum number of pooled peer connections",
				Category: "Client Options",
			},
			&cli.DurationFlag{
				Name:     "connect-timeout",
				Value:    timing.ChordConnectTimeout,
				Usage:    "Timeout for establishing a peer connection",
				Category: "Client Options",
			},
			&cli.DurationFlag{
				Name:     "request-timeout",
				Value:    timing.ChordRPCTimeout,
				Usage:    "Timeout for each remote call",
				Category: "Client Options",
			},
			&cli.DurationFlag{
				Name:     "keep-alive-timeout",
				Value:    timing.ChordKeepAliveTimeout,
				Usage:    "How long to wait for a keepalive ack before dropping a peer connection",
				Category: "Client Options",
			},

			&cli.IntFlag{
				Name:     "liveness-size",
				Value:    chordImpl.DefaultLivenessSize,
				Usage:    "Number of cached liveness results per node",
				Category: "Liveness Options",
			},
			&cli.DurationFlag{
				Name:     "liveness-ttl",
				Value:    timing.LivenessTTL,
				Usage:    "How long a liveness result is trusted",
				Category: "Liveness Options",
			},
			&cli.DurationFlag{
				Name:     "probe-timeout",
				Value:    timing.ChordPingTimeout,
				Usage:    "Deadline of a single liveness probe",
				Category: "Liveness Options",
			},
		},
		Before: func(ctx *cli.Context) error {
			if ctx.Int("virtual-nodes") < 0 {
				return fmt.Errorf("number of virtual nodes must not be negative")
			}
			if m := ctx.Int("finger-size"); m < 1 || m > chord.MaxFingerEntries {
				return fmt.Errorf("finger size must be within [1, %d]", chord.MaxFingerEntries)
			}
			if ctx.Int("pool-size") < 1 {
				return fmt.Errorf("pool size must be positive")
			}
			if ctx.Int("liveness-size") < 1 {
				return fmt.Errorf("liveness size must be positive")
			}
			for _, name := range []string{"connect-timeout", "request-timeout", "keep-alive-timeout", "liveness-ttl", "probe-timeout"} {
				if ctx.Duration(name) <= 0 {
					return fmt.Errorf("%s must be positive", name)
				}
			}
			if ctx.IsSet("advertise") {
				if _, err := netip.ParseAddrPort(ctx.String("advertise")); err != nil {
					return fmt.Errorf("error parsing advertise address: %w", err)
				}
			}
			return nil
		},
		Action: cmdServer,
	}
}

// pick prefers an explicit flag, then a non-zero value from the node file,
// then the flag default.
func pick[V comparable](ctx *cli.Context, name string, file V, get func(string) V) V {
	var zero V
	if ctx.IsSet(name) || file == zero {
		return get(name)
	}
	return file
}

type settings struct {
	fingerSize   int
	poolSize     int
	extraNodes   int
	client       rpc.ClientConfig
	liveness     Liveness
	nodes        []Node
	advertise    netip.AddrPort
	hasAdvertise bool
}

func settingsFromContext(ctx *cli.Context) (settings, error) {
	file := &Config{Version: configVersion}
	if ctx.IsSet("config") {
		var err error
		file, err = NewConfig(ctx.Path("config"))
		if err != nil {
			return settings{}, err
		}
	}

	s := settings{
		fingerSize: pick(ctx, "finger-size", file.FingerSize, ctx.Int),
		poolSize:   pick(ctx, "pool-size", file.PoolSize, ctx.Int),
		extraNodes: ctx.Int("virtual-nodes"),
		client: rpc.ClientConfig{
			ConnectTimeout:   pick(ctx, "connect-timeout", file.Client.ConnectTimeout, ctx.Duration),
			RequestTimeout:   pick(ctx, "request-timeout", file.Client.RequestTimeout, ctx.Duration),
			KeepAliveTimeout: pick(ctx, "keep-alive-timeout", file.Client.KeepAliveTimeout, ctx.Duration),
		},
		liveness: Liveness{
			Size:         pick(ctx, "liveness-size", file.Liveness.Size, ctx.Int),
			TTL:          pick(ctx, "liveness-ttl", file.Liveness.TTL, ctx.Duration),
			ProbeTimeout: pick(ctx, "probe-timeout", file.Liveness.ProbeTimeout, ctx.Duration),
		},
		nodes: file.Nodes,
	}
	if !ctx.IsSet("virtual-nodes") && len(file.Nodes) > 0 {
		s.extraNodes = 0
	}
	if ctx.IsSet("advertise") {
		s.advertise, s.hasAdvertise = netip.MustParseAddrPort(ctx.String("advertise")), true
	} else {
		s.advertise, s.hasAdvertise = file.AdvertiseAddr()
	}
	return s, nil
}

// buildNodes creates every hosted node: those listed in the node file with
// their routing state, then extraNodes with random ids and empty tables.
func buildNodes(logger *zap.Logger, s settings, factory chord.HandleFactory, advertise netip.AddrPort) (map[uint64]*chordImpl.LocalNode, error) {
	nodes := make(map[uint64]*chordImpl.LocalNode, len(s.nodes)+s.extraNodes)
	newNode := func(id uint64) *chordImpl.LocalNode {
		identity := chord.NewPeer(id, advertise)
		return chordImpl.NewLocalNode(chordImpl.NodeConfig{
			Logger:       logger.With(zap.String("component", "node"), zap.Uint64("node", id)),
			Identity:     identity,
			Factory:      factory,
			FingerSize:   s.fingerSize,
			LivenessSize: s.liveness.Size,
			LivenessTTL:  s.liveness.TTL,
			ProbeTimeout: s.liveness.ProbeTimeout,
		})
	}

	for _, entry := range s.nodes {
		if _, ok := nodes[entry.ID]; ok {
			return nil, fmt.Errorf("duplicated node id %d", entry.ID)
		}
		ft, err := entry.FingerTable(s.fingerSize)
		if err != nil {
			return nil, err
		}
		node := newNode(entry.ID)
		if err := node.SetFingerTable(ft); err != nil {
			return nil, fmt.Errorf("node %d: %w", entry.ID, err)
		}
		nodes[entry.ID] = node
	}

	for i := 0; i < s.extraNodes; i++ {
		id := chord.Random()
		for {
			if _, ok := nodes[id]; !ok {
				break
			}
			id = chord.Random()
		}
		nodes[id] = newNode(id)
	}

	return nodes, nil
}

func listenAll(ctx *cli.Context, addrs []cmdlisten.Address) ([]net.Listener, error) {
	var lc net.ListenConfig
	listeners := make([]net.Listener, 0, len(addrs))
	for _, addr := range addrs {
		l, err := lc.Listen(ctx.Context, addr.Network, addr.String())
		if err != nil {
			for _, opened := range listeners {
				opened.Close()
			}
			return nil, fmt.Errorf("error setting up chord listener on %s: %w", addr.String(), err)
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}

func cmdServer(ctx *cli.Context) error {
	logger, ok := ctx.App.Metadata["logger"].(*zap.Logger)
	if !ok || logger == nil {
		return fmt.Errorf("unable to obtain logger from app context")
	}

	s, err := settingsFromContext(ctx)
	if err != nil {
		return err
	}

	addrs, err := cmdlisten.ParseAddresses("tcp", ctx.StringSlice("address"))
	if err != nil {
		return fmt.Errorf("error parsing listen addresses: %w", err)
	}
	listeners, err := listenAll(ctx, addrs)
	if err != nil {
		return err
	}
	guard := &listenerGuard{listeners: listeners}
	defer guard.Close()

	advertise := s.advertise
	switch {
	case s.hasAdvertise:
	case len(listeners) > 0:
		advertise = util.Must(netip.ParseAddrPort(listeners[0].Addr().String()))
	default:
		advertise = netip.AddrPortFrom(netip.IPv6Loopback(), 0)
		logger.Warn("No listen address is given, hosted nodes are unreachable by remote peers")
	}
	if advertise.Addr().IsUnspecified() {
		logger.Warn("Advertising an unspecified address, remote peers cannot reach hosted nodes", zap.Stringer("advertise", advertise))
	}

	pool := rpc.NewPool(rpc.PoolConfig{
		Logger: logger.With(zap.String("component", "pool")),
		Size:   s.poolSize,
		Client: s.client,
	})
	defer pool.Close()

	factory := &chordImpl.Factory{
		Logger: logger.With(zap.String("component", "remote")),
		Pool:   pool,
	}

	nodes, err := buildNodes(logger, s, factory, advertise)
	if err != nil {
		return fmt.Errorf("error creating virtual nodes: %w", err)
	}
	defer func() {
		for _, node := range nodes {
			node.Liveness().Wait()
		}
	}()

	registry := chordImpl.NewRegistry()
	if err := registry.Initialize(nodes); err != nil {
		return err
	}
	for _, node := range registry.Nodes() {
		logger.Info("Hosting virtual node", zap.Stringer("node", node.Identity()))
	}

	metrics.RegisterService(&rpcSpec.NodeServiceDesc)
	rpcServer := grpc.NewServer(append(rpcSpec.ServerOptions(), grpc.ChainUnaryInterceptor(metrics.UnaryServerInterceptor()))...)
	rpcSpec.RegisterNodeServiceServer(rpcServer, &chordImpl.Server{
		Logger:   logger.With(zap.String("component", "rpc")),
		Registry: registry,
	})

	var statsServer *http.Server
	if ctx.IsSet("stats-listen") {
		statsServer = &http.Server{
			Addr:              ctx.String("stats-listen"),
			Handler:           chordImpl.StatsHandler(registry, factory),
			ReadHeaderTimeout: time.Second * 5,
			ErrorLog:          util.GetStdLogger(logger, "stats"),
		}
	}

	sigCtx, sigCancel := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer sigCancel()

	g, gCtx := errgroup.WithContext(sigCtx)
	if len(listeners) > 0 {
		ml := newMultiListener(guard.Release())
		logger.Info("Accepting chord RPC", zap.Strings("address", ctx.StringSlice("address")), zap.Stringer("advertise", advertise))
		g.Go(func() error {
			if err := rpcServer.Serve(ml); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
	}
	if statsServer != nil {
		logger.Info("Serving stats", zap.String("listen", statsServer.Addr))
		g.Go(func() error {
			if err := statsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gCtx.Done()
		if sigCtx.Err() != nil {
			logger.Info("Received signal to stop")
		}
		if statsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
			defer cancel()
			statsServer.Shutdown(shutdownCtx)
		}
		rpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}
