package lookup

import (
	"context"
	"fmt"
	"strconv"

	chordImpl "go.miragespace.co/chord/chord"
	"go.miragespace.co/chord/rpc"
	"go.miragespace.co/chord/spec/chord"
	"go.miragespace.co/chord/timing"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func Generate() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "find the successor of a key by walking the ring",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "via",
				Usage:    "Entry node as `ID@IP:PORT`",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:  "id",
				Usage: "Ring position to look up",
			},
			&cli.StringFlag{
				Name:  "key",
				Usage: "Look up the ring position of `KEY` hashed with xxh3",
			},
			&cli.IntFlag{
				Name:  "max-hops",
				Value: chordImpl.DefaultMaxHops,
				Usage: "Give up after this many hops",
			},
			&cli.UintFlag{
				Name:  "retries",
				Value: chordImpl.DefaultRetryAttempts,
				Usage: "Attempts per hop while a node has no viable candidate",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: timing.ChordLookupTimeout,
				Usage: "Deadline of the whole lookup",
			},
		},
		Before: func(ctx *cli.Context) error {
			if ctx.IsSet("id") == ctx.IsSet("key") {
				return fmt.Errorf("exactly one of --id or --key is required")
			}
			if ctx.Int("max-hops") < 1 {
				return fmt.Errorf("max hops must be positive")
			}
			if ctx.Uint("retries") < 1 {
				return fmt.Errorf("retries must be positive")
			}
			return nil
		},
		Action: cmdLookup,
	}
}

func lookupKey(ctx *cli.Context) uint64 {
	if ctx.IsSet("key") {
		return chord.Hash([]byte(ctx.String("key")))
	}
	return ctx.Uint64("id")
}

func cmdLookup(ctx *cli.Context) error {
	logger, ok := ctx.App.Metadata["logger"].(*zap.Logger)
	if !ok || logger == nil {
		return fmt.Errorf("unable to obtain logger from app context")
	}

	via, err := chord.ParsePeer(ctx.String("via"))
	if err != nil {
		return err
	}

	pool := rpc.NewPool(rpc.PoolConfig{
		Logger: logger.With(zap.String("component", "pool")),
		Size:   rpc.DefaultPoolSize,
		Client: rpc.DefaultClientConfig(),
	})
	defer pool.Close()

	factory := &chordImpl.Factory{
		Logger: logger.With(zap.String("component", "remote")),
		Pool:   pool,
	}

	entry, err := factory.CreatePeerHandle(via)
	if err != nil {
		return err
	}
	defer entry.Close()

	resolver := chordImpl.NewResolver(chordImpl.ResolverConfig{
		Logger:        logger.With(zap.String("component", "resolver")),
		Factory:       factory,
		Entry:         entry,
		MaxHops:       ctx.Int("max-hops"),
		RetryAttempts: ctx.Uint("retries"),
	})
	defer resolver.Close()

	lookupCtx, cancel := context.WithTimeout(ctx.Context, ctx.Duration("timeout"))
	defer cancel()

	key := lookupKey(ctx)
	route, err := resolver.Walk(lookupCtx, key)
	printRoute(ctx, route, err)
	return err
}

func printRoute(ctx *cli.Context, route chordImpl.Route, err error) {
	w := ctx.App.Writer

	pathTable := table.NewWriter()
	pathTable.SetOutputMirror(w)
	pathTable.AppendHeader(table.Row{"Hop", "ID", "Address"})
	for i, p := range route.Path {
		pathTable.AppendRow(table.Row{i, strconv.FormatUint(p.ID, 10), p.Address()})
	}
	pathTable.SetStyle(table.StyleDefault)
	pathTable.Render()

	keyStr := strconv.FormatUint(route.Key, 10)
	if err != nil {
		fmt.Fprintf(w, "%s %s: %v\n", color.New(color.FgRed, color.Bold).Sprint("FAILED"), keyStr, err)
		return
	}
	fmt.Fprintf(w, "%s %s -> %s\n", color.New(color.FgGreen, color.Bold).Sprint("SUCCESSOR"), keyStr, color.CyanString(route.Successor.String()))
}
