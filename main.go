package main

import (
	"context"
	"fmt"
	"os"

	"go.miragespace.co/chord/cmd/chord"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := chord.App.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
