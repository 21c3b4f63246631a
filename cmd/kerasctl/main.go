package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kerasbridge/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cli.Run(ctx, os.Args[1:], cli.Options{}); err != nil {
		fmt.Fprintln(os.Stderr, "kerasctl:", err)
		stop()
		os.Exit(1)
	}
}
