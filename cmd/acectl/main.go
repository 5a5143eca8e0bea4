package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/acehq/aceauth/internal/cli"
)

func main() {
	cfg := cli.LoadConfig()

	app, err := cli.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "acectl: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "acectl: %v\n", err)
		os.Exit(1)
	}
}
