package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Cancel polling on Ctrl+C; the batch keeps running on the provider side.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
