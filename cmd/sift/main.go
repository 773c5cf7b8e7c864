package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Ctrl+C / SIGTERM cancel the command context so the server can
	// drain workers and close the store before exiting.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rootCmd.ExecuteContext(ctx) != nil {
		// Cobra already printed the error.
		os.Exit(1)
	}
}
