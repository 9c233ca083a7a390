package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lampctl/lampctl/cmd/lampctl/commands"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	// Cancel on interrupt: the executor treats cancellation as failure of
	// the in-flight operation and rolls back before exiting.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	os.Exit(commands.Execute(ctx, Version, Commit, BuildDate))
}
