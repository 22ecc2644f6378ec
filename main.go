package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := Root.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("Command failed", "err", err)
		os.Exit(1)
	}
}
