package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	aiops "github.com/abheet19/telemetry-ai-ops"
)

func main() {
	flow, err := aiops.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("edge runtime exited: %v", err)
	}
}
