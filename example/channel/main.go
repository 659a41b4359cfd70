package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	aiops "github.com/abheet19/telemetry-ai-ops"
)

func main() {
	flow, err := aiops.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, results, closeResults := aiops.NewChannelSink("alerts", 32)
	defer closeResults()

	go alertWorker(results)

	if err := flow.Run(ctx, aiops.StreamOutSink(sink)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

// alertWorker prints only the records that needed attention.
func alertWorker(results <-chan *aiops.BatchResult) {
	for res := range results {
		if res.Failed() {
			fmt.Printf("[%s] batch %s failed after %d attempts: %v\n",
				time.Now().Format(time.RFC3339), res.Batch.ID, res.Attempts, res.Err)
			continue
		}
		for i, o := range res.Outcomes {
			if o.Verdict == aiops.VerdictHealthy {
				continue
			}
			fmt.Printf("[%s] %s: %s\n", time.Now().Format(time.RFC3339), res.Batch.Records[i].DeviceID, o.Message)
		}
	}
}
