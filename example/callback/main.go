package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/abheet19/telemetry-ai-ops/pkg/aiops"
)

func main() {
	flow, err := aiops.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(res *aiops.BatchResult) error {
		for i, rec := range res.Batch.Records {
			o := res.Outcomes[i]
			fmt.Printf("%s batch=%s device=%s seq=%d verdict=%s %s\n",
				rec.Timestamp.Format(time.RFC3339Nano),
				res.Batch.ID,
				rec.DeviceID,
				rec.Seq,
				o.Verdict,
				o.Message,
			)
		}
		return nil
	}

	if err := flow.Run(ctx, aiops.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
