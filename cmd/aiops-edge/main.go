package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	aiops "github.com/abheet19/telemetry-ai-ops"
	"github.com/abheet19/telemetry-ai-ops/internal/adapters/deadletter"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "deadletters":
		err = deadLettersCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("aiops-edge %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to edge configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow, err := aiops.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := aiops.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	fmt.Printf("  collector=%s queue=%s batch_size=%d flush_interval=%s max_concurrent=%d\n",
		cfg.Collector.Kind, cfg.Queue.Backend,
		cfg.Dispatch.BatchSize, cfg.Dispatch.FlushInterval, cfg.Dispatch.MaxConcurrentDispatches)
	if cfg.Analyzer.APIKey == "" {
		fmt.Println("  analyzer disabled: OPENAI_API_KEY not set, uncertain records stay unresolved")
	}
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: 5 * time.Second}

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(client, *url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var snapshotMetrics = []string{
	ports.MetricIngested,
	ports.MetricQueueLength,
	ports.MetricBufferSize,
	ports.MetricInflight,
	ports.MetricAICalls,
	ports.MetricAIErrors,
	ports.MetricDeadLetterBytes,
}

func printMetricsSnapshot(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := scanMetrics(bufio.NewScanner(resp.Body), snapshotMetrics)
	if err != nil {
		return err
	}

	fmt.Printf("[%s] ingested=%.0f queue=%.0f buffered=%.0f inflight=%.0f ai_calls=%.0f ai_errors=%.0f deadletter_bytes=%.0f\n",
		time.Now().Format(time.RFC3339),
		values[ports.MetricIngested],
		values[ports.MetricQueueLength],
		values[ports.MetricBufferSize],
		values[ports.MetricInflight],
		values[ports.MetricAICalls],
		values[ports.MetricAIErrors],
		values[ports.MetricDeadLetterBytes],
	)
	return nil
}

// scanMetrics reads unlabelled samples for names from Prometheus text output.
func scanMetrics(scanner *bufio.Scanner, names []string) (map[string]float64, error) {
	values := make(map[string]float64, len(names))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range names {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					values[key] = value
				}
			}
		}
	}
	return values, scanner.Err()
}

func deadLettersCommand(args []string) error {
	fs := flag.NewFlagSet("deadletters", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Configuration file naming the journal directory")
	dir := fs.String("dir", "", "Journal directory (overrides the config)")
	from := fs.Uint64("from", 0, "First entry id to print")
	verbose := fs.Bool("v", false, "Print every record of each batch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	journalDir := *dir
	if journalDir == "" {
		cfg, err := aiops.LoadConfig(*cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		journalDir = cfg.DeadLetter.Dir
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBATCH\tRECORDS\tATTEMPTS\tFAILED AT\tREASON")

	var n int
	err := deadletter.ReadDir(journalDir, ports.DeadLetterID(*from), func(id ports.DeadLetterID, dl *ports.DeadLetter) error {
		n++
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n",
			id, dl.BatchID, len(dl.Records), dl.Attempts, dl.FailedAt.Format(time.RFC3339), dl.Reason)
		if *verbose {
			for _, r := range dl.Records {
				fmt.Fprintf(tw, "\t  %s\tseq=%d\t\t%s\t%v\n", r.DeviceID, r.Seq, r.Timestamp.Format(time.RFC3339), r.Values)
			}
		}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		fmt.Printf("no dead-letter journal in %s\n", journalDir)
		return nil
	}
	if err != nil {
		return err
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d dead-lettered batches in %s\n", n, journalDir)
	return nil
}

func printUsage() {
	fmt.Printf(`telemetry-ai-ops edge CLI

Usage:
  aiops-edge <command> [flags]

Commands:
  run          Start the edge runtime using the provided config
  validate     Load and validate a config file without starting the runtime
  stats        Poll the Prometheus metrics endpoint and print live counters
  deadletters  List batches that failed every dispatch attempt

Examples:
  aiops-edge run -config ./data/config.yaml
  aiops-edge validate -config ./data/config.yaml
  aiops-edge stats -url http://localhost:9100/metrics -interval 1s
  aiops-edge deadletters -dir ./data/deadletters -v
`)
}
