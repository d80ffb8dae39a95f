package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"jobwatch/internal/adapters/analysisapi"
	"jobwatch/internal/adapters/resultarchive"
	"jobwatch/internal/adapters/sqlitestore"
	"jobwatch/internal/core/domain"
	"jobwatch/internal/service"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, environment variables might be set manually
		log.Println("No .env file found")
	}

	url := flag.String("url", "", "post URL to submit for analysis")
	itemID := flag.String("item-id", "", "saved-item id to associate with the job (generated when empty)")
	apiBase := flag.String("api", envOrDefault("ANALYSIS_API_URL", "http://localhost:8080"), "analysis service base URL")
	token := flag.String("token", os.Getenv("ANALYSIS_API_TOKEN"), "analysis service bearer token")
	dataDir := flag.String("data-dir", "./data", "base directory for job state and archived results")
	interval := flag.Duration("interval", service.DefaultPollInterval, "pause between status checks")
	attempts := flag.Int("attempts", service.DefaultMaxAttempts, "maximum status checks before giving up")
	flag.Parse()

	if *url == "" {
		fmt.Println("Usage: jobwatch-cli -url <post-url> [-item-id <id>] [-data-dir <path>]")
		fmt.Println("\nExample:")
		fmt.Println("  jobwatch-cli -url https://x.com/someone/status/1234567890")
		fmt.Println("  jobwatch-cli -url https://www.instagram.com/p/AbCdEf/")
		os.Exit(1)
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	logger.Println("=== Analysis Job Watcher ===")
	logger.Printf("URL: %s", *url)
	logger.Printf("Data Directory: %s", *dataDir)

	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		logger.Fatalf("Failed to create data directory: %v", err)
	}

	store, err := sqlitestore.New(filepath.Join(*dataDir, "jobs.db"))
	if err != nil {
		logger.Fatalf("Failed to open job store: %v", err)
	}
	defer store.Close()

	engine := service.NewEngine(service.Config{
		Client:      analysisapi.New(*apiBase, *token),
		Store:       store,
		Archive:     resultarchive.New(*dataDir),
		Logger:      logger,
		Interval:    *interval,
		MaxAttempts: *attempts,
		RefreshItem: func(itemID, url string) {
			logger.Printf("item %s refreshed after background completion of %s", itemID, url)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Println("\nReceived interrupt signal, cancelling...")
		engine.CancelJob()
		cancel()
	}()

	progressSub := engine.Bus().Subscribe(domain.EventProgress, func(evt domain.Event) {
		logger.Printf("[JOB %s] progress: %d%%", evt.JobID, evt.Progress)
	})
	defer engine.Bus().Unsubscribe(progressSub)

	recoveredSub := engine.Bus().Subscribe(domain.EventRecovered, func(evt domain.Event) {
		logger.Printf("[JOB %s] recovered from previous run, status: %s", evt.JobID, evt.RecoveredStatus)
	})
	defer engine.Bus().Unsubscribe(recoveredSub)

	outcome := watchOutcome(engine, *url)

	// Resolve or resume anything a previous run left behind before
	// submitting new work.
	if err := engine.Recover(ctx); err != nil {
		logger.Printf("Recovery failed: %v", err)
	}

	start := time.Now()

	if rec, polling, err := engine.CheckForExistingJob(ctx, *url); err != nil {
		logger.Printf("Existing-job check failed: %v", err)
	} else if rec != nil && polling {
		logger.Printf("[JOB %s] this URL is already being analyzed, attaching", rec.JobID)
		waitAndSummarize(ctx, logger, outcome, start)
		return
	}

	item := *itemID
	if item == "" {
		item = uuid.New().String()
	}

	status, err := engine.StartJob(ctx, *url, item)
	switch {
	case err == nil:
		printSummary(logger, "completed", string(status.Result), "", start)
	case errors.Is(err, domain.ErrCancelled):
		printSummary(logger, "cancelled", "", "", start)
	case errors.Is(err, domain.ErrDuplicateJob):
		logger.Fatalf("An active job already exists for this URL; retry later or cancel it first (%v)", err)
	default:
		var timedOut *domain.TimeoutError
		if errors.As(err, &timedOut) {
			printSummary(logger, "still working in background", "", err.Error(), start)
			os.Exit(1)
		}
		printSummary(logger, "failed", "", err.Error(), start)
		os.Exit(1)
	}
}

// watchOutcome funnels the terminal event for url into a channel, so the CLI
// can also wait on jobs it did not start itself.
func watchOutcome(engine *service.Engine, url string) <-chan domain.Event {
	outcome := make(chan domain.Event, 1)
	for _, kind := range []domain.EventKind{domain.EventCompleted, domain.EventFailed, domain.EventCancelled} {
		engine.Bus().Subscribe(kind, func(evt domain.Event) {
			if evt.URL != url {
				return
			}
			select {
			case outcome <- evt:
			default:
			}
		})
	}
	return outcome
}

func waitAndSummarize(ctx context.Context, logger *log.Logger, outcome <-chan domain.Event, start time.Time) {
	select {
	case <-ctx.Done():
		printSummary(logger, "cancelled", "", "", start)
	case evt := <-outcome:
		printSummary(logger, string(evt.Kind), string(evt.Result), evt.Error, start)
	}
}

func printSummary(logger *log.Logger, outcome, result, errMsg string, start time.Time) {
	fmt.Println("\n=== Job Summary ===")
	fmt.Printf("Outcome:      %s\n", outcome)
	if errMsg != "" {
		fmt.Printf("Error:        %s\n", errMsg)
	}
	if result != "" {
		fmt.Printf("Result:       %s\n", result)
	}
	fmt.Printf("Elapsed:      %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("Finished At:  %s\n", time.Now().Format("2006-01-02 15:04:05 UTC"))
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
