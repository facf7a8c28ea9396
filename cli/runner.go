// Command execution for CLI commands.
//
// Information Hiding:
// - Engine setup hidden
// - Progress rendering hidden
// - Output formatting hidden

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/chirag127/spokablepdf/chunker"
	"github.com/chirag127/spokablepdf/config"
	"github.com/chirag127/spokablepdf/engine"
	"github.com/chirag127/spokablepdf/llm"
	"github.com/chirag127/spokablepdf/progress"
	"github.com/chirag127/spokablepdf/storage"
)

// Options holds CLI execution options.
type Options struct {
	Provider    string
	Output      string // narration file path; empty means stdout
	Turbo       bool
	Concurrency int
	Verbose     bool
	NoHistory   bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		Provider: "gemini",
	}
}

// Narrate converts one extracted document into speech-ready narration.
func Narrate(ctx context.Context, input string, opts Options) error {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return err
	}
	if opts.Turbo {
		settings.Run.Turbo = true
	}
	if opts.Concurrency > 0 {
		settings.Run.Concurrency = opts.Concurrency
	}

	providerType, err := llm.ParseProviderType(settings.Provider)
	if err != nil {
		return err
	}
	creds, err := providerType.CredentialsFromEnv()
	if err != nil {
		return err
	}
	tiers := settings.Tiers
	if len(tiers) == 0 {
		tiers = providerType.DefaultTiers()
	}

	client := llm.NewClient(providerType, settings.Run.CallTimeout)
	eng := engine.New(client, creds, engineOptions(settings, tiers))

	unsubscribe := eng.Tracker().Subscribe(progressPrinter(opts.Verbose))
	defer unsubscribe()

	// First interrupt stops claiming new batches and lets in-flight
	// calls finish; a second one aborts outright.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nStopping after in-flight batches; interrupt again to abort.")
			eng.Cancel()
		case <-runCtx.Done():
			return
		}
		select {
		case <-sigCh:
			stop()
		case <-runCtx.Done():
		}
	}()

	extractor := NewFileExtractor()
	extraction, err := extractor.Extract(runCtx, input)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	assembly, err := eng.Run(runCtx, extraction)
	if err != nil {
		return err
	}
	duration := time.Since(startedAt)

	renderer := NewFileRenderer(opts.Output)
	if err := renderer.Render(ctx, assembly.Text, assembly.Stats); err != nil {
		return err
	}

	printReport(assembly, duration)

	if !opts.NoHistory {
		if err := saveHistory(ctx, settings, eng.Tracker().Status(), assembly, input, startedAt, duration); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record history: %v\n", err)
		}
	}

	if assembly.Stats.Failed > 0 {
		return fmt.Errorf("%d of %d batches produced no output", assembly.Stats.Failed, assembly.Stats.TotalBatches)
	}
	return nil
}

// engineOptions maps settings onto the engine's option struct.
func engineOptions(settings config.Settings, tiers []string) engine.Options {
	return engine.Options{
		Chunk: chunker.Options{
			BatchTokens:   settings.Chunk.BatchTokens,
			OverlapTokens: settings.Chunk.OverlapTokens,
		},
		Retry: engine.RetryConfig{
			MaxRetries:       settings.Retry.MaxRetries,
			BaseDelay:        settings.Retry.BaseDelay,
			RateLimitPenalty: settings.Retry.RateLimitPenalty,
		},
		Scheduler: engine.SchedulerConfig{
			Concurrency: settings.Run.Concurrency,
			Turbo:       settings.Run.Turbo,
		},
		Pacing: settings.Run.PacingInterval,
		Tiers:  tiers,
		Gen: llm.GenConfig{
			Temperature:     float32(settings.Gen.Temperature),
			TopP:            float32(settings.Gen.TopP),
			TopK:            int32(settings.Gen.TopK),
			MaxOutputTokens: int32(settings.Gen.MaxOutputTokens),
		},
		SerialRetry: settings.Run.SerialRetry,
	}
}

// progressPrinter renders snapshots to stderr. The verbose form prints a
// line per event; the compact form rewrites a single status line.
func progressPrinter(verbose bool) progress.Subscriber {
	return func(snap progress.Snapshot) {
		switch snap.Stage {
		case progress.StageCompleted:
			fmt.Fprintf(os.Stderr, "\rDone: %d/%d batches in %s%s\n",
				snap.CurrentStep, snap.TotalSteps, snap.Elapsed.Round(time.Second), clearEOL)
			return
		case progress.StageFailed:
			fmt.Fprintf(os.Stderr, "\rStopped: %s%s\n", snap.Message, clearEOL)
			return
		}

		eta := "--"
		if snap.ETAKnown {
			eta = snap.ETA.Round(time.Second).String()
		}
		line := fmt.Sprintf("[%s] %5.1f%% (%d/%d) elapsed %s eta %s",
			snap.Stage, snap.Percent, snap.CurrentStep, snap.TotalSteps,
			snap.Elapsed.Round(time.Second), eta)
		if snap.Errors > 0 {
			line += fmt.Sprintf(" errors %d", snap.Errors)
		}
		if verbose {
			fmt.Fprintln(os.Stderr, line)
		} else {
			fmt.Fprintf(os.Stderr, "\r%s%s", line, clearEOL)
		}
	}
}

// clearEOL erases the remainder of the status line.
const clearEOL = "\x1b[K"

// printReport summarizes the run and lists batches without output.
func printReport(assembly engine.Assembly, duration time.Duration) {
	fmt.Fprintf(os.Stderr, "Batches: %d succeeded, %d failed of %d (%.0f%%) in %s\n",
		assembly.Stats.Succeeded, assembly.Stats.Failed, assembly.Stats.TotalBatches,
		assembly.Stats.SuccessRate()*100, duration.Round(time.Second))
	for _, failure := range assembly.Failures {
		fmt.Fprintf(os.Stderr, "  batch %d: %s\n", failure.SequenceNumber, failure.Error)
	}
}

// saveHistory records the finished job.
func saveHistory(ctx context.Context, settings config.Settings, status progress.Snapshot,
	assembly engine.Assembly, input string, startedAt time.Time, duration time.Duration) error {

	store, err := storage.OpenSqlite(settings.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	record := storage.JobRecord{
		ID:           uuid.NewString(),
		Source:       input,
		Provider:     settings.Provider,
		CreatedAt:    startedAt,
		Duration:     duration,
		Stage:        status.Stage.String(),
		TotalBatches: assembly.Stats.TotalBatches,
		Succeeded:    assembly.Stats.Succeeded,
		Failed:       assembly.Stats.Failed,
		Narration:    assembly.Text,
	}
	for _, failure := range assembly.Failures {
		record.Failures = append(record.Failures, storage.FailureRecord{
			SequenceNumber: failure.SequenceNumber,
			Error:          failure.Error,
		})
	}
	return store.SaveJob(ctx, record)
}
