package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gdp-growth-pipeline/internal/config"
	"gdp-growth-pipeline/internal/logging"
	"gdp-growth-pipeline/internal/model"
	"gdp-growth-pipeline/internal/pipeline"
	"gdp-growth-pipeline/internal/store"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer) error {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging, os.Stderr)

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	opts := pipeline.Options{
		RunID:  uuid.New().String(),
		Out:    out,
		Logger: logger,
	}
	if st := openHistory(ctx, cfg, opts.RunID, out, logger); st != nil {
		defer st.Close()
		opts.Store = st
	}

	fmt.Fprintln(out, "GDP Growth Year-over-Year Analysis")
	fmt.Fprintln(out, "Fetching and analyzing data for major world economies...")
	fmt.Fprintln(out)

	_, err = pipeline.Run(ctx, cfg, opts)
	return err
}

// openHistory opens the run store and records the run as pending. It
// returns nil when history is unavailable; the analysis still runs.
func openHistory(ctx context.Context, cfg config.Config, runID string, out io.Writer, logger *slog.Logger) *store.Store {
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Warn("run history disabled", "db_path", cfg.DatabasePath, "error", err)
		fmt.Fprintf(out, "⚠️  Run history unavailable: %v\n", err)
		return nil
	}

	now := time.Now().UTC()
	if err := st.SaveRun(ctx, model.RunRecord{
		ID:        runID,
		Status:    model.StatusPending,
		StartYear: cfg.Analysis.StartYear,
		EndYear:   cfg.Analysis.EndYear,
		OutputDir: cfg.OutputDir,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		logger.Warn("run history disabled", "db_path", cfg.DatabasePath, "error", err)
		fmt.Fprintf(out, "⚠️  Run history unavailable: %v\n", err)
		st.Close()
		return nil
	}
	return st
}
