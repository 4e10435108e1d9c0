package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gdp-growth-pipeline/internal/config"
	"gdp-growth-pipeline/internal/logging"
	"gdp-growth-pipeline/internal/metrics"
	"gdp-growth-pipeline/internal/model"
	"gdp-growth-pipeline/pkg/utils"
)

// ErrRunInProgress is returned by Launch while another run is executing.
var ErrRunInProgress = errors.New("a run is already in progress")

// RunRecorder is a RunStore that can also create runs.
type RunRecorder interface {
	RunStore
	SaveRun(ctx context.Context, run model.RunRecord) error
}

// Runner starts background runs for the API, one at a time. Each run
// writes into its own directory under the configured output directory.
type Runner struct {
	cfg     config.Config
	store   RunRecorder
	metrics *metrics.Metrics
	logger  *slog.Logger
	outputs *utils.OutputManager

	// Source overrides the World Bank client, for tests.
	Source Source
	// Timeout bounds a background run unless Launch is given one.
	Timeout time.Duration

	mu      sync.Mutex
	running string
	wg      sync.WaitGroup
}

func NewRunner(cfg config.Config, store RunRecorder, m *metrics.Metrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		cfg:     cfg,
		store:   store,
		metrics: m,
		logger:  logger,
		outputs: utils.NewOutputManager(cfg.OutputDir),
		Timeout: 5 * time.Minute,
	}
}

// Launch records a pending run and starts it in the background. A zero
// timeout uses r.Timeout.
func (r *Runner) Launch(ctx context.Context, runID string, timeout time.Duration) (model.RunRecord, error) {
	r.mu.Lock()
	if r.running != "" {
		r.mu.Unlock()
		return model.RunRecord{}, ErrRunInProgress
	}
	r.running = runID
	r.mu.Unlock()

	record, err := r.prepare(ctx, runID)
	if err != nil {
		r.release()
		return model.RunRecord{}, err
	}

	if timeout <= 0 {
		timeout = r.Timeout
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release()

		runCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		_, err := Run(runCtx, r.cfg, Options{
			RunID:     runID,
			OutputDir: record.OutputDir,
			Out:       io.Discard,
			Logger:    r.logger,
			Store:     r.store,
			Metrics:   r.metrics,
			Source:    r.Source,
		})
		if err != nil {
			r.logger.Error("background run failed", "run_id", runID, "error", err)
		}
	}()

	return record, nil
}

func (r *Runner) prepare(ctx context.Context, runID string) (model.RunRecord, error) {
	dir, err := r.outputs.CreateJobOutputDir(runID)
	if err != nil {
		return model.RunRecord{}, err
	}

	now := time.Now().UTC()
	record := model.RunRecord{
		ID:        runID,
		Status:    model.StatusPending,
		StartYear: r.cfg.Analysis.StartYear,
		EndYear:   r.cfg.Analysis.EndYear,
		OutputDir: dir,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.SaveRun(ctx, record); err != nil {
		return model.RunRecord{}, fmt.Errorf("failed to save run: %w", err)
	}
	return record, nil
}

func (r *Runner) release() {
	r.mu.Lock()
	r.running = ""
	r.mu.Unlock()
}

// Running returns the ID of the executing run, or "".
func (r *Runner) Running() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Wait blocks until every launched run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
