package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"gdp-growth-pipeline/internal/metrics"
	"gdp-growth-pipeline/internal/model"
	"gdp-growth-pipeline/pkg/utils"
)

// RunStore is the persistence the pipeline reports progress to.
type RunStore interface {
	UpdateRunStatus(ctx context.Context, runID, status string) error
	SetRunSource(ctx context.Context, runID, source, reason string) error
	SaveRunError(ctx context.Context, runID string, err error) error
	SaveStageProgress(ctx context.Context, runID string, p model.StageProgress) error
	SaveStatistics(ctx context.Context, runID string, s model.SummaryStats) error
	SaveMatrix(ctx context.Context, runID string, m *model.GrowthMatrix) error
	SaveArtifact(ctx context.Context, runID string, a model.Artifact) error
}

// Tracker times stages and fans progress out to the console, the log,
// the run store and metrics. Store and metrics are optional.
type Tracker struct {
	RunID   string
	out     io.Writer
	logger  *slog.Logger
	store   RunStore
	metrics *metrics.Metrics
	outputs *utils.OutputManager
	stages  []model.StageProgress
	start   time.Time
}

func NewTracker(runID string, out io.Writer, logger *slog.Logger, store RunStore, m *metrics.Metrics, outputs *utils.OutputManager) *Tracker {
	return &Tracker{
		RunID:   runID,
		out:     out,
		logger:  logger,
		store:   store,
		metrics: m,
		outputs: outputs,
		start:   time.Now(),
	}
}

// Printf writes a progress line to the console.
func (t *Tracker) Printf(format string, args ...any) {
	fmt.Fprintf(t.out, format, args...)
}

// Stage runs fn as the named stage. fn returns how many items it handled.
func (t *Tracker) Stage(ctx context.Context, name string, fn func() (int, error)) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s stage not started: %w", name, err)
	}

	p := model.StageProgress{Stage: name, Status: "running", StartedAt: time.Now()}
	t.logger.DebugContext(ctx, "stage started", "stage", name)

	items, err := fn()

	end := time.Now()
	p.EndedAt = &end
	p.Duration = end.Sub(p.StartedAt)
	p.Items = items
	p.Status = "completed"
	if err != nil {
		p.Status = "failed"
	}
	t.stages = append(t.stages, p)
	t.metrics.ObserveStage(name, p.Duration)

	if t.store != nil {
		if serr := t.store.SaveStageProgress(ctx, t.RunID, p); serr != nil {
			t.logger.WarnContext(ctx, "failed to save stage progress", "stage", name, "error", serr)
		}
	}
	if err != nil {
		t.logger.ErrorContext(ctx, "stage failed", "stage", name, "duration", p.Duration, "error", err)
		return err
	}
	t.logger.InfoContext(ctx, "stage completed", "stage", name, "duration", p.Duration, "items", items)
	return nil
}

// Status moves the run to a new status.
func (t *Tracker) Status(ctx context.Context, status string) {
	if t.store == nil {
		return
	}
	if err := t.store.UpdateRunStatus(ctx, t.RunID, status); err != nil {
		t.logger.WarnContext(ctx, "failed to update run status", "status", status, "error", err)
	}
}

// Source records which data the run analyses.
func (t *Tracker) Source(ctx context.Context, source, reason string) {
	if t.store == nil {
		return
	}
	if err := t.store.SetRunSource(ctx, t.RunID, source, reason); err != nil {
		t.logger.WarnContext(ctx, "failed to record data source", "source", source, "error", err)
	}
}

// Fail records a run-ending error.
func (t *Tracker) Fail(ctx context.Context, err error) {
	t.Printf("❌ Run %s failed after %v: %v\n", t.RunID, time.Since(t.start).Round(time.Millisecond), err)
	if t.store == nil {
		return
	}
	// the run context may already be done; the failure still has to land
	bg := context.WithoutCancel(ctx)
	if serr := t.store.SaveRunError(bg, t.RunID, err); serr != nil {
		t.logger.WarnContext(ctx, "failed to save run error", "error", serr)
	}
	t.Status(bg, model.StatusFailed)
}

// Artifact registers a written output file.
func (t *Tracker) Artifact(ctx context.Context, path string) {
	kind := t.outputs.GetFileType(path)
	t.metrics.ArtifactWritten(kind)
	t.Printf("💾 Saved: %s\n", path)

	if t.store == nil {
		return
	}
	size, err := t.outputs.GetFileSize(path)
	if err != nil {
		t.logger.WarnContext(ctx, "failed to stat artifact", "path", path, "error", err)
	}
	a := model.Artifact{Name: filepath.Base(path), Type: kind, Path: path, Size: size}
	if err := t.store.SaveArtifact(ctx, t.RunID, a); err != nil {
		t.logger.WarnContext(ctx, "failed to save artifact", "path", path, "error", err)
	}
}

// Stages returns the stages recorded so far.
func (t *Tracker) Stages() []model.StageProgress {
	return append([]model.StageProgress(nil), t.stages...)
}

// Elapsed is the time since the tracker was created.
func (t *Tracker) Elapsed() time.Duration {
	return time.Since(t.start)
}
