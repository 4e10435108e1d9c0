package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gdp-growth-pipeline/internal/config"
	"gdp-growth-pipeline/internal/logging"
	"gdp-growth-pipeline/internal/metrics"
	"gdp-growth-pipeline/internal/model"
	"gdp-growth-pipeline/pkg/utils"
)

// Options carries the collaborators of one run. Everything except RunID is
// optional.
type Options struct {
	RunID     string
	OutputDir string // defaults to cfg.OutputDir
	Out       io.Writer
	Logger    *slog.Logger
	Store     RunStore
	Metrics   *metrics.Metrics
	Source    Source
}

// Result is what a finished run produced.
type Result struct {
	RunID        string
	DataSource   string
	Fallback     *AcquisitionError
	Matrix       *model.GrowthMatrix
	Stats        model.SummaryStats
	Correlations *model.CorrelationMatrix
	Artifacts    []model.ExportResult
	Stages       []model.StageProgress
}

// AcquireResult holds either a usable matrix or the reason there is none.
type AcquireResult struct {
	Matrix  *model.GrowthMatrix
	Dropped int
	Err     *AcquisitionError
}

// ------------------- Acquisition -------------------

// Acquire queries src exactly once and shapes the response into a growth
// matrix. It never falls back on its own.
func Acquire(ctx context.Context, src Source, a config.AnalysisConfig) AcquireResult {
	obs, err := src.Fetch(ctx, a.Indicator, a.CountryCodes(), a.StartYear, a.EndYear)
	if err != nil {
		var acqErr *AcquisitionError
		if !errors.As(err, &acqErr) {
			acqErr = &AcquisitionError{Kind: FailureTransport, Err: err}
		}
		return AcquireResult{Err: acqErr}
	}
	if len(obs) == 0 {
		return AcquireResult{Err: acquisitionErr(FailureEmpty, "source returned no observations")}
	}

	m, dropped := PivotObservations(obs, a.Economies, a.StartYear, a.EndYear)
	if err := ValidateMatrix(m); err != nil {
		return AcquireResult{Err: &AcquisitionError{Kind: FailureDecode, Err: err}}
	}
	if m.Observed() == 0 {
		return AcquireResult{Err: acquisitionErr(FailureEmpty, "no observation matched the configured economies and years")}
	}
	return AcquireResult{Matrix: m, Dropped: dropped}
}

// ------------------- Pipeline Runner -------------------

// Run executes the whole analysis: acquire (or generate), compute, render,
// export and print the report. Stages run one after another and the first
// failure after acquisition ends the run.
func Run(ctx context.Context, cfg config.Config, opts Options) (res *Result, err error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = cfg.OutputDir
	}
	if opts.Source == nil {
		opts.Source = NewWorldBankClient(cfg.SourceURL, cfg.FetchTimeout)
	}
	ctx = logging.WithRunID(ctx, opts.RunID)
	logger := opts.Logger.With("component", "pipeline")

	tracker := NewTracker(opts.RunID, opts.Out, logger, opts.Store, opts.Metrics, utils.NewOutputManager(opts.OutputDir))
	res = &Result{RunID: opts.RunID}

	tracker.Printf("🚀 Starting GDP growth analysis run: %s\n", opts.RunID)
	tracker.Status(ctx, model.StatusRunning)

	defer func() {
		res.Stages = tracker.Stages()
		source := res.DataSource
		if source == "" {
			source = "none"
		}
		if err != nil {
			tracker.Fail(ctx, err)
			opts.Metrics.RunFinished(model.StatusFailed, source)
			return
		}
		opts.Metrics.RunFinished(model.StatusCompleted, source)
	}()

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return res, fmt.Errorf("failed to create output directory: %w", err)
	}

	// --- ACQUISITION ---
	tracker.Status(ctx, model.StatusAcquiring)
	tracker.Printf("🌐 Fetching GDP growth data from World Bank...\n")
	var acquired AcquireResult
	// a failed fetch is not a failed stage; the fallback below handles it
	if err := tracker.Stage(ctx, model.StageAcquisition, func() (int, error) {
		fetchCtx := ctx
		if cfg.FetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
			defer cancel()
		}
		acquired = Acquire(fetchCtx, opts.Source, cfg.Analysis)
		if acquired.Err != nil {
			return 0, nil
		}
		return acquired.Matrix.Observed(), nil
	}); err != nil {
		return res, err
	}

	if acquired.Err == nil {
		res.Matrix = acquired.Matrix
		res.DataSource = model.SourceWorldBank
		tracker.Source(ctx, model.SourceWorldBank, "")
		tracker.Printf("✅ Fetched data for %d economies over %s\n", len(res.Matrix.Countries), yearSpan(res.Matrix))
		if acquired.Dropped > 0 {
			logger.WarnContext(ctx, "dropped observations outside the configured registry", "dropped", acquired.Dropped)
		}
	} else {
		res.Fallback = acquired.Err
		res.DataSource = model.SourceSynthetic
		opts.Metrics.Fallback()
		logger.WarnContext(ctx, "falling back to synthetic data", "kind", acquired.Err.Kind, "error", acquired.Err.Err)
		tracker.Printf("⚠️  Error fetching data from World Bank: %v\n", acquired.Err)
		tracker.Printf("Using sample data for demonstration...\n")
		tracker.Source(ctx, model.SourceSynthetic, acquired.Err.Error())

		a := cfg.Analysis
		if err := tracker.Stage(ctx, model.StageSynthetic, func() (int, error) {
			res.Matrix = GenerateSynthetic(a.StartYear, a.EndYear, a.Economies, a.Seed)
			return res.Matrix.Observed(), nil
		}); err != nil {
			return res, err
		}
	}

	// --- STATISTICS ---
	tracker.Status(ctx, model.StatusComputing)
	tracker.Printf("📊 Computing statistics and correlations...\n")
	if err := tracker.Stage(ctx, model.StageStatistics, func() (int, error) {
		res.Stats = ComputeStatistics(res.Matrix)
		return len(res.Stats), nil
	}); err != nil {
		return res, err
	}
	if err := tracker.Stage(ctx, model.StageCorrelation, func() (int, error) {
		res.Correlations = ComputeCorrelations(res.Matrix)
		return len(res.Correlations.Countries), nil
	}); err != nil {
		return res, err
	}

	// --- RENDERING ---
	tracker.Status(ctx, model.StatusRendering)
	tracker.Printf("🎨 Rendering charts...\n")
	if err := tracker.Stage(ctx, model.StageRendering, func() (int, error) {
		return renderCharts(ctx, tracker, res, opts.OutputDir)
	}); err != nil {
		return res, err
	}

	// --- EXPORT ---
	tracker.Status(ctx, model.StatusExporting)
	tracker.Printf("💾 Exporting data...\n")
	if err := tracker.Stage(ctx, model.StageExport, func() (int, error) {
		return exportData(ctx, tracker, cfg, opts, res)
	}); err != nil {
		return res, err
	}

	// --- REPORT ---
	if err := tracker.Stage(ctx, model.StageReport, func() (int, error) {
		report := Report{
			Matrix:       res.Matrix,
			Stats:        res.Stats,
			Correlations: res.Correlations,
			CrisisYears:  cfg.Analysis.CrisisYears,
			OutputDir:    opts.OutputDir,
		}
		if err := report.Write(opts.Out); err != nil {
			return 0, fmt.Errorf("failed to write report: %w", err)
		}
		return 1, nil
	}); err != nil {
		return res, err
	}

	tracker.Status(ctx, model.StatusCompleted)
	tracker.Printf("🏁 Run %s completed in %v (%s data)\n", opts.RunID, tracker.Elapsed().Round(time.Millisecond), res.DataSource)
	return res, nil
}

func renderCharts(ctx context.Context, tracker *Tracker, res *Result, dir string) (int, error) {
	charts := []struct {
		name   string
		render func(path string) error
	}{
		{ChartGrowthComparison, func(path string) error { return RenderGrowthComparison(res.Matrix, path) }},
		{ChartGrowthHeatmap, func(path string) error { return RenderGrowthHeatmap(res.Matrix, path) }},
		{ChartAverageGrowth, func(path string) error { return RenderAverageGrowth(res.Stats, res.Matrix.Years, path) }},
		{ChartVolatility, func(path string) error { return RenderGrowthVolatility(res.Stats, path) }},
	}

	for i, chart := range charts {
		path := filepath.Join(dir, chart.name)
		if err := chart.render(path); err != nil {
			return i, fmt.Errorf("failed to render %s: %w", chart.name, err)
		}
		res.Artifacts = append(res.Artifacts, model.ExportResult{Type: "png", Path: path, Success: true})
		tracker.Artifact(ctx, path)
	}
	return len(charts), nil
}

func exportData(ctx context.Context, tracker *Tracker, cfg config.Config, opts Options, res *Result) (int, error) {
	em := NewExportManager(opts.RunID, opts.OutputDir)

	exports := []func() (model.ExportResult, error){
		func() (model.ExportResult, error) { return em.ExportStatistics(res.Stats) },
		func() (model.ExportResult, error) { return em.ExportMatrix(res.Matrix) },
	}
	if cfg.Workbook {
		exports = append(exports, func() (model.ExportResult, error) {
			return em.ExportWorkbook(res.Matrix, res.Stats, res.Correlations)
		})
	}

	for _, export := range exports {
		result, err := export()
		res.Artifacts = append(res.Artifacts, result)
		if err != nil {
			return len(em.Results) - 1, err
		}
		tracker.Artifact(ctx, result.Path)
	}

	if opts.Store != nil {
		if err := opts.Store.SaveMatrix(ctx, opts.RunID, res.Matrix); err != nil {
			return len(em.Results), fmt.Errorf("failed to persist growth matrix: %w", err)
		}
		if err := opts.Store.SaveStatistics(ctx, opts.RunID, res.Stats); err != nil {
			return len(em.Results), fmt.Errorf("failed to persist statistics: %w", err)
		}
	}
	return len(em.Results), nil
}
