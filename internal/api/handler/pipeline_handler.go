package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"gdp-growth-pipeline/internal/config"
	"gdp-growth-pipeline/internal/model"
	"gdp-growth-pipeline/internal/pipeline"
	"gdp-growth-pipeline/internal/store"
	"gdp-growth-pipeline/pkg/router"
	"gdp-growth-pipeline/pkg/utils"

	"github.com/google/uuid"
)

// Launcher starts background runs.
type Launcher interface {
	Launch(ctx context.Context, runID string, timeout time.Duration) (model.RunRecord, error)
}

// Handler serves the run API.
type Handler struct {
	Store    *store.Store
	Launcher Launcher
	Outputs  *utils.OutputManager
	Analysis config.AnalysisConfig
	Logger   *slog.Logger
}

func New(st *store.Store, launcher Launcher, outputs *utils.OutputManager, analysis config.AnalysisConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:    st,
		Launcher: launcher,
		Outputs:  outputs,
		Analysis: analysis,
		Logger:   logger,
	}
}

// CreateRunRequest is the optional body of CreateRun.
type CreateRunRequest struct {
	Timeout string `json:"timeout,omitempty" example:"5m"`
}

// CreateRun starts a new analysis run
// @Summary Start a run
// @Description Start a GDP growth analysis in the background. Only one run executes at a time.
// @Tags runs
// @Accept json
// @Produce json
// @Param request body CreateRunRequest false "Run options"
// @Success 202 {object} map[string]interface{} "Run accepted"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Failure 409 {object} map[string]interface{} "A run is already in progress"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [post]
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		}
	}

	runID := uuid.New().String()
	run, err := h.Launcher.Launch(r.Context(), runID, utils.ParseDuration(req.Timeout, 0))
	if errors.Is(err, pipeline.ErrRunInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		h.Logger.Error("failed to launch run", "run_id", runID, "error", err)
		http.Error(w, "Failed to start run", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":   "Run started",
		"run_id":    run.ID,
		"status":    run.Status,
		"createdAt": run.CreatedAt,
	})
}

// ListRuns retrieves all runs
// @Summary List runs
// @Description Get every recorded run, newest first
// @Tags runs
// @Produce json
// @Success 200 {array} model.RunRecord "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun retrieves a specific run
// @Summary Get run
// @Description Retrieve the status and data source of a run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.RunRecord "Run details"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunStatistics retrieves the summary statistics of a run
// @Summary Get run statistics
// @Description Per-country statistics ranked by mean growth. Missing values are null.
// @Tags results
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Statistics"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/statistics [get]
func (h *Handler) GetRunStatistics(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	stats, err := h.Store.GetRunStatistics(r.Context(), run.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve statistics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":     run.ID,
		"statistics": statsJSON(stats),
		"count":      len(stats),
	})
}

// GetRunMatrix retrieves the analysed growth matrix of a run
// @Summary Get growth matrix
// @Description Year x country growth rates. Missing values are null.
// @Tags results
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} MatrixJSON "Growth matrix"
// @Failure 404 {object} map[string]interface{} "Run or matrix not found"
// @Router /runs/{id}/matrix [get]
func (h *Handler) GetRunMatrix(w http.ResponseWriter, r *http.Request) {
	_, m, ok := h.lookupMatrix(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, matrixJSON(m))
}

// GetRunCorrelations recomputes correlations from the stored matrix
// @Summary Get correlations
// @Description Pairwise Pearson correlations between countries and the five strongest pairs
// @Tags results
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} CorrelationsJSON "Correlation matrix"
// @Failure 404 {object} map[string]interface{} "Run or matrix not found"
// @Router /runs/{id}/correlations [get]
func (h *Handler) GetRunCorrelations(w http.ResponseWriter, r *http.Request) {
	_, m, ok := h.lookupMatrix(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, correlationsJSON(pipeline.ComputeCorrelations(m), 5))
}

// GetRunReport regenerates the text report of a run
// @Summary Get report
// @Description The console report of a run, rebuilt from stored results
// @Tags results
// @Produce plain
// @Param id path string true "Run ID"
// @Success 200 {string} string "Report"
// @Failure 404 {object} map[string]interface{} "Run or matrix not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/report [get]
func (h *Handler) GetRunReport(w http.ResponseWriter, r *http.Request) {
	run, m, ok := h.lookupMatrix(w, r)
	if !ok {
		return
	}
	stats, err := h.Store.GetRunStatistics(r.Context(), run.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve statistics", http.StatusInternalServerError)
		return
	}

	report := pipeline.Report{
		Matrix:       m,
		Stats:        stats,
		Correlations: pipeline.ComputeCorrelations(m),
		CrisisYears:  h.Analysis.CrisisYears,
		OutputDir:    run.OutputDir,
	}
	var buf bytes.Buffer
	if err := report.Write(&buf); err != nil {
		http.Error(w, "Failed to render report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(buf.Bytes())
}

// GetRunErrors retrieves errors for a run
// @Summary Get run errors
// @Description Retrieve all errors recorded while the run executed
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/errors [get]
func (h *Handler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	runErrors, err := h.Store.GetRunErrors(r.Context(), run.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": run.ID,
		"errors": runErrors,
		"count":  len(runErrors),
	})
}

// GetRunStages retrieves stage progress for a run
// @Summary Get run stages
// @Description Timing and item counts of every executed stage
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Stage progress"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/stages [get]
func (h *Handler) GetRunStages(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	stages, err := h.Store.GetRunStages(r.Context(), run.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve stages", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": run.ID,
		"status": run.Status,
		"stages": stages,
	})
}

// GetRunArtifacts lists the output files of a run
// @Summary Get run artifacts
// @Description Charts and tables written by the run, with download URLs
// @Tags files
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Artifacts"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/artifacts [get]
func (h *Handler) GetRunArtifacts(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	artifacts, err := h.artifacts(r.Context(), run.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve artifacts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    run.ID,
		"artifacts": artifacts,
		"count":     len(artifacts),
	})
}

// GetRunSummary aggregates the outcome of a run
// @Summary Get run summary
// @Description Status, duration, stages, artifacts and error count in one response
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.RunSummary "Run summary"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/summary [get]
func (h *Handler) GetRunSummary(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	stages, err := h.Store.GetRunStages(ctx, run.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve summary", http.StatusInternalServerError)
		return
	}
	artifacts, err := h.artifacts(ctx, run.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve summary", http.StatusInternalServerError)
		return
	}
	runErrors, err := h.Store.GetRunErrors(ctx, run.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve summary", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, model.RunSummary{
		RunID:      run.ID,
		Status:     run.Status,
		DataSource: run.DataSource,
		Duration:   run.UpdatedAt.Sub(run.CreatedAt),
		Stages:     stages,
		Artifacts:  artifacts,
		ErrorCount: len(runErrors),
	})
}

// DownloadFile serves a file for download
// @Summary Download file
// @Description Download a chart or table written by a run
// @Tags files
// @Produce application/octet-stream
// @Param runID path string true "Run ID"
// @Param filename path string true "File name"
// @Success 200 {file} file "File download"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Router /download/{runID}/{filename} [get]
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	fileName := router.Param(r, 1)

	filePath := h.Outputs.GetOutputFilePath(run.ID, fileName)
	if info, err := os.Stat(filePath); err != nil || info.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", fileName))
	w.Header().Set("Content-Type", h.Outputs.GetContentType(fileName))
	http.ServeFile(w, r, filePath)
}

// ------------------- helpers -------------------

// lookupRun resolves the first path wildcard to a stored run, answering 404
// itself when there is none.
func (h *Handler) lookupRun(w http.ResponseWriter, r *http.Request) (model.RunRecord, bool) {
	runID := router.Param(r, 0)
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return model.RunRecord{}, false
	}
	run, err := h.Store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return model.RunRecord{}, false
	}
	if err != nil {
		http.Error(w, "Failed to fetch run", http.StatusInternalServerError)
		return model.RunRecord{}, false
	}
	return run, true
}

func (h *Handler) lookupMatrix(w http.ResponseWriter, r *http.Request) (model.RunRecord, *model.GrowthMatrix, bool) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return run, nil, false
	}
	m, err := h.Store.GetRunMatrix(r.Context(), run.ID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, fmt.Sprintf("No results for run in status %q", run.Status), http.StatusNotFound)
		return run, nil, false
	}
	if err != nil {
		http.Error(w, "Failed to retrieve growth matrix", http.StatusInternalServerError)
		return run, nil, false
	}
	return run, m, true
}

func (h *Handler) artifacts(ctx context.Context, runID string) ([]model.Artifact, error) {
	artifacts, err := h.Store.GetRunArtifacts(ctx, runID)
	if err != nil {
		return nil, err
	}
	for i := range artifacts {
		artifacts[i].DownloadURL = h.Outputs.GetDownloadURL(runID, artifacts[i].Name)
	}
	return artifacts, nil
}
