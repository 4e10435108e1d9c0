package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gdp-growth-pipeline/internal/api"
	"gdp-growth-pipeline/internal/api/handler"
	"gdp-growth-pipeline/internal/config"
	"gdp-growth-pipeline/internal/logging"
	"gdp-growth-pipeline/internal/metrics"
	"gdp-growth-pipeline/internal/model"
	"gdp-growth-pipeline/internal/pipeline"
	"gdp-growth-pipeline/internal/store"
	"gdp-growth-pipeline/pkg/router"
	"gdp-growth-pipeline/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLauncher records the run without executing the pipeline.
type fakeLauncher struct {
	store   *store.Store
	busy    bool
	timeout time.Duration
}

func (f *fakeLauncher) Launch(ctx context.Context, runID string, timeout time.Duration) (model.RunRecord, error) {
	if f.busy {
		return model.RunRecord{}, pipeline.ErrRunInProgress
	}
	f.timeout = timeout
	run := model.RunRecord{ID: runID, Status: model.StatusPending, StartYear: 2000, EndYear: 2023}
	return run, f.store.SaveRun(ctx, run)
}

type fixture struct {
	server   *httptest.Server
	store    *store.Store
	launcher *fakeLauncher
	outputs  *utils.OutputManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	outputs := utils.NewOutputManager(filepath.Join(dir, "output"))
	launcher := &fakeLauncher{store: st}
	h := handler.New(st, launcher, outputs, config.DefaultAnalysis(), logging.Discard())

	r := router.New()
	r.Logger = log.New(io.Discard, "", 0)
	api.RegisterRoutes(r, h, metrics.New().Handler())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{server: srv, store: st, launcher: launcher, outputs: outputs}
}

// seedRun stores a finished run with a small matrix, its statistics and one
// artifact on disk.
func (f *fixture) seedRun(t *testing.T, runID string) {
	t.Helper()
	ctx := context.Background()
	dir, err := f.outputs.CreateJobOutputDir(runID)
	require.NoError(t, err)

	require.NoError(t, f.store.SaveRun(ctx, model.RunRecord{ID: runID, StartYear: 2008, EndYear: 2010, OutputDir: dir}))
	require.NoError(t, f.store.UpdateRunStatus(ctx, runID, model.StatusCompleted))
	require.NoError(t, f.store.SetRunSource(ctx, runID, model.SourceWorldBank, ""))

	m := model.NewGrowthMatrix([]int{2008, 2009, 2010}, []string{"United States", "China"})
	m.Values[0] = []float64{0.1, 9.7}
	m.Values[1] = []float64{-2.6, 9.4}
	m.Values[2] = []float64{2.7, math.NaN()}
	require.NoError(t, f.store.SaveMatrix(ctx, runID, m))
	require.NoError(t, f.store.SaveStatistics(ctx, runID, pipeline.ComputeStatistics(m)))

	path := filepath.Join(dir, pipeline.GrowthDataFile)
	require.NoError(t, os.WriteFile(path, []byte("Year,United States\n"), 0644))
	require.NoError(t, f.store.SaveArtifact(ctx, runID, model.Artifact{Name: pipeline.GrowthDataFile, Type: "csv", Path: path, Size: 19}))
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestCreateRun(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.server.URL+"/api/v1/runs", "application/json", strings.NewReader(`{"timeout":"90s"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, model.StatusPending, body["status"])
	runID, _ := body["run_id"].(string)
	require.NotEmpty(t, runID)
	assert.Equal(t, 90*time.Second, f.launcher.timeout)

	_, err = f.store.GetRun(context.Background(), runID)
	assert.NoError(t, err)
}

func TestCreateRunWithoutBody(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.server.URL+"/api/v1/runs", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Zero(t, f.launcher.timeout)
}

func TestCreateRunRejections(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.server.URL+"/api/v1/runs", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.launcher.busy = true
	resp, err = http.Post(f.server.URL+"/api/v1/runs", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListAndGetRun(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "run-a")

	resp, body := f.get(t, "/api/v1/runs")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []model.RunRecord
	require.NoError(t, json.Unmarshal(body, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-a", runs[0].ID)

	resp, body = f.get(t, "/api/v1/runs/run-a")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var run model.RunRecord
	require.NoError(t, json.Unmarshal(body, &run))
	assert.Equal(t, model.StatusCompleted, run.Status)
	assert.Equal(t, model.SourceWorldBank, run.DataSource)

	resp, _ = f.get(t, "/api/v1/runs/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetRunStatistics(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "run-a")

	resp, body := f.get(t, "/api/v1/runs/run-a/statistics")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Count      int `json:"count"`
		Statistics []struct {
			Rank     int      `json:"rank"`
			Country  string   `json:"country"`
			Mean     *float64 `json:"mean"`
			StdDev   *float64 `json:"std_dev"`
			BestYear *int     `json:"best_year"`
		} `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, 2, out.Count)
	assert.Equal(t, "China", out.Statistics[0].Country)
	assert.Equal(t, 1, out.Statistics[0].Rank)
	require.NotNil(t, out.Statistics[0].Mean)
	assert.InDelta(t, 9.55, *out.Statistics[0].Mean, 0.01)
	require.NotNil(t, out.Statistics[1].BestYear)
	assert.Equal(t, 2010, *out.Statistics[1].BestYear)
}

func TestGetRunMatrixEncodesMissingAsNull(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "run-a")

	resp, body := f.get(t, "/api/v1/runs/run-a/matrix")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `[2.7,null]`)

	var out struct {
		Years     []int        `json:"years"`
		Countries []string     `json:"countries"`
		Values    [][]*float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, []int{2008, 2009, 2010}, out.Years)
	assert.Equal(t, []string{"United States", "China"}, out.Countries)
	assert.Nil(t, out.Values[2][1])
}

func TestGetRunMatrixBeforeResults(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SaveRun(context.Background(), model.RunRecord{ID: "pending"}))

	resp, body := f.get(t, "/api/v1/runs/pending/matrix")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "pending")
}

func TestGetRunCorrelations(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "run-a")

	resp, body := f.get(t, "/api/v1/runs/run-a/correlations")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Countries []string     `json:"countries"`
		Values    [][]*float64 `json:"values"`
		TopPairs  []struct {
			A, B string
		} `json:"top_pairs"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Values, 2)
	require.NotNil(t, out.Values[0][1])
	assert.InDelta(t, 1.0, *out.Values[0][1], 1e-9, "both economies slowed from 2008 to 2009")
	require.Len(t, out.TopPairs, 1)
	assert.Equal(t, "United States", out.TopPairs[0].A)
}

func TestGetRunReport(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "run-a")

	resp, body := f.get(t, "/api/v1/runs/run-a/report")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))

	report := string(body)
	assert.Contains(t, report, "GDP GROWTH YEAR-OVER-YEAR ANALYSIS REPORT")
	assert.Contains(t, report, "2009 (Global Financial Crisis):")
	assert.NotContains(t, report, "2020 (")
}

func TestGetRunArtifactsAndDownload(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "run-a")

	resp, body := f.get(t, "/api/v1/runs/run-a/artifacts")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Artifacts []model.Artifact `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Artifacts, 1)
	assert.Equal(t, "/api/v1/download/run-a/gdp_growth_data.csv", out.Artifacts[0].DownloadURL)

	resp, body = f.get(t, out.Artifacts[0].DownloadURL)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "gdp_growth_data.csv")
	assert.Equal(t, "Year,United States\n", string(body))

	resp, _ = f.get(t, "/api/v1/download/run-a/missing.png")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.get(t, "/api/v1/download/other/gdp_growth_data.csv")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetRunErrorsStagesAndSummary(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "run-a")
	ctx := context.Background()

	require.NoError(t, f.store.SaveRunError(ctx, "run-a", assert.AnError))
	started := time.Now()
	ended := started.Add(time.Second)
	require.NoError(t, f.store.SaveStageProgress(ctx, "run-a", model.StageProgress{
		Stage: model.StageStatistics, Status: "completed", StartedAt: started, EndedAt: &ended, Duration: time.Second, Items: 2,
	}))

	resp, body := f.get(t, "/api/v1/runs/run-a/errors")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"count":1`)

	resp, body = f.get(t, "/api/v1/runs/run-a/stages")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"stage":"statistics"`)

	resp, body = f.get(t, "/api/v1/runs/run-a/summary")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary model.RunSummary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, "run-a", summary.RunID)
	assert.Equal(t, 1, summary.ErrorCount)
	assert.Len(t, summary.Stages, 1)
	assert.Len(t, summary.Artifacts, 1)
}

func TestMetricsAndSwaggerMounted(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.get(t, "/swagger/index.html")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
