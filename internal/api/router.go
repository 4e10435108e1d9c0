package api

import (
	"net/http"

	"gdp-growth-pipeline/internal/api/handler"
	"gdp-growth-pipeline/pkg/router"

	httpSwagger "github.com/swaggo/http-swagger"
)

func RegisterRoutes(r *router.Router, h *handler.Handler, metricsHandler http.Handler) {
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	// More specific routes first
	r.GET("/api/v1/runs/*/statistics", h.GetRunStatistics)
	r.GET("/api/v1/runs/*/matrix", h.GetRunMatrix)
	r.GET("/api/v1/runs/*/correlations", h.GetRunCorrelations)
	r.GET("/api/v1/runs/*/report", h.GetRunReport)
	r.GET("/api/v1/runs/*/errors", h.GetRunErrors)
	r.GET("/api/v1/runs/*/stages", h.GetRunStages)
	r.GET("/api/v1/runs/*/artifacts", h.GetRunArtifacts)
	r.GET("/api/v1/runs/*/summary", h.GetRunSummary)
	r.GET("/api/v1/download/*/*", h.DownloadFile)
	// Generic run route last
	r.GET("/api/v1/runs/*", h.GetRun)

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
	r.Handle("/swagger/", httpSwagger.WrapHandler)
}
