package main

import (
	"log"
	"os"

	"gdp-growth-pipeline/docs"
	"gdp-growth-pipeline/internal/api"
	"gdp-growth-pipeline/internal/api/handler"
	"gdp-growth-pipeline/internal/config"
	"gdp-growth-pipeline/internal/logging"
	"gdp-growth-pipeline/internal/metrics"
	"gdp-growth-pipeline/internal/pipeline"
	"gdp-growth-pipeline/internal/store"
	"gdp-growth-pipeline/pkg/router"
	"gdp-growth-pipeline/pkg/utils"

	"github.com/joho/godotenv"
)

// @title GDP Growth Pipeline API
// @version 1.0
// @description Runs the GDP growth analysis in the background and serves its statistics, correlations, report and charts.
// @BasePath /api/v1
func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	logger := logging.New(cfg.Logging, os.Stderr)

	outputs := utils.NewOutputManager(cfg.OutputDir)
	if err := outputs.EnsureOutputDirExists(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	// Init DB
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ failed to open run store: %v", err)
	}
	defer st.Close()

	m := metrics.New()
	runner := pipeline.NewRunner(cfg, st, m, logger)
	h := handler.New(st, runner, outputs, cfg.Analysis, logger)

	docs.SwaggerInfo.Host = "localhost" + cfg.APIAddr

	// Create router
	r := router.New()

	// Register API routes
	api.RegisterRoutes(r, h, m.Handler())

	// Start server
	if err := r.Start(cfg.APIAddr); err != nil {
		logger.Error("server stopped", "error", err)
		runner.Wait()
		os.Exit(1)
	}
}
