package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gdp-growth-pipeline/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Store persists run history in SQLite.
type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		data_source TEXT NOT NULL DEFAULT '',
		fallback_reason TEXT NOT NULL DEFAULT '',
		start_year INTEGER NOT NULL,
		end_year INTEGER NOT NULL,
		output_dir TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		error_message TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS stage_progress (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		duration_ns INTEGER NOT NULL DEFAULT 0,
		items INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS country_stats (
		run_id TEXT NOT NULL,
		rank INTEGER NOT NULL,
		country TEXT NOT NULL,
		mean REAL,
		median REAL,
		std_dev REAL,
		max REAL,
		min REAL,
		best_year INTEGER NOT NULL,
		worst_year INTEGER NOT NULL,
		positive_years INTEGER NOT NULL,
		negative_years INTEGER NOT NULL,
		PRIMARY KEY (run_id, country)
	);`,
	`CREATE TABLE IF NOT EXISTS growth_values (
		run_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		country_pos INTEGER NOT NULL,
		country TEXT NOT NULL,
		value REAL,
		PRIMARY KEY (run_id, year, country)
	);`,
	`CREATE TABLE IF NOT EXISTS artifacts (
		run_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		path TEXT NOT NULL,
		size INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, name)
	);`,
}

// Open connects to the database at dbPath, creating its directory and
// tables if needed.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers; one connection keeps the API goroutines honest.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ------------------- Runs -------------------

// SaveRun stores a new run
func (s *Store) SaveRun(ctx context.Context, run model.RunRecord) error {
	now := time.Now().UTC()
	if run.Status == "" {
		run.Status = model.StatusPending
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs (id, status, data_source, fallback_reason, start_year, end_year, output_dir, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Status, run.DataSource, run.FallbackReason, run.StartYear, run.EndYear, run.OutputDir, now, now)
	return err
}

// UpdateRunStatus updates run status
func (s *Store) UpdateRunStatus(ctx context.Context, runID, status string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SetRunSource records which data the run analysed and, after a fallback, why.
func (s *Store) SetRunSource(ctx context.Context, runID, source, reason string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET data_source = ?, fallback_reason = ?, updated_at = ? WHERE id = ?`,
		source, reason, now, runID)
	return err
}

// ListRuns returns all runs, newest first
func (s *Store) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, status, data_source, fallback_reason, start_year, end_year, output_dir, created_at, updated_at
		FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.RunRecord{}
	for rows.Next() {
		var r model.RunRecord
		if err := rows.Scan(&r.ID, &r.Status, &r.DataSource, &r.FallbackReason, &r.StartYear, &r.EndYear, &r.OutputDir, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches a single run
func (s *Store) GetRun(ctx context.Context, runID string) (model.RunRecord, error) {
	var r model.RunRecord
	err := s.db.QueryRowContext(ctx, `SELECT id, status, data_source, fallback_reason, start_year, end_year, output_dir, created_at, updated_at
		FROM runs WHERE id = ?`, runID).
		Scan(&r.ID, &r.Status, &r.DataSource, &r.FallbackReason, &r.StartYear, &r.EndYear, &r.OutputDir, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunRecord{}, ErrNotFound
	}
	return r, err
}

// ------------------- Errors & progress -------------------

// SaveRunError records an error for a run
func (s *Store) SaveRunError(ctx context.Context, runID string, err error) error {
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := s.db.ExecContext(ctx, `INSERT INTO run_errors (run_id, error_message, created_at) VALUES (?, ?, ?)`,
		runID, err.Error(), now)
	return e
}

func (s *Store) GetRunErrors(ctx context.Context, runID string) ([]model.RunError, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RunError{}
	for rows.Next() {
		var e model.RunError
		if err := rows.Scan(&e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveStageProgress appends one finished (or failed) stage.
func (s *Store) SaveStageProgress(ctx context.Context, runID string, p model.StageProgress) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO stage_progress (run_id, stage, status, started_at, ended_at, duration_ns, items)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, p.Stage, p.Status, p.StartedAt.UTC(), p.EndedAt, int64(p.Duration), p.Items)
	return err
}

func (s *Store) GetRunStages(ctx context.Context, runID string) ([]model.StageProgress, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stage, status, started_at, ended_at, duration_ns, items
		FROM stage_progress WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StageProgress{}
	for rows.Next() {
		var p model.StageProgress
		var ended sql.NullTime
		var duration int64
		if err := rows.Scan(&p.Stage, &p.Status, &p.StartedAt, &ended, &duration, &p.Items); err != nil {
			return nil, err
		}
		if ended.Valid {
			t := ended.Time
			p.EndedAt = &t
		}
		p.Duration = time.Duration(duration)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ------------------- Results -------------------

// SaveStatistics replaces the stored summary for a run, keeping rank order.
func (s *Store) SaveStatistics(ctx context.Context, runID string, stats model.SummaryStats) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM country_stats WHERE run_id = ?`, runID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO country_stats (run_id, rank, country, mean, median, std_dev, max, min, best_year, worst_year, positive_years, negative_years)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, cs := range stats {
		if _, err := stmt.ExecContext(ctx, runID, i, cs.Country,
			nullable(cs.Mean), nullable(cs.Median), nullable(cs.StdDev), nullable(cs.Max), nullable(cs.Min),
			cs.BestYear, cs.WorstYear, cs.PositiveYears, cs.NegativeYears); err != nil {
			return fmt.Errorf("failed to save statistics for %s: %w", cs.Country, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetRunStatistics(ctx context.Context, runID string) (model.SummaryStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT country, mean, median, std_dev, max, min, best_year, worst_year, positive_years, negative_years
		FROM country_stats WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := model.SummaryStats{}
	for rows.Next() {
		var cs model.CountryStats
		var mean, median, std, max, min sql.NullFloat64
		if err := rows.Scan(&cs.Country, &mean, &median, &std, &max, &min,
			&cs.BestYear, &cs.WorstYear, &cs.PositiveYears, &cs.NegativeYears); err != nil {
			return nil, err
		}
		cs.Mean, cs.Median, cs.StdDev = fromNull(mean), fromNull(median), fromNull(std)
		cs.Max, cs.Min = fromNull(max), fromNull(min)
		out = append(out, cs)
	}
	return out, rows.Err()
}

// SaveMatrix replaces the stored growth matrix for a run. Missing cells are NULL.
func (s *Store) SaveMatrix(ctx context.Context, runID string, m *model.GrowthMatrix) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM growth_values WHERE run_id = ?`, runID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO growth_values (run_id, year, country_pos, country, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for yi, year := range m.Years {
		for ci, country := range m.Countries {
			if _, err := stmt.ExecContext(ctx, runID, year, ci, country, nullable(m.Values[yi][ci])); err != nil {
				return fmt.Errorf("failed to save %s %d: %w", country, year, err)
			}
		}
	}
	return tx.Commit()
}

// GetRunMatrix rebuilds the stored matrix, preserving country order.
func (s *Store) GetRunMatrix(ctx context.Context, runID string) (*model.GrowthMatrix, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT year, country_pos, country, value FROM growth_values
		WHERE run_id = ? ORDER BY year, country_pos`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type cell struct {
		year    int
		country string
		value   float64
	}
	var cells []cell
	var years []int
	var countries []string
	seenCountry := map[string]bool{}
	for rows.Next() {
		var c cell
		var pos int
		var v sql.NullFloat64
		if err := rows.Scan(&c.year, &pos, &c.country, &v); err != nil {
			return nil, err
		}
		c.value = fromNull(v)
		if len(years) == 0 || years[len(years)-1] != c.year {
			years = append(years, c.year)
		}
		if !seenCountry[c.country] {
			seenCountry[c.country] = true
			countries = append(countries, c.country)
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, ErrNotFound
	}

	m := model.NewGrowthMatrix(years, countries)
	for _, c := range cells {
		if err := m.Set(c.year, c.country, c.value); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SaveArtifact records an output file of a run.
func (s *Store) SaveArtifact(ctx context.Context, runID string, a model.Artifact) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO artifacts (run_id, name, type, path, size, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, a.Name, a.Type, a.Path, a.Size, time.Now().UTC())
	return err
}

func (s *Store) GetRunArtifacts(ctx context.Context, runID string) ([]model.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, type, path, size, created_at FROM artifacts WHERE run_id = ? ORDER BY created_at, name`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Artifact{}
	for rows.Next() {
		var a model.Artifact
		if err := rows.Scan(&a.Name, &a.Type, &a.Path, &a.Size, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
