package store

import (
	"github.com/lox/meteodaily/internal/models"
)

// RecordLoad stores one per-station load attempt. It satisfies the daily
// package's load recorder.
func (s *Store) RecordLoad(run models.LoadRun) error {
	_, err := s.db.Exec(`
		INSERT INTO load_runs (station_id, endpoint, source, started_at, finished_at, row_count, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.StationID, run.Endpoint, run.Source, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Rows, run.Success, run.Error)
	return err
}

// LoadHealthSummary aggregates load runs per day and source.
type LoadHealthSummary struct {
	Date        string
	Source      string
	TotalRuns   int
	SuccessRuns int
	FailedRuns  int
	TotalRows   int64
}

// GetLoadHealth returns load summaries for the last N days.
func (s *Store) GetLoadHealth(days int) ([]LoadHealthSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			DATE(SUBSTR(started_at, 1, 19)) as date,
			source,
			COUNT(*) as total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as success_runs,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as failed_runs,
			COALESCE(SUM(row_count), 0) as total_rows
		FROM load_runs
		WHERE SUBSTR(started_at, 1, 19) > datetime('now', '-' || ? || ' days')
		GROUP BY date, source
		ORDER BY date DESC, source
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []LoadHealthSummary
	for rows.Next() {
		var h LoadHealthSummary
		if err := rows.Scan(&h.Date, &h.Source, &h.TotalRuns, &h.SuccessRuns, &h.FailedRuns, &h.TotalRows); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

// GetRecentLoadErrors returns the most recent failed loads, newest first.
func (s *Store) GetRecentLoadErrors(limit int) ([]models.LoadRun, error) {
	rows, err := s.db.Query(`
		SELECT id, station_id, endpoint, source, started_at, finished_at, row_count, success, error_message
		FROM load_runs
		WHERE success = FALSE
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.LoadRun
	for rows.Next() {
		var r models.LoadRun
		if err := rows.Scan(&r.ID, &r.StationID, &r.Endpoint, &r.Source, &r.StartedAt,
			&r.FinishedAt, &r.Rows, &r.Success, &r.Error); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
