// Package api serves daily station and point series over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/meteodaily/internal/daily"
	"github.com/lox/meteodaily/internal/log"
	"github.com/lox/meteodaily/internal/store"
)

type Server struct {
	client *daily.Client
	store  *store.Store
	addr   string
}

func NewServer(client *daily.Client, store *store.Store, addr string) *Server {
	return &Server{client: client, store: store, addr: addr}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/daily/stations", s.handleAPIStationsDaily)
	mux.HandleFunc("/api/daily/point", s.handleAPIPointDaily)
	mux.HandleFunc("/api/stations/nearby", s.handleAPINearby)
	mux.HandleFunc("/api/stations/", s.handleAPIStation)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Infow("api: listening", "addr", s.addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type HealthStatus struct {
	Status           string        `json:"status"`
	MigrationVersion int           `json:"migration_version"`
	Stations         int           `json:"stations"`
	Loads            []LoadSummary `json:"loads"`
	RecentErrors     []LoadError   `json:"recent_errors,omitempty"`
	Errors           []string      `json:"errors,omitempty"`
}

// LoadSummary counts station loads for one day and source.
type LoadSummary struct {
	Date        string `json:"date"`
	Source      string `json:"source"`
	TotalRuns   int    `json:"total_runs"`
	SuccessRuns int    `json:"success_runs"`
	FailedRuns  int    `json:"failed_runs"`
	Rows        int64  `json:"rows"`
}

type LoadError struct {
	StationID string    `json:"station_id"`
	Endpoint  string    `json:"endpoint"`
	At        time.Time `json:"at"`
	Error     string    `json:"error"`
}

// recentErrorWindow bounds which failed loads mark the service degraded.
const recentErrorWindow = time.Hour

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok"}

	version, err := s.store.MigrationVersion()
	if err != nil {
		health.Errors = append(health.Errors, "migrations: "+err.Error())
	}
	health.MigrationVersion = version

	n, err := s.store.CountStations()
	if err != nil {
		health.Errors = append(health.Errors, "stations: "+err.Error())
	}
	health.Stations = n

	health.Loads = []LoadSummary{}
	summaries, err := s.store.GetLoadHealth(1)
	if err != nil {
		health.Errors = append(health.Errors, "load health: "+err.Error())
	}
	for _, h := range summaries {
		health.Loads = append(health.Loads, LoadSummary{
			Date:        h.Date,
			Source:      h.Source,
			TotalRuns:   h.TotalRuns,
			SuccessRuns: h.SuccessRuns,
			FailedRuns:  h.FailedRuns,
			Rows:        h.TotalRows,
		})
	}

	runs, err := s.store.GetRecentLoadErrors(10)
	if err != nil {
		health.Errors = append(health.Errors, "load runs: "+err.Error())
	}
	now := time.Now()
	for _, run := range runs {
		if now.Sub(run.StartedAt) > recentErrorWindow {
			continue
		}
		health.RecentErrors = append(health.RecentErrors, LoadError{
			StationID: run.StationID,
			Endpoint:  run.Endpoint,
			At:        run.StartedAt,
			Error:     run.Error.String,
		})
	}

	if len(health.RecentErrors) > 0 {
		health.Status = "degraded"
	}
	if len(health.Errors) > 0 {
		health.Status = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status == "error" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Warnw("health: write response", "error", err)
	}
}
