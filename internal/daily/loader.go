package daily

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lox/meteodaily/internal/cache"
	"github.com/lox/meteodaily/internal/ingest"
	"github.com/lox/meteodaily/internal/log"
	"github.com/lox/meteodaily/internal/metrics"
	"github.com/lox/meteodaily/internal/models"
	"github.com/lox/meteodaily/internal/schema"
	"github.com/lox/meteodaily/internal/timeseries"
)

// LoadRecorder receives an audit record for every station load.
type LoadRecorder interface {
	RecordLoad(run models.LoadRun) error
}

type LoaderConfig struct {
	Source   ingest.Source
	Cache    *cache.Cache // nil disables caching
	MaxAge   time.Duration
	Model    bool
	Schema   *schema.Schema
	Recorder LoadRecorder
	Logger   *zap.SugaredLogger
}

// Loader returns validated daily tables for single stations, preferring a
// fresh cache entry over the remote endpoint.
type Loader struct {
	source   ingest.Source
	cache    *cache.Cache
	maxAge   time.Duration
	model    bool
	schema   *schema.Schema
	recorder LoadRecorder
	log      *zap.SugaredLogger
}

func NewLoader(cfg LoaderConfig) *Loader {
	l := &Loader{
		source:   cfg.Source,
		cache:    cfg.Cache,
		maxAge:   cfg.MaxAge,
		model:    cfg.Model,
		schema:   cfg.Schema,
		recorder: cfg.Recorder,
		log:      cfg.Logger,
	}
	if l.schema == nil {
		l.schema = schema.Daily()
	}
	if l.log == nil {
		l.log = log.With()
	}
	return l
}

// Load returns the table for stationID restricted to [start, end]. Zero
// bounds are open. Filtering happens after caching, so one cached file
// serves any range.
func (l *Loader) Load(ctx context.Context, stationID string, start, end time.Time) (*timeseries.Table, error) {
	granularity := l.schema.Granularity()
	endpoint := ingest.EndpointPath(granularity, stationID, l.model)
	run := models.LoadRun{StationID: stationID, Endpoint: endpoint, StartedAt: time.Now().UTC()}

	rows, fromCache := l.readCache(endpoint, stationID)
	if fromCache {
		run.Source = "cache"
	} else {
		run.Source = "remote"
		var err error
		rows, err = l.fetch(ctx, stationID, endpoint)
		if err != nil {
			metrics.StationLoads.WithLabelValues(granularity, "error").Inc()
			l.record(run, 0, err)
			return nil, err
		}
		l.writeCache(endpoint, stationID, rows)
	}

	tbl := timeseries.FromStation(stationID, rows).Filter(start, end)

	metrics.StationLoads.WithLabelValues(granularity, "ok").Inc()
	metrics.RowsLoaded.WithLabelValues(granularity).Add(float64(tbl.Len()))
	l.record(run, tbl.Len(), nil)
	l.log.Debugw("loader: station loaded", "station", stationID, "source", run.Source, "rows", tbl.Len())
	return tbl, nil
}

func (l *Loader) readCache(endpoint, stationID string) ([]models.DailyObservation, bool) {
	granularity := l.schema.Granularity()
	if l.cache == nil || l.maxAge <= 0 {
		return nil, false
	}
	path := l.cache.Path(granularity, cache.Key(endpoint))
	if !l.cache.Fresh(path, l.maxAge) {
		metrics.CacheLookups.WithLabelValues(granularity, "miss").Inc()
		return nil, false
	}
	rows, err := l.cache.Read(path)
	if err != nil {
		metrics.CacheLookups.WithLabelValues(granularity, "error").Inc()
		l.log.Warnw("loader: unreadable cache entry, refetching", "station", stationID, "path", path, "error", err)
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues(granularity, "hit").Inc()
	return rows, true
}

func (l *Loader) writeCache(endpoint, stationID string, rows []models.DailyObservation) {
	if l.cache == nil || l.maxAge <= 0 {
		return
	}
	path := l.cache.Path(l.schema.Granularity(), cache.Key(endpoint))
	if err := l.cache.Write(path, rows); err != nil {
		l.log.Warnw("loader: cache write failed", "station", stationID, "path", path, "error", err)
	}
}

func (l *Loader) fetch(ctx context.Context, stationID, endpoint string) ([]models.DailyObservation, error) {
	if l.source == nil {
		return nil, fmt.Errorf("%w: no remote source configured", ErrDataUnavailable)
	}
	body, err := l.source.Fetch(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	rows, err := ingest.ParseDaily(body, l.schema)
	if err != nil {
		return nil, err
	}
	return ingest.Validate(rows, stationID)
}

func (l *Loader) record(run models.LoadRun, rows int, err error) {
	if l.recorder == nil {
		return
	}
	run.FinishedAt = time.Now().UTC()
	run.Rows = rows
	run.Success = err == nil
	if err != nil {
		run.Error = sql.NullString{String: err.Error(), Valid: true}
	}
	if rerr := l.recorder.RecordLoad(run); rerr != nil && !errors.Is(rerr, context.Canceled) {
		l.log.Warnw("loader: record load run", "station", run.StationID, "error", rerr)
	}
}
