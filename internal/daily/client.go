package daily

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lox/meteodaily/internal/cache"
	"github.com/lox/meteodaily/internal/ingest"
	"github.com/lox/meteodaily/internal/log"
	"github.com/lox/meteodaily/internal/models"
	"github.com/lox/meteodaily/internal/schema"
	"github.com/lox/meteodaily/internal/timeseries"
)

// StationFinder looks up stations around a point, ordered by descending
// score.
type StationFinder interface {
	NearbyStations(ctx context.Context, p models.Point, granularity string, start, end time.Time, model bool) ([]models.StationMeta, error)
}

type Options struct {
	MaxAge    time.Duration
	Autoclean bool
	Parallel  int
	FailFast  bool
}

// Client answers daily requests for stations and points.
type Client struct {
	source   ingest.Source
	cache    *cache.Cache
	finder   StationFinder
	recorder LoadRecorder
	opts     Options
}

func NewClient(source ingest.Source, c *cache.Cache, finder StationFinder, opts Options) *Client {
	return &Client{source: source, cache: c, finder: finder, opts: opts}
}

// SetRecorder enables auditing of station loads.
func (c *Client) SetRecorder(r LoadRecorder) {
	c.recorder = r
}

// Stations fetches daily data for the given stations. When some stations
// fail and FailFast is off, the returned series holds the stations that did
// load and the error lists the ones that did not.
func (c *Client) Stations(ctx context.Context, ids []string, start, end time.Time, model bool) (*Series, error) {
	reqLog := log.With("request", uuid.NewString())
	reqLog.Infow("daily: fetching stations", "stations", len(ids), "start", start, "end", end, "model", model)

	loader := c.loader(model, reqLog)
	tbl, err := FetchAll(ctx, ids, func(ctx context.Context, id string) (*timeseries.Table, error) {
		return loader.Load(ctx, id, start, end)
	}, FetchOptions{Parallel: c.opts.Parallel, FailFast: c.opts.FailFast})
	if tbl == nil {
		return nil, err
	}
	if err != nil {
		reqLog.Warnw("daily: some stations failed", "error", err)
	}

	reqLog.Infow("daily: fetched", "rows", tbl.Len())
	return NewSeries(tbl, dedupe(ids), start, end, model), err
}

// Point finds stations around p, fetches them and resolves them into a
// single series keyed by the placeholder station ID. Without an altitude,
// the point takes the elevation of its best-scored station.
func (c *Client) Point(ctx context.Context, p models.Point, start, end time.Time, model bool) (*Series, error) {
	method, err := ParseMethod(p.Method)
	if err != nil {
		return nil, err
	}
	if c.finder == nil {
		return nil, fmt.Errorf("%w: no station finder configured", ErrMetadataMissing)
	}

	meta, err := c.finder.NearbyStations(ctx, p, schema.Daily().Granularity(), start, end, model)
	if err != nil {
		return nil, fmt.Errorf("find nearby stations: %w", err)
	}
	sort.SliceStable(meta, func(i, j int) bool { return meta[i].Score > meta[j].Score })

	ids := make([]string, len(meta))
	for i, m := range meta {
		ids[i] = m.StationID
	}

	series, loadErr := c.Stations(ctx, ids, start, end, model)
	if series == nil {
		return nil, loadErr
	}

	if !p.Alt.Valid && len(meta) > 0 {
		p = p.WithAlt(meta[0].Elevation)
	}
	var adjust TempAdjuster = NoAdjust
	if p.AdaptTemp && p.Alt.Valid {
		adjust = LapseRate(p.Alt.Float64)
	}

	resolved, err := NewResolver(method, adjust, timeseries.Daily).Resolve(series.table, meta)
	if err != nil {
		return nil, fmt.Errorf("resolve point: %w", err)
	}
	if resolved.IsEmpty() {
		return series, loadErr
	}

	out := NewSeries(resolved, []string{models.PlaceholderStationID}, start, end, model)
	out.point = &p
	return out, loadErr
}

// Close removes stale cache entries when autoclean is enabled.
func (c *Client) Close() error {
	if !c.opts.Autoclean {
		return nil
	}
	_, err := c.CleanCache()
	return err
}

// CleanCache removes cache entries older than MaxAge. It does nothing when
// caching is disabled.
func (c *Client) CleanCache() (int, error) {
	if c.opts.MaxAge <= 0 || c.cache == nil {
		return 0, nil
	}
	n, err := c.cache.Clear(schema.Daily().Granularity(), c.opts.MaxAge)
	if err != nil {
		return n, fmt.Errorf("clear cache: %w", err)
	}
	log.Infow("daily: cleared stale cache entries", "removed", n)
	return n, nil
}

func (c *Client) loader(model bool, logger *zap.SugaredLogger) *Loader {
	return NewLoader(LoaderConfig{
		Source:   c.source,
		Cache:    c.cache,
		MaxAge:   c.opts.MaxAge,
		Model:    model,
		Schema:   schema.Daily(),
		Recorder: c.recorder,
		Logger:   logger,
	})
}
