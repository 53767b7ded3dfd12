package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lox/meteodaily/internal/api"
	"github.com/lox/meteodaily/internal/daily"
	"github.com/lox/meteodaily/internal/log"
	"github.com/lox/meteodaily/internal/models"
	"github.com/lox/meteodaily/internal/schema"
	"github.com/lox/meteodaily/internal/timeseries"
)

type RangeFlags struct {
	Start time.Time `format:"2006-01-02" help:"First day (YYYY-MM-DD)."`
	End   time.Time `format:"2006-01-02" help:"Last day (YYYY-MM-DD), inclusive."`
	Model bool      `default:"true" negatable:"" help:"Include model rows where observations are missing."`
	Freq  string    `enum:"daily,weekly,monthly,yearly" default:"daily" help:"Output frequency."`
}

type StationCmd struct {
	IDs []string `arg:"" name:"id" help:"Station IDs."`
	RangeFlags
}

func (c *StationCmd) Run(app *App) error {
	series, err := app.client.Stations(app.ctx, c.IDs, c.Start, c.End, c.Model)
	return app.emit(series, c.Freq, err)
}

type PointCmd struct {
	Lat       float64  `required:"" help:"Latitude."`
	Lon       float64  `required:"" help:"Longitude."`
	Alt       *float64 `help:"Altitude in meters (default: elevation of the best station)."`
	Method    string   `enum:"nearest,weighted" default:"nearest" help:"Resolution method."`
	AdaptTemp bool     `name:"adapt-temp" default:"true" negatable:"" help:"Correct temperatures for altitude."`
	Radius    float64  `default:"35000" help:"Search radius in meters."`
	MaxCount  int      `name:"max-count" default:"4" help:"Maximum stations used."`
	AltRange  float64  `name:"alt-range" default:"350" help:"Maximum altitude difference in meters."`
	RangeFlags
}

func (c *PointCmd) point() models.Point {
	p := models.NewPoint(c.Lat, c.Lon)
	p.Method = c.Method
	p.AdaptTemp = c.AdaptTemp
	p.Radius = c.Radius
	p.MaxCount = c.MaxCount
	p.AltRange = c.AltRange
	if c.Alt != nil {
		p = p.WithAlt(*c.Alt)
	}
	return p
}

func (c *PointCmd) Run(app *App) error {
	series, err := app.client.Point(app.ctx, c.point(), c.Start, c.End, c.Model)
	return app.emit(series, c.Freq, err)
}

type StationsCmd struct {
	Import StationsImportCmd `cmd:"" help:"Import stations from a bulk JSON file (plain or gzipped)."`
	Nearby StationsNearbyCmd `cmd:"" help:"List stations ranked for a point."`
}

type StationsImportCmd struct {
	File string `arg:"" help:"Station list file, or - for stdin."`
}

func (c *StationsImportCmd) Run(app *App) error {
	var r io.Reader = os.Stdin
	if c.File != "-" {
		f, err := os.Open(c.File)
		if err != nil {
			return fmt.Errorf("open stations file: %w", err)
		}
		defer f.Close()
		r = f
	}
	n, err := app.store.ImportStations(r)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "imported %d stations\n", n)
	return nil
}

type StationsNearbyCmd struct {
	Lat      float64   `required:"" help:"Latitude."`
	Lon      float64   `required:"" help:"Longitude."`
	Alt      *float64  `help:"Altitude in meters."`
	Radius   float64   `default:"35000" help:"Search radius in meters."`
	MaxCount int       `name:"max-count" default:"4" help:"Maximum stations listed."`
	AltRange float64   `name:"alt-range" default:"350" help:"Maximum altitude difference in meters."`
	Start    time.Time `format:"2006-01-02" help:"First day the station must cover."`
	End      time.Time `format:"2006-01-02" help:"Last day the station must cover."`
	Model    bool      `default:"true" negatable:"" help:"Request includes model rows."`
}

func (c *StationsNearbyCmd) Run(app *App) error {
	p := models.NewPoint(c.Lat, c.Lon)
	p.Radius = c.Radius
	p.MaxCount = c.MaxCount
	p.AltRange = c.AltRange
	if c.Alt != nil {
		p = p.WithAlt(*c.Alt)
	}
	metas, err := app.store.NearbyStations(app.ctx, p, schema.Daily().Granularity(), c.Start, c.End, c.Model)
	if err != nil {
		return err
	}
	return writeStations(os.Stdout, app.Format, metas)
}

type CacheCmd struct {
	Clear CacheClearCmd `cmd:"" help:"Remove cached station files."`
}

type CacheClearCmd struct {
	All bool `help:"Remove every cached file, not only stale ones."`
}

func (c *CacheClearCmd) Run(app *App) error {
	maxAge := app.MaxAge
	if c.All {
		maxAge = 0
	}
	n, err := app.cache.Clear(schema.Daily().Granularity(), maxAge)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "removed %d cache files\n", n)
	return nil
}

type ServeCmd struct {
	Addr          string `env:"METEODAILY_ADDR" default:":8080" help:"HTTP listen address."`
	CleanSchedule string `name:"clean-schedule" env:"METEODAILY_CLEAN_SCHEDULE" default:"@hourly" help:"Cron schedule for removing stale cache files; empty disables."`
}

func (c *ServeCmd) Run(app *App) error {
	if c.CleanSchedule != "" {
		sched := cron.New()
		if _, err := app.client.ScheduleCacheCleanup(sched, c.CleanSchedule); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}
	return api.NewServer(app.client, app.store, c.Addr).Run(app.ctx)
}

// emit writes whatever data was loaded, then reports the load error. A
// partial result is still written when some stations failed.
func (a *App) emit(series *daily.Series, freq string, loadErr error) error {
	if series == nil {
		return loadErr
	}
	f, err := timeseries.ParseFrequency(freq)
	if err != nil {
		return err
	}

	tbl := series.Table()
	if f != timeseries.Daily {
		tbl = series.Aggregate(f)
	}
	log.Infow("meteodaily: result",
		"stations", series.Stations(),
		"rows", tbl.Len(),
		"coverage", series.Coverage(),
	)

	if err := writeTable(os.Stdout, a.Format, tbl); err != nil {
		return err
	}
	if loadErr != nil {
		var sle *daily.StationLoadError
		if errors.As(loadErr, &sle) {
			log.Warnw("meteodaily: some stations failed to load", "first", sle.StationID)
		}
		return loadErr
	}
	return nil
}
