package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/meteodaily/internal/cache"
	"github.com/lox/meteodaily/internal/daily"
	"github.com/lox/meteodaily/internal/ingest"
	"github.com/lox/meteodaily/internal/log"
	"github.com/lox/meteodaily/internal/store"
)

type Globals struct {
	EnvFile     kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file'"`
	CacheDir    string                   `name:"cache-dir" env:"METEODAILY_CACHE_DIR" type:"path" help:"Cache directory (default: user cache dir)."`
	MaxAge      time.Duration            `name:"max-age" env:"METEODAILY_MAX_AGE" default:"24h" help:"Maximum cache age; 0 disables the cache."`
	Autoclean   bool                     `env:"METEODAILY_AUTOCLEAN" help:"Remove stale cache files on exit."`
	Endpoint    string                   `env:"METEODAILY_ENDPOINT" default:"${endpoint}" help:"Bulk data endpoint (http, https or ftp)."`
	Parallel    int                      `env:"METEODAILY_PARALLEL" default:"4" help:"Concurrent station loads."`
	FailFast    bool                     `name:"fail-fast" env:"METEODAILY_FAIL_FAST" help:"Abort on the first station that fails to load."`
	DB          string                   `name:"db" env:"METEODAILY_DB" default:"data/meteodaily.db" type:"path" help:"SQLite station metadata database."`
	Debug       bool                     `env:"METEODAILY_DEBUG" help:"Enable debug logging."`
	MetricsFile string                   `name:"metrics-file" env:"METEODAILY_METRICS_FILE" type:"path" help:"Write Prometheus metrics to this file on exit."`
	Format      string                   `enum:"csv,json" default:"csv" help:"Output format (csv or json)."`
}

type CLI struct {
	Globals

	Station  StationCmd  `cmd:"" help:"Fetch daily data for one or more stations."`
	Point    PointCmd    `cmd:"" help:"Resolve daily data for a geographic point."`
	Stations StationsCmd `cmd:"" help:"Manage station metadata."`
	Cache    CacheCmd    `cmd:"" help:"Manage the local cache."`
	Serve    ServeCmd    `cmd:"" help:"Serve daily data over HTTP."`
}

// App carries the dependencies shared by every command.
type App struct {
	*Globals

	ctx    context.Context
	db     *sql.DB
	store  *store.Store
	cache  *cache.Cache
	client *daily.Client
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("meteodaily"),
		kong.Description("Daily weather observations from bulk station data."),
		kong.UsageOnError(),
		kong.Vars{"endpoint": ingest.DefaultEndpoint},
	)

	if err := log.Init(cli.Debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, &cli.Globals)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	runErr := kctx.Run(app)
	if err := app.Close(); err != nil {
		log.Warnw("shutdown", "error", err)
	}
	if cli.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cli.MetricsFile, prometheus.DefaultGatherer); err != nil {
			log.Warnw("write metrics", "path", cli.MetricsFile, "error", err)
		}
	}
	if runErr != nil {
		log.Errorw("meteodaily: command failed", "command", kctx.Command(), "error", runErr)
		log.Sync()
		kctx.FatalIfErrorf(runErr)
	}
}

func newApp(ctx context.Context, g *Globals) (*App, error) {
	cacheDir := g.CacheDir
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		cacheDir = filepath.Join(base, "meteodaily")
	}

	if dir := filepath.Dir(g.DB); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", g.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	source, err := ingest.NewSource(g.Endpoint)
	if err != nil {
		db.Close()
		return nil, err
	}

	c := cache.New(cacheDir)
	client := daily.NewClient(source, c, st, daily.Options{
		MaxAge:    g.MaxAge,
		Autoclean: g.Autoclean,
		Parallel:  g.Parallel,
		FailFast:  g.FailFast,
	})
	client.SetRecorder(st)

	log.Debugw("meteodaily: ready", "cache", cacheDir, "db", g.DB, "endpoint", g.Endpoint)

	return &App{
		Globals: g,
		ctx:     ctx,
		db:      db,
		store:   st,
		cache:   c,
		client:  client,
	}, nil
}

func (a *App) Close() error {
	err := a.client.Close()
	if cerr := a.db.Close(); err == nil {
		err = cerr
	}
	return err
}
