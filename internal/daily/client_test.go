package daily

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/lox/meteodaily/internal/cache"
	"github.com/lox/meteodaily/internal/models"
	"github.com/lox/meteodaily/internal/timeseries"
)

type fakeFinder struct {
	meta []models.StationMeta
	err  error
}

func (f *fakeFinder) NearbyStations(ctx context.Context, p models.Point, granularity string, start, end time.Time, model bool) ([]models.StationMeta, error) {
	return append([]models.StationMeta(nil), f.meta...), f.err
}

func TestSeries_ExpectedRows(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"ten days", day(1), day(10), 10},
		{"single day", day(5), day(5), 1},
		{"time of day ignored", day(1).Add(23 * time.Hour), day(2), 2},
		{"leap year", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), 366},
		{"no range", time.Time{}, time.Time{}, 0},
		{"inverted", day(10), day(1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSeries(nil, []string{"A"}, tt.start, tt.end, true)
			if got := s.ExpectedRows(); got != tt.want {
				t.Errorf("ExpectedRows = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSeries_Coverage(t *testing.T) {
	tbl := timeseries.Concat(stubTable("A", 1, 2, 3, 4, 5), stubTable("B", 1, 2))
	s := NewSeries(tbl, []string{"A", "B"}, day(1), day(5), true)
	if got := s.Coverage(); got != 0.7 {
		t.Errorf("Coverage = %v, want 0.7", got)
	}
	if got := NewSeries(tbl, []string{"A"}, time.Time{}, time.Time{}, true).Coverage(); got != 0 {
		t.Errorf("Coverage without range = %v, want 0", got)
	}
}

func TestSeries_Aggregate(t *testing.T) {
	s := NewSeries(stubTable("A", 1, 2, 3), []string{"A"}, day(1), day(3), true)
	got := s.Aggregate(timeseries.Monthly)
	if got.Len() != 1 || got.Rows()[0].TAvg.Float64 != 2 {
		t.Errorf("Aggregate = %+v", got.Rows())
	}
}

func TestClient_StationsEmpty(t *testing.T) {
	c := NewClient(newFakeSource(), nil, nil, Options{Parallel: 2})
	s, err := c.Stations(context.Background(), []string{}, day(1), day(10), true)
	if err != nil {
		t.Fatalf("Stations: %v", err)
	}
	if s == nil || s.Table() == nil {
		t.Fatal("nil series or table for empty request")
	}
	if s.Table().Len() != 0 || len(s.Table().Columns()) != 10 {
		t.Errorf("table has %d rows, %d columns", s.Table().Len(), len(s.Table().Columns()))
	}
}

func TestClient_Stations(t *testing.T) {
	src := newFakeSource()
	src.add("A", true, monthCSV())
	src.add("B", true, monthCSV())
	c := NewClient(src, cache.New(t.TempDir()), nil, Options{MaxAge: time.Hour, Parallel: 2})

	s, err := c.Stations(context.Background(), []string{"B", "A", "MISSING"}, day(2), day(4), true)
	if err == nil {
		t.Fatal("expected error for missing station")
	}
	var lerr *StationLoadError
	if !errors.As(err, &lerr) || lerr.StationID != "MISSING" || !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("err = %v", err)
	}
	if s == nil {
		t.Fatal("partial series not returned")
	}
	if got := s.Table().Stations(); len(got) != 2 || got[0] != "B" || got[1] != "A" {
		t.Errorf("table stations = %v, want [B A]", got)
	}
	if s.Table().Len() != 6 {
		t.Errorf("Len = %d, want 6", s.Table().Len())
	}
	if len(s.Stations()) != 3 {
		t.Errorf("requested stations = %v", s.Stations())
	}
	if s.ExpectedRows() != 3 {
		t.Errorf("ExpectedRows = %d, want 3", s.ExpectedRows())
	}
}

func TestClient_StationsFailFast(t *testing.T) {
	c := NewClient(newFakeSource(), nil, nil, Options{FailFast: true})
	s, err := c.Stations(context.Background(), []string{"MISSING"}, day(1), day(2), true)
	if s != nil {
		t.Error("fail-fast returned a series")
	}
	if !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestClient_Point(t *testing.T) {
	src := newFakeSource()
	src.add("NEAR", true, "2024-01-01,10.0,,,1.0,,10,,,,\n2024-01-02,12.0,,,,,20,,,,\n")
	src.add("FAR", true, "2024-01-01,20.0,,,3.0,,350,,,,\n")
	finder := &fakeFinder{meta: []models.StationMeta{
		{StationID: "FAR", Elevation: 100, Score: 0.5},
		{StationID: "NEAR", Elevation: 100, Score: 0.5000001},
	}}
	c := NewClient(src, nil, finder, Options{Parallel: 2})

	p := models.NewPoint(50.1, 8.7).WithAlt(100)
	p.Method = "weighted"
	s, err := c.Point(context.Background(), p, day(1), day(2), true)
	if err != nil {
		t.Fatalf("Point: %v", err)
	}
	if got := s.Stations(); len(got) != 1 || got[0] != models.PlaceholderStationID {
		t.Errorf("Stations = %v", got)
	}
	if s.Point() == nil || s.Point().Method != "weighted" {
		t.Errorf("Point = %+v", s.Point())
	}
	rows := s.Table().Rows()
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2", len(rows))
	}
	if rows[0].TAvg.Float64 != 15 || rows[0].Prcp.Float64 != 2 {
		t.Errorf("day 1 = %+v", rows[0])
	}
	if rows[0].WDir.Float64 != 10 {
		t.Errorf("day 1 wdir = %v, want NEAR's 10", rows[0].WDir.Float64)
	}
	if rows[1].TAvg.Float64 != 12 {
		t.Errorf("day 2 tavg = %v, want 12", rows[1].TAvg.Float64)
	}
	for _, r := range rows {
		if r.StationID != models.PlaceholderStationID {
			t.Errorf("row station = %q", r.StationID)
		}
	}
}

func TestClient_PointDefaultsAltToBestStation(t *testing.T) {
	src := newFakeSource()
	src.add("A", true, "2024-01-01,10.0,,,,,,,,,\n")
	src.add("B", true, "2024-01-01,10.0,,,,,,,,,\n")
	finder := &fakeFinder{meta: []models.StationMeta{
		{StationID: "B", Elevation: 400, Score: 0.2},
		{StationID: "A", Elevation: 100, Score: 0.8},
	}}
	c := NewClient(src, nil, finder, Options{})

	s, err := c.Point(context.Background(), models.NewPoint(0, 0), day(1), day(1), true)
	if err != nil {
		t.Fatalf("Point: %v", err)
	}
	// Nearest picks A, whose elevation becomes the target: no adjustment.
	if got := s.Table().Rows()[0].TAvg.Float64; got != 10 {
		t.Errorf("tavg = %v, want 10", got)
	}
	if !s.Point().Alt.Valid || s.Point().Alt.Float64 != 100 {
		t.Errorf("Alt = %+v, want 100", s.Point().Alt)
	}
}

func TestClient_PointNoStations(t *testing.T) {
	c := NewClient(newFakeSource(), nil, &fakeFinder{}, Options{})
	s, err := c.Point(context.Background(), models.NewPoint(0, 0), day(1), day(2), true)
	if err != nil {
		t.Fatalf("Point: %v", err)
	}
	if s.Table().Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Table().Len())
	}
}

func TestClient_PointErrors(t *testing.T) {
	c := NewClient(newFakeSource(), nil, nil, Options{})
	if _, err := c.Point(context.Background(), models.NewPoint(0, 0), day(1), day(2), true); !errors.Is(err, ErrMetadataMissing) {
		t.Errorf("no finder: err = %v", err)
	}

	bad := models.NewPoint(0, 0)
	bad.Method = "kriging"
	if _, err := c.Point(context.Background(), bad, day(1), day(2), true); err == nil {
		t.Error("unknown method accepted")
	}

	boom := errors.New("boom")
	c = NewClient(newFakeSource(), nil, &fakeFinder{err: boom}, Options{})
	if _, err := c.Point(context.Background(), models.NewPoint(0, 0), day(1), day(2), true); !errors.Is(err, boom) {
		t.Errorf("finder error: err = %v", err)
	}
}

func TestClient_CloseAutoclean(t *testing.T) {
	dir := t.TempDir()
	ch := cache.New(dir)
	stale := ch.Path("daily", "stale")
	if err := ch.Write(stale, nil); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	if err := NewClient(nil, ch, nil, Options{MaxAge: 24 * time.Hour}).Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); err != nil {
		t.Error("Close without autoclean removed a file")
	}

	if err := NewClient(nil, ch, nil, Options{MaxAge: 24 * time.Hour, Autoclean: true}).Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("autoclean left a stale file")
	}
}
