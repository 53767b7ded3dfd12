package cache

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lox/meteodaily/internal/models"
)

func sampleRows() []models.DailyObservation {
	return []models.DailyObservation{
		{
			StationID: "10637",
			Date:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			TAvg:      sql.NullFloat64{Float64: 3.4, Valid: true},
			TMin:      sql.NullFloat64{Float64: -1.2, Valid: true},
			WDir:      sql.NullFloat64{Float64: 250, Valid: true},
		},
		{
			StationID: "10637",
			Date:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Prcp:      sql.NullFloat64{Float64: 0, Valid: true},
		},
	}
}

func TestKey_Deterministic(t *testing.T) {
	a := Key("daily/full/10637.csv.gz")
	b := Key("daily/full/10637.csv.gz")
	c := Key("daily/10637.csv.gz")
	if a != b {
		t.Errorf("Key not deterministic: %s vs %s", a, b)
	}
	if a == c {
		t.Error("model and non-model paths share a key")
	}
	if len(a) != 32 {
		t.Errorf("len(Key) = %d, want 32", len(a))
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	c := New(t.TempDir())
	path := c.Path("daily", Key("daily/full/10637.csv.gz"))
	rows := sampleRows()

	if err := c.Write(path, rows); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := c.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("len = %d, want %d", len(got), len(rows))
	}
	for i := range rows {
		if got[i] != rows[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], rows[i])
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("cache dir has %d entries, want 1 (temp file left behind?)", len(entries))
	}
}

func TestWrite_ReplacesExisting(t *testing.T) {
	c := New(t.TempDir())
	path := c.Path("daily", "abc")

	if err := c.Write(path, sampleRows()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := c.Write(path, sampleRows()[:1]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := c.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
}

func TestRead_Corrupt(t *testing.T) {
	c := New(t.TempDir())
	path := c.Path("daily", "bad")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not msgpack"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Read(path); !errors.Is(err, ErrFormat) {
		t.Errorf("Read corrupt = %v, want ErrFormat", err)
	}
}

func TestFresh(t *testing.T) {
	c := New(t.TempDir())
	path := c.Path("daily", "k")

	if c.Fresh(path, time.Hour) {
		t.Error("missing file reported fresh")
	}
	if err := c.Write(path, sampleRows()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !c.Fresh(path, time.Hour) {
		t.Error("new file reported stale")
	}
	if c.Fresh(path, 0) {
		t.Error("maxAge 0 must disable the cache")
	}

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
	if c.Fresh(path, time.Hour) {
		t.Error("old file reported fresh")
	}
}

func TestClear(t *testing.T) {
	c := New(t.TempDir())
	stale := c.Path("daily", "stale")
	fresh := c.Path("daily", "fresh")
	for _, p := range []string{stale, fresh} {
		if err := c.Write(p, sampleRows()); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	n, err := c.Clear("daily", 24*time.Hour)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 1 {
		t.Errorf("Clear removed %d, want 1", n)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file still present")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh file removed: %v", err)
	}

	if n, err := c.Clear("hourly", time.Hour); err != nil || n != 0 {
		t.Errorf("Clear(missing) = %d, %v", n, err)
	}
}
