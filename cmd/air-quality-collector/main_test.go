package main

import (
	"bytes"
	"database/sql"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/air-quality-collector/internal/config"
	"github.com/i474232898/air-quality-collector/internal/store"
	"github.com/i474232898/air-quality-collector/internal/weather"
)

const schema = `
CREATE TABLE cities (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE);
CREATE TABLE weatherdata (
  city_id INTEGER NOT NULL REFERENCES cities(id), ts TIMESTAMP NOT NULL,
  temp REAL, humidity REAL, weather TEXT, wind_speed REAL,
  UNIQUE (city_id, ts)
);
CREATE TABLE airqualitydata (
  city_id INTEGER NOT NULL REFERENCES cities(id), ts TIMESTAMP NOT NULL,
  aqi INTEGER, co REAL, "no" REAL, no2 REAL, o3 REAL, so2 REAL, pm2_5 REAL, pm10 REAL,
  UNIQUE (city_id, ts)
);
INSERT INTO cities (id, name) VALUES (1, 'Hanoi'), (2, 'Danang');
`

// fakeAPI serves OpenWeatherMap-shaped responses and fails every call whose
// latitude matches failLat.
func fakeAPI(t *testing.T, failLat string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Query().Get("lat") == failLat {
			http.Error(w, "nope", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/data/2.5/weather":
			_, _ = w.Write([]byte(`{"main":{"temp":29.5,"humidity":81},"weather":[{"main":"Rain"}],"wind":{"speed":4.1}}`))
		case "/data/2.5/air_pollution":
			_, _ = w.Write([]byte(`{"list":[{"main":{"aqi":3},"components":{"co":500,"no":0.5,"no2":12,"o3":33,"so2":4,"pm2_5":28,"pm10":40}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runRoot(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCollectFailsFastWithoutSecrets(t *testing.T) {
	var hits int32
	srv := fakeAPI(t, "", &hits)
	t.Setenv("OPENWEATHER_BASE_URL", srv.URL)
	t.Setenv(config.EnvAPIKey, "key")
	t.Setenv(config.EnvDatabaseURL, "")
	t.Setenv("DB_DRIVER", "sqlite3")

	_, err := runRoot("collect")
	if !errors.Is(err, config.ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("expected no API calls, got %d", n)
	}
}

func TestCollectWritesReadingsAndSkipsFailingCity(t *testing.T) {
	var hits int32
	// Danang's latitude fails.
	srv := fakeAPI(t, "16.0544", &hits)

	path := filepath.Join(t.TempDir(), "collector.db")
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("exec schema: %v", err)
	}

	t.Setenv("OPENWEATHER_BASE_URL", srv.URL)
	t.Setenv(config.EnvAPIKey, "key")
	t.Setenv(config.EnvDatabaseURL, "file:"+path+"?_foreign_keys=on")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("COLLECT_INTERVAL", "")
	t.Setenv("INFLUX_URL", "")

	for run := 0; run < 2; run++ {
		if _, err := runRoot("collect"); err != nil {
			t.Fatalf("run %d: collect: %v", run, err)
		}
	}

	var weatherRows, airRows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM weatherdata`).Scan(&weatherRows); err != nil {
		t.Fatalf("count weather: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM airqualitydata`).Scan(&airRows); err != nil {
		t.Fatalf("count air: %v", err)
	}
	// Only Hanoi succeeds. Two runs usually land in the same minute and dedupe;
	// when they straddle a minute boundary there are two rows.
	if weatherRows < 1 || weatherRows > 2 || airRows != weatherRows {
		t.Fatalf("unexpected rows: weather=%d air=%d", weatherRows, airRows)
	}

	var cityID int
	if err := db.QueryRow(`SELECT DISTINCT city_id FROM weatherdata`).Scan(&cityID); err != nil {
		t.Fatalf("city_id: %v", err)
	}
	if cityID != 1 {
		t.Fatalf("expected only Hanoi (1), got %d", cityID)
	}
}

func TestWriteStatsTableAndCSV(t *testing.T) {
	sd := 1.5
	stats := []weather.Stat{
		{City: "Hanoi", Variable: "aqi", Count: 2, Mean: 2.5, Median: 2.5, Mode: 2, Std: &sd, Min: 2, Max: 3},
		{City: "Danang", Variable: "aqi", Count: 1, Mean: 1, Median: 1, Mode: 1, Min: 1, Max: 1},
	}

	var table bytes.Buffer
	if err := writeStatsTable(&table, stats); err != nil {
		t.Fatalf("writeStatsTable: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "city") || !strings.Contains(lines[1], "1.500") {
		t.Fatalf("unexpected table:\n%s", table.String())
	}

	var csvOut bytes.Buffer
	if err := writeStatsCSV(&csvOut, stats); err != nil {
		t.Fatalf("writeStatsCSV: %v", err)
	}
	want := "city,variable,count,mean,median,mode,std,min,max\n" +
		"Hanoi,aqi,2,2.500,2.500,2.000,1.500,2.000,3.000\n" +
		"Danang,aqi,1,1.000,1.000,1.000,,1.000,1.000\n"
	if csvOut.String() != want {
		t.Fatalf("csv:\n%s\nwant:\n%s", csvOut.String(), want)
	}
}

func TestStatsWritesWorkbookAndCharts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "collector.db")
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("exec schema: %v", err)
	}

	st := store.NewSQLStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := weather.Timestamp(time.Now())
	for i, city := range []string{"Hanoi", "Danang"} {
		for h := 1; h <= 3; h++ {
			res := st.Persist(context.Background(), weather.Observation{
				City:      city,
				Timestamp: now.Add(-time.Duration(h) * time.Hour),
				Weather:   weather.WeatherReading{TemperatureC: 27 + float64(h+i), HumidityPct: 70 + float64(h), Condition: "Clouds", WindSpeedMS: 2},
				Air:       weather.AirQualityReading{AQI: h, CO: 300, PM25: 10 * float64(h), PM10: 20},
			})
			if !res.OK() {
				t.Fatalf("seed %s: %v", city, res.Err)
			}
		}
	}

	t.Setenv(config.EnvDatabaseURL, "file:"+path)
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("APP_ENV", "prod")

	xlsx := filepath.Join(dir, "descriptive_stats.xlsx")
	figures := filepath.Join(dir, "figures")
	out, err := runRoot("stats", "--days-back", "2", "--xlsx", xlsx, "--outdir", figures)
	if err != nil {
		t.Fatalf("stats: %v\n%s", err, out)
	}
	if !strings.Contains(out, "temperature") {
		t.Fatalf("expected a stats table, got:\n%s", out)
	}

	if info, err := os.Stat(xlsx); err != nil || info.Size() == 0 {
		t.Fatalf("workbook not written: %v", err)
	}
	for _, name := range []string{"line_temperature.png", "box_aqi_by_city.png", "hist_aqi_with_stats.png", "heatmap_corr.png"} {
		if _, err := os.Stat(filepath.Join(figures, name)); err != nil {
			t.Fatalf("chart %s: %v", name, err)
		}
	}
}
