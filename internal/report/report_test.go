package report

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/i474232898/air-quality-collector/internal/weather"
)

var t0 = time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

func fixtureRows() []weather.HourlyRow {
	var rows []weather.HourlyRow
	for _, city := range []string{"Hanoi", "Danang"} {
		for i := 0; i < 6; i++ {
			rows = append(rows, weather.HourlyRow{
				City:    city,
				Hour:    t0.Add(time.Duration(i) * time.Hour),
				Weather: &weather.WeatherReading{TemperatureC: 28 + float64(i), HumidityPct: 80, WindSpeedMS: 2 + float64(i%3)},
				Air:     &weather.AirQualityReading{AQI: 1 + i%5, PM25: 20 + float64(i), PM10: 30, CO: 400},
			})
		}
	}
	// An hour with only a weather reading.
	rows = append(rows, weather.HourlyRow{City: "Hanoi", Hour: t0.Add(6 * time.Hour), Weather: &weather.WeatherReading{TemperatureC: 35}})
	return rows
}

func TestRenderChartsWritesEveryChart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "figures")

	paths, err := RenderCharts(dir, fixtureRows())
	if err != nil {
		t.Fatalf("RenderCharts: %v", err)
	}

	want := []string{
		"box_aqi_by_city.png", "box_humidity_by_city.png", "box_temperature_by_city.png",
		"heatmap_corr.png",
		"hist_aqi_with_stats.png", "hist_temperature_with_stats.png",
		"line_aqi.png", "line_temperature.png",
	}
	var got []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", p)
		}
		got = append(got, filepath.Base(p))
	}
	sort.Strings(got)
	if len(got) != len(want) {
		t.Fatalf("charts: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("charts: got %v, want %v", got, want)
		}
	}
}

func TestRenderChartsWithoutRows(t *testing.T) {
	paths, err := RenderCharts(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("RenderCharts: %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("expected no charts, got %v", paths)
	}
}

func TestWriteWorkbookSheets(t *testing.T) {
	sd := 1.5
	stats := []weather.Stat{
		{City: "Hanoi", Variable: "aqi", Count: 2, Mean: 2.5, Median: 2.5, Mode: 2, Std: &sd, Min: 2, Max: 3},
		{City: "Danang", Variable: "aqi", Count: 1, Mean: 1, Median: 1, Mode: 1, Min: 1, Max: 1},
	}
	rows := fixtureRows()

	var buf bytes.Buffer
	if err := writeWorkbook(&buf, stats, rows, 5); err != nil {
		t.Fatalf("writeWorkbook: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 2 || sheets[0] != "stats" || sheets[1] != "sample" {
		t.Fatalf("sheets: %v", sheets)
	}

	statRows, err := f.GetRows("stats")
	if err != nil {
		t.Fatalf("stats rows: %v", err)
	}
	if len(statRows) != 3 || statRows[0][0] != "city" || statRows[1][0] != "Hanoi" || statRows[2][0] != "Danang" {
		t.Fatalf("stats sheet: %v", statRows)
	}
	if std, _ := f.GetCellValue("stats", "G3"); std != "" {
		t.Fatalf("expected empty std for a single value, got %q", std)
	}

	sample, err := f.GetRows("sample")
	if err != nil {
		t.Fatalf("sample rows: %v", err)
	}
	// Header plus the first five merged rows.
	if len(sample) != 6 {
		t.Fatalf("sample sheet: got %d rows, want 6", len(sample))
	}
	if sample[1][0] != "Hanoi" || sample[1][1] != "2025-09-01 10:00:00" {
		t.Fatalf("first sample row: %v", sample[1])
	}
}
