package mirror

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/i474232898/air-quality-collector/internal/weather"
)

func TestInfluxMirrorWritesBothPoints(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/write" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("bucket") != "aq" || r.URL.Query().Get("org") != "lab" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := NewInfluxMirror(srv.URL, "token", "lab", "aq")
	defer m.Close()

	obs := weather.Observation{
		City:      "Hanoi",
		Timestamp: time.Date(2025, 9, 1, 14, 5, 0, 0, time.UTC),
		Weather:   weather.WeatherReading{TemperatureC: 30, HumidityPct: 70, Condition: "Rain", WindSpeedMS: 2},
		Air:       weather.AirQualityReading{AQI: 2, PM25: 12.5},
	}
	if err := m.Write(context.Background(), obs); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if !strings.Contains(body, "weather,city=Hanoi") || !strings.Contains(body, "air_quality,city=Hanoi") {
		t.Fatalf("missing points in body: %q", body)
	}
	// 14:05 ICT is 07:05 UTC.
	wantNs := "1756710300000000000"
	if !strings.Contains(body, wantNs) {
		t.Fatalf("expected timestamp %s in body: %q", wantNs, body)
	}
}

func TestInfluxMirrorReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"unauthorized","message":"bad token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewInfluxMirror(srv.URL, "wrong", "lab", "aq")
	defer m.Close()

	if err := m.Write(context.Background(), weather.Observation{City: "Danang", Timestamp: time.Now()}); err == nil {
		t.Fatal("expected error")
	}
}
