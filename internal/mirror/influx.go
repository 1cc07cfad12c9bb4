package mirror

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/i474232898/air-quality-collector/internal/weather"
)

// InfluxMirror copies committed observations into an InfluxDB bucket as two
// points per city: "weather" and "air_quality", tagged by city.
type InfluxMirror struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

// NewInfluxMirror creates a mirror writing to org/bucket at url.
func NewInfluxMirror(url, token, org, bucket string) *InfluxMirror {
	client := influxdb2.NewClient(url, token)
	return &InfluxMirror{
		client: client,
		writer: client.WriteAPIBlocking(org, bucket),
	}
}

// Write sends both points in one request.
func (m *InfluxMirror) Write(ctx context.Context, obs weather.Observation) error {
	// Observation timestamps are ICT wall clock; points need the real instant.
	ts := obs.Timestamp
	at := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), 0, 0, weather.ICT)
	tags := map[string]string{"city": obs.City}

	w := obs.Weather
	wp := influxdb2.NewPoint("weather", tags, map[string]interface{}{
		"temp":       w.TemperatureC,
		"humidity":   w.HumidityPct,
		"condition":  w.Condition,
		"wind_speed": w.WindSpeedMS,
	}, at)

	a := obs.Air
	ap := influxdb2.NewPoint("air_quality", tags, map[string]interface{}{
		"aqi":   a.AQI,
		"co":    a.CO,
		"no":    a.NO,
		"no2":   a.NO2,
		"o3":    a.O3,
		"so2":   a.SO2,
		"pm2_5": a.PM25,
		"pm10":  a.PM10,
	}, at)

	if err := m.writer.WritePoint(ctx, wp, ap); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Close releases the underlying HTTP client.
func (m *InfluxMirror) Close() {
	m.client.Close()
}
