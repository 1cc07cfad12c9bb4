package weather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// CityState is where a city ended up after one collection pass.
type CityState int

const (
	StatePersisted CityState = iota
	StateSkipped
	StatePersistFailed
)

func (s CityState) String() string {
	switch s {
	case StatePersisted:
		return "persisted"
	case StateSkipped:
		return "skipped"
	case StatePersistFailed:
		return "persist_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CityReport describes what happened to one city during a run.
type CityReport struct {
	City        string
	State       CityState
	Err         error
	Observation Observation
	Result      PersistResult
}

// Collector walks the configured cities one by one, fetching and persisting
// their readings. A failing city never stops the others.
type Collector struct {
	provider Provider
	store    Store
	mirror   Mirror
	cities   []City
	clock    Clock
	logger   *slog.Logger
}

// Option customizes a Collector.
type Option func(*Collector)

// WithClock replaces time.Now as the source of observation timestamps.
func WithClock(c Clock) Option {
	return func(col *Collector) { col.clock = c }
}

// WithMirror sends every committed observation to m as well.
func WithMirror(m Mirror) Option {
	return func(col *Collector) { col.mirror = m }
}

// NewCollector creates a new Collector.
func NewCollector(provider Provider, store Store, cities []City, logger *slog.Logger, opts ...Option) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{
		provider: provider,
		store:    store,
		cities:   cities,
		clock:    time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CollectAll runs one pass over every city, sequentially and in list order.
func (c *Collector) CollectAll(ctx context.Context) []CityReport {
	logger := c.logger.With("run_id", uuid.NewString())
	logger.Info("collection started", "cities", len(c.cities), "provider", c.provider.Name())

	reports := make([]CityReport, 0, len(c.cities))
	var persisted, skipped, failed int
	for _, city := range c.cities {
		r := c.collect(ctx, logger, city)
		switch r.State {
		case StatePersisted:
			persisted++
		case StateSkipped:
			skipped++
		case StatePersistFailed:
			failed++
		}
		reports = append(reports, r)
	}

	logger.Info("collection finished", "persisted", persisted, "skipped", skipped, "persist_failed", failed)
	return reports
}

// Collect runs the fetch and persist steps for a single city.
func (c *Collector) Collect(ctx context.Context, city City) CityReport {
	return c.collect(ctx, c.logger, city)
}

func (c *Collector) collect(ctx context.Context, logger *slog.Logger, city City) CityReport {
	logger = logger.With("city", city.Name)
	report := CityReport{City: city.Name}

	w, err := c.provider.FetchWeather(ctx, city)
	if err != nil {
		logger.Error("weather fetch failed; skipping city", "error", err)
		report.State = StateSkipped
		report.Err = fmt.Errorf("fetch weather: %w", err)
		return report
	}

	a, err := c.provider.FetchAirQuality(ctx, city)
	if err != nil {
		logger.Error("air quality fetch failed; skipping city", "error", err)
		report.State = StateSkipped
		report.Err = fmt.Errorf("fetch air quality: %w", err)
		return report
	}

	logger.Info("weather",
		"temp", w.TemperatureC,
		"humidity", w.HumidityPct,
		"condition", w.Condition,
		"wind_speed", w.WindSpeedMS,
	)
	logger.Info("air quality",
		"aqi", a.AQI,
		"co", a.CO, "no", a.NO, "no2", a.NO2, "o3", a.O3, "so2", a.SO2,
		"pm2_5", a.PM25, "pm10", a.PM10,
	)

	obs := Observation{
		City:      city.Name,
		Timestamp: Timestamp(c.clock()),
		Weather:   w,
		Air:       a,
	}
	report.Observation = obs

	res := c.store.Persist(ctx, obs)
	report.Result = res
	if !res.OK() {
		logger.Error("persist failed", "outcome", res.Outcome.String(), "error", res.Err)
		report.State = StatePersistFailed
		report.Err = res.Err
		return report
	}

	report.State = StatePersisted
	logger.Info("persisted",
		"ts", obs.Timestamp.Format("2006-01-02 15:04"),
		"weather_inserted", res.WeatherInserted,
		"air_inserted", res.AirInserted,
	)

	if c.mirror != nil {
		if err := c.mirror.Write(ctx, obs); err != nil {
			logger.Warn("mirror write failed", "error", err)
		}
	}
	return report
}
