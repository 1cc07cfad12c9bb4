package weather

import (
	"context"
	"fmt"
	"time"
)

// Provider abstracts the weather and air-pollution data source
// (OpenWeatherMap in production, httptest fakes in tests).
type Provider interface {
	Name() string
	FetchWeather(ctx context.Context, city City) (WeatherReading, error)
	FetchAirQuality(ctx context.Context, city City) (AirQualityReading, error)
}

// PersistOutcome categorizes the result of a persistence attempt.
type PersistOutcome int

const (
	// Persisted means the transaction committed. Individual rows may still
	// have been skipped because they already existed.
	Persisted PersistOutcome = iota
	// ConnectFailed means no database connection could be acquired.
	ConnectFailed
	// WriteFailed means a statement or the commit failed and nothing was written.
	WriteFailed
)

func (o PersistOutcome) String() string {
	switch o {
	case Persisted:
		return "persisted"
	case ConnectFailed:
		return "connect_failed"
	case WriteFailed:
		return "write_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// PersistResult is what a Store reports for one observation. A Store never
// returns a bare error; failures are categorized here so the caller decides
// what to do with them.
type PersistResult struct {
	Outcome PersistOutcome
	Err     error

	// Inserted flags are false when the (city, timestamp) row already existed.
	// A city unknown to the database is a WriteFailed outcome, not a skip.
	WeatherInserted bool
	AirInserted     bool
}

// OK reports whether the observation was committed.
func (r PersistResult) OK() bool {
	return r.Outcome == Persisted && r.Err == nil
}

// Store is the persistence contract for observations. Inserts are
// idempotent per (city, timestamp); existing rows are never overwritten.
type Store interface {
	Persist(ctx context.Context, obs Observation) PersistResult
}

// Reader is the read side used by statistics and the HTTP API.
type Reader interface {
	WeatherSince(ctx context.Context, city string, since time.Time) ([]StoredWeather, error)
	AirQualitySince(ctx context.Context, city string, since time.Time) ([]StoredAirQuality, error)
	LatestWeather(ctx context.Context, city string) (StoredWeather, error)
	LatestAirQuality(ctx context.Context, city string) (StoredAirQuality, error)
}

// Mirror receives observations after they were committed.
type Mirror interface {
	Write(ctx context.Context, obs Observation) error
}
