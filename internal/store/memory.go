package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/air-quality-collector/internal/weather"
)

var (
	// ErrNotFound is returned when no data is available for a given city.
	ErrNotFound = errors.New("no readings for city")
)

// history holds a time-ordered list of observations for a city.
type history struct {
	observations []weather.Observation
}

// MemoryStore is a concurrency-safe in-memory store with the same
// insert-or-ignore contract as SQLStore. Used for dry runs and tests.
type MemoryStore struct {
	mu sync.RWMutex

	// key: city name
	data map[string]*history

	// max number of observations kept per city
	maxHistory int
}

// NewMemoryStore creates a new MemoryStore.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*history),
		maxHistory: maxHistory,
	}
}

// Persist stores the observation unless one already exists for the same
// city and timestamp, in which case both inserted flags are false.
func (s *MemoryStore) Persist(_ context.Context, obs weather.Observation) weather.PersistResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.data[obs.City]
	if !ok {
		h = &history{}
		s.data[obs.City] = h
	}

	for _, existing := range h.observations {
		if existing.Timestamp.Equal(obs.Timestamp) {
			return weather.PersistResult{Outcome: weather.Persisted}
		}
	}

	h.observations = append(h.observations, obs)
	sort.SliceStable(h.observations, func(i, j int) bool {
		return h.observations[i].Timestamp.Before(h.observations[j].Timestamp)
	})

	// Enforce retention by count.
	if s.maxHistory > 0 && len(h.observations) > s.maxHistory {
		over := len(h.observations) - s.maxHistory
		h.observations = h.observations[over:]
	}

	return weather.PersistResult{Outcome: weather.Persisted, WeatherInserted: true, AirInserted: true}
}

// Len returns how many observations are held for a city.
func (s *MemoryStore) Len(city string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if h, ok := s.data[city]; ok {
		return len(h.observations)
	}
	return 0
}

func (s *MemoryStore) since(city string, since time.Time) []weather.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[city]
	if !ok {
		return nil
	}
	var out []weather.Observation
	for _, o := range h.observations {
		if !o.Timestamp.Before(since) {
			out = append(out, o)
		}
	}
	return out
}

// WeatherSince returns the weather part of observations at or after since.
func (s *MemoryStore) WeatherSince(_ context.Context, city string, since time.Time) ([]weather.StoredWeather, error) {
	var out []weather.StoredWeather
	for _, o := range s.since(city, since) {
		out = append(out, weather.StoredWeather{City: o.City, Timestamp: o.Timestamp, WeatherReading: o.Weather})
	}
	return out, nil
}

// AirQualitySince returns the air-quality part of observations at or after since.
func (s *MemoryStore) AirQualitySince(_ context.Context, city string, since time.Time) ([]weather.StoredAirQuality, error) {
	var out []weather.StoredAirQuality
	for _, o := range s.since(city, since) {
		out = append(out, weather.StoredAirQuality{City: o.City, Timestamp: o.Timestamp, AirQualityReading: o.Air})
	}
	return out, nil
}

func (s *MemoryStore) latest(city string) (weather.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[city]
	if !ok || len(h.observations) == 0 {
		return weather.Observation{}, ErrNotFound
	}
	return h.observations[len(h.observations)-1], nil
}

// LatestWeather returns the most recent weather reading for a city.
func (s *MemoryStore) LatestWeather(_ context.Context, city string) (weather.StoredWeather, error) {
	o, err := s.latest(city)
	if err != nil {
		return weather.StoredWeather{}, err
	}
	return weather.StoredWeather{City: o.City, Timestamp: o.Timestamp, WeatherReading: o.Weather}, nil
}

// LatestAirQuality returns the most recent air-quality reading for a city.
func (s *MemoryStore) LatestAirQuality(_ context.Context, city string) (weather.StoredAirQuality, error) {
	o, err := s.latest(city)
	if err != nil {
		return weather.StoredAirQuality{}, err
	}
	return weather.StoredAirQuality{City: o.City, Timestamp: o.Timestamp, AirQualityReading: o.Air}, nil
}
