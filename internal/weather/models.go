package weather

import (
	"time"
)

// City is a tracked place. Name must match a row in the cities table;
// coordinates are only used for API lookups and are never persisted.
type City struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// DefaultCities is the static list of cities collected on every run,
// in processing order.
var DefaultCities = []City{
	{Name: "Hanoi", Lat: 21.0285, Lon: 105.8542},
	{Name: "Danang", Lat: 16.0544, Lon: 108.2022},
}

// WeatherReading is the current weather at a city, in metric units.
type WeatherReading struct {
	TemperatureC float64 `json:"temp"`
	HumidityPct  float64 `json:"humidity"`
	Condition    string  `json:"weather"`
	WindSpeedMS  float64 `json:"wind_speed"`
}

// AirQualityReading is the current air pollution at a city.
// Concentrations are in μg/m3 as reported by the API.
type AirQualityReading struct {
	AQI  int     `json:"aqi"`
	CO   float64 `json:"co"`
	NO   float64 `json:"no"`
	NO2  float64 `json:"no2"`
	O3   float64 `json:"o3"`
	SO2  float64 `json:"so2"`
	PM25 float64 `json:"pm2_5"`
	PM10 float64 `json:"pm10"`
}

// Observation is a pair of readings for one city at one timestamp,
// the unit the store persists.
type Observation struct {
	City      string            `json:"city"`
	Timestamp time.Time         `json:"timestamp"` // ICT wall clock, minute precision
	Weather   WeatherReading    `json:"weather"`
	Air       AirQualityReading `json:"airQuality"`
}

// StoredWeather is a weather row read back from storage.
type StoredWeather struct {
	City      string    `json:"city"`
	Timestamp time.Time `json:"timestamp"`
	WeatherReading
}

// StoredAirQuality is an air-quality row read back from storage.
type StoredAirQuality struct {
	City      string    `json:"city"`
	Timestamp time.Time `json:"timestamp"`
	AirQualityReading
}
