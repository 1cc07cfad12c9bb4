package weather

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Variables lists the numeric columns summarized by Describe, in report order
// before sorting.
var Variables = []string{
	"temperature", "humidity", "wind_speed",
	"aqi", "pm2_5", "pm10", "co", "no", "no2", "o3", "so2",
}

// Stat is the descriptive summary of one variable for one city.
type Stat struct {
	City     string   `json:"city"`
	Variable string   `json:"variable"`
	Count    int      `json:"count"`
	Mean     float64  `json:"mean"`
	Median   float64  `json:"median"`
	Mode     float64  `json:"mode"`
	Std      *float64 `json:"std"` // sample deviation; nil with fewer than two values
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
}

// HourlyRow is one merged (city, hour) row. Nil pointers mean the table had
// no reading for that hour.
type HourlyRow struct {
	City    string
	Hour    time.Time
	Weather *WeatherReading
	Air     *AirQualityReading
}

// Summarize computes descriptive statistics for one city's readings.
// Variables with no values are omitted.
func Summarize(city string, ws []StoredWeather, as []StoredAirQuality) []Stat {
	series := make(map[string][]float64, len(Variables))
	for _, w := range ws {
		series["temperature"] = append(series["temperature"], w.TemperatureC)
		series["humidity"] = append(series["humidity"], w.HumidityPct)
		series["wind_speed"] = append(series["wind_speed"], w.WindSpeedMS)
	}
	for _, a := range as {
		series["aqi"] = append(series["aqi"], float64(a.AQI))
		series["pm2_5"] = append(series["pm2_5"], a.PM25)
		series["pm10"] = append(series["pm10"], a.PM10)
		series["co"] = append(series["co"], a.CO)
		series["no"] = append(series["no"], a.NO)
		series["no2"] = append(series["no2"], a.NO2)
		series["o3"] = append(series["o3"], a.O3)
		series["so2"] = append(series["so2"], a.SO2)
	}

	var out []Stat
	for _, v := range Variables {
		x := series[v]
		if len(x) == 0 {
			continue
		}
		out = append(out, describe(city, v, x))
	}
	return out
}

func describe(city, variable string, x []float64) Stat {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	s := Stat{
		City:     city,
		Variable: variable,
		Count:    len(x),
		Mean:     stat.Mean(x, nil),
		Median:   median(sorted),
		Mode:     mode(sorted),
		Min:      floats.Min(x),
		Max:      floats.Max(x),
	}
	if len(x) > 1 {
		sd := stat.StdDev(x, nil)
		if !math.IsNaN(sd) {
			s.Std = &sd
		}
	}
	return s
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// mode returns the most frequent value, the smallest one on ties.
func mode(sorted []float64) float64 {
	best, bestCount := sorted[0], 0
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		if j-i > bestCount {
			best, bestCount = sorted[i], j-i
		}
		i = j
	}
	return best
}

// MergeHourly outer-joins weather and air rows on the hour their timestamp
// falls in. Several rows in the same hour pair up with each other, so an
// hour with two weather and two air rows yields four merged rows.
func MergeHourly(city string, ws []StoredWeather, as []StoredAirQuality) []HourlyRow {
	byHourW := make(map[time.Time][]StoredWeather)
	byHourA := make(map[time.Time][]StoredAirQuality)
	hours := make(map[time.Time]struct{})
	for _, w := range ws {
		h := w.Timestamp.Truncate(time.Hour)
		byHourW[h] = append(byHourW[h], w)
		hours[h] = struct{}{}
	}
	for _, a := range as {
		h := a.Timestamp.Truncate(time.Hour)
		byHourA[h] = append(byHourA[h], a)
		hours[h] = struct{}{}
	}

	keys := make([]time.Time, 0, len(hours))
	for h := range hours {
		keys = append(keys, h)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	var out []HourlyRow
	for _, h := range keys {
		wRows, aRows := byHourW[h], byHourA[h]
		switch {
		case len(aRows) == 0:
			for i := range wRows {
				out = append(out, HourlyRow{City: city, Hour: h, Weather: &wRows[i].WeatherReading})
			}
		case len(wRows) == 0:
			for i := range aRows {
				out = append(out, HourlyRow{City: city, Hour: h, Air: &aRows[i].AirQualityReading})
			}
		default:
			for i := range wRows {
				for j := range aRows {
					out = append(out, HourlyRow{
						City:    city,
						Hour:    h,
						Weather: &wRows[i].WeatherReading,
						Air:     &aRows[j].AirQualityReading,
					})
				}
			}
		}
	}
	return out
}

// StatsService answers descriptive-statistics queries against stored readings.
type StatsService struct {
	reader Reader
	clock  Clock
}

// NewStatsService creates a new StatsService. A nil clock means time.Now.
func NewStatsService(reader Reader, clock Clock) *StatsService {
	if clock == nil {
		clock = time.Now
	}
	return &StatsService{reader: reader, clock: clock}
}

// Report holds the statistics and the merged rows they were drawn from.
type Report struct {
	Since  time.Time   `json:"since"`
	Stats  []Stat      `json:"stats"`
	Merged []HourlyRow `json:"-"`
}

// Describe summarizes the last daysBack days of readings for each city.
// Stats are sorted by variable and keep the given city order within one variable.
func (s *StatsService) Describe(ctx context.Context, cities []string, daysBack int) (Report, error) {
	if daysBack <= 0 {
		return Report{}, fmt.Errorf("days back must be greater than zero")
	}
	since := Timestamp(s.clock()).AddDate(0, 0, -daysBack)

	rep := Report{Since: since}
	for _, city := range cities {
		ws, err := s.reader.WeatherSince(ctx, city, since)
		if err != nil {
			return Report{}, fmt.Errorf("read weather for %s: %w", city, err)
		}
		as, err := s.reader.AirQualitySince(ctx, city, since)
		if err != nil {
			return Report{}, fmt.Errorf("read air quality for %s: %w", city, err)
		}
		rep.Stats = append(rep.Stats, Summarize(city, ws, as)...)
		rep.Merged = append(rep.Merged, MergeHourly(city, ws, as)...)
	}

	sort.SliceStable(rep.Stats, func(i, j int) bool {
		return rep.Stats[i].Variable < rep.Stats[j].Variable
	})
	return rep, nil
}

// Value returns the named variable of the row, or false when the table it
// belongs to had no reading for that hour.
func (r HourlyRow) Value(variable string) (float64, bool) {
	if w := r.Weather; w != nil {
		switch variable {
		case "temperature":
			return w.TemperatureC, true
		case "humidity":
			return w.HumidityPct, true
		case "wind_speed":
			return w.WindSpeedMS, true
		}
	}
	if a := r.Air; a != nil {
		switch variable {
		case "aqi":
			return float64(a.AQI), true
		case "pm2_5":
			return a.PM25, true
		case "pm10":
			return a.PM10, true
		case "co":
			return a.CO, true
		case "no":
			return a.NO, true
		case "no2":
			return a.NO2, true
		case "o3":
			return a.O3, true
		case "so2":
			return a.SO2, true
		}
	}
	return 0, false
}

// Correlations returns the Pearson correlation matrix of Variables over the
// merged rows. Each pair uses only the rows where both values are present;
// a pair with fewer than two such rows or no variance is NaN.
func Correlations(rows []HourlyRow) [][]float64 {
	n := len(Variables)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var x, y []float64
			for _, r := range rows {
				a, okA := r.Value(Variables[i])
				b, okB := r.Value(Variables[j])
				if okA && okB {
					x = append(x, a)
					y = append(y, b)
				}
			}
			c := math.NaN()
			if len(x) >= 2 && stat.Variance(x, nil) > 0 && stat.Variance(y, nil) > 0 {
				c = stat.Correlation(x, y, nil)
			}
			m[i][j], m[j][i] = c, c
		}
	}
	return m
}
