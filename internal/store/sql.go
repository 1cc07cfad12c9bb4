package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/air-quality-collector/internal/weather"
)

//go:embed sql/insert-weather.sql
var insertWeatherSQL string

//go:embed sql/insert-air-quality.sql
var insertAirQualitySQL string

//go:embed sql/weather-since.sql
var weatherSinceSQL string

//go:embed sql/air-quality-since.sql
var airQualitySinceSQL string

//go:embed sql/latest-weather.sql
var latestWeatherSQL string

//go:embed sql/latest-air-quality.sql
var latestAirQualitySQL string

// Options configures the database handle.
type Options struct {
	Driver string // "pgx" or "sqlite3"
	DSN    string

	// MaxIdleConns of 0 closes every connection when it is released, so each
	// Persist call works on a fresh connection.
	MaxIdleConns int
	MaxOpenConns int
}

// Open prepares a database handle. It does not dial: connection failures
// surface per call, where Persist reports them as ConnectFailed.
func Open(opts Options) (*sql.DB, error) {
	if opts.Driver == "" {
		return nil, errors.New("db driver is empty")
	}
	if opts.DSN == "" {
		return nil, errors.New("db dsn is empty")
	}

	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	db.SetMaxIdleConns(opts.MaxIdleConns)
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	return db, nil
}

// SQLStore persists observations into the weatherdata and airqualitydata
// tables and reads them back. The schema is managed outside this program.
type SQLStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(db *sql.DB, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{db: db, logger: logger}
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Persist writes both readings in one transaction on a dedicated connection.
// Rows whose (city, timestamp) already exists are left untouched. The
// connection is released on every path.
func (s *SQLStore) Persist(ctx context.Context, obs weather.Observation) weather.PersistResult {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return weather.PersistResult{
			Outcome: weather.ConnectFailed,
			Err:     fmt.Errorf("acquire connection: %w", err),
		}
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.logger.Warn("close connection", "error", err)
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return weather.PersistResult{
			Outcome: weather.WriteFailed,
			Err:     fmt.Errorf("begin: %w", err),
		}
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Warn("rollback", "error", err)
		}
	}()

	w := obs.Weather
	wres, err := tx.ExecContext(ctx, insertWeatherSQL,
		obs.City, obs.Timestamp, w.TemperatureC, w.HumidityPct, w.Condition, w.WindSpeedMS)
	if err != nil {
		return weather.PersistResult{
			Outcome: weather.WriteFailed,
			Err:     fmt.Errorf("insert weather: %w", err),
		}
	}

	a := obs.Air
	ares, err := tx.ExecContext(ctx, insertAirQualitySQL,
		obs.City, obs.Timestamp, a.AQI, a.CO, a.NO, a.NO2, a.O3, a.SO2, a.PM25, a.PM10)
	if err != nil {
		return weather.PersistResult{
			Outcome: weather.WriteFailed,
			Err:     fmt.Errorf("insert air quality: %w", err),
		}
	}

	if err := tx.Commit(); err != nil {
		return weather.PersistResult{
			Outcome: weather.WriteFailed,
			Err:     fmt.Errorf("commit: %w", err),
		}
	}
	committed = true

	return weather.PersistResult{
		Outcome:         weather.Persisted,
		WeatherInserted: inserted(wres),
		AirInserted:     inserted(ares),
	}
}

func inserted(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

// WeatherSince returns a city's weather rows at or after since, oldest first.
func (s *SQLStore) WeatherSince(ctx context.Context, city string, since time.Time) ([]weather.StoredWeather, error) {
	rows, err := s.db.QueryContext(ctx, weatherSinceSQL, city, since)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close weather rows", "error", err)
		}
	}()

	var out []weather.StoredWeather
	for rows.Next() {
		rec, err := scanWeather(rows, city)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AirQualitySince returns a city's air-quality rows at or after since, oldest first.
func (s *SQLStore) AirQualitySince(ctx context.Context, city string, since time.Time) ([]weather.StoredAirQuality, error) {
	rows, err := s.db.QueryContext(ctx, airQualitySinceSQL, city, since)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close air quality rows", "error", err)
		}
	}()

	var out []weather.StoredAirQuality
	for rows.Next() {
		rec, err := scanAirQuality(rows, city)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LatestWeather returns the newest weather row for a city.
func (s *SQLStore) LatestWeather(ctx context.Context, city string) (weather.StoredWeather, error) {
	rec, err := scanWeather(s.db.QueryRowContext(ctx, latestWeatherSQL, city), city)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.StoredWeather{}, ErrNotFound
	}
	return rec, err
}

// LatestAirQuality returns the newest air-quality row for a city.
func (s *SQLStore) LatestAirQuality(ctx context.Context, city string) (weather.StoredAirQuality, error) {
	rec, err := scanAirQuality(s.db.QueryRowContext(ctx, latestAirQualitySQL, city), city)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.StoredAirQuality{}, ErrNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWeather(sc scanner, city string) (weather.StoredWeather, error) {
	rec := weather.StoredWeather{City: city}
	if err := sc.Scan(&rec.Timestamp, &rec.TemperatureC, &rec.HumidityPct, &rec.Condition, &rec.WindSpeedMS); err != nil {
		return weather.StoredWeather{}, err
	}
	return rec, nil
}

func scanAirQuality(sc scanner, city string) (weather.StoredAirQuality, error) {
	rec := weather.StoredAirQuality{City: city}
	if err := sc.Scan(&rec.Timestamp, &rec.AQI, &rec.CO, &rec.NO, &rec.NO2, &rec.O3, &rec.SO2, &rec.PM25, &rec.PM10); err != nil {
		return weather.StoredAirQuality{}, err
	}
	return rec, nil
}
