package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/air-quality-collector/internal/weather"
	"github.com/sony/gobreaker"
)

// DefaultBaseURL is the OpenWeatherMap API root.
const DefaultBaseURL = "https://api.openweathermap.org"

// OpenWeatherProvider implements weather.Provider for OpenWeatherMap's current
// weather and air pollution endpoints.
type OpenWeatherProvider struct {
	name      string
	apiKey    string
	baseURL   string
	client    *http.Client
	weatherCB *gobreaker.CircuitBreaker
	airCB     *gobreaker.CircuitBreaker
}

// NewOpenWeatherProvider creates a provider. An empty baseURL means DefaultBaseURL.
func NewOpenWeatherProvider(client *http.Client, apiKey, baseURL string) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OpenWeatherProvider{
		name:      "openweathermap",
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    client,
		weatherCB: newBreaker("openweather-weather"),
		airCB:     newBreaker("openweather-air"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) endpoint(path string, city weather.City, extra url.Values) string {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(city.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(city.Lon, 'f', -1, 64))
	values.Set("appid", p.apiKey)
	for k, vs := range extra {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	return fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
}

// FetchWeather returns temperature, humidity, condition and wind speed in metric units.
func (p *OpenWeatherProvider) FetchWeather(ctx context.Context, city weather.City) (weather.WeatherReading, error) {
	if p.apiKey == "" {
		return weather.WeatherReading{}, fmt.Errorf("openweather api key is not configured")
	}

	var payload struct {
		Main *struct {
			Temp     *float64 `json:"temp"`
			Humidity *float64 `json:"humidity"`
		} `json:"main"`
		Wind *struct {
			Speed *float64 `json:"speed"`
		} `json:"wind"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
	}

	u := p.endpoint("/data/2.5/weather", city, url.Values{"units": {"metric"}})
	if err := getJSON(ctx, p.client, p.weatherCB, u, &payload); err != nil {
		return weather.WeatherReading{}, err
	}

	switch {
	case payload.Main == nil || payload.Main.Temp == nil:
		return weather.WeatherReading{}, missingField("main.temp")
	case payload.Main.Humidity == nil:
		return weather.WeatherReading{}, missingField("main.humidity")
	case len(payload.Weather) == 0 || payload.Weather[0].Main == "":
		return weather.WeatherReading{}, missingField("weather[0].main")
	case payload.Wind == nil || payload.Wind.Speed == nil:
		return weather.WeatherReading{}, missingField("wind.speed")
	}

	return weather.WeatherReading{
		TemperatureC: *payload.Main.Temp,
		HumidityPct:  *payload.Main.Humidity,
		Condition:    payload.Weather[0].Main,
		WindSpeedMS:  *payload.Wind.Speed,
	}, nil
}

// FetchAirQuality returns the AQI and pollutant concentrations from the first
// entry of the response list; any further entries are ignored.
func (p *OpenWeatherProvider) FetchAirQuality(ctx context.Context, city weather.City) (weather.AirQualityReading, error) {
	if p.apiKey == "" {
		return weather.AirQualityReading{}, fmt.Errorf("openweather api key is not configured")
	}

	var payload struct {
		List []struct {
			Main *struct {
				AQI *int `json:"aqi"`
			} `json:"main"`
			Components map[string]*float64 `json:"components"`
		} `json:"list"`
	}

	u := p.endpoint("/data/2.5/air_pollution", city, nil)
	if err := getJSON(ctx, p.client, p.airCB, u, &payload); err != nil {
		return weather.AirQualityReading{}, err
	}

	if len(payload.List) == 0 {
		return weather.AirQualityReading{}, missingField("list[0]")
	}
	first := payload.List[0]
	if first.Main == nil || first.Main.AQI == nil {
		return weather.AirQualityReading{}, missingField("list[0].main.aqi")
	}

	var r weather.AirQualityReading
	r.AQI = *first.Main.AQI
	for _, c := range []struct {
		key string
		dst *float64
	}{
		{"co", &r.CO},
		{"no", &r.NO},
		{"no2", &r.NO2},
		{"o3", &r.O3},
		{"so2", &r.SO2},
		{"pm2_5", &r.PM25},
		{"pm10", &r.PM10},
	} {
		// A JSON null decodes as a present key holding nil.
		v := first.Components[c.key]
		if v == nil {
			return weather.AirQualityReading{}, missingField("list[0].components." + c.key)
		}
		*c.dst = *v
	}
	return r, nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: missing %s", ErrMalformedResponse, name)
}
