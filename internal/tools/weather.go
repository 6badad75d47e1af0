package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// Geocoder maps a place name to coordinates via the Open-Meteo geocoding API.
type Geocoder struct {
	BaseURL string
}

func (g Geocoder) base() string {
	if g.BaseURL != "" {
		return g.BaseURL
	}
	return "https://geocoding-api.open-meteo.com"
}

// Geocode resolves place to (lat, lon). No match is an error: dependent
// tools report it as their own failure.
func (g Geocoder) Geocode(ctx context.Context, place string) (float64, float64, error) {
	q := url.Values{}
	q.Set("name", place)
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, "GET", g.base()+"/v1/search?"+q.Encode(), nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("geocoding status %d", resp.StatusCode)
	}

	var raw struct {
		Results []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Name      string  `json:"name"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return 0, 0, err
	}
	if len(raw.Results) == 0 {
		return 0, 0, fmt.Errorf("could not geocode %q", place)
	}
	return raw.Results[0].Latitude, raw.Results[0].Longitude, nil
}

// resolveLocation returns the request coordinates, geocoding the default
// place lazily when none were supplied.
func resolveLocation(ctx context.Context, g Geocoder, args Args) (float64, float64, error) {
	if args.Lat != nil && args.Lon != nil {
		return *args.Lat, *args.Lon, nil
	}
	return g.Geocode(ctx, args.Place)
}

// Weather fetches current and daily forecast data from Open-Meteo.
type Weather struct {
	BaseURL  string
	Geocoder Geocoder
}

func (Weather) Name() string { return NameWeather }

func (w Weather) base() string {
	if w.BaseURL != "" {
		return w.BaseURL
	}
	return "https://api.open-meteo.com"
}

func (w Weather) Call(ctx context.Context, args Args) (map[string]interface{}, error) {
	lat, lon, err := resolveLocation(ctx, w.Geocoder, args)
	if err != nil {
		return nil, fmt.Errorf("weather location: %w", err)
	}

	days := args.Days
	if days <= 0 {
		days = 3
	}
	q := url.Values{}
	q.Set("latitude", fmt.Sprint(lat))
	q.Set("longitude", fmt.Sprint(lon))
	q.Set("current", "temperature_2m,wind_speed_10m,weather_code")
	q.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,wind_speed_10m_max")
	q.Set("forecast_days", fmt.Sprint(days))
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, "GET", w.base()+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned %d", resp.StatusCode)
	}

	var raw struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			WindSpeed   float64 `json:"wind_speed_10m"`
			WeatherCode int     `json:"weather_code"`
		} `json:"current"`
		Daily struct {
			Time          []string  `json:"time"`
			TempMax       []float64 `json:"temperature_2m_max"`
			TempMin       []float64 `json:"temperature_2m_min"`
			Precipitation []float64 `json:"precipitation_sum"`
			WindMax       []float64 `json:"wind_speed_10m_max"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	forecast := make([]map[string]interface{}, 0, len(raw.Daily.Time))
	for i := range raw.Daily.Time {
		day := map[string]interface{}{"date": raw.Daily.Time[i]}
		if i < len(raw.Daily.TempMax) {
			day["temp_max"] = raw.Daily.TempMax[i]
		}
		if i < len(raw.Daily.TempMin) {
			day["temp_min"] = raw.Daily.TempMin[i]
		}
		if i < len(raw.Daily.Precipitation) {
			day["precip"] = raw.Daily.Precipitation[i]
		}
		if i < len(raw.Daily.WindMax) {
			day["wind_max"] = raw.Daily.WindMax[i]
		}
		forecast = append(forecast, day)
	}

	return map[string]interface{}{
		"location": map[string]interface{}{"lat": lat, "lon": lon},
		"current": map[string]interface{}{
			"temp":         raw.Current.Temperature,
			"wind_speed":   raw.Current.WindSpeed,
			"weather_code": raw.Current.WeatherCode,
		},
		"forecast": forecast,
	}, nil
}

// Marine fetches wave conditions from the Open-Meteo marine API.
type Marine struct {
	BaseURL  string
	Geocoder Geocoder
}

func (Marine) Name() string { return NameMarine }

func (m Marine) base() string {
	if m.BaseURL != "" {
		return m.BaseURL
	}
	return "https://marine-api.open-meteo.com"
}

func (m Marine) Call(ctx context.Context, args Args) (map[string]interface{}, error) {
	lat, lon, err := resolveLocation(ctx, m.Geocoder, args)
	if err != nil {
		return nil, fmt.Errorf("marine location: %w", err)
	}

	days := args.Days
	if days <= 0 {
		days = 3
	}
	q := url.Values{}
	q.Set("latitude", fmt.Sprint(lat))
	q.Set("longitude", fmt.Sprint(lon))
	q.Set("current", "wave_height,wave_direction,wave_period")
	q.Set("daily", "wave_height_max,wave_direction_dominant,wave_period_max")
	q.Set("forecast_days", fmt.Sprint(days))
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, "GET", m.base()+"/v1/marine?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marine API returned %d", resp.StatusCode)
	}

	var raw struct {
		Current struct {
			WaveHeight    float64 `json:"wave_height"`
			WaveDirection float64 `json:"wave_direction"`
			WavePeriod    float64 `json:"wave_period"`
		} `json:"current"`
		Daily struct {
			Time          []string  `json:"time"`
			WaveHeightMax []float64 `json:"wave_height_max"`
			WaveDirection []float64 `json:"wave_direction_dominant"`
			WavePeriodMax []float64 `json:"wave_period_max"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	forecast := make([]map[string]interface{}, 0, len(raw.Daily.Time))
	for i := range raw.Daily.Time {
		day := map[string]interface{}{"date": raw.Daily.Time[i]}
		if i < len(raw.Daily.WaveHeightMax) {
			day["wave_height_max"] = raw.Daily.WaveHeightMax[i]
		}
		if i < len(raw.Daily.WaveDirection) {
			day["wave_direction"] = raw.Daily.WaveDirection[i]
		}
		if i < len(raw.Daily.WavePeriodMax) {
			day["wave_period_max"] = raw.Daily.WavePeriodMax[i]
		}
		forecast = append(forecast, day)
	}

	return map[string]interface{}{
		"location": map[string]interface{}{"lat": lat, "lon": lon},
		"current": map[string]interface{}{
			"wave_height":    raw.Current.WaveHeight,
			"wave_direction": raw.Current.WaveDirection,
			"wave_period":    raw.Current.WavePeriod,
		},
		"forecast": forecast,
	}, nil
}
