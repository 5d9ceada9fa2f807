package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const currentBody = `{
  "name": "Berlin",
  "sys": {"country": "DE"},
  "main": {"temp": 11.5, "feels_like": 9.8, "humidity": 71},
  "weather": [{"description": "light rain"}, {"description": "mist"}],
  "wind": {"speed": 4.1}
}`

func newTestClient(t *testing.T, apiKey string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(apiKey, WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
}

func TestCurrent(t *testing.T) {
	client := newTestClient(t, "key-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Berlin", q.Get("q"))
		assert.Equal(t, "key-1", q.Get("appid"))
		assert.Equal(t, "metric", q.Get("units"))
		_, _ = w.Write([]byte(currentBody))
	})

	got, err := client.Current(context.Background(), "Berlin", "")
	require.NoError(t, err)
	assert.Equal(t, &Current{
		City:        "Berlin",
		Country:     "DE",
		Temperature: 11.5,
		FeelsLike:   9.8,
		Humidity:    71,
		Description: "light rain",
		WindSpeed:   4.1,
		Units:       "metric",
	}, got)
}

func TestCurrentImperial(t *testing.T) {
	client := newTestClient(t, "key-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "imperial", r.URL.Query().Get("units"))
		_, _ = w.Write([]byte(`{"name":"Boston","weather":[]}`))
	})

	got, err := client.Current(context.Background(), "Boston", "imperial")
	require.NoError(t, err)
	assert.Equal(t, "imperial", got.Units)
	assert.Empty(t, got.Description)
}

func TestCurrentErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"not found with message", http.StatusNotFound, `{"cod":"404","message":"city not found"}`, "status 404: city not found"},
		{"unauthorized without body", http.StatusUnauthorized, ``, "status 401"},
		{"malformed body", http.StatusOK, `{`, "decoding response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "key-1", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Current(context.Background(), "Nowhere", "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to fetch weather data")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMissingAPIKey(t *testing.T) {
	called := false
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	assert.False(t, client.Configured())

	_, err := client.Current(context.Background(), "Berlin", "")
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
	_, err = client.Forecast(context.Background(), "Berlin", 3, "")
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
	assert.Equal(t, "OpenWeatherMap API key not configured", ErrAPIKeyMissing.Error())
	assert.False(t, called, "no request without an API key")
}

func TestForecastIntervals(t *testing.T) {
	tests := []struct {
		days int
		want int
	}{
		{1, 8},
		{3, 24},
		{5, 40},
		{7, 40},
		{0, 24},
		{-1, 24},
	}

	for _, tt := range tests {
		if got := ForecastIntervals(tt.days); got != tt.want {
			t.Errorf("ForecastIntervals(%d) = %d, want %d", tt.days, got, tt.want)
		}
	}
}

func TestForecast(t *testing.T) {
	client := newTestClient(t, "key-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast", r.URL.Path)
		assert.Equal(t, "8", r.URL.Query().Get("cnt"))
		// More entries than requested are truncated.
		_, _ = w.Write([]byte(`{
		  "city": {"name": "Oslo", "country": "NO"},
		  "list": [
		    {"dt_txt": "2026-03-01 12:00:00", "main": {"temp": 1.5, "feels_like": -2, "humidity": 80}, "weather": [{"description": "snow"}], "wind": {"speed": 3}},
		    {"dt_txt": "2026-03-01 15:00:00", "main": {"temp": 2}, "weather": [{"description": "clouds"}]},
		    {"dt_txt": "2026-03-01 18:00:00"}, {"dt_txt": "x"}, {"dt_txt": "x"}, {"dt_txt": "x"},
		    {"dt_txt": "x"}, {"dt_txt": "x"}, {"dt_txt": "overflow"}
		  ]
		}`))
	})

	got, err := client.Forecast(context.Background(), "Oslo", 1, "")
	require.NoError(t, err)
	assert.Equal(t, "Oslo", got.City)
	assert.Equal(t, "NO", got.Country)
	assert.Equal(t, "metric", got.Units)
	assert.Equal(t, 8, got.ForecastCount)
	require.Len(t, got.Forecasts, 8)
	assert.Equal(t, ForecastEntry{
		DateTime:    "2026-03-01 12:00:00",
		Temperature: 1.5,
		FeelsLike:   -2,
		Description: "snow",
		Humidity:    80,
		WindSpeed:   3,
	}, got.Forecasts[0])
	assert.NotEqual(t, "overflow", got.Forecasts[7].DateTime)
}
