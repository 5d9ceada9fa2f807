package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/teemow/calweather/internal/instrumentation"
)

const (
	// DefaultBaseURL is the OpenWeatherMap 2.5 API root.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// DefaultUnits selects Celsius and meters per second.
	DefaultUnits = "metric"

	// DefaultForecastDays is the forecast length when none is given.
	DefaultForecastDays = 3

	// intervalsPerDay is the number of three-hour forecast slots per day.
	intervalsPerDay = 8

	// maxForecastIntervals is the free tier's five day limit.
	maxForecastIntervals = 40

	defaultTimeout = 10 * time.Second
)

// ErrAPIKeyMissing is returned when no API key is configured.
var ErrAPIKeyMissing = errors.New("OpenWeatherMap API key not configured")

// Client queries OpenWeatherMap.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	metrics    *instrumentation.Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client. An empty apiKey is accepted; every call then
// fails with ErrAPIKeyMissing.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Current returns the current weather for city.
func (c *Client) Current(ctx context.Context, city, units string) (*Current, error) {
	if !c.Configured() {
		return nil, ErrAPIKeyMissing
	}
	if units == "" {
		units = DefaultUnits
	}

	var resp apiCurrent
	if err := c.get(ctx, instrumentation.OperationCurrent, "/weather", url.Values{
		"q":     {city},
		"units": {units},
	}, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch weather data: %w", err)
	}

	return &Current{
		City:        resp.Name,
		Country:     resp.Sys.Country,
		Temperature: resp.Main.Temp,
		FeelsLike:   resp.Main.FeelsLike,
		Humidity:    resp.Main.Humidity,
		Description: firstDescription(resp.Weather),
		WindSpeed:   resp.Wind.Speed,
		Units:       units,
	}, nil
}

// ForecastIntervals returns the number of three-hour intervals covering
// days, capped at the five days the API serves.
func ForecastIntervals(days int) int {
	if days <= 0 {
		days = DefaultForecastDays
	}
	return min(days*intervalsPerDay, maxForecastIntervals)
}

// Forecast returns the three-hour forecast for the next days.
func (c *Client) Forecast(ctx context.Context, city string, days int, units string) (*Forecast, error) {
	if !c.Configured() {
		return nil, ErrAPIKeyMissing
	}
	if units == "" {
		units = DefaultUnits
	}
	count := ForecastIntervals(days)

	var resp apiForecast
	if err := c.get(ctx, instrumentation.OperationForecast, "/forecast", url.Values{
		"q":     {city},
		"units": {units},
		"cnt":   {strconv.Itoa(count)},
	}, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch forecast data: %w", err)
	}

	list := resp.List
	if len(list) > count {
		list = list[:count]
	}
	entries := make([]ForecastEntry, 0, len(list))
	for _, item := range list {
		entries = append(entries, ForecastEntry{
			DateTime:    item.DtTxt,
			Temperature: item.Main.Temp,
			FeelsLike:   item.Main.FeelsLike,
			Description: firstDescription(item.Weather),
			Humidity:    item.Main.Humidity,
			WindSpeed:   item.Wind.Speed,
		})
	}

	return &Forecast{
		City:          resp.City.Name,
		Country:       resp.City.Country,
		ForecastCount: len(entries),
		Forecasts:     entries,
		Units:         units,
	}, nil
}

func (c *Client) get(ctx context.Context, operation, path string, params url.Values, out any) (err error) {
	start := time.Now()
	ctx, span := instrumentation.StartUpstreamSpan(ctx, instrumentation.ServiceWeather, operation)
	defer func() {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		c.metrics.RecordUpstreamOperation(ctx, instrumentation.ServiceWeather, operation, status, time.Since(start))
		span.End()
	}()

	params.Set("appid", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
