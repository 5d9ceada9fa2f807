package weather

// Current is the current weather of a city.
type Current struct {
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	Humidity    int     `json:"humidity"`
	Description string  `json:"description"`
	WindSpeed   float64 `json:"wind_speed"`
	Units       string  `json:"units"`
}

// ForecastEntry is one three-hour forecast interval.
type ForecastEntry struct {
	DateTime    string  `json:"datetime"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	Description string  `json:"description"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

// Forecast is the forecast of a city.
type Forecast struct {
	City          string          `json:"city"`
	Country       string          `json:"country"`
	ForecastCount int             `json:"forecast_count"`
	Forecasts     []ForecastEntry `json:"forecasts"`
	Units         string          `json:"units"`
}

// Wire formats of the OpenWeatherMap responses.

type apiMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	Humidity  int     `json:"humidity"`
}

type apiWeather struct {
	Description string `json:"description"`
}

type apiWind struct {
	Speed float64 `json:"speed"`
}

type apiCurrent struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main    apiMain      `json:"main"`
	Weather []apiWeather `json:"weather"`
	Wind    apiWind      `json:"wind"`
}

type apiForecast struct {
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
	List []struct {
		DtTxt   string       `json:"dt_txt"`
		Main    apiMain      `json:"main"`
		Weather []apiWeather `json:"weather"`
		Wind    apiWind      `json:"wind"`
	} `json:"list"`
}

type apiError struct {
	Message string `json:"message"`
}

func firstDescription(w []apiWeather) string {
	if len(w) == 0 {
		return ""
	}
	return w[0].Description
}
