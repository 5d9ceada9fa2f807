// Package weather is a small client for the OpenWeatherMap 2.5 API.
package weather
