// Package weather_tools provides the OpenWeatherMap MCP tools.
package weather_tools
