// Package cmd implements the command-line interface for calweather.
//
// This package provides the following commands:
//   - serve: Start the HTTP server with the login endpoints and the MCP endpoint
//   - purge: Delete expired sessions and spent exchange codes
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
package cmd
