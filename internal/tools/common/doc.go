// Package common provides helpers shared by the MCP tool packages: caller
// identity from the verified session, JSON results and the instrumentation
// wrapper every tool handler is registered through.
package common
