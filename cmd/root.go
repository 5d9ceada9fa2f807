package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the calweather application
var rootCmd = &cobra.Command{
	Use:   "calweather",
	Short: "Multi-user MCP server for Google Calendar and OpenWeatherMap",
	Long: `calweather is a Model Context Protocol server that lets AI assistants read
and create Google Calendar events and look up the weather.

Users sign in with Google once through the browser. The server keeps their
Google tokens and hands out a session credential that MCP clients present
as a bearer token.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calweather version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPurgeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
