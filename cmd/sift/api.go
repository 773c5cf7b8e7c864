package main

import (
	"github.com/spf13/cobra"

	"github.com/siftlabs/sift/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Sift server via HTTP.

These commands require a running server (sift serve).
Use --server to specify a custom server URL.

Examples:
  sift api health                # Check server health
  sift api jobs list             # List all jobs
  sift api jobs status <id>      # Check job progress`,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Job management commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8321", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Job submission and input endpoints
	apiCmd.AddCommand((&endpoints.ExtractEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.UploadEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ProvidersEndpoint{}).Command(getServerURL))

	// Job lifecycle endpoints grouped under "jobs"
	for _, ep := range endpoints.JobCommands() {
		jobsCmd.AddCommand(ep.Command(getServerURL))
	}

	apiCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(apiCmd)
}
