package main

import (
	"github.com/spf13/cobra"

	"github.com/siftlabs/sift/internal/api"
	"github.com/siftlabs/sift/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "sift",
	Short: "Batch category extraction from free text using LLMs",
	Long: `Sift extracts user-defined categories from batches of free-text rows
using LLM providers, with sentence-level citations for every value.

Each extraction cites the exact sentences that support it, so results
can be verified against the source text. User feedback on past
extractions refines the prompts of future jobs.

Supported providers: OpenAI, DeepSeek, Grok and local Ollama models.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.sift/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "sift home directory (default: ~/.sift)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
