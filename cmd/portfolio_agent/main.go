// Package main provides the portfolio_agent CLI: the editor API server,
// PDF export and portfolio data maintenance.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "portfolio_agent",
	Short: "Portfolio data store and resume PDF exporter",
	Long: `portfolio_agent serves the portfolio editor API, exports the resume card as a PDF
and maintains the stored portfolio document.

Configuration can be loaded from a JSON file using --config. Command-line flags override config file values.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
