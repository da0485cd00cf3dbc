package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fabricpulse/dashboard/internal/cli"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "pulsectl",
		Short:   "Operate a running fabricpulse service",
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	}
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "fabricpulse server base URL")

	rootCmd.AddCommand(cli.NewStatusCmd().Command())
	rootCmd.AddCommand(cli.NewAlertsCmd().Command())
	rootCmd.AddCommand(cli.NewAnalyzeCmd().Command())
	rootCmd.AddCommand(cli.NewAskCmd().Command())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
