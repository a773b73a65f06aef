package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "Switchboard is a turn-processing core for conversational call handling",
	Long: `Switchboard routes caller turns through deterministic, semantic and
LLM-assisted tiers, runs booking flows with validated slot capture, and keeps
per-call session state behind leases.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// A missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config-dir", "./tenants", "Directory containing per-tenant YAML configs")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit JSON logs instead of text")
}
