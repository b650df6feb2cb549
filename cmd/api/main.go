package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/sessionlens/internal/logger"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:          "sessionlens",
		Short:        "Session analysis cache and custom topic search API",
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE:  runMigrate,
	}
)

func init() {
	// path config.yaml, bisa dioverride lewat CONFIG_PATH
	def := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		def = v
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", def, "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}
