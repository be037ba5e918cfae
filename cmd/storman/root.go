package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "storman",
	Short: "Storman - Docker volume storage janitor",
	Long: `Storman keeps Docker volumes from filling up. Cleanup policies are
registered per volume path, either over the HTTP API or through container
labels, and a background scheduler enforces them periodically.`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}
