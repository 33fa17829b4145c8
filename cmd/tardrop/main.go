package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "tardrop",
	Short: "Loopback push-to-deploy receiver",
	Long: `Tardrop is a small, unauthenticated deployment receiver for trusted hosts.

It accepts a tar.gz archive over loopback HTTP, extracts it into a versioned
release directory, atomically repoints a well-known symlink at the new
release, and prunes old archives and releases beyond a retention window.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
