// Quotecheck verifies that quoted evidence appears in the sources it cites.
//
// Usage:
//
//	# Check one quote against a cited source
//	quotecheck verify --source "Leek et al. 2010" "batch effects are widespread"
//
//	# Verify every claim in claims.json
//	quotecheck verify-claims
//
//	# Embed the corpus and search it
//	quotecheck index
//	quotecheck search "empirical Bayes batch adjustment"
//
//	# Serve the HTTP API
//	quotecheck serve
//
// Configuration is read from ~/.config/quotecheck/config.yaml and QUOTECHECK_*
// environment variables. See internal/config for keys.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	logLevel   string
	jsonOutput bool
)

// errUnverified makes the process exit 1 without an error message; the
// command has already printed its result.
var errUnverified = errors.New("not verified")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errUnverified) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "quotecheck",
	Short: "Verify quoted evidence against source texts",
	Long: `quotecheck locates quotes in a corpus of extracted source texts, tolerating
typos, hyphenation and whitespace differences, and reports where each quote was
found and how closely it matched.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("quotecheck by Fyrsmith Labs\n")
		cmd.Printf("Version:    %s\n", version)
		cmd.Printf("Commit:     %s\n", gitCommit)
		cmd.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/quotecheck/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	rootCmd.AddCommand(versionCmd)
}
