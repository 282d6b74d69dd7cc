package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/quotecheck/internal/verifycache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the verification caches",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache sizes and hit rates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			a.openCaches()
			stats := []verifycache.Stats{a.verifyCache.Stats(), a.confCache.Stats()}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			for _, s := range stats {
				cmd.Printf("%-13s %d/%d entries\n", s.Name, s.Entries, s.MaxSize)
			}
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached verification and confidence score",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			a.openCaches()
			n := a.verifyCache.Len() + a.confCache.Len()
			a.verifyCache.Clear()
			a.confCache.Clear()
			if err := errors.Join(a.verifyCache.Flush(), a.confCache.Flush()); err != nil {
				return err
			}
			cmd.Printf("Cleared %d cache entries\n", n)
			return nil
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
