package main

import (
	"github.com/spf13/cobra"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Report which cited sources have text in the corpus",
	Args:  cobra.NoArgs,
	RunE:  runCoverage,
}

func init() {
	rootCmd.AddCommand(coverageCmd)
}

func runCoverage(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		lib, err := a.openCorpus(ctx)
		if err != nil {
			return err
		}
		cl, err := a.openClaims()
		if err != nil {
			return err
		}

		report := lib.Coverage(cl.Sources(ctx))
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), report)
		}

		cmd.Printf("Coverage: %d/%d sources (%d%%)\n", len(report.Found), report.Total, report.Percent())
		if len(report.Missing) > 0 {
			cmd.Println("Missing:")
			for _, s := range report.Missing {
				cmd.Printf("  %-12s %s (%s)\n", s.ID, s.Authors, s.Year)
			}
		}
		return nil
	})
}
