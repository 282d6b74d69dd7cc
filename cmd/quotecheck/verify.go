package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/quotecheck/internal/verification"
)

var (
	verifySource  string
	verifyClaimID string
	verifyPage    int
)

var verifyCmd = &cobra.Command{
	Use:   "verify <quote>",
	Short: "Check a quote against its source",
	Long: `Check that a quote appears in its cited source.

With --source the quote is matched against that document only. With --claim
the claim's declared source is used and the claim is marked on success. With
neither, the whole corpus is searched.

Exits 1 when the quote is not verified.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var verifyClaimsCmd = &cobra.Command{
	Use:   "verify-claims [claim-id...]",
	Short: "Verify stored claims",
	Long: `Verify the primary quote of each claim in the claims file. With no ids,
every claim is verified and a summary is printed.

Exits 1 when any claim fails verification.`,
	RunE: runVerifyClaims,
}

var confidenceCmd = &cobra.Command{
	Use:   "confidence <claim> <quote>",
	Short: "Score how well a quote supports a claim",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfidence,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifySource, "source", "s", "", "declared source (path, file name or author-year reference)")
	verifyCmd.Flags().StringVar(&verifyClaimID, "claim", "", "claim id to record the result against")
	verifyCmd.Flags().IntVar(&verifyPage, "page", 0, "page hint carried through to the result")

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(verifyClaimsCmd)
	rootCmd.AddCommand(confidenceCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		svc, err := a.verificationService(ctx, false)
		if err != nil {
			return err
		}

		var res *verification.Result
		if verifySource == "" && verifyClaimID == "" {
			res, err = svc.FindQuote(ctx, args[0])
		} else {
			req := &verification.Request{ClaimID: verifyClaimID, Quote: args[0], Source: verifySource}
			if verifyPage > 0 {
				req.PageHint = &verifyPage
			}
			if req.Source == "" {
				c, cerr := a.claims.GetClaim(ctx, verifyClaimID)
				if cerr != nil {
					return cerr
				}
				req.Source = c.Source
			}
			res, err = svc.VerifyQuote(ctx, req)
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else {
			printResult(cmd, res)
		}
		if !res.Verified {
			return errUnverified
		}
		return nil
	})
}

func printResult(cmd *cobra.Command, res *verification.Result) {
	status := "NOT FOUND"
	switch {
	case res.Verified:
		status = "VERIFIED"
	case res.Errored:
		status = "ERROR"
	}
	cmd.Printf("%s  %.1f%%", status, res.Confidence*100)
	if res.Cached {
		cmd.Printf("  (cached)")
	}
	cmd.Println()

	if res.ResolvedPath != "" {
		cmd.Printf("Source:  %s\n", res.ResolvedPath)
	} else if res.Source != "" {
		cmd.Printf("Source:  %s\n", res.Source)
	}
	if res.PageHint != nil {
		cmd.Printf("Page:    %d\n", *res.PageHint)
	}
	if res.StartOffset != nil && res.EndOffset != nil {
		cmd.Printf("Offsets: %d-%d\n", *res.StartOffset, *res.EndOffset)
	}
	if res.MatchedText != "" {
		cmd.Printf("Matched: %q\n", truncate(res.MatchedText, 200))
	}
	if res.ClosestText != "" {
		cmd.Printf("Closest: %q\n", truncate(res.ClosestText, 200))
	}
	if res.Reason != "" {
		cmd.Printf("Reason:  %s\n", res.Reason)
	}
}

func runVerifyClaims(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		svc, err := a.verificationService(ctx, false)
		if err != nil {
			return err
		}

		if len(args) > 0 {
			return verifyClaimIDs(cmd, svc, args)
		}

		report, err := svc.VerifyAllClaims(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
		} else {
			printReport(cmd, report)
		}
		if report.Failed > 0 || report.Errored > 0 {
			return errUnverified
		}
		return nil
	})
}

func verifyClaimIDs(cmd *cobra.Command, svc verification.Service, ids []string) error {
	ctx := cmd.Context()
	results := make([]*verification.Result, 0, len(ids))
	failed := false
	for _, id := range ids {
		res, err := svc.VerifyClaim(ctx, id)
		if err != nil {
			return fmt.Errorf("claim %s: %w", id, err)
		}
		results = append(results, res)
		if !res.Verified {
			failed = true
		}
	}

	if jsonOutput {
		if err := printJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			cmd.Printf("[%s] ", res.ClaimID)
			printResult(cmd, res)
		}
	}
	if failed {
		return errUnverified
	}
	return nil
}

func printReport(cmd *cobra.Command, r *verification.BatchReport) {
	cmd.Printf("Run %s: %d claims in %s\n", r.RunID, r.Total, r.Duration.Round(time.Millisecond))
	cmd.Printf("  verified: %d  failed: %d  errored: %d  skipped: %d  cached: %d\n",
		r.Verified, r.Failed, r.Errored, r.Skipped, r.Cached)
	if len(r.Failures) == 0 {
		return
	}
	cmd.Println()
	cmd.Println("Failures:")
	for _, f := range r.Failures {
		cmd.Printf("  %s  %.1f%%  %s\n", f.ClaimID, f.Confidence*100, f.Source)
		cmd.Printf("    quote:   %q\n", truncate(f.Quote, 120))
		if f.ClosestText != "" {
			cmd.Printf("    closest: %q\n", truncate(f.ClosestText, 120))
		}
		if f.Reason != "" {
			cmd.Printf("    reason:  %s\n", f.Reason)
		}
	}
}

func runConfidence(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	claim, quote := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
	return withApp(ctx, func(a *app) error {
		svc, err := a.verificationService(ctx, true)
		if err != nil {
			return err
		}
		score, err := svc.ScoreConfidence(ctx, claim, quote)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]float64{"confidence": score})
		}
		cmd.Printf("%.3f\n", score)
		return nil
	})
}
