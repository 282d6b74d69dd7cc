package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/quotecheck/internal/claims"
)

var (
	claimText     string
	claimSource   string
	claimQuote    string
	claimCategory string
	claimPage     int
)

var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "Manage manuscript claims",
}

var claimsAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add or replace a claim and its supporting quote",
	Example: `  quotecheck claims add C_03 --text "Batch effects bias classifiers" \
    --source "Soneson et al. 2014" --quote "batch effects can lead to overoptimistic"`,
	Args: cobra.ExactArgs(1),
	RunE: runClaimsAdd,
}

var claimsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List claims and their verification state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		return withApp(ctx, func(a *app) error {
			cl, err := a.openClaims()
			if err != nil {
				return err
			}
			all, err := cl.GetClaims(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), all)
			}
			for _, c := range all {
				state := "unchecked"
				if c.Verified {
					state = "verified"
				}
				cmd.Printf("%-6s %-9s %s\n", c.ID, state, truncate(c.Text, 60))
			}
			return nil
		})
	},
}

func init() {
	claimsAddCmd.Flags().StringVar(&claimText, "text", "", "claim text (required)")
	claimsAddCmd.Flags().StringVarP(&claimSource, "source", "s", "", "cited source")
	claimsAddCmd.Flags().StringVarP(&claimQuote, "quote", "q", "", "primary supporting quote")
	claimsAddCmd.Flags().StringVar(&claimCategory, "category", "", "claim category")
	claimsAddCmd.Flags().IntVar(&claimPage, "page", 0, "page hint for the quote")

	claimsCmd.AddCommand(claimsAddCmd)
	claimsCmd.AddCommand(claimsListCmd)
	rootCmd.AddCommand(claimsCmd)
}

func runClaimsAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]
	if err := claims.ValidateID(id); err != nil {
		return err
	}
	if strings.TrimSpace(claimText) == "" {
		return errors.New("--text is required")
	}

	c := claims.Claim{
		ID:           id,
		Text:         strings.TrimSpace(claimText),
		Category:     claimCategory,
		Source:       strings.TrimSpace(claimSource),
		PrimaryQuote: strings.TrimSpace(claimQuote),
	}
	if claimPage > 0 {
		page := claimPage
		c.PageHint = &page
	}

	return withApp(ctx, func(a *app) error {
		cl, err := a.openClaims()
		if err != nil {
			return err
		}
		_, err = cl.GetClaim(ctx, id)
		replaced := err == nil
		if err := cl.PutClaim(ctx, c); err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), c)
		}
		if replaced {
			cmd.Printf("Replaced claim %s\n", id)
		} else {
			cmd.Printf("Added claim %s\n", id)
		}
		if c.PrimaryQuote == "" || c.Source == "" {
			cmd.Println("  no quote or source yet; verify-claims will skip it")
		}
		return nil
	})
}
