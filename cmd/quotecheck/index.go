package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/quotecheck/internal/indexer"
)

var (
	indexPrune  bool
	searchLimit int
)

var indexCmd = &cobra.Command{
	Use:   "index [path...]",
	Short: "Embed corpus documents for semantic search",
	Long: `Split corpus documents into snippets and store their embeddings. Unchanged
files are skipped. With no paths, the whole corpus is indexed.`,
	RunE: runIndex,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find the snippets most similar to a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	indexCmd.Flags().BoolVar(&indexPrune, "prune", false, "remove stored files that are no longer in the corpus")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		ix, err := a.newIndexer(ctx)
		if err != nil {
			return err
		}

		var report *indexer.Report
		if len(args) > 0 {
			report, err = ix.IndexFiles(ctx, args)
		} else {
			report, err = ix.IndexAll(ctx)
		}
		if err != nil {
			return err
		}

		var pruned []string
		if indexPrune {
			if pruned, err = ix.Prune(ctx); err != nil {
				return err
			}
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), struct {
				*indexer.Report
				Pruned []string `json:"pruned,omitempty"`
			}{report, pruned})
		}

		cmd.Printf("Indexed %d of %d files (%d unchanged, %d missing) in %s\n",
			report.Indexed, report.Files, report.Unchanged, report.Missing, report.Duration)
		cmd.Printf("Snippets: %d stored, %d replaced, %d skipped\n", report.Snippets, report.Replaced, report.Skipped)
		for _, fe := range report.Errors {
			cmd.Printf("  error: %s: %s\n", fe.Path, fe.Error)
		}
		if len(pruned) > 0 {
			cmd.Printf("Pruned %d files\n", len(pruned))
		}
		return nil
	})
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(a *app) error {
		ix, err := a.newIndexer(ctx)
		if err != nil {
			return err
		}
		resp, err := ix.SearchText(ctx, args[0], searchLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}

		if len(resp.Results) == 0 {
			cmd.Println("No results. Run 'quotecheck index' first.")
			return nil
		}
		for i, r := range resp.Results {
			cmd.Printf("%2d. %.3f  %s:%d-%d\n", i+1, r.Similarity, r.Snippet.FilePath, r.Snippet.StartLine, r.Snippet.EndLine)
			cmd.Printf("    %s\n", truncate(r.Snippet.Text, 160))
		}
		if resp.Skipped > 0 {
			cmd.Printf("(%d snippets could not be scored)\n", resp.Skipped)
		}
		return nil
	})
}
