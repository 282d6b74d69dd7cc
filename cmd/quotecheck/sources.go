package main

import (
	"errors"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/quotecheck/internal/corpus"
)

var (
	sourceAuthors string
	sourceYear    string
	sourceTitle   string
	sourceID      string
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage the registry of cited sources",
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a cited source and show where its text is expected",
	Example: `  quotecheck sources add --authors "Zhang, Y.; Parmigiani, G.; Johnson, W. E." \
    --year 2020 --title "ComBat-seq: batch effect adjustment for RNA-seq count data"`,
	Args: cobra.NoArgs,
	RunE: runSourcesAdd,
}

var sourcesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Register every corpus file named \"Author - Year - Title.txt\"",
	Args:  cobra.NoArgs,
	RunE:  runSourcesImport,
}

func init() {
	sourcesAddCmd.Flags().StringVar(&sourceAuthors, "authors", "", "author list, e.g. \"Zhang, Y.; Wu, H.\" (required)")
	sourcesAddCmd.Flags().StringVar(&sourceYear, "year", "", "publication year (required)")
	sourcesAddCmd.Flags().StringVar(&sourceTitle, "title", "", "title")
	sourcesAddCmd.Flags().StringVar(&sourceID, "id", "", "registry id (default <surname><year>)")

	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesImportCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSourcesAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if strings.TrimSpace(sourceAuthors) == "" || strings.TrimSpace(sourceYear) == "" {
		return errors.New("--authors and --year are required")
	}
	src := corpus.NewSource(sourceAuthors, strings.TrimSpace(sourceYear), sourceTitle)
	if sourceID != "" {
		src.ID = sourceID
	}

	return withApp(ctx, func(a *app) error {
		cl, err := a.openClaims()
		if err != nil {
			return err
		}
		sources, replaced := upsertSource(cl.Sources(ctx), src)
		if err := cl.SetSources(ctx, sources); err != nil {
			return err
		}

		lib, err := a.openCorpus(ctx)
		if err != nil {
			return err
		}
		doc, found := lib.ResolveReference(src.Authors, src.Year)

		if jsonOutput {
			out := struct {
				corpus.Source
				Path     string `json:"path,omitempty"`
				Expected string `json:"expected,omitempty"`
			}{Source: src}
			if found {
				out.Path = doc.Path
			} else {
				out.Expected = corpus.StandardName(corpus.CitationAuthors(src.Authors), src.Year, src.Title)
			}
			return printJSON(cmd.OutOrStdout(), out)
		}

		if replaced {
			cmd.Printf("Updated source %s\n", src.ID)
		} else {
			cmd.Printf("Added source %s\n", src.ID)
		}
		if found {
			cmd.Printf("  Text: %s\n", doc.Path)
		} else {
			cmd.Printf("  Missing text; save it as: %s\n",
				corpus.StandardName(corpus.CitationAuthors(src.Authors), src.Year, src.Title))
		}
		return nil
	})
}

type importReport struct {
	Imported    []corpus.Source `json:"imported"`
	Registered  int             `json:"alreadyRegistered"`
	Nonstandard []string        `json:"nonstandard,omitempty"`
}

func runSourcesImport(cmd *cobra.Command, _ []string) error {
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

		sources := cl.Sources(ctx)
		known := make(map[string]bool, len(sources))
		for _, s := range sources {
			known[s.ID] = true
		}

		var rep importReport
		for _, p := range lib.Paths() {
			cit, ok := corpus.ParseName(path.Base(p))
			if !ok {
				rep.Nonstandard = append(rep.Nonstandard, p)
				continue
			}
			src := corpus.NewSource(cit.Authors, cit.Year, cit.Title)
			if known[src.ID] {
				rep.Registered++
				continue
			}
			known[src.ID] = true
			sources = append(sources, src)
			rep.Imported = append(rep.Imported, src)
		}

		if len(rep.Imported) > 0 {
			if err := cl.SetSources(ctx, sources); err != nil {
				return err
			}
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rep)
		}
		cmd.Printf("Imported %d sources (%d already registered, %d files not in standard form)\n",
			len(rep.Imported), rep.Registered, len(rep.Nonstandard))
		for _, s := range rep.Imported {
			cmd.Printf("  %-14s %s (%s)\n", s.ID, s.Authors, s.Year)
		}
		return nil
	})
}

// upsertSource replaces the entry with src's ID or appends src.
func upsertSource(sources []corpus.Source, src corpus.Source) ([]corpus.Source, bool) {
	for i := range sources {
		if sources[i].ID == src.ID {
			sources[i] = src
			return sources, true
		}
	}
	return append(sources, src), false
}
