package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/quotecheck/internal/claims"
	"github.com/fyrsmithlabs/quotecheck/internal/corpus"
	"github.com/fyrsmithlabs/quotecheck/internal/verification"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "alpha beta", n: 20, want: "alpha beta"},
		{name: "exact", in: "alpha", n: 5, want: "alpha"},
		{name: "cut", in: "alpha beta gamma", n: 10, want: "alpha b..."},
		{name: "whitespace collapsed", in: "alpha\n\n  beta", n: 20, want: "alpha beta"},
		{name: "tiny limit", in: "alpha", n: 2, want: "al"},
		{name: "no limit", in: "alpha beta", n: 0, want: "alpha beta"},
		{name: "runes", in: "épsilon réduces", n: 8, want: "épsil..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

const leek = `Tackling the widespread and critical impact of batch effects in
high-throughput data. Batch effects are widespread and critical in
high-throughput data, and they can lead to incorrect biological conclusions.`

const johnson = `ComBat adjusts for batch effects using an empirical Bayes framework,
which is robust to outliers in small sample sizes.`

// setupWorkspace writes a corpus and claims file to a temp dir and points the
// configuration at it through the environment.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "corpus")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "Leek_2010_Batch_Effects.txt"), leek)
	writeFile(t, filepath.Join(root, "Johnson_2007_ComBat.txt"), johnson)

	data, err := json.Marshal(map[string]any{
		"version": claims.FileVersion,
		"claims": []claims.Claim{
			{ID: "C_01", Text: "Batch effects matter", Source: "Leek et al. 2010", PrimaryQuote: "Batch effects are widespread and critical"},
			{ID: "C_02", Text: "ComBat is robust", Source: "Johnson_2007_ComBat", PrimaryQuote: "robust to outliers in small sample sizes"},
		},
		"sources": []corpus.Source{
			{ID: "leek2010", Authors: "Leek, J. T.", Year: "2010"},
			{ID: "johnson2007", Authors: "Johnson, W. E.", Year: "2007"},
			{ID: "zhang2020", Authors: "Zhang, Y.", Year: "2020"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "claims.json"), string(data))

	t.Setenv("HOME", dir)
	t.Setenv("QUOTECHECK_CORPUS_ROOT", root)
	t.Setenv("QUOTECHECK_CLAIMS_PATH", filepath.Join(dir, "claims.json"))
	t.Setenv("QUOTECHECK_CACHE_VERIFICATION_PATH", filepath.Join(dir, "verification-cache.json"))
	t.Setenv("QUOTECHECK_CACHE_CONFIDENCE_PATH", filepath.Join(dir, "confidence-cache.json"))
	t.Setenv("QUOTECHECK_LOGGING_LEVEL", "error")
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

// run executes the root command with args and returns its combined output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, logLevel, jsonOutput = "", "", false
	verifySource, verifyClaimID, verifyPage = "", "", 0
	claimText, claimSource, claimQuote, claimCategory, claimPage = "", "", "", "", 0
	sourceAuthors, sourceYear, sourceTitle, sourceID = "", "", "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVerifyCommand(t *testing.T) {
	setupWorkspace(t)

	out, err := run(t, "verify", "--source", "Leek et al. 2010", "Batch effects are widespread and critical")
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	if !strings.Contains(out, "VERIFIED  100.0%") {
		t.Errorf("output missing verified status:\n%s", out)
	}
	if !strings.Contains(out, "Leek_2010_Batch_Effects.txt") {
		t.Errorf("output missing resolved path:\n%s", out)
	}
}

func TestVerifyCommand_NotFound(t *testing.T) {
	setupWorkspace(t)

	out, err := run(t, "verify", "--source", "Johnson_2007_ComBat", "Harmony integrates single-cell datasets by iterative clustering")
	if !errors.Is(err, errUnverified) {
		t.Fatalf("expected errUnverified, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "NOT FOUND") {
		t.Errorf("output missing status:\n%s", out)
	}
}

func TestVerifyCommand_SearchesCorpusWithoutSource(t *testing.T) {
	setupWorkspace(t)

	out, err := run(t, "verify", "--json", "ComBat adjusts for batch effect using an empirical Bayes framework")
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}

	var res verification.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out)
	}
	if !res.Verified {
		t.Errorf("expected verified result, got %+v", res)
	}
	if res.ResolvedPath != "Johnson_2007_ComBat.txt" {
		t.Errorf("ResolvedPath = %q", res.ResolvedPath)
	}
}

func TestVerifyCommand_EmptyQuote(t *testing.T) {
	setupWorkspace(t)

	_, err := run(t, "verify", "--source", "Leek et al. 2010", "   ")
	if !errors.Is(err, verification.ErrEmptyQuote) {
		t.Fatalf("expected ErrEmptyQuote, got %v", err)
	}
}

func TestVerifyClaimsCommand(t *testing.T) {
	dir := setupWorkspace(t)

	out, err := run(t, "verify-claims")
	if err != nil {
		t.Fatalf("verify-claims: %v\n%s", err, out)
	}
	if !strings.Contains(out, "verified: 2  failed: 0") {
		t.Errorf("unexpected summary:\n%s", out)
	}

	store, err := claims.OpenFileStore(filepath.Join(dir, "claims.json"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := store.GetClaim(context.Background(), "C_02")
	if err != nil {
		t.Fatal(err)
	}
	if !c.Verified || c.VerifiedAt == nil {
		t.Errorf("claim not marked verified: %+v", c)
	}
}

func TestVerifyClaimsCommand_ByID(t *testing.T) {
	setupWorkspace(t)

	out, err := run(t, "verify-claims", "C_01")
	if err != nil {
		t.Fatalf("verify-claims: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[C_01] VERIFIED") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, err := run(t, "verify-claims", "C_99"); !errors.Is(err, claims.ErrClaimNotFound) {
		t.Errorf("expected ErrClaimNotFound, got %v", err)
	}
}

func TestCoverageCommand(t *testing.T) {
	setupWorkspace(t)

	out, err := run(t, "coverage")
	if err != nil {
		t.Fatalf("coverage: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Coverage: 2/3 sources (66%)") {
		t.Errorf("unexpected coverage:\n%s", out)
	}
	if !strings.Contains(out, "zhang2020") {
		t.Errorf("missing source not listed:\n%s", out)
	}
}

func TestClaimsAddCommand(t *testing.T) {
	setupWorkspace(t)

	out, err := run(t, "claims", "add", "C_03",
		"--text", "Batch effects mislead analyses",
		"--source", "Leek et al. 2010",
		"--quote", "they can lead to incorrect biological conclusions")
	if err != nil {
		t.Fatalf("claims add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Added claim C_03") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = run(t, "verify-claims", "C_03")
	if err != nil {
		t.Fatalf("verify-claims: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[C_03] VERIFIED") {
		t.Errorf("added claim not verified:\n%s", out)
	}

	out, err = run(t, "claims", "list")
	if err != nil {
		t.Fatalf("claims list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "C_03   verified") {
		t.Errorf("unexpected list:\n%s", out)
	}
}

func TestClaimsAddCommand_Invalid(t *testing.T) {
	setupWorkspace(t)

	if _, err := run(t, "claims", "add", "claim-3", "--text", "x"); !errors.Is(err, claims.ErrInvalidClaimID) {
		t.Errorf("expected ErrInvalidClaimID, got %v", err)
	}
	if _, err := run(t, "claims", "add", "C_04"); err == nil {
		t.Error("expected error for missing --text")
	}
}

func TestSourcesAddCommand(t *testing.T) {
	setupWorkspace(t)

	out, err := run(t, "sources", "add", "--authors", "Soneson, C.; Gerster, S.; Delorenzi, M.",
		"--year", "2014", "--title", "Batch Effect Confounding: Leads to Bias")
	if err != nil {
		t.Fatalf("sources add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Added source soneson2014") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "save it as: Soneson et al. - 2014 - Batch Effect Confounding Leads to Bias.txt") {
		t.Errorf("expected file name not shown:\n%s", out)
	}

	out, err = run(t, "sources", "add", "--authors", "Leek, J. T.", "--year", "2010", "--id", "leek2010")
	if err != nil {
		t.Fatalf("sources add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Updated source leek2010") || !strings.Contains(out, "Text: Leek_2010_Batch_Effects.txt") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = run(t, "coverage")
	if err != nil {
		t.Fatalf("coverage: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Coverage: 2/4 sources (50%)") {
		t.Errorf("unexpected coverage:\n%s", out)
	}
}

func TestSourcesImportCommand(t *testing.T) {
	dir := setupWorkspace(t)
	writeFile(t, filepath.Join(dir, "corpus", "Soneson et al. - 2014 - Batch Effect Confounding.txt"),
		"Batch effects confounded with the outcome bias cross-validation estimates.")

	out, err := run(t, "sources", "import")
	if err != nil {
		t.Fatalf("sources import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Imported 1 sources (0 already registered, 2 files not in standard form)") {
		t.Errorf("unexpected import summary:\n%s", out)
	}

	out, err = run(t, "sources", "import")
	if err != nil {
		t.Fatalf("sources import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Imported 0 sources (1 already registered") {
		t.Errorf("second import not idempotent:\n%s", out)
	}

	out, err = run(t, "coverage")
	if err != nil {
		t.Fatalf("coverage: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Coverage: 3/4 sources (75%)") {
		t.Errorf("unexpected coverage:\n%s", out)
	}
}

func TestCacheCommands(t *testing.T) {
	setupWorkspace(t)

	if out, err := run(t, "verify", "--source", "Leek et al. 2010", "Batch effects are widespread and critical"); err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}

	out, err := run(t, "verify", "--source", "Leek et al. 2010", "Batch effects are widespread and critical")
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	if !strings.Contains(out, "(cached)") {
		t.Errorf("second run not served from cache:\n%s", out)
	}

	out, err = run(t, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Cleared 1 cache entries") {
		t.Errorf("unexpected clear output:\n%s", out)
	}

	out, err = run(t, "cache", "stats")
	if err != nil {
		t.Fatalf("cache stats: %v\n%s", err, out)
	}
	if !strings.Contains(out, "0/200 entries") {
		t.Errorf("unexpected stats:\n%s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Version:    dev") {
		t.Errorf("unexpected version output:\n%s", out)
	}
}
