package verification

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/quotecheck/internal/claims"
	"github.com/fyrsmithlabs/quotecheck/internal/corpus"
	"github.com/fyrsmithlabs/quotecheck/internal/fuzzy"
	"github.com/fyrsmithlabs/quotecheck/internal/ngram"
)

// Errors for verification operations. Only ErrEmptyQuote describes bad input; the others
// report a dependency the service was built without.
var (
	ErrEmptyQuote      = errors.New("quote is required")
	ErrNoClaims        = errors.New("no claims provider configured")
	ErrNoScorer        = errors.New("no confidence scorer configured")
	ErrServiceClosed   = errors.New("verification service is closed")
	ErrLibraryRequired = errors.New("source library is required")
)

// State is the progress of a single verification request.
type State string

// Verification states.
const (
	StateUnchecked State = "UNCHECKED"
	StateVerifying State = "VERIFYING"
	StateResolved  State = "RESOLVED"
)

// Request asks whether Quote appears in Source.
type Request struct {
	ClaimID  string `json:"claimId,omitempty"`
	Quote    string `json:"quote"`
	Source   string `json:"source"`
	PageHint *int   `json:"pageHint,omitempty"`
}

// Result is the outcome of a verification request. A result that could not be checked
// carries a Reason; Errored marks failures of the verifier itself.
type Result struct {
	ClaimID      string  `json:"claimId,omitempty"`
	Quote        string  `json:"quote"`
	Source       string  `json:"source"`
	ResolvedPath string  `json:"resolvedPath,omitempty"`
	State        State   `json:"state"`
	Verified     bool    `json:"verified"`
	Confidence   float64 `json:"confidence"`
	MatchedText  string  `json:"matchedText,omitempty"`
	ClosestText  string  `json:"closestText,omitempty"`
	StartOffset  *int    `json:"startOffset,omitempty"`
	EndOffset    *int    `json:"endOffset,omitempty"`
	PageHint     *int    `json:"pageHint,omitempty"`
	Cached       bool    `json:"cached"`
	Errored      bool    `json:"errored,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// Failure is a claim whose quote was not found, with the closest text for review.
type Failure struct {
	ClaimID     string  `json:"claimId"`
	Quote       string  `json:"quote"`
	Source      string  `json:"source"`
	Confidence  float64 `json:"confidence"`
	ClosestText string  `json:"closestText,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

// BatchReport aggregates a VerifyAllClaims run.
type BatchReport struct {
	RunID     string        `json:"runId"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Total     int           `json:"total"`
	Verified  int           `json:"verified"`
	Failed    int           `json:"failed"`
	Errored   int           `json:"errored"`
	Skipped   int           `json:"skipped"`
	Cached    int           `json:"cached"`
	Failures  []Failure     `json:"failures"`
}

// Verifier checks a quote against the full text of its source.
type Verifier interface {
	Verify(ctx context.Context, quote, text string, pageHint *int) (fuzzy.Result, error)
}

// Library resolves declared sources to documents. *corpus.Corpus implements it.
type Library interface {
	Resolve(source string) (*corpus.Document, bool)
	Text(path string) (string, bool)
	Index() *ngram.Index
}

// ClaimsProvider reads and updates claims. *claims.FileStore implements it.
type ClaimsProvider interface {
	GetClaim(ctx context.Context, id string) (*claims.Claim, error)
	GetClaims(ctx context.Context) ([]claims.Claim, error)
	UpdateClaim(ctx context.Context, id string, patch claims.Patch) error
}

// Scorer rates how well a quote supports a claim, in [0, 1].
type Scorer interface {
	Score(ctx context.Context, claim, quote string) (float64, error)
}
