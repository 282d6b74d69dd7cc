// Package verification decides whether quoted evidence appears in its cited source.
//
// A request moves from UNCHECKED to RESOLVED directly on a cache hit, or through
// VERIFYING when the source text has to be searched. Outcomes are memoized by
// (quote, source) and a verified outcome marks the owning claim as verified.
package verification

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotecheck/internal/claims"
	"github.com/fyrsmithlabs/quotecheck/internal/fuzzy"
	"github.com/fyrsmithlabs/quotecheck/internal/verifycache"
)

const instrumentationName = "github.com/fyrsmithlabs/quotecheck/internal/verification"

// timeNow is a variable for testing purposes.
var timeNow = time.Now

// Service verifies quotes and scores claim support.
type Service interface {
	// VerifyQuote checks one quote against its declared source.
	VerifyQuote(ctx context.Context, req *Request) (*Result, error)

	// FindQuote searches the whole library for a quote with no declared source.
	FindQuote(ctx context.Context, quote string) (*Result, error)

	// VerifyClaim verifies the primary quote of a stored claim.
	VerifyClaim(ctx context.Context, claimID string) (*Result, error)

	// VerifyAllClaims verifies every claim, one at a time.
	VerifyAllClaims(ctx context.Context) (*BatchReport, error)

	// ScoreConfidence rates how well quote supports claim.
	ScoreConfidence(ctx context.Context, claim, quote string) (float64, error)

	// Close flushes the caches.
	Close() error
}

// Config configures the verification service.
type Config struct {
	// Matcher configures the default fuzzy verifier.
	Matcher fuzzy.Options

	// MaxQuoteRunes rejects longer quotes with a negative result (default: 2000).
	MaxQuoteRunes int
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() *Config {
	return &Config{
		Matcher:       fuzzy.DefaultOptions(),
		MaxQuoteRunes: 2000,
	}
}

// Dependencies are the collaborators of the service. Library is required; a nil
// Verifier uses the fuzzy matcher, nil caches are kept in memory only.
type Dependencies struct {
	Library    Library
	Verifier   Verifier
	Claims     ClaimsProvider
	Scorer     Scorer
	Cache      *verifycache.VerificationCache
	Confidence *verifycache.ConfidenceCache
}

type service struct {
	config     *Config
	library    Library
	verifier   Verifier
	matcher    *fuzzy.Matcher
	claims     ClaimsProvider
	scorer     Scorer
	cache      *verifycache.VerificationCache
	confidence *verifycache.ConfidenceCache
	logger     *zap.Logger

	// Telemetry
	tracer         trace.Tracer
	meter          metric.Meter
	verifyCounter  metric.Int64Counter
	verifyDuration metric.Float64Histogram

	mu     sync.RWMutex
	closed bool
}

// NewService creates a verification service.
func NewService(cfg *Config, deps Dependencies, logger *zap.Logger) (Service, error) {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}
	if deps.Library == nil {
		return nil, ErrLibraryRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxQuoteRunes <= 0 {
		cfg.MaxQuoteRunes = DefaultServiceConfig().MaxQuoteRunes
	}

	matcher, err := fuzzy.NewMatcher(cfg.Matcher)
	if err != nil {
		return nil, fmt.Errorf("creating matcher: %w", err)
	}

	s := &service{
		config:     cfg,
		library:    deps.Library,
		verifier:   deps.Verifier,
		matcher:    matcher,
		claims:     deps.Claims,
		scorer:     deps.Scorer,
		cache:      deps.Cache,
		confidence: deps.Confidence,
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		meter:      otel.Meter(instrumentationName),
	}
	if s.verifier == nil {
		s.verifier = NewMatcherVerifier(matcher)
	}
	if s.cache == nil {
		s.cache = verifycache.NewVerificationCache(verifycache.Options{}, logger)
	}
	if s.confidence == nil {
		s.confidence = verifycache.NewConfidenceCache(verifycache.Options{}, logger)
	}

	s.initMetrics()
	return s, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (s *service) initMetrics() {
	var err error

	s.verifyCounter, err = s.meter.Int64Counter(
		"quotecheck.verification.requests_total",
		metric.WithDescription("Total number of quote verifications by outcome"),
		metric.WithUnit("{verification}"),
	)
	if err != nil {
		s.logger.Warn("failed to create verification counter", zap.Error(err))
	}

	s.verifyDuration, err = s.meter.Float64Histogram(
		"quotecheck.verification.duration",
		metric.WithDescription("Duration of uncached quote verifications"),
		metric.WithUnit("s"),
	)
	if err != nil {
		s.logger.Warn("failed to create verification duration histogram", zap.Error(err))
	}
}

func (s *service) record(ctx context.Context, outcome string) {
	if s.verifyCounter != nil {
		s.verifyCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (s *service) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrServiceClosed
	}
	return nil
}

// VerifyQuote checks req.Quote against req.Source.
func (s *service) VerifyQuote(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "verification.verify_quote")
	defer span.End()

	if req == nil || strings.TrimSpace(req.Quote) == "" {
		return nil, ErrEmptyQuote
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("claim_id", req.ClaimID),
		attribute.String("source", req.Source),
		attribute.Int("quote_length", len(req.Quote)),
	)

	res := &Result{
		ClaimID:  req.ClaimID,
		Quote:    req.Quote,
		Source:   req.Source,
		State:    StateUnchecked,
		PageHint: req.PageHint,
	}

	if n := utf8.RuneCountInString(req.Quote); n > s.config.MaxQuoteRunes {
		res.State = StateResolved
		res.Reason = fmt.Sprintf("quote is %d characters, limit is %d", n, s.config.MaxQuoteRunes)
		s.record(ctx, "rejected")
		return res, nil
	}

	if cached, ok := s.cache.Get(req.Quote, req.Source); ok {
		fromCache(res, cached)
		span.SetAttributes(attribute.Bool("cached", true))
		s.record(ctx, "cached")
		s.markClaim(ctx, res)
		return res, nil
	}

	if strings.TrimSpace(req.Source) == "" {
		res.State = StateResolved
		res.Reason = "no source declared"
		s.record(ctx, "no_source")
		return res, nil
	}
	doc, ok := s.library.Resolve(req.Source)
	if !ok {
		res.State = StateResolved
		res.Reason = "source text not found"
		s.record(ctx, "source_missing")
		return res, nil
	}
	res.ResolvedPath = doc.Path

	res.State = StateVerifying
	start := time.Now()
	match, err := s.verifier.Verify(ctx, req.Quote, doc.Text, req.PageHint)
	if s.verifyDuration != nil {
		s.verifyDuration.Record(ctx, time.Since(start).Seconds())
	}
	res.State = StateResolved
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("verifier failed",
			zap.String("claim_id", req.ClaimID),
			zap.String("source", req.Source),
			zap.Error(err),
		)
		res.Errored = true
		res.Reason = err.Error()
		s.record(ctx, "errored")
		return res, nil
	}

	fromMatch(res, match)
	s.cache.Set(req.Quote, req.Source, verifycache.Verification{
		Verified:    res.Verified,
		Confidence:  res.Confidence,
		MatchedText: res.MatchedText,
		ClosestText: res.ClosestText,
		StartOffset: res.StartOffset,
		EndOffset:   res.EndOffset,
		CheckedAt:   timeNow(),
	})
	if res.Verified {
		s.record(ctx, "verified")
	} else {
		s.record(ctx, "failed")
	}
	s.markClaim(ctx, res)

	span.SetAttributes(
		attribute.Bool("verified", res.Verified),
		attribute.Float64("confidence", res.Confidence),
	)
	return res, nil
}

func fromCache(res *Result, v verifycache.Verification) {
	res.State = StateResolved
	res.Cached = true
	res.Verified = v.Verified
	res.Confidence = v.Confidence
	res.MatchedText = v.MatchedText
	res.ClosestText = v.ClosestText
	res.StartOffset = v.StartOffset
	res.EndOffset = v.EndOffset
}

func fromMatch(res *Result, m fuzzy.Result) {
	res.Verified = m.Matched
	res.Confidence = m.Confidence
	res.MatchedText = m.MatchedText
	res.ClosestText = m.ClosestText
	res.StartOffset = m.StartOffset
	res.EndOffset = m.EndOffset
	if m.PageHint != nil {
		res.PageHint = m.PageHint
	}
}

// markClaim flips the owning claim to verified. Failures are logged; the verification
// outcome stands regardless.
func (s *service) markClaim(ctx context.Context, res *Result) {
	if !res.Verified || res.ClaimID == "" || s.claims == nil {
		return
	}
	verified := true
	now := timeNow().UTC()
	conf := res.Confidence
	patch := claims.Patch{Verified: &verified, VerifiedAt: &now, Confidence: &conf}
	if err := s.claims.UpdateClaim(ctx, res.ClaimID, patch); err != nil {
		s.logger.Warn("failed to mark claim verified", zap.String("claim_id", res.ClaimID), zap.Error(err))
	}
}

// FindQuote searches every candidate document for quote.
func (s *service) FindQuote(ctx context.Context, quote string) (*Result, error) {
	_, span := s.tracer.Start(ctx, "verification.find_quote")
	defer span.End()

	if strings.TrimSpace(quote) == "" {
		return nil, ErrEmptyQuote
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	best := s.matcher.FindInCorpus(quote, s.library, s.library.Index())
	res := &Result{Quote: quote, State: StateResolved}
	if best.DocID == "" {
		res.Reason = "no candidate documents"
		return res, nil
	}
	res.Source = best.DocID
	res.ResolvedPath = best.DocID
	fromMatch(res, best.Result)
	span.SetAttributes(attribute.Int("searched", best.Searched), attribute.Bool("verified", res.Verified))
	return res, nil
}

// VerifyClaim verifies the primary quote of claimID.
func (s *service) VerifyClaim(ctx context.Context, claimID string) (*Result, error) {
	if s.claims == nil {
		return nil, ErrNoClaims
	}
	c, err := s.claims.GetClaim(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("loading claim: %w", err)
	}
	if reason := skipReason(c); reason != "" {
		return &Result{ClaimID: c.ID, Quote: c.PrimaryQuote, Source: c.Source, State: StateUnchecked, Reason: reason}, nil
	}
	return s.VerifyQuote(ctx, requestFor(c))
}

func skipReason(c *claims.Claim) string {
	switch {
	case strings.TrimSpace(c.PrimaryQuote) == "":
		return "claim has no primary quote"
	case strings.TrimSpace(c.Source) == "":
		return "claim has no source"
	}
	return ""
}

func requestFor(c *claims.Claim) *Request {
	return &Request{ClaimID: c.ID, Quote: c.PrimaryQuote, Source: c.Source, PageHint: c.PageHint}
}

// VerifyAllClaims verifies claims sequentially and lists the near misses, closest first.
func (s *service) VerifyAllClaims(ctx context.Context) (*BatchReport, error) {
	ctx, span := s.tracer.Start(ctx, "verification.verify_all_claims")
	defer span.End()

	if s.claims == nil {
		return nil, ErrNoClaims
	}
	all, err := s.claims.GetClaims(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("loading claims: %w", err)
	}

	rep := &BatchReport{
		RunID:     uuid.New().String(),
		StartedAt: timeNow(),
		Total:     len(all),
		Failures:  []Failure{},
	}
	span.SetAttributes(attribute.String("run_id", rep.RunID), attribute.Int("claims", len(all)))

	for i := range all {
		c := &all[i]
		if skipReason(c) != "" {
			rep.Skipped++
			continue
		}

		res, err := s.VerifyQuote(ctx, requestFor(c))
		if err != nil {
			rep.Errored++
			rep.Failures = append(rep.Failures, Failure{ClaimID: c.ID, Quote: c.PrimaryQuote, Source: c.Source, Reason: err.Error()})
			continue
		}
		if res.Cached {
			rep.Cached++
		}
		switch {
		case res.Verified:
			rep.Verified++
		case res.Errored:
			rep.Errored++
		default:
			rep.Failed++
			rep.Failures = append(rep.Failures, Failure{
				ClaimID:     c.ID,
				Quote:       c.PrimaryQuote,
				Source:      c.Source,
				Confidence:  res.Confidence,
				ClosestText: res.ClosestText,
				Reason:      res.Reason,
			})
		}
	}

	sort.SliceStable(rep.Failures, func(i, j int) bool {
		return rep.Failures[i].Confidence > rep.Failures[j].Confidence
	})
	rep.Duration = time.Since(rep.StartedAt)

	s.logger.Info("claims verified",
		zap.String("run_id", rep.RunID),
		zap.Int("total", rep.Total),
		zap.Int("verified", rep.Verified),
		zap.Int("failed", rep.Failed),
		zap.Int("errored", rep.Errored),
		zap.Int("skipped", rep.Skipped),
	)
	return rep, nil
}

// ScoreConfidence returns the memoized support score of quote for claim.
func (s *service) ScoreConfidence(ctx context.Context, claim, quote string) (float64, error) {
	ctx, span := s.tracer.Start(ctx, "verification.score_confidence")
	defer span.End()

	if strings.TrimSpace(quote) == "" {
		return 0, ErrEmptyQuote
	}
	if score, ok := s.confidence.Get(claim, quote); ok {
		span.SetAttributes(attribute.Bool("cached", true))
		return score, nil
	}
	if s.scorer == nil {
		return 0, ErrNoScorer
	}

	score, err := s.scorer.Score(ctx, claim, quote)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("scoring confidence: %w", err)
	}
	s.confidence.Set(claim, quote, score)
	return score, nil
}

// Close flushes both caches.
func (s *service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	if err := s.cache.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.confidence.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing caches: %v", errs)
	}
	return nil
}
