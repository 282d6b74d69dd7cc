package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/quotecheck/internal/claims"
	"github.com/fyrsmithlabs/quotecheck/internal/config"
	"github.com/fyrsmithlabs/quotecheck/internal/corpus"
	"github.com/fyrsmithlabs/quotecheck/internal/embeddings"
	"github.com/fyrsmithlabs/quotecheck/internal/embedstore"
	"github.com/fyrsmithlabs/quotecheck/internal/fuzzy"
	"github.com/fyrsmithlabs/quotecheck/internal/indexer"
	"github.com/fyrsmithlabs/quotecheck/internal/logging"
	"github.com/fyrsmithlabs/quotecheck/internal/ngram"
	"github.com/fyrsmithlabs/quotecheck/internal/snippets"
	"github.com/fyrsmithlabs/quotecheck/internal/telemetry"
	"github.com/fyrsmithlabs/quotecheck/internal/verification"
	"github.com/fyrsmithlabs/quotecheck/internal/verifycache"
)

// app holds the components a command needs. Components open on first use and
// close in reverse dependency order.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry

	corpus      *corpus.Corpus
	claims      *claims.FileStore
	verifyCache *verifycache.VerificationCache
	confCache   *verifycache.ConfidenceCache
	provider    embeddings.Provider
	store       *embedstore.Store
	service     verification.Service
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version), logger.Underlying())
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, tel: tel}, nil
}

func (a *app) zap() *zap.Logger {
	return a.logger.Underlying()
}

func (a *app) openCorpus(ctx context.Context) (*corpus.Corpus, error) {
	if a.corpus != nil {
		return a.corpus, nil
	}
	c, err := corpus.Load(ctx, corpus.Config{
		Root:         a.cfg.Corpus.Root,
		Extensions:   a.cfg.Corpus.Extensions,
		MaxFileBytes: a.cfg.Corpus.MaxFileBytes,
		Exclude:      a.cfg.Corpus.Exclude,
		IgnoreFile:   a.cfg.Corpus.IgnoreFile,
		Index: ngram.Options{
			Width:                a.cfg.Candidates.Width,
			CommonRatio:          a.cfg.Candidates.CommonRatio,
			ContainmentThreshold: a.cfg.Candidates.ContainmentThreshold,
		},
	}, a.zap().Named("corpus"))
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	a.corpus = c
	return c, nil
}

func (a *app) openClaims() (*claims.FileStore, error) {
	if a.claims != nil {
		return a.claims, nil
	}
	s, err := claims.OpenFileStore(a.cfg.Claims.Path)
	if err != nil {
		return nil, fmt.Errorf("opening claims: %w", err)
	}
	a.claims = s
	return s, nil
}

func (a *app) openCaches() {
	if a.verifyCache != nil {
		return
	}
	a.verifyCache = verifycache.NewVerificationCache(verifycache.Options{
		Path:     a.cfg.Cache.VerificationPath,
		MaxSize:  a.cfg.Cache.VerificationSize,
		Debounce: a.cfg.Cache.Debounce.Duration(),
	}, a.zap().Named("verifycache"))
	a.confCache = verifycache.NewConfidenceCache(verifycache.Options{
		Path:     a.cfg.Cache.ConfidencePath,
		MaxSize:  a.cfg.Cache.ConfidenceSize,
		Debounce: a.cfg.Cache.Debounce.Duration(),
	}, a.zap().Named("confidencecache"))
}

func (a *app) openEmbedder() (embeddings.Provider, error) {
	if a.provider != nil {
		return a.provider, nil
	}
	p, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: a.cfg.Embeddings.Provider,
		Model:    a.cfg.Embeddings.Model,
		BaseURL:  a.cfg.Embeddings.BaseURL,
		APIKey:   a.cfg.Embeddings.APIKey.Value(),
		Timeout:  a.cfg.Embeddings.Timeout.Duration(),
		CacheDir: a.cfg.Embeddings.CacheDir,
	}, a.zap().Named("embeddings"))
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	a.provider = p
	return p, nil
}

func (a *app) openStore() (*embedstore.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := embedstore.Open(embedstore.Config{
		Path:      a.cfg.Store.Path,
		CacheSize: a.cfg.Store.CacheSize,
	}, a.zap().Named("embedstore"))
	if err != nil {
		return nil, fmt.Errorf("opening embedding store: %w", err)
	}
	a.store = s
	return s, nil
}

// verificationService builds the service. withScorer loads the embedding model,
// which only confidence scoring needs.
func (a *app) verificationService(ctx context.Context, withScorer bool) (verification.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	lib, err := a.openCorpus(ctx)
	if err != nil {
		return nil, err
	}
	cl, err := a.openClaims()
	if err != nil {
		return nil, err
	}
	a.openCaches()

	deps := verification.Dependencies{
		Library:    lib,
		Claims:     cl,
		Cache:      a.verifyCache,
		Confidence: a.confCache,
	}
	if withScorer {
		p, err := a.openEmbedder()
		if err != nil {
			return nil, err
		}
		deps.Scorer = verification.NewEmbeddingScorer(p)
	}

	svc, err := verification.NewService(&verification.Config{
		Matcher: fuzzy.Options{
			Threshold:      a.cfg.Match.Threshold,
			Width:          a.cfg.Match.Width,
			SizeVariance:   a.cfg.Match.SizeVariance,
			MaxSeeds:       a.cfg.Match.MaxSeeds,
			MaxComparisons: a.cfg.Match.MaxComparisons,
		},
		MaxQuoteRunes: a.cfg.Match.MaxQuoteRunes,
	}, deps, a.zap().Named("verification"))
	if err != nil {
		return nil, err
	}
	a.service = svc
	return svc, nil
}

func (a *app) newIndexer(ctx context.Context) (*indexer.Indexer, error) {
	lib, err := a.openCorpus(ctx)
	if err != nil {
		return nil, err
	}
	p, err := a.openEmbedder()
	if err != nil {
		return nil, err
	}
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	return indexer.New(indexer.Config{
		Concurrency: a.cfg.Index.Concurrency,
		BatchSize:   a.cfg.Index.BatchSize,
		RateLimit:   a.cfg.Index.RateLimit,
		Burst:       a.cfg.Index.Burst,
		Snippets: snippets.Options{
			MaxChars: a.cfg.Index.MaxChars,
			MinChars: a.cfg.Index.MinChars,
		},
		Rerank:       a.cfg.Index.Rerank,
		RerankWeight: a.cfg.Index.RerankWeight,
	}, lib, p, st, a.zap().Named("indexer"))
}

// close releases everything that was opened. The service owns the caches once built.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.service != nil {
		errs = append(errs, a.service.Close())
	} else if a.verifyCache != nil {
		errs = append(errs, a.verifyCache.Close(), a.confCache.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.provider != nil {
		errs = append(errs, a.provider.Close())
	}
	errs = append(errs, a.tel.Shutdown(ctx))
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// withApp runs fn with a fresh app and closes it afterwards.
func withApp(ctx context.Context, fn func(*app) error) (err error) {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}
