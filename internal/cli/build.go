package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/veracitylabs/veracity/internal/cache"
	"github.com/veracitylabs/veracity/internal/model"
	"github.com/veracitylabs/veracity/internal/pipeline"
	"github.com/veracitylabs/veracity/internal/rater"
	"github.com/veracitylabs/veracity/internal/source"
	"github.com/veracitylabs/veracity/internal/worker"
)

// loadConfig resolves the effective configuration: defaults overlaid by the
// config file and VERACITY_* environment variables.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Raters.Provider == "openai" && cfg.Raters.APIKey == "" {
		cfg.Raters.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return cfg, nil
}

// buildOrchestrator assembles the pipeline from configuration: knowledge
// sources, an independent cross-validation path, and the rater pool.
func buildOrchestrator(cfg *model.Config, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	sources, err := buildSources(cfg, logger)
	if err != nil {
		return nil, err
	}
	// A second set of source instances forms the independent retrieval
	// path: separate caches and clients, so a poisoned primary fetch cannot
	// echo into cross-validation.
	crossSources, err := buildSources(cfg, logger)
	if err != nil {
		return nil, err
	}

	raters, err := buildRaters(cfg)
	if err != nil {
		return nil, err
	}

	return pipeline.New(cfg, pipeline.Options{
		Sources:      sources,
		CrossSources: crossSources,
		Raters:       raters,
		Logger:       logger,
	})
}

func buildSources(cfg *model.Config, logger *slog.Logger) ([]source.Source, error) {
	var sources []source.Source

	if len(cfg.Sources.CorpusFiles) > 0 {
		corpus, err := source.LoadCorpusSource("corpus", 0.9, cfg.Sources.MaxExcerpts, cfg.Sources.CorpusFiles)
		if err != nil {
			return nil, err
		}
		sources = append(sources, corpus)
	}

	if len(cfg.Sources.ReferenceURLs) > 0 {
		var pageCache cache.Cache
		if cfg.Cache.Enabled {
			pageCache = cache.NewMemoryCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval)
		}
		sources = append(sources, source.NewWebSource("web", source.WebSourceOptions{
			URLs:         cfg.Sources.ReferenceURLs,
			UserAgent:    cfg.Sources.UserAgent,
			FetchTimeout: cfg.Sources.FetchTimeout,
			MaxBodyBytes: cfg.Sources.MaxBodyBytes,
			Limiter:      worker.NewLimiter(cfg.Sources.RequestsPerSecond, cfg.Sources.Burst),
			Authority:    source.NewAuthorityClassifier(&cfg.Authority),
			Cache:        pageCache,
			CacheTTL:     cfg.Cache.TTL,
			MinRelevance: cfg.Sources.MinRelevance,
			MaxExcerpts:  cfg.Sources.MaxExcerpts,
			Logger:       logger,
		}))
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no knowledge sources configured: set sources.corpus_files or sources.reference_urls")
	}
	return sources, nil
}

func buildRaters(cfg *model.Config) ([]rater.Rater, error) {
	poolSize := cfg.Consensus.PoolSize
	if poolSize <= 0 {
		poolSize = 8
	}

	raters := make([]rater.Rater, 0, poolSize)
	for i := 0; i < poolSize; i++ {
		id := fmt.Sprintf("%s-%d", cfg.Raters.Provider, i)
		switch cfg.Raters.Provider {
		case "", "lexical":
			// Staggered thresholds make the lexical raters disagree on
			// borderline claims instead of acting as one rater times N.
			threshold := cfg.Detector.SupportThreshold + 0.05*float64(i%4)
			raters = append(raters, rater.NewLexicalRater(id, threshold))
		case "openai":
			r, err := rater.NewOpenAIRater(id, cfg.Raters)
			if err != nil {
				return nil, err
			}
			raters = append(raters, r)
		default:
			return nil, fmt.Errorf("unknown rater provider %q", cfg.Raters.Provider)
		}
	}
	return raters, nil
}
