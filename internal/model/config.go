package model

import "time"

// Config is the full configuration surface. Values are resolved with the
// hierarchy flags > environment (VERACITY_*) > config file > defaults.
type Config struct {
	Verification VerificationConfig `yaml:"verification" mapstructure:"verification"`
	Consensus    ConsensusConfig    `yaml:"consensus" mapstructure:"consensus"`
	Detector     DetectorConfig     `yaml:"detector" mapstructure:"detector"`
	Sources      SourcesConfig      `yaml:"sources" mapstructure:"sources"`
	Authority    AuthorityConfig    `yaml:"authority" mapstructure:"authority"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Metrics      MetricsConfig      `yaml:"metrics" mapstructure:"metrics"`
	Raters       RatersConfig       `yaml:"raters" mapstructure:"raters"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
}

// VerificationConfig controls the accept floor and per-stage budgets.
type VerificationConfig struct {
	// TargetAccuracy is the minimum confidence required to accept content.
	// Confidence is clamped to this value, so accepted records carry
	// exactly this confidence unless the composite score is lower.
	TargetAccuracy float64 `yaml:"target_accuracy" mapstructure:"target_accuracy"`

	SourceTimeout     time.Duration `yaml:"source_timeout" mapstructure:"source_timeout"`
	CrossCheckTimeout time.Duration `yaml:"cross_check_timeout" mapstructure:"cross_check_timeout"`

	// RepeatedRejectTTL bounds how long a quality rejection is remembered
	// for the "incident on repeated rejection" rule.
	RepeatedRejectTTL time.Duration `yaml:"repeated_reject_ttl" mapstructure:"repeated_reject_ttl"`
}

// ConsensusConfig sizes the rater pool and its quorum.
type ConsensusConfig struct {
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size"`
	// Quorum is the minimum number of rater responses before consensus can
	// be evaluated. Must be at most PoolSize; keeping it below PoolSize
	// tolerates slow or failed raters.
	Quorum int `yaml:"quorum" mapstructure:"quorum"`
	// Threshold is the minimum confidence-weighted agreement ratio for a
	// verdict to count as reliable.
	Threshold       float64       `yaml:"threshold" mapstructure:"threshold"`
	RaterTimeout    time.Duration `yaml:"rater_timeout" mapstructure:"rater_timeout"`
	PoolTimeout     time.Duration `yaml:"pool_timeout" mapstructure:"pool_timeout"`
	RetrySlowRaters bool          `yaml:"retry_slow_raters" mapstructure:"retry_slow_raters"`
}

// DetectorConfig holds the hallucination detector thresholds.
type DetectorConfig struct {
	RelevanceThreshold   float64 `yaml:"relevance_threshold" mapstructure:"relevance_threshold"`
	ConsistencyThreshold float64 `yaml:"consistency_threshold" mapstructure:"consistency_threshold"`
	SupportThreshold     float64 `yaml:"support_threshold" mapstructure:"support_threshold"`
}

// SourcesConfig configures knowledge sources and evidence gathering.
type SourcesConfig struct {
	CorpusFiles   []string `yaml:"corpus_files" mapstructure:"corpus_files"`
	ReferenceURLs []string `yaml:"reference_urls" mapstructure:"reference_urls"`

	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`

	HTTPProxy  string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy" mapstructure:"https_proxy"`

	MaxExcerpts     int     `yaml:"max_excerpts" mapstructure:"max_excerpts"`
	MinRelevance    float64 `yaml:"min_relevance" mapstructure:"min_relevance"`
	DedupeThreshold float64 `yaml:"dedupe_threshold" mapstructure:"dedupe_threshold"`
}

// AuthorityConfig maps hosts to authority tiers for reliability scoring.
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map" mapstructure:"domain_map"`
}

// CacheConfig controls the shared evidence cache.
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL             time.Duration `yaml:"ttl" mapstructure:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

// MetricsConfig sizes the sliding window and the periodic report.
type MetricsConfig struct {
	WindowSize     int           `yaml:"window_size" mapstructure:"window_size"`
	ReportInterval time.Duration `yaml:"report_interval" mapstructure:"report_interval"`
}

// RatersConfig selects the rater implementation backing the pool.
type RatersConfig struct {
	// Provider is "lexical" or "openai". The openai provider also serves
	// OpenAI-compatible local endpoints via BaseURL.
	Provider  string `yaml:"provider" mapstructure:"provider"`
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// HTTPConfig configures the optional HTTP gateway.
type HTTPConfig struct {
	Listen          string        `yaml:"listen" mapstructure:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// ConcurrencyConfig bounds parallelism across requests.
type ConcurrencyConfig struct {
	MaxInFlight  int `yaml:"max_in_flight" mapstructure:"max_in_flight"`
	BatchWorkers int `yaml:"batch_workers" mapstructure:"batch_workers"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Verification: VerificationConfig{
			TargetAccuracy:    0.9999,
			SourceTimeout:     15 * time.Second,
			CrossCheckTimeout: 15 * time.Second,
			RepeatedRejectTTL: 10 * time.Minute,
		},
		Consensus: ConsensusConfig{
			PoolSize:        8,
			Quorum:          5,
			Threshold:       0.90,
			RaterTimeout:    10 * time.Second,
			PoolTimeout:     30 * time.Second,
			RetrySlowRaters: true,
		},
		Detector: DetectorConfig{
			RelevanceThreshold:   0.35,
			ConsistencyThreshold: 0.60,
			SupportThreshold:     0.50,
		},
		Sources: SourcesConfig{
			UserAgent:         "Veracity/0.1 (+https://github.com/veracitylabs/veracity)",
			FetchTimeout:      10 * time.Second,
			MaxBodyBytes:      2_000_000,
			RequestsPerSecond: 2,
			Burst:             5,
			MaxExcerpts:       20,
			MinRelevance:      0.20,
			DedupeThreshold:   0.90,
		},
		Authority: AuthorityConfig{
			PrimaryDomains:   []string{"gov.uk", "europa.eu", "un.org", "nih.gov", "nature.com"},
			SecondaryDomains: []string{"britannica.com", "reuters.com", "apnews.com", "bbc.com"},
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             15 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Metrics: MetricsConfig{
			WindowSize:     1000,
			ReportInterval: 5 * time.Minute,
		},
		Raters: RatersConfig{
			Provider:  "lexical",
			MaxTokens: 256,
		},
		HTTP: HTTPConfig{
			Listen:          ":8391",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Concurrency: ConcurrencyConfig{
			MaxInFlight:  16,
			BatchWorkers: 4,
		},
	}
}
