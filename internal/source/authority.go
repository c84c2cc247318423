package source

import (
	"net/url"
	"strings"

	"github.com/veracitylabs/veracity/internal/model"
)

// AuthorityTier classifies how authoritative a host is. Tiers map to
// reliability scores fed into evidence weighting.
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not classified
	TierPrimary   AuthorityTier = 1 // Laws, official documents, academic publishers
	TierSecondary AuthorityTier = 2 // Encyclopedias, major publishers, wire services
	TierTertiary  AuthorityTier = 3 // Blogs, personal sites
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// Reliability maps a tier to a source reliability score in [0,1].
func (t AuthorityTier) Reliability() float64 {
	switch t {
	case TierPrimary:
		return 0.95
	case TierSecondary:
		return 0.75
	case TierTertiary:
		return 0.40
	default:
		return 0.30
	}
}

// AuthorityClassifier classifies reference hosts into authority tiers.
type AuthorityClassifier struct {
	config       *model.AuthorityConfig
	primaryMap   map[string]bool
	secondaryMap map[string]bool
}

// NewAuthorityClassifier builds a classifier from configuration. A nil
// config falls back to defaults.
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	c := &AuthorityClassifier{
		config:       config,
		primaryMap:   make(map[string]bool),
		secondaryMap: make(map[string]bool),
	}
	for _, domain := range config.PrimaryDomains {
		c.primaryMap[domain] = true
	}
	for _, domain := range config.SecondaryDomains {
		c.secondaryMap[domain] = true
	}
	return c
}

// Classify maps a URL to an authority tier.
func (a *AuthorityClassifier) Classify(rawURL string) AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return TierTertiary
	}

	host := parsed.Host
	if idx := strings.Index(host, ":"); idx > 0 {
		host = host[:idx]
	}

	// Explicit per-host overrides win.
	if a.config.DomainMap != nil {
		if tierStr, ok := a.config.DomainMap[host]; ok {
			return parseTier(tierStr)
		}
	}

	if matchesDomain(host, a.primaryMap) {
		return TierPrimary
	}
	if matchesDomain(host, a.secondaryMap) {
		return TierSecondary
	}

	// Government and academic TLDs are primary even when unlisted.
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return TierPrimary
	}

	return TierTertiary
}

func matchesDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for domain := range domains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func parseTier(tier string) AuthorityTier {
	switch strings.ToLower(tier) {
	case "primary", "1":
		return TierPrimary
	case "secondary", "2":
		return TierSecondary
	default:
		return TierTertiary
	}
}
