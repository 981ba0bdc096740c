// Package discovery finds candidate websites for businesses that have none
// on record, via a search-backed external service.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/internal/resilience"
	"github.com/sells-group/sitecheck/pkg/perplexity"
)

// Discovery method names recorded in claim metadata.
const (
	MethodSourceFeed     = "source-feed"
	MethodExternalSearch = "external-search"
)

// maxExcludeDomains is the search_domain_filter cap enforced by the API.
const maxExcludeDomains = 20

// Service performs search-based website discovery.
type Service struct {
	client  perplexity.Client
	filter  *DomainFilter
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

// NewService creates a discovery service. ratePerS throttles the paid
// search API across all callers in this process.
func NewService(client perplexity.Client, filter *DomainFilter, ratePerS float64, timeout time.Duration) *Service {
	if ratePerS <= 0 {
		ratePerS = 0.5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// One breaker per process: a failing search API should stop a batch
	// run from burning budget on doomed calls.
	return &Service{
		client:  client,
		filter:  filter,
		limiter: rate.NewLimiter(rate.Limit(ratePerS), 1),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		timeout: timeout,
	}
}

const discoveryPrompt = `Find the official website for this business:

Name: %s
Phone: %s
Address: %s
Category: %s

Rules:
- Only return a URL you are confident belongs to this exact business.
- Directory listings, review sites, marketplaces, and social-media profiles are NOT the business's own website. If only those exist, return an empty url but include the social profiles you found.
- Infer the business's country from result evidence (TLD, address format, phone prefix).

Respond with exactly one JSON object, no prose:
{"url":"<official website or empty>","confidence":0.0-1.0,"reasoning":"<one or two sentences>","country":"<ISO 3166-1 alpha-2 or empty>","country_confidence":0.0-1.0,"country_signals":["<signal>"],"social_urls":{"<platform>":"<url>"}}`

// rawDiscovery mirrors the JSON contract in the prompt.
type rawDiscovery struct {
	URL               string            `json:"url"`
	Confidence        float64           `json:"confidence"`
	Reasoning         string            `json:"reasoning"`
	Country           string            `json:"country"`
	CountryConfidence float64           `json:"country_confidence"`
	CountrySignals    []string          `json:"country_signals"`
	SocialURLs        map[string]string `json:"social_urls"`
}

// Discover runs one external search for the business. A nil error with an
// empty CandidateURL is a definitive "nothing found" — the caller decides
// what that means for the claim.
func (s *Service) Discover(ctx context.Context, business model.Business) (*model.DiscoveryResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "discovery: rate limit wait")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := fmt.Sprintf(discoveryPrompt,
		business.Name,
		business.Phone,
		business.Location(),
		business.Category,
	)

	temp := 0.0
	maxTokens := 1024
	resp, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		return s.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
			Messages:           []perplexity.Message{{Role: "user", Content: prompt}},
			SearchDomainFilter: s.filter.ExcludeList(maxExcludeDomains),
			Temperature:        &temp,
			MaxTokens:          &maxTokens,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "discovery: search")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("discovery: empty response")
	}

	result, err := parseDiscovery(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: parse response for %s", business.Name)
	}

	// The search prompt excludes non-business domains, but the model can
	// still hand one back. Filter defensively and demote it to a social
	// entry when applicable.
	if result.CandidateURL != "" {
		if cat := s.filter.Categorize(result.CandidateURL); cat != CategoryNone {
			zap.L().Info("discovery: rejected non-business candidate",
				zap.String("business_id", business.ID),
				zap.String("url", result.CandidateURL),
				zap.String("category", string(cat)),
			)
			if cat == CategorySocial {
				if result.SocialURLs == nil {
					result.SocialURLs = map[string]string{}
				}
				result.SocialURLs[hostOf(result.CandidateURL)] = result.CandidateURL
			}
			result.Reasoning = strings.TrimSpace(result.Reasoning +
				" Candidate " + result.CandidateURL + " rejected: " + string(cat) + " domain.")
			result.CandidateURL = ""
		}
	}

	if result.CountryConfidence == 0 {
		if country, conf, signals := inferCountry(business, result); country != "" {
			result.DetectedCountry = country
			result.CountryConfidence = conf
			result.CountrySignals = append(result.CountrySignals, signals...)
		}
	}

	zap.L().Info("discovery: complete",
		zap.String("business_id", business.ID),
		zap.String("candidate", result.CandidateURL),
		zap.Float64("confidence", result.Confidence),
		zap.String("country", result.DetectedCountry),
	)

	return result, nil
}

func parseDiscovery(text string) (*model.DiscoveryResult, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	var raw rawDiscovery
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, eris.Wrap(err, "unmarshal discovery")
	}

	return &model.DiscoveryResult{
		CandidateURL:      strings.TrimSpace(raw.URL),
		Confidence:        raw.Confidence,
		Reasoning:         raw.Reasoning,
		DetectedCountry:   strings.ToUpper(raw.Country),
		CountryConfidence: raw.CountryConfidence,
		CountrySignals:    raw.CountrySignals,
		SocialURLs:        raw.SocialURLs,
	}, nil
}
