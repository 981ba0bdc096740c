package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/pkg/perplexity"
)

// mockSearch implements perplexity.Client for testing.
type mockSearch struct {
	content string
	err     error
	lastReq perplexity.ChatCompletionRequest
}

func (m *mockSearch) ChatCompletion(_ context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{{Message: perplexity.Message{Role: "assistant", Content: m.content}}},
	}, nil
}

func newTestService(content string) (*Service, *mockSearch) {
	mock := &mockSearch{content: content}
	// High rate so tests never wait on the limiter.
	svc := NewService(mock, NewDomainFilter(), 1000, 5*time.Second)
	return svc, mock
}

func TestDiscover_CandidateFound(t *testing.T) {
	svc, mock := newTestService(`{"url":"https://acmeplumbing.com","confidence":0.85,"reasoning":"Phone on site matches.","country":"us","country_confidence":0.9,"country_signals":["address format"],"social_urls":{"facebook":"https://facebook.com/acmeplumbing"}}`)

	res, err := svc.Discover(context.Background(), model.Business{ID: "b1", Name: "Acme Plumbing"})
	require.NoError(t, err)

	assert.Equal(t, "https://acmeplumbing.com", res.CandidateURL)
	assert.Equal(t, 0.85, res.Confidence)
	assert.Equal(t, "US", res.DetectedCountry)
	assert.Equal(t, "https://facebook.com/acmeplumbing", res.SocialURLs["facebook"])

	// The paid search call excludes known non-business domains.
	assert.NotEmpty(t, mock.lastReq.SearchDomainFilter)
	assert.Contains(t, mock.lastReq.SearchDomainFilter, "-yelp.com")
	assert.LessOrEqual(t, len(mock.lastReq.SearchDomainFilter), maxExcludeDomains)
}

func TestDiscover_NothingFound(t *testing.T) {
	svc, _ := newTestService(`{"url":"","confidence":0.2,"reasoning":"Only directory listings exist.","social_urls":{}}`)

	res, err := svc.Discover(context.Background(), model.Business{ID: "b1", Name: "Acme"})
	require.NoError(t, err)
	assert.False(t, res.Found())
}

func TestDiscover_RejectsDirectoryCandidate(t *testing.T) {
	svc, _ := newTestService(`{"url":"https://www.yelp.com/biz/acme-plumbing","confidence":0.9,"reasoning":"found listing"}`)

	res, err := svc.Discover(context.Background(), model.Business{ID: "b1", Name: "Acme"})
	require.NoError(t, err)

	assert.Empty(t, res.CandidateURL, "directory listings are never the business's own site")
	assert.Contains(t, res.Reasoning, "directory")
}

func TestDiscover_DemotesSocialCandidate(t *testing.T) {
	svc, _ := newTestService(`{"url":"https://facebook.com/acmeplumbing","confidence":0.8,"reasoning":"only a profile"}`)

	res, err := svc.Discover(context.Background(), model.Business{ID: "b1", Name: "Acme"})
	require.NoError(t, err)

	assert.Empty(t, res.CandidateURL)
	assert.Equal(t, "https://facebook.com/acmeplumbing", res.SocialURLs["facebook.com"])
}

func TestDiscover_FencedJSON(t *testing.T) {
	svc, _ := newTestService("```json\n{\"url\":\"https://acme.ca\",\"confidence\":0.7,\"reasoning\":\"ok\"}\n```")

	res, err := svc.Discover(context.Background(), model.Business{ID: "b1", Name: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "https://acme.ca", res.CandidateURL)

	// No country from the search; the .ca TLD fills in a weak signal.
	assert.Equal(t, "CA", res.DetectedCountry)
	assert.Equal(t, 0.5, res.CountryConfidence)
	assert.Contains(t, res.CountrySignals, "tld:.ca")
}

func TestDiscover_ParseError(t *testing.T) {
	svc, _ := newTestService("I could not find anything, sorry!")

	_, err := svc.Discover(context.Background(), model.Business{ID: "b1", Name: "Acme"})
	assert.Error(t, err)
}

func TestInferCountry_PhonePrefix(t *testing.T) {
	country, conf, signals := inferCountry(
		model.Business{Phone: "+44 20 7946 0000"},
		&model.DiscoveryResult{CandidateURL: "https://acme.co.uk"},
	)
	assert.Equal(t, "GB", country)
	assert.Equal(t, 0.8, conf, "tld and phone agree")
	assert.Len(t, signals, 2)
}

func TestDomainFilter_Categorize(t *testing.T) {
	f := NewDomainFilter()

	assert.Equal(t, CategoryDirectory, f.Categorize("https://www.yelp.com/biz/acme"))
	assert.Equal(t, CategoryAggregator, f.Categorize("https://angi.com/companylist/acme"))
	assert.Equal(t, CategorySocial, f.Categorize("https://facebook.com/acme"))
	assert.Equal(t, CategoryNone, f.Categorize("https://acmeplumbing.com"))

	// Subdomains match the registered domain.
	assert.Equal(t, CategoryDirectory, f.Categorize("https://m.yelp.com/biz/acme"))
	assert.True(t, f.IsSocial("https://www.instagram.com/acme"))
}

func TestDomainFilter_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.yaml")
	require.NoError(t, os.WriteFile(path, []byte("directories:\n  - localdirectory.example\n"), 0o644))

	f, err := NewDomainFilterFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, CategoryDirectory, f.Categorize("https://localdirectory.example/acme"))
	assert.Equal(t, CategoryDirectory, f.Categorize("https://yelp.com/biz/x"), "built-ins are kept")
}
