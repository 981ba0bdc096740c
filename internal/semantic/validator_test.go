package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/pkg/anthropic"
)

// mockLLM implements anthropic.Client for testing.
type mockLLM struct {
	text    string
	err     error
	lastReq anthropic.MessageRequest
}

func (m *mockLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &anthropic.MessageResponse{Text: m.text}, nil
}

const validJSON = `{"verdict":"valid","confidence":0.95,"reasoning":"Name and phone match.","invalid_reason":"","phone_match":true,"address_match":true,"name_match":true,"is_directory":false,"is_aggregator":false,"detected_country":"us","country_confidence":0.8}`

func TestValidate_Valid(t *testing.T) {
	mock := &mockLLM{text: validJSON}
	v := NewLLMValidator(mock, "claude-haiku-4-5-20251001")

	j, err := v.Validate(context.Background(), model.Business{Name: "Acme Plumbing"}, &model.PageSignals{
		Loaded:   true,
		FinalURL: "https://acmeplumbing.com",
		Title:    "Acme Plumbing",
		Text:     "Acme Plumbing of Springfield",
	})
	require.NoError(t, err)

	assert.Equal(t, model.VerdictValid, j.Verdict)
	assert.Equal(t, 0.95, j.Confidence)
	assert.True(t, j.MatchSignals.PhoneMatch)
	assert.Equal(t, "US", j.DetectedCountry)
	assert.Equal(t, 0.8, j.CountryConfidence)

	// Deterministic settings: temperature pinned to zero.
	require.NotNil(t, mock.lastReq.Temperature)
	assert.Equal(t, 0.0, *mock.lastReq.Temperature)
}

func TestValidate_FencedResponse(t *testing.T) {
	mock := &mockLLM{text: "```json\n" + validJSON + "\n```"}
	v := NewLLMValidator(mock, "m")

	j, err := v.Validate(context.Background(), model.Business{Name: "Acme"}, &model.PageSignals{Loaded: true})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictValid, j.Verdict)
}

func TestValidate_InvalidDirectory(t *testing.T) {
	mock := &mockLLM{text: `{"verdict":"invalid","confidence":0.9,"reasoning":"Yelp listing.","invalid_reason":"directory","is_directory":true}`}
	v := NewLLMValidator(mock, "m")

	j, err := v.Validate(context.Background(), model.Business{Name: "Acme"}, &model.PageSignals{Loaded: true})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictInvalid, j.Verdict)
	assert.Equal(t, model.ReasonDirectory, j.InvalidReason)
	assert.True(t, j.MatchSignals.IsDirectory)
}

func TestValidate_LocalNameBackstop(t *testing.T) {
	// Model returns name_match=false, but the title clearly names the business.
	mock := &mockLLM{text: `{"verdict":"valid","confidence":0.7,"reasoning":"ok","name_match":false}`}
	v := NewLLMValidator(mock, "m")

	j, err := v.Validate(context.Background(), model.Business{Name: "Café Brûlée, LLC"}, &model.PageSignals{
		Loaded: true,
		Title:  "Cafe Brulee - Downtown Portland",
	})
	require.NoError(t, err)
	assert.True(t, j.MatchSignals.NameMatch)
}

func TestParseJudgment_Errors(t *testing.T) {
	_, err := parseJudgment("not json at all")
	assert.Error(t, err)

	_, err = parseJudgment(`{"verdict":"maybe","confidence":0.5}`)
	assert.Error(t, err)

	_, err = parseJudgment(`{"verdict":"valid","confidence":1.5}`)
	assert.Error(t, err)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "cafe brulee", NormalizeName("Café Brûlée, LLC"))
	assert.Equal(t, "acme plumbing", NormalizeName("ACME Plumbing Inc."))
	assert.Equal(t, "smith sons", NormalizeName("Smith & Sons Co"))
}

func TestNameMatch(t *testing.T) {
	assert.True(t, NameMatch("Acme Plumbing Inc.", "Acme Plumbing | Springfield IL"))
	assert.True(t, NameMatch("Café Brûlée", "Cafe Brulee - Portland"))
	assert.False(t, NameMatch("Acme Plumbing", "Springfield Directory of Plumbers"))

	// Short names only match whole tokens.
	assert.True(t, NameMatch("Ace", "Ace Hardware"))
	assert.False(t, NameMatch("Ace", "Placement Services"))
}
