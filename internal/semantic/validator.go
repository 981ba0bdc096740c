// Package semantic cross-references business identity facts against rendered
// page content to decide true ownership. It is the pipeline's final arbiter.
package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/pkg/anthropic"
)

// Judgment is the validator's decision about one page.
type Judgment struct {
	Verdict           model.Verdict
	Confidence        float64
	Reasoning         string
	InvalidReason     model.InvalidReason
	MatchSignals      model.MatchSignals
	DetectedCountry   string
	CountryConfidence float64
}

// Validator decides whether a rendered page is the business's own website.
type Validator interface {
	Validate(ctx context.Context, business model.Business, signals *model.PageSignals) (*Judgment, error)
}

const systemPrompt = `You decide whether a web page is the official website of a specific business. You are given business identity facts and structured signals extracted from the rendered page.

Verdicts:
- "valid": the page is this business's own website.
- "invalid": the page is a real page but not this business's own site (a directory listing, an aggregator, a social profile, a different business, or a page with no way to contact the business).
- "missing": the page content indicates no real website exists (parked domain, placeholder, empty shell).

Respond with exactly one JSON object, no prose:
{"verdict":"valid|invalid|missing","confidence":0.0-1.0,"reasoning":"<one or two sentences>","invalid_reason":"directory|aggregator|social_media|wrong_business|no_contact|"","phone_match":bool,"address_match":bool,"name_match":bool,"is_directory":bool,"is_aggregator":bool,"detected_country":"<ISO 3166-1 alpha-2 or empty>","country_confidence":0.0-1.0}`

const userPromptTemplate = `Business:
  Name: %s
  Phone: %s
  Address: %s
  Category: %s

Page (%s):
  Title: %s
  Meta description: %s
  Phones found: %s
  Emails found: %s
  Has address block: %t
  Has business hours: %t
  Word count: %d
  Placeholder page: %t
  Social links: %s

Page text (first 3000 chars):
%s`

// LLMValidator implements Validator with a deterministic, low-temperature
// model call. It is the final arbiter of a business-impacting decision, so
// temperature is pinned to zero.
type LLMValidator struct {
	client anthropic.Client
	model  string
}

// NewLLMValidator creates a validator using the given model.
func NewLLMValidator(client anthropic.Client, modelID string) *LLMValidator {
	return &LLMValidator{client: client, model: modelID}
}

func (v *LLMValidator) Validate(ctx context.Context, business model.Business, signals *model.PageSignals) (*Judgment, error) {
	text := signals.Text
	if len(text) > 3000 {
		text = text[:3000]
	}

	prompt := fmt.Sprintf(userPromptTemplate,
		business.Name,
		business.Phone,
		business.Location(),
		business.Category,
		signals.FinalURL,
		signals.Title,
		signals.MetaDescription,
		strings.Join(signals.Phones, ", "),
		strings.Join(signals.Emails, ", "),
		signals.HasAddress,
		signals.HasBusinessHours,
		signals.WordCount,
		signals.IsPlaceholder,
		strings.Join(signals.SocialLinks, ", "),
		text,
	)

	temp := 0.0
	resp, err := v.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       v.model,
		MaxTokens:   1024,
		System:      systemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "semantic: create message")
	}

	judgment, err := parseJudgment(resp.Text)
	if err != nil {
		return nil, eris.Wrapf(err, "semantic: parse response for %s", signals.FinalURL)
	}

	// The model occasionally misses an exact title match; a local
	// normalized comparison backstops the signal.
	if !judgment.MatchSignals.NameMatch && NameMatch(business.Name, signals.Title) {
		judgment.MatchSignals.NameMatch = true
	}

	zap.L().Debug("semantic: judgment",
		zap.String("url", signals.FinalURL),
		zap.String("verdict", string(judgment.Verdict)),
		zap.Float64("confidence", judgment.Confidence),
	)

	return judgment, nil
}

// rawJudgment mirrors the JSON contract in the system prompt.
type rawJudgment struct {
	Verdict           string  `json:"verdict"`
	Confidence        float64 `json:"confidence"`
	Reasoning         string  `json:"reasoning"`
	InvalidReason     string  `json:"invalid_reason"`
	PhoneMatch        bool    `json:"phone_match"`
	AddressMatch      bool    `json:"address_match"`
	NameMatch         bool    `json:"name_match"`
	IsDirectory       bool    `json:"is_directory"`
	IsAggregator      bool    `json:"is_aggregator"`
	DetectedCountry   string  `json:"detected_country"`
	CountryConfidence float64 `json:"country_confidence"`
}

func parseJudgment(text string) (*Judgment, error) {
	cleaned := stripFences(text)

	var raw rawJudgment
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, eris.Wrap(err, "unmarshal judgment")
	}

	verdict := model.Verdict(raw.Verdict)
	switch verdict {
	case model.VerdictValid, model.VerdictInvalid, model.VerdictMissing:
	default:
		return nil, eris.Errorf("unknown verdict %q", raw.Verdict)
	}

	if raw.Confidence < 0 || raw.Confidence > 1 {
		return nil, eris.Errorf("confidence %v out of range", raw.Confidence)
	}

	return &Judgment{
		Verdict:       verdict,
		Confidence:    raw.Confidence,
		Reasoning:     raw.Reasoning,
		InvalidReason: model.InvalidReason(raw.InvalidReason),
		MatchSignals: model.MatchSignals{
			PhoneMatch:   raw.PhoneMatch,
			AddressMatch: raw.AddressMatch,
			NameMatch:    raw.NameMatch,
			IsDirectory:  raw.IsDirectory,
			IsAggregator: raw.IsAggregator,
		},
		DetectedCountry:   strings.ToUpper(raw.DetectedCountry),
		CountryConfidence: raw.CountryConfidence,
	}, nil
}

// stripFences removes a surrounding ```json markdown fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
