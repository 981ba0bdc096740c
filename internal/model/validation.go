package model

import "time"

// Verdict is the outcome of one orchestrated validation run.
type Verdict string

const (
	VerdictValid   Verdict = "valid"
	VerdictInvalid Verdict = "invalid"
	VerdictMissing Verdict = "missing"
	VerdictError   Verdict = "error"
)

// Recommendation tells the controller what to do with the claim next.
type Recommendation string

const (
	RecommendKeepURL            Recommendation = "keep_url"
	RecommendTriggerRediscovery Recommendation = "trigger_rediscovery"
	RecommendRetryValidation    Recommendation = "retry_validation"
)

// InvalidReason is a categorical tag explaining why a URL was rejected.
type InvalidReason string

const (
	ReasonDirectory      InvalidReason = "directory"
	ReasonAggregator     InvalidReason = "aggregator"
	ReasonSocialMedia    InvalidReason = "social_media"
	ReasonWrongBusiness  InvalidReason = "wrong_business"
	ReasonNoContact      InvalidReason = "no_contact"
	ReasonNotFound       InvalidReason = "not_found"
	ReasonTimeout        InvalidReason = "timeout"
	ReasonSSLError       InvalidReason = "ssl_error"
	ReasonServerError    InvalidReason = "server_error"
	ReasonFile           InvalidReason = "file"
	ReasonShortener      InvalidReason = "shortener"
	ReasonBadURL         InvalidReason = "bad_url"
	ReasonDomainNotFound InvalidReason = "domain_not_found"
)

// MatchSignals are the semantic validator's cross-reference booleans.
type MatchSignals struct {
	PhoneMatch   bool `json:"phone_match"`
	AddressMatch bool `json:"address_match"`
	NameMatch    bool `json:"name_match"`
	IsDirectory  bool `json:"is_directory"`
	IsAggregator bool `json:"is_aggregator"`
}

// StageResults carries per-stage sub-results for debugging.
type StageResults struct {
	Prescreen *PrescreenStage `json:"prescreen,omitempty"`
	Render    *PageSignals    `json:"render,omitempty"`
	Semantic  *SemanticStage  `json:"semantic,omitempty"`
}

// PrescreenStage is the prescreener's sub-result.
type PrescreenStage struct {
	ShouldProceed bool   `json:"should_proceed"`
	SkipReason    string `json:"skip_reason,omitempty"`
}

// SemanticStage is the semantic validator's raw sub-result.
type SemanticStage struct {
	Verdict    Verdict `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// ValidationResult is the immutable value produced by one orchestrator run.
type ValidationResult struct {
	URL               string         `json:"url"`
	Verdict           Verdict        `json:"verdict"`
	Confidence        float64        `json:"confidence"`
	Reasoning         string         `json:"reasoning,omitempty"`
	Recommendation    Recommendation `json:"recommendation"`
	InvalidReason     InvalidReason  `json:"invalid_reason,omitempty"`
	MatchSignals      MatchSignals   `json:"match_signals"`
	StageResults      StageResults   `json:"stage_results"`
	DetectedCountry   string         `json:"detected_country,omitempty"`
	CountryConfidence float64        `json:"country_confidence,omitempty"`
	Rescued           bool           `json:"rescued,omitempty"`
	RescuedFrom       string         `json:"rescued_from,omitempty"` // social URL the result was rescued off
	ValidatedAt       time.Time      `json:"validated_at"`
}

// RenderScore returns the renderer quality score from the stage results,
// or 0 when the renderer never ran.
func (r *ValidationResult) RenderScore() int {
	if r.StageResults.Render == nil {
		return 0
	}
	return r.StageResults.Render.QualityScore
}

// ValidationMetadata is the claim's append-only audit trail. Past entries
// are never mutated; idempotency and loop-prevention checks are pure reads
// over this history.
type ValidationMetadata struct {
	DiscoveryAttempts map[string]DiscoveryAttempt `json:"discovery_attempts,omitempty"`
	ValidationHistory []ValidationRecord          `json:"validation_history,omitempty"`
}

// DiscoveryAttempt records one discovery attempt for one method.
type DiscoveryAttempt struct {
	Method      string            `json:"method"`
	AttemptedAt time.Time         `json:"attempted_at"`
	Found       bool              `json:"found"`
	URL         string            `json:"url,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	SocialURLs  map[string]string `json:"social_urls,omitempty"`
}

// ValidationRecord is one validation-history entry.
type ValidationRecord struct {
	Timestamp      time.Time      `json:"timestamp"`
	URL            string         `json:"url"`
	Verdict        Verdict        `json:"verdict"`
	Confidence     float64        `json:"confidence"`
	Recommendation Recommendation `json:"recommendation"`
	InvalidReason  InvalidReason  `json:"invalid_reason,omitempty"`
	RenderScore    int            `json:"render_score,omitempty"`
	Rescued        bool           `json:"rescued,omitempty"`
}

// Attempted reports whether the given discovery method has already run.
func (m *ValidationMetadata) Attempted(method string) bool {
	_, ok := m.DiscoveryAttempts[method]
	return ok
}

// RecordAttempt appends a discovery attempt. Existing entries are preserved;
// a second attempt for the same method overwrites only after an explicit
// reset cleared the first.
func (m *ValidationMetadata) RecordAttempt(a DiscoveryAttempt) {
	if m.DiscoveryAttempts == nil {
		m.DiscoveryAttempts = make(map[string]DiscoveryAttempt)
	}
	m.DiscoveryAttempts[a.Method] = a
}

// ClearAttempt removes the attempt record for a method, permitting exactly
// one retry (dead-domain detection, operator reset).
func (m *ValidationMetadata) ClearAttempt(method string) {
	delete(m.DiscoveryAttempts, method)
}

// AppendValidation appends a history entry built from a result.
func (m *ValidationMetadata) AppendValidation(res *ValidationResult) {
	m.ValidationHistory = append(m.ValidationHistory, ValidationRecord{
		Timestamp:      res.ValidatedAt,
		URL:            res.URL,
		Verdict:        res.Verdict,
		Confidence:     res.Confidence,
		Recommendation: res.Recommendation,
		InvalidReason:  res.InvalidReason,
		RenderScore:    res.RenderScore(),
		Rescued:        res.Rescued,
	})
}

// LastValidation returns the most recent history entry, or nil.
func (m *ValidationMetadata) LastValidation() *ValidationRecord {
	if len(m.ValidationHistory) == 0 {
		return nil
	}
	return &m.ValidationHistory[len(m.ValidationHistory)-1]
}

// LastRejectedURL returns the URL of the most recent non-valid validation,
// or "" when the last run passed (or none exists). Discovery must not
// re-surface this URL.
func (m *ValidationMetadata) LastRejectedURL() string {
	last := m.LastValidation()
	if last == nil || last.Verdict == VerdictValid {
		return ""
	}
	return last.URL
}
