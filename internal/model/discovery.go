package model

// DiscoveryResult is what one discovery-service call produced.
type DiscoveryResult struct {
	CandidateURL      string            `json:"candidate_url,omitempty"`
	Confidence        float64           `json:"confidence"`
	Reasoning         string            `json:"reasoning,omitempty"`
	DetectedCountry   string            `json:"detected_country,omitempty"`
	CountryConfidence float64           `json:"country_confidence,omitempty"`
	CountrySignals    []string          `json:"country_signals,omitempty"`
	// SocialURLs are kept even when the primary candidate is rejected —
	// downstream enrichment wants them.
	SocialURLs map[string]string `json:"social_urls,omitempty"`
}

// Found reports whether a candidate URL was produced.
func (r *DiscoveryResult) Found() bool {
	return r.CandidateURL != ""
}
