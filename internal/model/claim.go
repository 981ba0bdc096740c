package model

import "time"

// ClaimState represents where a business website claim sits in the
// validation/discovery lifecycle.
type ClaimState string

const (
	StateNeedsDiscovery      ClaimState = "needs_discovery"
	StateDiscoveryQueued     ClaimState = "discovery_queued"
	StateDiscoveryInProgress ClaimState = "discovery_in_progress"
	StatePending             ClaimState = "pending" // has a URL, not yet validated
	StateValid               ClaimState = "valid"
	StateInvalidTechnical    ClaimState = "invalid_technical"
	StateConfirmedNoWebsite  ClaimState = "confirmed_no_website"
	StateNeedsHumanReview    ClaimState = "needs_human_review"
	StateGeoMismatch         ClaimState = "geo_mismatch"
	StateError               ClaimState = "error"
)

// URLSource records where a claim's URL came from.
type URLSource string

const (
	SourceFeed      URLSource = "source_feed"
	SourceDiscovery URLSource = "discovery"
	SourceManual    URLSource = "manual"
)

// WebsiteClaim is the system's current belief about whether and where a
// business has a website. Mutated only by the claim controller; never
// deleted — terminal states are retained for audit.
type WebsiteClaim struct {
	BusinessID           string             `json:"business_id"`
	WebsiteURL           string             `json:"website_url,omitempty"`
	State                ClaimState         `json:"state"`
	URLSource            URLSource          `json:"url_source,omitempty"`
	Country              string             `json:"country,omitempty"`
	LastValidatedAt      *time.Time         `json:"last_validated_at,omitempty"`
	LastValidationResult *ValidationResult  `json:"last_validation_result,omitempty"`
	Metadata             ValidationMetadata `json:"metadata"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// IsTerminal reports whether the claim will not automatically re-run
// without an explicit reset.
func (c *WebsiteClaim) IsTerminal() bool {
	switch c.State {
	case StateConfirmedNoWebsite, StateNeedsHumanReview, StateGeoMismatch, StateError:
		return true
	}
	return false
}

// InFlight reports whether a pipeline run for this claim is already queued
// or executing. Re-entry while in flight is a no-op.
func (c *WebsiteClaim) InFlight() bool {
	return c.State == StateDiscoveryQueued || c.State == StateDiscoveryInProgress
}

// Revalidatable reports whether the claim holds a URL that the pipeline may
// validate (again).
func (c *WebsiteClaim) Revalidatable() bool {
	switch c.State {
	case StatePending, StateValid, StateInvalidTechnical:
		return c.WebsiteURL != ""
	}
	return false
}
