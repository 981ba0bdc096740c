// Package claim owns the website-claim state machine. Every state change
// flows through the Controller; validation and discovery results never
// touch the store directly.
package claim

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitecheck/internal/discovery"
	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/internal/store"
)

// Outcome summarizes what a controller operation did, for task results
// and operator-facing output.
type Outcome string

const (
	OutcomeSkipped            Outcome = "skipped"
	OutcomeValidated          Outcome = "validated"
	OutcomeQueuedValidation   Outcome = "queued_validation"
	OutcomeQueuedDiscovery    Outcome = "queued_discovery"
	OutcomeDiscovered         Outcome = "discovered"
	OutcomeNoWebsite          Outcome = "confirmed_no_website"
	OutcomeHumanReview        Outcome = "needs_human_review"
	OutcomeGeoMismatch        Outcome = "geo_mismatch"
	OutcomeInvalidTechnical   Outcome = "invalid_technical"
	OutcomeRediscoveryChained Outcome = "rediscovery_chained"
)

// Validator runs the validation pipeline for one business/URL pair.
type Validator interface {
	Validate(ctx context.Context, business model.Business, url string) (*model.ValidationResult, error)
}

// Discoverer runs one external website search for a business.
type Discoverer interface {
	Discover(ctx context.Context, business model.Business) (*model.DiscoveryResult, error)
}

// Enqueuer schedules follow-up tasks. Task chaining is always explicit:
// a task finishes, the controller decides, and exactly the decided
// follow-ups get enqueued.
type Enqueuer interface {
	EnqueueDiscovery(ctx context.Context, businessID string) error
	EnqueueValidation(ctx context.Context, businessID string) error
}

// Config carries the controller's routing thresholds.
type Config struct {
	// ReviewQualityThreshold routes content mismatches on substantial
	// sites to human review instead of automatic rediscovery.
	ReviewQualityThreshold int

	// CountryConfidenceMin is the confidence below which detected-country
	// signals are ignored.
	CountryConfidenceMin float64

	// SupportedCountries is the serviceable market. A confident detection
	// outside it parks the claim as a geo mismatch.
	SupportedCountries []string
}

// Controller drives claim state transitions.
type Controller struct {
	store      store.Store
	validator  Validator
	discoverer Discoverer
	queue      Enqueuer
	resolver   Resolver
	cfg        Config
}

// New creates a Controller. A nil resolver falls back to the system DNS
// resolver.
func New(st store.Store, validator Validator, discoverer Discoverer, queue Enqueuer, resolver Resolver, cfg Config) *Controller {
	if resolver == nil {
		resolver = NetResolver()
	}
	if cfg.ReviewQualityThreshold <= 0 {
		cfg.ReviewQualityThreshold = 30
	}
	if cfg.CountryConfidenceMin <= 0 {
		cfg.CountryConfidenceMin = 0.7
	}
	return &Controller{
		store:      st,
		validator:  validator,
		discoverer: discoverer,
		queue:      queue,
		resolver:   resolver,
		cfg:        cfg,
	}
}

// EnsureClaim returns the existing claim for the business, creating one
// from the business's feed URL when none exists yet.
func (c *Controller) EnsureClaim(ctx context.Context, business model.Business, feedURL string) (*model.WebsiteClaim, error) {
	claim, err := c.store.GetClaim(ctx, business.ID)
	if err != nil {
		return nil, err
	}
	if claim != nil {
		return claim, nil
	}

	claim = &model.WebsiteClaim{
		BusinessID: business.ID,
		WebsiteURL: feedURL,
		Country:    business.Country,
		State:      model.StateNeedsDiscovery,
	}
	if feedURL != "" {
		claim.State = model.StatePending
		claim.URLSource = model.SourceFeed
	}
	if err := c.store.CreateClaim(ctx, claim); err != nil {
		return nil, err
	}

	zap.L().Info("claim: created",
		zap.String("business_id", business.ID),
		zap.String("state", string(claim.State)),
	)
	return claim, nil
}

// Enqueue schedules the next task appropriate for the claim's state.
// Terminal and in-flight claims are skipped, which makes repeated enqueue
// calls for the same business harmless.
func (c *Controller) Enqueue(ctx context.Context, businessID string) (Outcome, error) {
	claim, err := c.store.GetClaim(ctx, businessID)
	if err != nil {
		return "", err
	}
	if claim == nil {
		return "", eris.Errorf("claim: no claim for business %s", businessID)
	}

	log := zap.L().With(zap.String("business_id", businessID), zap.String("state", string(claim.State)))

	if claim.IsTerminal() || claim.InFlight() {
		log.Info("claim: enqueue skipped")
		return OutcomeSkipped, nil
	}

	if claim.State == model.StateNeedsDiscovery {
		return c.queueDiscovery(ctx, claim)
	}

	if claim.Revalidatable() {
		claim.State = model.StatePending
		if err := c.store.UpdateClaim(ctx, claim); err != nil {
			return "", err
		}
		if err := c.queue.EnqueueValidation(ctx, businessID); err != nil {
			return "", eris.Wrap(err, "claim: enqueue validation")
		}
		log.Info("claim: validation queued")
		return OutcomeQueuedValidation, nil
	}

	log.Info("claim: nothing to enqueue")
	return OutcomeSkipped, nil
}

// queueDiscovery moves a claim into the discovery queue, unless the sole
// discovery method already ran, in which case the claim is definitively
// website-less.
func (c *Controller) queueDiscovery(ctx context.Context, claim *model.WebsiteClaim) (Outcome, error) {
	if claim.Metadata.Attempted(discovery.MethodExternalSearch) {
		claim.State = model.StateConfirmedNoWebsite
		if err := c.store.UpdateClaim(ctx, claim); err != nil {
			return "", err
		}
		zap.L().Info("claim: discovery exhausted", zap.String("business_id", claim.BusinessID))
		return OutcomeNoWebsite, nil
	}

	claim.State = model.StateDiscoveryQueued
	if err := c.store.UpdateClaim(ctx, claim); err != nil {
		return "", err
	}
	if err := c.queue.EnqueueDiscovery(ctx, claim.BusinessID); err != nil {
		return "", eris.Wrap(err, "claim: enqueue discovery")
	}
	zap.L().Info("claim: discovery queued", zap.String("business_id", claim.BusinessID))
	return OutcomeQueuedDiscovery, nil
}

// ProcessValidation runs the validation pipeline for a pending claim and
// applies the resulting recommendation.
func (c *Controller) ProcessValidation(ctx context.Context, businessID string) (Outcome, error) {
	claim, err := c.store.GetClaim(ctx, businessID)
	if err != nil {
		return "", err
	}
	if claim == nil {
		return "", eris.Errorf("claim: no claim for business %s", businessID)
	}

	log := zap.L().With(zap.String("business_id", businessID))

	// Only pending claims with a URL run. A stale duplicate task for a
	// claim that already moved on does nothing.
	if claim.State != model.StatePending || claim.WebsiteURL == "" {
		log.Info("claim: validation skipped", zap.String("state", string(claim.State)))
		return OutcomeSkipped, nil
	}

	business, err := c.store.GetBusiness(ctx, businessID)
	if err != nil {
		return "", err
	}
	if business == nil {
		return "", eris.Errorf("claim: no business record for %s", businessID)
	}

	result, err := c.validator.Validate(ctx, *business, claim.WebsiteURL)
	if err != nil {
		return "", eris.Wrapf(err, "claim: validate %s", businessID)
	}

	// History first: the audit trail records the run regardless of how
	// the state machine routes it.
	claim.Metadata.AppendValidation(result)
	claim.LastValidationResult = result
	if result.Rescued {
		claim.WebsiteURL = result.URL
		claim.URLSource = model.SourceDiscovery
	}

	if outcome, done := c.applyGeoGate(claim, result.DetectedCountry, result.CountryConfidence); done {
		if err := c.store.UpdateClaim(ctx, claim); err != nil {
			return "", err
		}
		return outcome, nil
	}

	switch result.Recommendation {
	case model.RecommendKeepURL:
		now := result.ValidatedAt
		claim.State = model.StateValid
		claim.LastValidatedAt = &now
		if err := c.store.UpdateClaim(ctx, claim); err != nil {
			return "", err
		}
		log.Info("claim: validated", zap.String("url", claim.WebsiteURL))
		return OutcomeValidated, nil

	case model.RecommendTriggerRediscovery:
		return c.applyRediscovery(ctx, claim, result, log)

	case model.RecommendRetryValidation:
		return c.applyTechnicalFailure(ctx, claim, result, log)
	}

	return "", eris.Errorf("claim: unknown recommendation %q", result.Recommendation)
}

// applyRediscovery handles a content-level rejection: either park for a
// human or clear the URL and chain into discovery.
func (c *Controller) applyRediscovery(ctx context.Context, claim *model.WebsiteClaim, result *model.ValidationResult, log *zap.Logger) (Outcome, error) {
	// A substantial site that merely fails the identity cross-reference
	// is more often a data problem than a dead claim. Park it.
	contentMismatch := result.InvalidReason == model.ReasonWrongBusiness || result.InvalidReason == model.ReasonNoContact
	if contentMismatch && result.RenderScore() > c.cfg.ReviewQualityThreshold {
		claim.State = model.StateNeedsHumanReview
		if err := c.store.UpdateClaim(ctx, claim); err != nil {
			return "", err
		}
		log.Info("claim: routed to human review",
			zap.String("reason", string(result.InvalidReason)),
			zap.Int("render_score", result.RenderScore()),
		)
		return OutcomeHumanReview, nil
	}

	claim.WebsiteURL = ""
	claim.URLSource = ""
	claim.State = model.StateNeedsDiscovery
	outcome, err := c.queueDiscovery(ctx, claim)
	if err != nil {
		return "", err
	}
	if outcome == OutcomeQueuedDiscovery {
		outcome = OutcomeRediscoveryChained
	}
	return outcome, nil
}

// applyTechnicalFailure distinguishes a dead domain from a transient
// outage. Dead domains surrender their URL and earn one fresh discovery
// attempt; everything else parks as invalid_technical for later retry.
func (c *Controller) applyTechnicalFailure(ctx context.Context, claim *model.WebsiteClaim, result *model.ValidationResult, log *zap.Logger) (Outcome, error) {
	if c.domainDead(ctx, claim.WebsiteURL) {
		log.Info("claim: domain dead, clearing url", zap.String("url", claim.WebsiteURL))
		claim.WebsiteURL = ""
		claim.URLSource = ""
		claim.State = model.StateNeedsDiscovery
		claim.Metadata.ClearAttempt(discovery.MethodExternalSearch)
		outcome, err := c.queueDiscovery(ctx, claim)
		if err != nil {
			return "", err
		}
		if outcome == OutcomeQueuedDiscovery {
			outcome = OutcomeRediscoveryChained
		}
		return outcome, nil
	}

	claim.State = model.StateInvalidTechnical
	if err := c.store.UpdateClaim(ctx, claim); err != nil {
		return "", err
	}
	log.Info("claim: technical failure retained",
		zap.String("reason", string(result.InvalidReason)),
	)
	return OutcomeInvalidTechnical, nil
}

// ProcessDiscovery runs one discovery attempt for a queued claim.
func (c *Controller) ProcessDiscovery(ctx context.Context, businessID string) (Outcome, error) {
	claim, err := c.store.GetClaim(ctx, businessID)
	if err != nil {
		return "", err
	}
	if claim == nil {
		return "", eris.Errorf("claim: no claim for business %s", businessID)
	}

	log := zap.L().With(zap.String("business_id", businessID))

	if claim.State != model.StateDiscoveryQueued {
		log.Info("claim: discovery skipped", zap.String("state", string(claim.State)))
		return OutcomeSkipped, nil
	}

	// At most one attempt per method, ever. A replayed task for an
	// already-attempted claim resolves to no-website instead of burning
	// another paid search.
	if claim.Metadata.Attempted(discovery.MethodExternalSearch) {
		claim.State = model.StateConfirmedNoWebsite
		if err := c.store.UpdateClaim(ctx, claim); err != nil {
			return "", err
		}
		return OutcomeNoWebsite, nil
	}

	claim.State = model.StateDiscoveryInProgress
	if err := c.store.UpdateClaim(ctx, claim); err != nil {
		return "", err
	}

	business, err := c.store.GetBusiness(ctx, businessID)
	if err != nil {
		return "", c.revertToQueued(ctx, claim, err)
	}
	if business == nil {
		return "", eris.Errorf("claim: no business record for %s", businessID)
	}

	result, err := c.discoverer.Discover(ctx, *business)
	if err != nil {
		return "", c.revertToQueued(ctx, claim, eris.Wrapf(err, "claim: discover %s", businessID))
	}

	attempt := model.DiscoveryAttempt{
		Method:      discovery.MethodExternalSearch,
		AttemptedAt: time.Now().UTC(),
		Found:       result.Found(),
		URL:         result.CandidateURL,
		Notes:       result.Reasoning,
		SocialURLs:  result.SocialURLs,
	}

	// Never hand back the URL validation just rejected.
	if rejected := claim.Metadata.LastRejectedURL(); rejected != "" && result.CandidateURL == rejected {
		log.Info("claim: discovery returned the rejected url", zap.String("url", rejected))
		attempt.Found = false
		attempt.URL = ""
		attempt.Notes = "candidate matched previously rejected URL; discarded"
		result.CandidateURL = ""
	}

	claim.Metadata.RecordAttempt(attempt)

	if !result.Found() {
		// A confident out-of-market detection still parks the claim even
		// without a URL, so downstream generation never picks it up.
		if outcome, done := c.applyGeoGate(claim, result.DetectedCountry, result.CountryConfidence); done {
			if err := c.store.UpdateClaim(ctx, claim); err != nil {
				return "", err
			}
			return outcome, nil
		}
		claim.State = model.StateConfirmedNoWebsite
		if err := c.store.UpdateClaim(ctx, claim); err != nil {
			return "", err
		}
		log.Info("claim: no website found")
		return OutcomeNoWebsite, nil
	}

	claim.WebsiteURL = result.CandidateURL
	claim.URLSource = model.SourceDiscovery

	if outcome, done := c.applyGeoGate(claim, result.DetectedCountry, result.CountryConfidence); done {
		if err := c.store.UpdateClaim(ctx, claim); err != nil {
			return "", err
		}
		return outcome, nil
	}

	claim.State = model.StatePending
	if err := c.store.UpdateClaim(ctx, claim); err != nil {
		return "", err
	}
	if err := c.queue.EnqueueValidation(ctx, businessID); err != nil {
		return "", eris.Wrap(err, "claim: chain validation")
	}

	log.Info("claim: discovered", zap.String("url", result.CandidateURL))
	return OutcomeDiscovered, nil
}

// revertToQueued puts a claim back in DISCOVERY_QUEUED after discovery
// failed mid-flight, so a redelivered task runs discovery again instead
// of hitting the state guard. The original cause is returned either way.
func (c *Controller) revertToQueued(ctx context.Context, claim *model.WebsiteClaim, cause error) error {
	claim.State = model.StateDiscoveryQueued
	if err := c.store.UpdateClaim(ctx, claim); err != nil {
		zap.L().Error("claim: revert to queued failed",
			zap.String("business_id", claim.BusinessID),
			zap.Error(err),
		)
	}
	return cause
}

// applyGeoGate updates the claim's country from a confident detection and
// parks claims confidently outside the serviceable market. Returns
// done=true when the claim reached a terminal geo state.
func (c *Controller) applyGeoGate(claim *model.WebsiteClaim, country string, confidence float64) (Outcome, bool) {
	if country == "" || confidence < c.cfg.CountryConfidenceMin {
		return "", false
	}

	claim.Country = country
	if c.countrySupported(country) {
		return "", false
	}

	claim.State = model.StateGeoMismatch
	zap.L().Info("claim: geo mismatch",
		zap.String("business_id", claim.BusinessID),
		zap.String("country", country),
		zap.Float64("confidence", confidence),
	)
	return OutcomeGeoMismatch, true
}

func (c *Controller) countrySupported(country string) bool {
	if len(c.cfg.SupportedCountries) == 0 {
		return true
	}
	for _, s := range c.cfg.SupportedCountries {
		if s == country {
			return true
		}
	}
	return false
}

// MarkError parks a claim after its task exhausted queue-level retries.
func (c *Controller) MarkError(ctx context.Context, businessID, reason string) error {
	claim, err := c.store.GetClaim(ctx, businessID)
	if err != nil {
		return err
	}
	if claim == nil {
		return eris.Errorf("claim: no claim for business %s", businessID)
	}

	claim.State = model.StateError
	if err := c.store.UpdateClaim(ctx, claim); err != nil {
		return err
	}
	zap.L().Warn("claim: marked error",
		zap.String("business_id", businessID),
		zap.String("reason", reason),
	)
	return nil
}

// Reset returns a parked or stuck claim to a runnable state. With
// clearAttempts the discovery history is forgotten too, permitting a
// fresh search.
func (c *Controller) Reset(ctx context.Context, businessID string, clearAttempts bool) (*model.WebsiteClaim, error) {
	claim, err := c.store.GetClaim(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, eris.Errorf("claim: no claim for business %s", businessID)
	}

	if clearAttempts {
		claim.Metadata.ClearAttempt(discovery.MethodExternalSearch)
	}
	if claim.WebsiteURL != "" {
		claim.State = model.StatePending
	} else {
		claim.State = model.StateNeedsDiscovery
	}
	if err := c.store.UpdateClaim(ctx, claim); err != nil {
		return nil, err
	}

	zap.L().Info("claim: reset",
		zap.String("business_id", businessID),
		zap.String("state", string(claim.State)),
		zap.Bool("cleared_attempts", clearAttempts),
	)
	return claim, nil
}
