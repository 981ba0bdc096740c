// Package pipeline orchestrates the three validation stages: a free URL
// prescreen, a browser render with signal extraction, and a semantic
// ownership check. Stages run cheapest first and each stage can
// short-circuit the rest.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sitecheck/internal/discovery"
	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/internal/prescreen"
	"github.com/sells-group/sitecheck/internal/render"
	"github.com/sells-group/sitecheck/internal/semantic"
)

// maxRescueDepth bounds social-profile rescue to a single hop. A rescued
// URL that itself turns out to be a social profile is not rescued again.
const maxRescueDepth = 1

// Orchestrator runs the full validation pipeline for one business/URL pair.
type Orchestrator struct {
	renderer    render.Renderer
	validator   semantic.Validator
	filter      *discovery.DomainFilter
	timeout     time.Duration
	screenshots bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithScreenshots makes every render capture a page screenshot alongside
// the extracted signals.
func WithScreenshots() Option {
	return func(o *Orchestrator) { o.screenshots = true }
}

// New creates an orchestrator. timeout bounds a single page render.
func New(renderer render.Renderer, validator semantic.Validator, filter *discovery.DomainFilter, timeout time.Duration, opts ...Option) *Orchestrator {
	if filter == nil {
		filter = discovery.NewDomainFilter()
	}
	o := &Orchestrator{
		renderer:  renderer,
		validator: validator,
		filter:    filter,
		timeout:   timeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate runs prescreen, render, and semantic validation for the URL.
// The error return covers infrastructure failures only; every judgment
// about the URL itself, including technical failures of the target site,
// comes back inside the ValidationResult.
func (o *Orchestrator) Validate(ctx context.Context, business model.Business, rawURL string) (*model.ValidationResult, error) {
	return o.validate(ctx, business, rawURL, 0)
}

func (o *Orchestrator) validate(ctx context.Context, business model.Business, rawURL string, depth int) (*model.ValidationResult, error) {
	log := zap.L().With(
		zap.String("business_id", business.ID),
		zap.String("url", rawURL),
	)

	result := &model.ValidationResult{
		URL:         rawURL,
		ValidatedAt: time.Now().UTC(),
	}

	// Stage 1: prescreen. Free, never touches the network.
	pre := prescreen.Prescreen(rawURL)
	result.StageResults.Prescreen = &model.PrescreenStage{
		ShouldProceed: pre.ShouldProceed,
		SkipReason:    pre.SkipReason,
	}
	if !pre.ShouldProceed {
		result.Verdict = model.VerdictInvalid
		result.Confidence = 1.0
		result.Reasoning = pre.SkipReason
		switch {
		case pre.IsFile:
			result.Recommendation = model.RecommendTriggerRediscovery
			result.InvalidReason = model.ReasonFile
		case pre.Recommendation == prescreen.RecommendExpand:
			// A shortener hides a possibly-real site; worth another pass
			// once the link is expanded, not a fresh search.
			result.Recommendation = model.RecommendRetryValidation
			result.InvalidReason = model.ReasonShortener
		default:
			result.Recommendation = model.RecommendTriggerRediscovery
			result.InvalidReason = model.ReasonBadURL
		}
		log.Info("pipeline: prescreen rejected", zap.String("reason", pre.SkipReason))
		return result, nil
	}

	// Known directory and aggregator hosts never need a render either.
	switch o.filter.Categorize(rawURL) {
	case discovery.CategoryDirectory:
		return rejectedWithoutRender(result, model.ReasonDirectory, "known directory domain"), nil
	case discovery.CategoryAggregator:
		return rejectedWithoutRender(result, model.ReasonAggregator, "known aggregator domain"), nil
	}

	// Stage 2: render.
	signals, err := o.renderer.Render(ctx, rawURL, render.Options{Timeout: o.timeout, Screenshot: o.screenshots})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: render %s", rawURL)
	}
	result.StageResults.Render = signals

	if !signals.Loaded {
		result.Verdict = model.VerdictError
		result.Confidence = 1.0
		result.Reasoning = signals.FailureDetail
		result.Recommendation = model.RecommendRetryValidation
		result.InvalidReason = failureReason(signals.Failure)
		log.Info("pipeline: render failed",
			zap.String("failure", string(signals.Failure)),
			zap.String("detail", signals.FailureDetail),
		)
		return result, nil
	}

	// Stage 3: semantic ownership check.
	judgment, err := o.validator.Validate(ctx, business, signals)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: semantic validation %s", rawURL)
	}
	result.StageResults.Semantic = &model.SemanticStage{
		Verdict:    judgment.Verdict,
		Confidence: judgment.Confidence,
		Reasoning:  judgment.Reasoning,
	}
	result.Verdict = judgment.Verdict
	result.Confidence = judgment.Confidence
	result.Reasoning = judgment.Reasoning
	result.InvalidReason = judgment.InvalidReason
	result.MatchSignals = judgment.MatchSignals
	result.DetectedCountry = judgment.DetectedCountry
	result.CountryConfidence = judgment.CountryConfidence

	switch judgment.Verdict {
	case model.VerdictValid:
		result.Recommendation = model.RecommendKeepURL
	case model.VerdictError:
		result.Recommendation = model.RecommendRetryValidation
	default:
		result.Recommendation = model.RecommendTriggerRediscovery
	}

	// A social profile that links out to a real website gets one rescue
	// attempt against that website instead of a flat rejection.
	if result.Recommendation == model.RecommendTriggerRediscovery && depth < maxRescueDepth {
		if rescued := o.tryRescue(ctx, business, rawURL, signals, depth, log); rescued != nil {
			return rescued, nil
		}
	}

	log.Info("pipeline: complete",
		zap.String("verdict", string(result.Verdict)),
		zap.Float64("confidence", result.Confidence),
		zap.String("recommendation", string(result.Recommendation)),
	)
	return result, nil
}

// tryRescue re-runs validation against the external website a social
// profile links to. Returns nil when the URL is not social, links to
// nothing rescuable, or the rescue run itself errored; otherwise the
// rescue result stands, whatever its verdict, tagged with its origin.
func (o *Orchestrator) tryRescue(ctx context.Context, business model.Business, socialURL string, signals *model.PageSignals, depth int, log *zap.Logger) *model.ValidationResult {
	if !o.filter.IsSocial(socialURL) {
		return nil
	}

	target := ExternalWebsiteLink(signals, o.filter)
	if target == "" || target == socialURL {
		return nil
	}

	log.Info("pipeline: attempting social rescue", zap.String("target", target))
	rescued, err := o.validate(ctx, business, target, depth+1)
	if err != nil {
		log.Warn("pipeline: social rescue failed", zap.String("target", target), zap.Error(err))
		return nil
	}
	rescued.Rescued = true
	rescued.RescuedFrom = socialURL
	return rescued
}

func rejectedWithoutRender(result *model.ValidationResult, reason model.InvalidReason, why string) *model.ValidationResult {
	result.Verdict = model.VerdictInvalid
	result.Confidence = 1.0
	result.Reasoning = why
	result.Recommendation = model.RecommendTriggerRediscovery
	result.InvalidReason = reason
	return result
}

// failureReason maps a render failure class to the claim-level reason tag.
func failureReason(f model.RenderFailure) model.InvalidReason {
	switch f {
	case model.RenderFailTimeout:
		return model.ReasonTimeout
	case model.RenderFailSSL:
		return model.ReasonSSLError
	case model.RenderFailNotFound:
		return model.ReasonNotFound
	default:
		return model.ReasonServerError
	}
}
