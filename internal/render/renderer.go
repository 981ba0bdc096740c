// Package render fetches URLs through a real browser environment and
// extracts the structured page signals the rest of the pipeline consumes.
package render

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/sitecheck/internal/model"
	"github.com/sells-group/sitecheck/internal/resilience"
	"github.com/sells-group/sitecheck/pkg/browserless"
)

// Options controls a single render.
type Options struct {
	Timeout    time.Duration
	Screenshot bool
}

// Renderer fetches a URL and returns its extracted page signals. Load
// failures are reported inside PageSignals (Loaded=false plus a failure
// class); a non-nil error means the render infrastructure itself failed and
// the call is safe to retry.
type Renderer interface {
	Render(ctx context.Context, url string, opts Options) (*model.PageSignals, error)
}

// desktopUA is the user agent presented to target sites. Headless defaults
// get blocked by most bot walls.
const desktopUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// BrowserRenderer renders pages through the Browserless API.
type BrowserRenderer struct {
	client  browserless.Client
	timeout time.Duration
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewBrowserRenderer creates a renderer with the given default per-render timeout.
func NewBrowserRenderer(client browserless.Client, timeout time.Duration) *BrowserRenderer {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	// Navigation failures come back as APIErrors and are results, not
	// retryable errors. Only transport-level failures and platform rate
	// limits retry here.
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("browserless", "content")
	retry.ShouldRetry = func(err error) bool {
		var apiErr *browserless.APIError
		if errors.As(err, &apiErr) {
			return apiErr.StatusCode == 429
		}
		return resilience.IsTransient(err)
	}

	// The breaker watches platform health, not target sites: a navigation
	// failure for one URL is a verdict about that URL, while rate limits,
	// 5xx responses, and dropped connections count toward opening.
	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	breakerCfg.ShouldTrip = func(err error) bool {
		var apiErr *browserless.APIError
		if errors.As(err, &apiErr) {
			return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
		}
		return resilience.IsTransient(err)
	}

	return &BrowserRenderer{
		client:  client,
		timeout: timeout,
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(breakerCfg),
	}
}

// Render fetches the URL and extracts signals from the resulting HTML.
func (r *BrowserRenderer) Render(ctx context.Context, url string, opts Options) (*model.PageSignals, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	var resp *browserless.ContentResponse
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Do(ctx, r.retry, func(ctx context.Context) error {
			var err error
			resp, err = r.client.Content(ctx, browserless.ContentRequest{
				URL:         url,
				UserAgent:   desktopUA,
				Viewport:    &browserless.Viewport{Width: 1366, Height: 900},
				BestAttempt: true,
				GotoOptions: browserless.GotoOptions{
					WaitUntil: "networkidle2",
					TimeoutMS: int(timeout.Milliseconds()),
				},
			})
			return err
		})
	})
	if err != nil {
		var apiErr *browserless.APIError
		if errors.As(err, &apiErr) {
			signals := &model.PageSignals{FinalURL: url}
			signals.Failure, signals.FailureDetail = classifyFailure(apiErr)
			zap.L().Debug("render: navigation failed",
				zap.String("url", url),
				zap.String("failure", string(signals.Failure)),
			)
			return signals, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return &model.PageSignals{
				FinalURL:      url,
				Failure:       model.RenderFailTimeout,
				FailureDetail: "render deadline exceeded",
			}, nil
		}
		return nil, err
	}

	signals := ExtractSignals(resp.HTML, resp.FinalURL)

	if blocked, wall := detectBlock(resp.HTML); blocked {
		signals.Loaded = false
		signals.Failure = model.RenderFailBlocked
		signals.FailureDetail = "bot wall: " + wall
		return signals, nil
	}

	signals.QualityScore = QualityScore(signals)

	// Screenshots are evidence for human review, never a gate: capture
	// failures are logged and the render still succeeds.
	if opts.Screenshot {
		png, err := r.client.Screenshot(ctx, browserless.ContentRequest{
			URL:       url,
			UserAgent: desktopUA,
			Viewport:  &browserless.Viewport{Width: 1366, Height: 900},
			GotoOptions: browserless.GotoOptions{
				WaitUntil: "networkidle2",
				TimeoutMS: int(timeout.Milliseconds()),
			},
		})
		if err != nil {
			zap.L().Warn("render: screenshot failed", zap.String("url", url), zap.Error(err))
		} else {
			signals.Screenshot = png
		}
	}

	zap.L().Debug("render: page extracted",
		zap.String("url", url),
		zap.Int("word_count", signals.WordCount),
		zap.Int("quality_score", signals.QualityScore),
		zap.Bool("placeholder", signals.IsPlaceholder),
	)

	return signals, nil
}

// classifyFailure maps a Browserless navigation error onto a failure class.
// The controller treats timeout/ssl/server classes as live-domain-but-broken
// and runs its own DNS check to catch dead domains.
func classifyFailure(apiErr *browserless.APIError) (model.RenderFailure, string) {
	body := strings.ToLower(apiErr.Body)

	switch {
	case strings.Contains(body, "timeout") || strings.Contains(body, "err_timed_out"):
		return model.RenderFailTimeout, apiErr.Body
	case strings.Contains(body, "err_cert") || strings.Contains(body, "ssl"):
		return model.RenderFailSSL, apiErr.Body
	case strings.Contains(body, "404") || strings.Contains(body, "410") ||
		strings.Contains(body, "err_name_not_resolved"):
		return model.RenderFailNotFound, apiErr.Body
	case strings.Contains(body, "response_code_failure") || apiErr.StatusCode >= 500:
		return model.RenderFailServer, apiErr.Body
	default:
		return model.RenderFailGeneric, apiErr.Body
	}
}

// blockMarkers identify bot walls served in place of the real page.
var blockMarkers = map[string]string{
	"verifying you are human":   "challenge",
	"checking your browser":     "cloudflare",
	"cf-browser-verification":   "cloudflare",
	"captcha":                   "captcha",
	"unusual traffic":           "rate_limit",
	"access denied":             "access_denied",
	"pardon our interruption":   "bot_wall",
	"are you a robot":           "bot_wall",
}

// detectBlock scans HTML for bot-wall markers. Only short pages are
// suspected — a real site can legitimately mention a captcha.
func detectBlock(html string) (bool, string) {
	if len(html) > 20_000 {
		return false, ""
	}
	lower := strings.ToLower(html)
	for marker, wall := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true, wall
		}
	}
	return false, ""
}
