package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/sitecheck/internal/claim"
	"github.com/sells-group/sitecheck/internal/config"
	"github.com/sells-group/sitecheck/internal/model"
)

// Resetter puts a stale claim back into a queueable state and dispatches
// the follow-up task. Satisfied by the claim controller.
type Resetter interface {
	Reset(ctx context.Context, businessID string, clearAttempts bool) (*model.WebsiteClaim, error)
	Enqueue(ctx context.Context, businessID string) (claim.Outcome, error)
}

// Checker runs periodic staleness checks in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	resetter  Resetter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background staleness checker. resetter may be nil
// when auto-reset is disabled.
func NewChecker(collector *Collector, alerter *Alerter, resetter Resetter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		resetter:  resetter,
		cfg:       cfg,
	}
}

func (c *Checker) staleAfter() time.Duration {
	d := time.Duration(c.cfg.StaleAfterMins) * time.Minute
	if d <= 0 {
		d = time.Hour
	}
	return d
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting staleness checker",
		zap.Duration("interval", interval),
		zap.Duration("stale_after", c.staleAfter()),
		zap.Bool("auto_reset", c.cfg.AutoReset),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("staleness checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx, log)
		}
	}
}

// Check runs one collect-evaluate-alert cycle. Exposed for one-shot use
// from the status command.
func (c *Checker) Check(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.staleAfter())
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return
	}

	if c.cfg.AutoReset && c.resetter != nil {
		c.resetStale(ctx, log, snap.StaleClaims)
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}

// resetStale moves stuck claims back to a queueable state and enqueues
// the next task for each, so the reset actually resumes processing.
// Attempt history is preserved so the at-most-once discovery guarantee
// still holds.
func (c *Checker) resetStale(ctx context.Context, log *zap.Logger, stale []model.WebsiteClaim) {
	for _, stuck := range stale {
		if _, err := c.resetter.Reset(ctx, stuck.BusinessID, false); err != nil {
			log.Error("monitoring: failed to reset stale claim",
				zap.String("business_id", stuck.BusinessID),
				zap.Error(err),
			)
			continue
		}
		outcome, err := c.resetter.Enqueue(ctx, stuck.BusinessID)
		if err != nil {
			log.Error("monitoring: failed to re-enqueue reset claim",
				zap.String("business_id", stuck.BusinessID),
				zap.Error(err),
			)
			continue
		}
		log.Info("monitoring: reset stale claim",
			zap.String("business_id", stuck.BusinessID),
			zap.String("previous_state", string(stuck.State)),
			zap.String("outcome", string(outcome)),
		)
	}
}
