// Package taskqueue schedules discovery and validation as Temporal
// workflows. Chaining is explicit: workflows run exactly one claim task
// and the controller decides what, if anything, to enqueue next.
package taskqueue

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/sitecheck/internal/config"
)

const (
	dialTimeout = 5 * time.Second
	dialMaxWait = 60 * time.Second
	dialBackoff = 250 * time.Millisecond
	backoffMax  = 5 * time.Second
)

// Dial connects to the Temporal server, retrying with backoff until the
// server is reachable or the wait budget runs out. Local stacks routinely
// start the worker before Temporal finishes booting.
func Dial(cfg config.QueueConfig) (client.Client, error) {
	opts := client.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
	}

	deadline := time.Now().Add(dialMaxWait)
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		c, err := client.DialContext(ctx, opts)
		cancel()
		if err == nil {
			if attempt > 1 {
				zap.L().Info("taskqueue: connected",
					zap.String("address", cfg.Address),
					zap.Int("attempts", attempt),
				)
			}
			return c, nil
		}

		if time.Now().After(deadline) {
			return nil, eris.Wrapf(err, "taskqueue: dial %s (namespace %s)", cfg.Address, cfg.Namespace)
		}

		zap.L().Warn("taskqueue: server not reachable, retrying",
			zap.String("address", cfg.Address),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		time.Sleep(clampBackoff(dialBackoff, backoffMax, attempt))
	}
}

func clampBackoff(base, max time.Duration, attempt int) time.Duration {
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if sleep >= max {
			return max
		}
	}
	return sleep
}
