// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run polls once at start, then on every tick, and emits PollResult on out.
// No overlap. No retries.
func (p *Poller) Run(ctx context.Context, out chan<- PollResult) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	emit := func() bool {
		select {
		case out <- p.PollOnce():
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !emit() {
				return
			}
		}
	}
}
