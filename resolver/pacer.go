package resolver

import (
	"context"
	"time"
)

// pacer spaces successive match enrichments by a fixed delay, counted from the
// end of the previous enrichment whichever term it belonged to.
type pacer struct {
	delay time.Duration
	last  time.Time
	now   func() time.Time
}

func newPacer(delay time.Duration) *pacer {
	if delay < 0 {
		delay = 0
	}
	return &pacer{delay: delay, now: time.Now}
}

func (p *pacer) wait(ctx context.Context) error {
	if p.delay == 0 || p.last.IsZero() {
		return ctx.Err()
	}
	remaining := p.delay - p.now().Sub(p.last)
	if remaining <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *pacer) done() {
	p.last = p.now()
}
