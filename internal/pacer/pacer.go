package pacer

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"campaignd/internal/domain"
)

// Delay maps a sending-speed tier to the fixed gap between consecutive
// dispatches within one queue-item execution. The tiers are a fixed table,
// not user-configurable.
func Delay(speed domain.SendingSpeed) time.Duration {
	switch speed {
	case domain.SpeedFast:
		return 60 * time.Millisecond // ~1000/min
	case domain.SpeedSlow:
		return 600 * time.Millisecond // ~100/min
	default:
		return 120 * time.Millisecond // MEDIUM, ~500/min
	}
}

// Pacer serializes sends at a campaign's configured speed. The delay applies
// after each dispatch attempt, success or failure, so a slow provider does
// not change the pacing contract.
type Pacer struct {
	limiter *rate.Limiter
}

// New returns a pacer for one queue-item run. The limiter's initial token is
// drained at construction so every Wait, including the one after the first
// dispatch, blocks for the full interval; N recipients get N-1 full gaps.
func New(speed domain.SendingSpeed) *Pacer {
	limiter := rate.NewLimiter(rate.Every(Delay(speed)), 1)
	limiter.Allow()
	return &Pacer{limiter: limiter}
}

func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
