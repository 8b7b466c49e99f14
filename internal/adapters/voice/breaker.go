package voice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/frontdesk/internal/ports/secondary"
)

// Breaker wraps a voice channel with a circuit breaker so a dead bridge
// fails fast instead of eating the delivery timeout on every attempt.
// Calls refused while open or half-open fail with
// secondary.ErrChannelUnavailable and never reach the wrapped channel.
type Breaker struct {
	inner secondary.VoiceChannel
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps inner. The breaker opens after 3 consecutive failures and
// tries again after cooldown.
func NewBreaker(inner secondary.VoiceChannel, cooldown time.Duration, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        "voice",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("voice circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Breaker{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Deliver forwards to the wrapped channel unless the breaker is open.
func (b *Breaker) Deliver(ctx context.Context, callerID, text string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.Deliver(ctx, callerID, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", secondary.ErrChannelUnavailable, err)
	}
	return err
}

// State reports the breaker state for status output.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

var (
	_ secondary.VoiceChannel = (*Console)(nil)
	_ secondary.VoiceChannel = (*Webhook)(nil)
	_ secondary.VoiceChannel = (*Breaker)(nil)
)
