package softphone

import (
	"log/slog"
	"time"
)

// Option adjusts Phone behavior at construction.
type Option func(*Phone)

// WithLogger sets the structured logger. The default discards nothing
// and writes through slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Phone) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithAutoAnswer controls whether inbound INVITEs are answered. When off
// the call is logged and left unanswered, which some test scenarios use
// to exercise caller-side timeouts.
func WithAutoAnswer(on bool) Option {
	return func(p *Phone) { p.autoAnswer = on }
}

// WithSettleDelay sets the pause between 180 Ringing and the 200 OK
// answer.
func WithSettleDelay(d time.Duration) Option {
	return func(p *Phone) {
		if d >= 0 {
			p.settleDelay = d
		}
	}
}

// WithRegisterWait bounds the wait for a REGISTER response.
func WithRegisterWait(d time.Duration) Option {
	return func(p *Phone) {
		if d > 0 {
			p.registerWait = d
		}
	}
}

// WithRegisterInterval sets the refresh period. It should stay below the
// registration expiry to keep the binding alive.
func WithRegisterInterval(d time.Duration) Option {
	return func(p *Phone) {
		if d > 0 {
			p.registerInterval = d
		}
	}
}
