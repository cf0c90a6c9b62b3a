package game

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultResolveDelay is how long both cards of a pair stay face up before resolution.
const DefaultResolveDelay = 1000 * time.Millisecond

// Option configures a Game at construction.
type Option func(*Game)

// WithID sets the game identifier (default: a random uuid).
func WithID(id string) Option {
	return func(g *Game) { g.id = id }
}

// WithDelay overrides the resolution delay. Non-positive values are ignored.
func WithDelay(d time.Duration) Option {
	return func(g *Game) {
		if d > 0 {
			g.delay = d
		}
	}
}

// WithScheduler replaces the timer source.
func WithScheduler(s Scheduler) Option {
	return func(g *Game) {
		if s != nil {
			g.sched = s
		}
	}
}

// WithRand replaces the shuffle's random source. intn(n) must be uniform over [0, n).
func WithRand(intn func(n int) int) Option {
	return func(g *Game) {
		if intn != nil {
			g.intn = intn
		}
	}
}

// WithLogger sets the logger used for engine debug events.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Game) { g.log = l }
}
