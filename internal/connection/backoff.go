package connection

import (
	"math/rand/v2"
	"time"
)

// Backoff produces reconnect delays of Base*2^n plus up to Jitter*interval
// of random slack, capped at Max. With Jitter <= 1 the sequence never
// decreases until Reset.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64 // fraction of the interval, clamped to [0, 1]

	// Rand returns a value in [0, 1). Nil uses math/rand/v2.
	Rand func() float64

	failures int
}

// Next returns the delay before the next attempt and advances the sequence.
func (b *Backoff) Next() time.Duration {
	shift := b.failures
	if shift > 30 {
		shift = 30
	}
	b.failures++

	d := b.Base * time.Duration(1<<shift)
	if d <= 0 || (b.Max > 0 && d >= b.Max) {
		return b.Max
	}
	if j := clampJitter(b.Jitter); j > 0 {
		r := rand.Float64
		if b.Rand != nil {
			r = b.Rand
		}
		d += time.Duration(j * r() * float64(d))
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Reset restarts the sequence at Base.
func (b *Backoff) Reset() { b.failures = 0 }

// Failures returns how many delays were handed out since the last Reset.
func (b *Backoff) Failures() int { return b.failures }

func clampJitter(j float64) float64 {
	switch {
	case j < 0:
		return 0
	case j > 1:
		return 1
	}
	return j
}
