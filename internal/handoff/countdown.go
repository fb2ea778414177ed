package handoff

import (
	"fmt"
	"time"
)

// Countdown tracks the issuer's view of a code's remaining lifetime.
type Countdown struct {
	issued time.Time
}

// NewCountdown starts a countdown for t. Issuing a new token restarts it.
func NewCountdown(t Token) Countdown {
	return Countdown{issued: t.IssuedAt}
}

// Remaining returns the whole seconds left, never negative.
func (c Countdown) Remaining(now time.Time) time.Duration {
	left := Validity - now.Sub(c.issued)
	if left <= 0 {
		return 0
	}
	return left.Truncate(time.Second)
}

// Valid reports whether the code may still be displayed.
func (c Countdown) Valid(now time.Time) bool {
	return c.Remaining(now) > 0
}

// Display formats the remaining time as m:ss, or EXPIRED at zero.
func (c Countdown) Display(now time.Time) string {
	left := c.Remaining(now)
	if left == 0 {
		return "EXPIRED"
	}
	secs := int(left / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
