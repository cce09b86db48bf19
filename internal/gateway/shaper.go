package gateway

import "time"

// throttle passes the first signal through and swallows everything else
// until the interval has elapsed. Used to collapse bursts of reset and
// reconnect requests into one, and to pace heartbeat observations.
// Not safe for concurrent use; each throttle belongs to one goroutine.
type throttle struct {
	interval time.Duration
	last     time.Time
}

func newThrottle(interval time.Duration) *throttle {
	return &throttle{interval: interval}
}

// Ready reports whether a signal should pass, and records the pass.
func (t *throttle) Ready() bool {
	now := time.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}

	t.last = now

	return true
}

// Reset forgets the last pass so the next signal goes through.
func (t *throttle) Reset() {
	t.last = time.Time{}
}
