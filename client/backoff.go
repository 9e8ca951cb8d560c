package client

import "time"

const maxPollInterval = 5 * time.Second

// pollBackoff steps the poll interval up while nothing changes on the server:
// from 0 in 100ms increments to 400ms, then 200ms increments to 1s, then
// 500ms increments up to the 5s ceiling. Any progress or user action resets
// it to 0.
type pollBackoff struct {
	wait time.Duration
}

func (b *pollBackoff) Wait() time.Duration {
	return b.wait
}

func (b *pollBackoff) Advance() time.Duration {
	switch {
	case b.wait < 400*time.Millisecond:
		b.wait += 100 * time.Millisecond
	case b.wait < time.Second:
		b.wait += 200 * time.Millisecond
	default:
		b.wait += 500 * time.Millisecond
	}
	if b.wait > maxPollInterval {
		b.wait = maxPollInterval
	}
	return b.wait
}

func (b *pollBackoff) Reset() {
	b.wait = 0
}
