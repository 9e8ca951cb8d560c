package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/furisto/console/delta"
)

// DefaultWindow is the number of bytes requested per poll.
const DefaultWindow = 32768

// Poller owns a Mirror and keeps it synchronized by polling the server. The
// poll cadence starts immediate and backs off while nothing changes; any
// progress, transport recovery aside, snaps it back to immediate. Kick does
// the same after user actions such as submitting code.
type Poller struct {
	client   *Client
	window   int
	onUpdate func(Mirror)

	mirror  Mirror
	backoff pollBackoff
	kick    chan struct{}
}

// NewPoller creates a Poller requesting window bytes per poll (DefaultWindow
// if window <= 0). onUpdate, if non-nil, is invoked with a copy of the mirror
// after every poll that made progress.
func NewPoller(c *Client, window int, onUpdate func(Mirror)) *Poller {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Poller{
		client:   c,
		window:   window,
		onUpdate: onUpdate,
		kick:     make(chan struct{}, 1),
	}
}

// Kick resets the poll cadence to immediate. Safe to call from any goroutine.
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled. Transport errors and timeouts are treated
// as "no progress", never as fatal.
func (p *Poller) Run(ctx context.Context) error {
	for {
		if err := p.wait(ctx); err != nil {
			return err
		}

		resp, err := p.client.FetchWindow(ctx, delta.Request{
			MaxLen:  p.window,
			Version: p.mirror.Version,
			Begin:   p.mirror.End(),
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Debug("sync poll failed", "error", err)
			p.backoff.Advance()
			continue
		}

		if p.mirror.Apply(resp) {
			p.backoff.Reset()
			if p.onUpdate != nil {
				p.onUpdate(p.mirror.Clone())
			}
		} else {
			p.backoff.Advance()
		}
	}
}

func (p *Poller) wait(ctx context.Context) error {
	d := p.backoff.Wait()
	if d == 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.kick:
		default:
		}
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.kick:
		p.backoff.Reset()
		return nil
	case <-timer.C:
		return nil
	}
}
