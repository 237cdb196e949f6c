// Package pump drives a decode session to completion: a serial control loop
// that calls Step until the session reports termination.
package pump

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/zsiec/hwdec/internal/decode"
	"github.com/zsiec/hwdec/internal/logger"
)

// State is the pump lifecycle state
type State int32

const (
	StateRunning State = iota
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Options control optional run bounds. The zero value decodes the whole
// stream as fast as the session allows.
type Options struct {
	// MaxFrames stops the run once this many frames reached the sink.
	// Zero means no cap.
	MaxFrames int64
	// FrameRate paces Step calls to this many per second. Zero disables
	// pacing; used for fixed-rate throughput runs.
	FrameRate float64
}

// Pump owns the step loop over one session. Run is single-shot and serial;
// State and Steps are safe to read from other goroutines while it runs.
type Pump struct {
	session decode.Session
	opts    Options
	limiter *rate.Limiter
	logger  logger.Logger

	state atomic.Int32
	steps atomic.Int64
}

func New(session decode.Session, opts Options, log logger.Logger) *Pump {
	p := &Pump{
		session: session,
		opts:    opts,
		logger:  log,
	}
	if opts.FrameRate > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.FrameRate), 1)
	}
	p.state.Store(int32(StateRunning))
	return p
}

func (p *Pump) State() State {
	return State(p.state.Load())
}

// Steps reports how many times the session was stepped so far
func (p *Pump) Steps() int64 {
	return p.steps.Load()
}

// Run steps the session until it reports termination, the frame cap is hit,
// or the context is cancelled. Returns the number of steps taken and the
// session's terminal error, if any.
func (p *Pump) Run(ctx context.Context) (int64, error) {
	defer p.state.Store(int32(StateStopped))

	for {
		if err := ctx.Err(); err != nil {
			p.logger.WithError(err).Warn("Frame pump cancelled")
			return p.steps.Load(), err
		}

		if p.opts.MaxFrames > 0 && p.session.FramesEmitted() >= p.opts.MaxFrames {
			p.logger.WithField("max_frames", p.opts.MaxFrames).Info("Frame cap reached")
			return p.steps.Load(), p.session.Err()
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return p.steps.Load(), err
			}
		}

		p.steps.Add(1)
		if !p.session.Step(0) {
			return p.steps.Load(), p.session.Err()
		}
	}
}
