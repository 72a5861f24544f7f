package relay

import (
	"context"
	"time"

	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/x/paychan"
	"github.com/tendermint/tendermint/libs/log"
	"go.uber.org/atomic"
)

// Source is the event log. It is implemented by paychan.Controller.
type Source interface {
	Events(ctx context.Context, after uint64, limit int) ([]*paychan.Event, error)
}

// Sink receives events in sequence order.
type Sink interface {
	Publish(ctx context.Context, e *paychan.Event) error
	Close() error
}

const (
	DefaultInterval  = time.Second
	DefaultBatchSize = 100
)

// Relay moves events from a Source to a Sink.
type Relay struct {
	source   Source
	sink     Sink
	logger   log.Logger
	interval time.Duration
	batch    int

	last      *atomic.Uint64
	forwarded *atomic.Uint64
	failures  *atomic.Uint64
	running   *atomic.Bool
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the relay logger.
func WithLogger(l log.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// WithInterval sets how often the event log is polled. A value that is
// not positive keeps DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize limits the number of events read per poll. A value that
// is not positive keeps DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

// StartAfter skips the events up to and including seq.
func StartAfter(seq uint64) Option {
	return func(r *Relay) { r.last.Store(seq) }
}

// New returns a relay that is not running yet.
func New(source Source, sink Sink, opts ...Option) *Relay {
	r := &Relay{
		source:    source,
		sink:      sink,
		logger:    log.NewNopLogger(),
		interval:  DefaultInterval,
		batch:     DefaultBatchSize,
		last:      atomic.NewUint64(0),
		forwarded: atomic.NewUint64(0),
		failures:  atomic.NewUint64(0),
		running:   atomic.NewBool(false),
	}
	for _, fn := range opts {
		fn(r)
	}
	r.logger = r.logger.With("module", "relay")
	return r
}

// Run polls until ctx is done. It returns nil once ctx is canceled.
// A relay can run only once at a time.
func (r *Relay) Run(ctx context.Context) error {
	if !r.running.CAS(false, true) {
		return errors.Wrap(errors.ErrState, "relay already running")
	}
	defer r.running.Store(false)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.logger.Info("relay started", "after", r.last.Load())
	for {
		// Drain the log before waiting for the next tick.
		for {
			n, err := r.Tick(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("relay batch failed", "after", r.last.Load(), "err", err)
				break
			}
			if n == 0 || n < r.batch {
				break
			}
		}
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped", "last", r.last.Load())
			return nil
		case <-ticker.C:
		}
	}
}

// Tick forwards one batch and returns the number of events forwarded.
func (r *Relay) Tick(ctx context.Context) (int, error) {
	after := r.last.Load()
	events, err := r.source.Events(ctx, after, r.batch)
	if err != nil {
		r.failures.Inc()
		return 0, errors.Wrap(err, "read events")
	}
	for i, e := range events {
		if e.Seq <= after {
			continue
		}
		if err := r.sink.Publish(ctx, e); err != nil {
			r.failures.Inc()
			return i, errors.Wrapf(err, "publish event %d", e.Seq)
		}
		after = e.Seq
		r.last.Store(after)
		r.forwarded.Inc()
	}
	if len(events) > 0 {
		r.logger.Debug("forwarded", "count", len(events), "last", after)
	}
	return len(events), nil
}

// Counters is a snapshot of the relay progress.
type Counters struct {
	Last      uint64 `json:"last"`
	Forwarded uint64 `json:"forwarded"`
	Failures  uint64 `json:"failures"`
	Running   bool   `json:"running"`
}

// Counters returns the current progress. It is safe to call while the
// relay runs.
func (r *Relay) Counters() Counters {
	return Counters{
		Last:      r.last.Load(),
		Forwarded: r.forwarded.Load(),
		Failures:  r.failures.Load(),
		Running:   r.running.Load(),
	}
}
