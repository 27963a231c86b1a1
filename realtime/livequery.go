/*
livequery.go - Debounced re-fetching binding for UI values

PURPOSE:
  Pairs an asynchronous fetch with a set of event-type triggers. On any
  matching event the binding schedules a re-fetch after a debounce delay, so
  a burst of events collapses into one fetch. The consumer reads the latest
  value, a loading flag, and the last error.

STALENESS:
  A failed fetch sets Err and keeps the previous value visible: degraded but
  showing last-known-good data, never a blank state.

LIVENESS:
  Fetches run on their own goroutine and simulated latency is not
  cancellable, so results can arrive after Close or after a newer refresh
  superseded them. A generation counter decides whether a result still
  applies; stale results are dropped silently.
*/
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/exchange-engine/events"
)

// DefaultDebounce is the delay between a trigger event and the re-fetch.
const DefaultDebounce = 500 * time.Millisecond

// Subscriber is the capability LiveQuery needs: typed event subscription
// returning a disposer. Both *Manager and *events.Bus satisfy it.
type Subscriber interface {
	Subscribe(eventType events.EventType, handler events.Handler) func()
}

// FetchFunc produces the bound value.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// LiveQuery keeps a value fresh by re-running fetch whenever trigger events
// arrive. Construct with NewLiveQuery; release with Close.
type LiveQuery[T any] struct {
	mu          sync.Mutex
	fetch       FetchFunc[T]
	debounce    time.Duration
	unsubs      []func()
	pending     *time.Timer // single pending-task slot; replaced on each trigger
	gen         uint64
	closed      bool
	value       T
	hasValue    bool
	loading     bool
	err         error
	lastUpdated time.Time
	log         *logrus.Logger
}

// Option configures a LiveQuery.
type Option func(*options)

type options struct {
	debounce time.Duration
	log      *logrus.Logger
}

// WithDebounce overrides the debounce delay (tests use short windows).
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithLogger supplies a logger for fetch failures.
func WithLogger(log *logrus.Logger) Option {
	return func(o *options) { o.log = log }
}

// NewLiveQuery subscribes to the trigger event types and performs the first
// fetch immediately. An events.Wildcard trigger refreshes on every event.
func NewLiveQuery[T any](sub Subscriber, fetch FetchFunc[T], triggers []events.EventType, opts ...Option) *LiveQuery[T] {
	o := options{debounce: DefaultDebounce, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	q := &LiveQuery[T]{
		fetch:    fetch,
		debounce: o.debounce,
		log:      o.log,
	}

	for _, et := range triggers {
		q.unsubs = append(q.unsubs, sub.Subscribe(et, func(events.Event) {
			q.scheduleRefresh()
		}))
	}

	q.Refresh()
	return q
}

// =============================================================================
// REFRESH MACHINERY
// =============================================================================

// Refresh re-runs the fetch immediately, superseding any in-flight fetch.
func (q *LiveQuery[T]) Refresh() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.gen++
	gen := q.gen
	q.loading = true
	q.mu.Unlock()

	go q.run(gen)
}

func (q *LiveQuery[T]) run(gen uint64) {
	value, err := q.fetch(context.Background())

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || gen != q.gen {
		// Superseded or torn down while the fetch was in flight.
		return
	}
	q.loading = false
	if err != nil {
		q.err = err
		q.log.WithError(err).Warn("live query fetch failed; keeping stale value")
		return
	}
	q.err = nil
	q.value = value
	q.hasValue = true
	q.lastUpdated = time.Now()
}

// scheduleRefresh arms the debounce timer, replacing any pending one so that
// events inside the window collapse into a single fetch.
func (q *LiveQuery[T]) scheduleRefresh() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if q.pending != nil {
		q.pending.Stop()
	}
	q.pending = time.AfterFunc(q.debounce, func() {
		q.mu.Lock()
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()
		if !closed {
			q.Refresh()
		}
	})
}

// Close releases all event subscriptions and disarms any pending refresh.
// A debounce timer that has already fired no-ops against the closed flag.
func (q *LiveQuery[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.pending != nil {
		q.pending.Stop()
		q.pending = nil
	}
	unsubs := q.unsubs
	q.unsubs = nil
	q.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Value returns the latest successfully fetched value; ok is false before
// the first success.
func (q *LiveQuery[T]) Value() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.value, q.hasValue
}

// Loading reports whether a fetch is in flight.
func (q *LiveQuery[T]) Loading() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loading
}

// Err returns the error from the most recent fetch, or nil.
func (q *LiveQuery[T]) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// LastUpdated returns when the value last changed; zero before first success.
func (q *LiveQuery[T]) LastUpdated() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastUpdated
}
