package timectrl

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/signalsfoundry/bridge-simulator/internal/logging"
)

// SimClock is an interface for accessing simulation time. Components that
// stamp state with a time depend on it rather than on a concrete Loop.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Mode describes how the Loop measures the elapsed time it hands listeners.
type Mode int

const (
	// RealTime delivers the measured wall-clock time since the previous tick.
	RealTime Mode = iota
	// Accelerated delivers exactly the nominal interval every tick.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// DefaultInterval is the tick period when none is configured.
const DefaultInterval = 100 * time.Millisecond

const defaultInboxSize = 1024

var (
	// ErrStopped indicates the loop is not running.
	ErrStopped = errors.New("loop stopped")
	// ErrBusy indicates the loop inbox is full.
	ErrBusy = errors.New("loop inbox full")
)

// Listener is invoked on every tick with the elapsed time it covers.
type Listener func(ctx context.Context, elapsed time.Duration)

// Recorder receives tick timing. observability.EngineCollector implements it.
type Recorder interface {
	ObserveTick(d time.Duration)
	IncTickOverruns()
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop logger.
func WithLogger(l logging.Logger) Option {
	return func(lp *Loop) {
		if l != nil {
			lp.log = l
		}
	}
}

// WithRecorder attaches a tick metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(lp *Loop) { lp.metrics = r }
}

// WithStartTime sets the simulation time the clock starts from.
func WithStartTime(t time.Time) Option {
	return func(lp *Loop) { lp.simTime = t }
}

// WithInboxSize bounds the number of pending submitted functions.
func WithInboxSize(n int) Option {
	return func(lp *Loop) {
		if n > 0 {
			lp.inboxSize = n
		}
	}
}

// Loop drives the game on a fixed interval. One worker goroutine runs
// every tick and every submitted function, one at a time, so listeners and
// commands never interleave. It implements SimClock.
//
// Ticks never overlap. When a tick overruns the interval the ticker drops
// the missed beats and, in RealTime mode, the next tick receives the full
// measured elapsed time.
type Loop struct {
	interval  time.Duration
	mode      Mode
	inboxSize int
	log       logging.Logger
	metrics   Recorder

	mu        sync.Mutex
	listeners []Listener
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	inbox     chan func()

	// work is held for the duration of every tick and submitted function.
	work sync.Mutex

	clockMu sync.RWMutex
	simTime time.Time
}

// NewLoop constructs a stopped loop.
func NewLoop(interval time.Duration, mode Mode, opts ...Option) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	l := &Loop{
		interval:  interval,
		mode:      mode,
		inboxSize: defaultInboxSize,
		log:       logging.Noop(),
		simTime:   time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Interval returns the tick period.
func (l *Loop) Interval() time.Duration { return l.interval }

// Mode returns the elapsed-time mode.
func (l *Loop) Mode() Mode { return l.mode }

// Now returns the current simulation time. Implements SimClock.
func (l *Loop) Now() time.Time {
	l.clockMu.RLock()
	defer l.clockMu.RUnlock()
	return l.simTime
}

// AddListener registers a callback invoked on every tick, after those
// registered earlier.
func (l *Loop) AddListener(fn Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Running reports whether the worker is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Start launches the worker. Calling Start on a running loop is a no-op.
// The loop stops when ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.inbox = make(chan func(), l.inboxSize)
	l.running = true

	go l.run(ctx, l.done, l.inbox)
	l.log.Info(ctx, "loop started",
		logging.Duration("interval", l.interval),
		logging.String("mode", l.mode.String()),
	)
}

// Stop halts the worker and waits for the current unit of work to finish.
// Calling Stop on a stopped loop is a no-op. Stop must not be called from
// a listener or a submitted function.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	<-done
}

func (l *Loop) run(ctx context.Context, done chan struct{}, inbox chan func()) {
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		close(done)
		l.log.Info(context.Background(), "loop stopped")
	}()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-inbox:
			l.work.Lock()
			fn()
			l.work.Unlock()
		case <-ticker.C:
			now := time.Now()
			elapsed := l.interval
			if l.mode == RealTime {
				elapsed = now.Sub(last)
			}
			last = now
			l.work.Lock()
			l.tick(ctx, elapsed)
			l.work.Unlock()
		}
	}
}

// Step runs one tick synchronously with the given elapsed time. It is
// serialized with the worker, so it is safe to call whether or not the
// loop is running.
func (l *Loop) Step(ctx context.Context, elapsed time.Duration) {
	l.work.Lock()
	defer l.work.Unlock()
	l.tick(ctx, elapsed)
}

func (l *Loop) tick(ctx context.Context, elapsed time.Duration) {
	l.mu.Lock()
	listeners := append([]Listener(nil), l.listeners...)
	l.mu.Unlock()

	l.clockMu.Lock()
	l.simTime = l.simTime.Add(elapsed)
	l.clockMu.Unlock()

	start := time.Now()
	for _, fn := range listeners {
		fn(ctx, elapsed)
	}
	took := time.Since(start)

	if l.metrics != nil {
		l.metrics.ObserveTick(took)
	}
	if took > l.interval {
		if l.metrics != nil {
			l.metrics.IncTickOverruns()
		}
		l.log.Debug(ctx, "tick overran interval",
			logging.Duration("took", took),
			logging.Duration("interval", l.interval),
		)
	}
}

// Submit queues fn to run on the worker between ticks without waiting.
func (l *Loop) Submit(fn func()) error {
	l.mu.Lock()
	running, inbox := l.running, l.inbox
	l.mu.Unlock()
	if !running {
		return ErrStopped
	}
	select {
	case inbox <- fn:
		return nil
	default:
		return ErrBusy
	}
}

// Do runs fn on the worker and returns its error. On a stopped loop fn
// runs on the caller's goroutine, still serialized with Step. Do must not
// be called from a listener or a submitted function.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	l.mu.Lock()
	running, inbox, done := l.running, l.inbox, l.done
	l.mu.Unlock()

	if !running {
		l.work.Lock()
		defer l.work.Unlock()
		return fn()
	}

	errc := make(chan error, 1)
	select {
	case inbox <- func() { errc <- fn() }:
	case <-done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errc:
		return err
	case <-done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
