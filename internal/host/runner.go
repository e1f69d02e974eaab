// Package host drives a harvesting module from a JSON-lines event stream.
//
// Each line of the stream is one event: a JSON object mapping collection
// names to arrays of objects.
//
//	{"Tracks": [{"pt": 1.2, "charge": 1}, {"pt": 0.4, "charge": -1}]}
//
// The Runner doubles as the module's Source, serving the collections of the
// event it is currently replaying.
package host

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/logger"
	"github.com/ajitpratap0/harvest/pkg/metrics"
)

// Object is one element of a collection.
type Object = map[string]any

// Event maps collection names to their objects.
type Event map[string][]Object

// Lifecycle is the part of a harvesting module the runner drives.
type Lifecycle interface {
	Initialize(ctx context.Context) error
	Event(ctx context.Context) error
	Terminate(ctx context.Context) error
}

// Config controls a run.
type Config struct {
	// Module labels metrics and logs
	Module string
	// Collections declares the catalogue; empty discovers it from the first
	// event
	Collections []string
	// MaxEvents stops after that many events when positive
	MaxEvents int
	// ReportEvery logs throughput every that many events, zero disables it
	ReportEvery int
	// TerminateTimeout bounds Terminate when positive
	TerminateTimeout time.Duration
}

// Summary reports what a run did.
type Summary struct {
	Events     int
	Malformed  int
	Stopped    string
	Duration   time.Duration
	Throughput float64
}

// Reasons a run stopped reading events.
const (
	StoppedEOF       = "eof"
	StoppedMaxEvents = "max_events"
	StoppedCancelled = "cancelled"
)

const maxLineSize = 64 * 1024 * 1024

// Runner replays events from a reader. It is not safe for concurrent use.
type Runner struct {
	cfg     Config
	scanner *bufio.Scanner
	log     *zap.Logger

	known   map[string]bool
	current Event
	pending Event
	line    int
	bad     int
}

// NewRunner creates a runner reading JSON lines from r.
func NewRunner(r io.Reader, cfg Config, log *zap.Logger) *Runner {
	if log == nil {
		log = logger.Get()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	known := make(map[string]bool, len(cfg.Collections))
	for _, c := range cfg.Collections {
		known[c] = true
	}
	return &Runner{
		cfg:     cfg,
		scanner: scanner,
		log:     log.With(zap.String("component", "host")),
		known:   known,
	}
}

// Has reports whether the catalogue holds the named collection.
func (r *Runner) Has(name string) bool { return r.known[name] }

// Collections returns the catalogue in lexical order.
func (r *Runner) Collections() []string {
	names := make([]string, 0, len(r.known))
	for n := range r.known {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Collection returns the named collection of the current event. A
// collection absent from the event is empty.
func (r *Runner) Collection(_ context.Context, name string) ([]Object, error) {
	if !r.known[name] {
		return nil, errors.Newf(errors.ErrorTypeExtraction, "unknown collection %q", name)
	}
	return r.current[name], nil
}

// next reads the following well-formed event. Malformed lines are logged and
// skipped.
func (r *Runner) next() (Event, bool, error) {
	if r.pending != nil {
		ev := r.pending
		r.pending = nil
		return ev, true, nil
	}
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			r.bad++
			r.log.Warn("skipping malformed event", zap.Int("line", r.line), zap.Error(err))
			continue
		}
		if ev == nil {
			ev = Event{}
		}
		return ev, true, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, false, errors.Wrap(err, errors.ErrorTypeExtraction, "failed to read events").
			WithDetail("line", r.line)
	}
	return nil, false, nil
}

// discover fills an empty catalogue from the first event.
func (r *Runner) discover() error {
	if len(r.known) > 0 {
		return nil
	}
	ev, ok, err := r.next()
	if err != nil || !ok {
		return err
	}
	for name := range ev {
		r.known[name] = true
	}
	r.pending = ev
	r.log.Debug("discovered collections", zap.Strings("collections", r.Collections()))
	return nil
}

// Run drives m through a whole run. Terminate is called after the stream
// ends, after MaxEvents and after cancellation; a fatal fault returned by
// Event aborts the run without refinement.
func (r *Runner) Run(ctx context.Context, m Lifecycle) (Summary, error) {
	start := time.Now()
	tracker := metrics.NewThroughputTracker(r.cfg.Module)
	var sum Summary

	if err := r.discover(); err != nil {
		return sum, err
	}
	if err := m.Initialize(ctx); err != nil {
		return sum, err
	}

	for sum.Stopped == "" {
		if ctx.Err() != nil {
			sum.Stopped = StoppedCancelled
			break
		}
		if r.cfg.MaxEvents > 0 && sum.Events >= r.cfg.MaxEvents {
			sum.Stopped = StoppedMaxEvents
			break
		}

		ev, ok, err := r.next()
		if err != nil {
			return r.finish(sum, start), err
		}
		if !ok {
			sum.Stopped = StoppedEOF
			break
		}

		r.current = ev
		if err := m.Event(ctx); err != nil {
			if errors.IsFatal(err) {
				r.log.Error("fatal fault, aborting run", zap.Int("event", sum.Events+1), zap.Error(err))
				return r.finish(sum, start), err
			}
			r.log.Warn("event failed", zap.Int("event", sum.Events+1), zap.Error(err))
		}
		sum.Events++
		tracker.Increment(1)
		if r.cfg.ReportEvery > 0 && sum.Events%r.cfg.ReportEvery == 0 {
			r.log.Info("progress",
				zap.Int("events", sum.Events),
				zap.Float64("events_per_second", tracker.GetAndReset()))
		}
	}
	r.current = nil

	// refinement still runs after cancellation
	tctx := context.WithoutCancel(ctx)
	if r.cfg.TerminateTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(tctx, r.cfg.TerminateTimeout)
		defer cancel()
	}
	sum = r.finish(sum, start)
	r.log.Info("events exhausted, terminating",
		zap.String("stopped", sum.Stopped),
		zap.Int("events", sum.Events),
		zap.Int("malformed", sum.Malformed))
	if err := m.Terminate(tctx); err != nil {
		return sum, err
	}
	sum.Throughput = tracker.GetAndReset()
	return sum, nil
}

func (r *Runner) finish(sum Summary, start time.Time) Summary {
	sum.Malformed = r.bad
	sum.Duration = time.Since(start)
	return sum
}
