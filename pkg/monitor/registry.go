// Package monitor keeps the set of background monitoring tasks started by
// the measurement agent. Every task is a cancellable loop owned by the
// Registry; stopping a task cancels its context and waits for it to exit.
package monitor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// ErrClosed is returned when starting a monitor on a closed registry.
var ErrClosed = errors.New("monitor registry is closed")

// Probe runs once per tick of a monitor loop. Returning an error, or
// panicking, marks the record as failed and ends the loop.
type Probe func(ctx context.Context, rec Record) error

// LogProbe only logs. No device or condition is actually read.
func LogProbe(ctx context.Context, rec Record) error {
	switch rec.Kind {
	case KindConditional:
		slog.InfoContext(ctx, "Monitoring condition", "monitor", rec.ID, "protocol", rec.Protocol, "condition", rec.Condition)
	case KindDevice:
		slog.InfoContext(ctx, "Monitoring device", "monitor", rec.ID, "device", rec.Device, "parameter", rec.Parameter, "interval", rec.Interval.String())
	}
	return nil
}

type entry struct {
	rec    Record
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns all monitor records and their loops.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	wg      sync.WaitGroup
	closed  bool

	probe          Probe
	conditionPoll  time.Duration
	deviceInterval time.Duration
	now            func() time.Time
}

// Option customises a Registry.
type Option func(*Registry)

// WithProbe replaces the per-tick probe.
func WithProbe(p Probe) Option {
	return func(r *Registry) {
		if p != nil {
			r.probe = p
		}
	}
}

// WithConditionPoll sets the cadence of conditional loops.
func WithConditionPoll(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.conditionPoll = d
		}
	}
}

// WithDeviceInterval sets the interval used when a device monitor is
// started without one.
func WithDeviceInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.deviceInterval = d
		}
	}
}

// WithClock overrides time.Now for IDs and creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries:        make(map[string]*entry),
		probe:          LogProbe,
		conditionPoll:  time.Second,
		deviceInterval: time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartConditional registers a conditional monitor for protocol and starts
// its loop.
func (r *Registry) StartConditional(protocol, condition string) (Record, error) {
	return r.start(Record{
		Kind:      KindConditional,
		Protocol:  protocol,
		Condition: condition,
		Interval:  r.conditionPoll,
	})
}

// StartDevice registers a device monitor. A non-positive interval falls
// back to the registry default.
func (r *Registry) StartDevice(device, parameter string, interval time.Duration) (Record, error) {
	if interval <= 0 {
		interval = r.deviceInterval
	}
	return r.start(Record{
		Kind:      KindDevice,
		Device:    device,
		Parameter: parameter,
		Interval:  interval,
	})
}

func (r *Registry) start(rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Record{}, ErrClosed
	}

	rec.Created = r.now()
	rec.ID = r.nextID(rec.Kind, rec.Target(), rec.Created)
	rec.Status = StatusActive

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{rec: rec, cancel: cancel, done: make(chan struct{})}
	r.entries[rec.ID] = e

	r.wg.Add(1)
	go r.run(ctx, e)

	slog.Info("Monitor started", "monitor", rec.ID, "kind", rec.Kind, "interval", rec.Interval.String())
	return rec, nil
}

// nextID builds <kind>_<target>_<HHMMSS>; a numeric suffix keeps IDs
// created within the same second unique. Caller holds r.mu.
func (r *Registry) nextID(kind Kind, target string, at time.Time) string {
	base := fmt.Sprintf("%s_%s_%s", kind, target, at.Format("150405"))
	id := base
	for n := 2; ; n++ {
		if _, taken := r.entries[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}

func (r *Registry) run(ctx context.Context, e *entry) {
	defer r.wg.Done()
	defer close(e.done)

	rec := e.rec
	ticker := time.NewTicker(rec.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.tick(ctx, rec); err != nil {
				if ctx.Err() != nil {
					return
				}
				r.fail(rec.ID, err)
				return
			}
		}
	}
}

func (r *Registry) tick(ctx context.Context, rec Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("probe panic: %v", p)
		}
	}()
	return r.probe(ctx, rec)
}

func (r *Registry) fail(id string, err error) {
	slog.Error("Monitor loop failed", "monitor", id, "error", err)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.rec.Status = StatusError
		e.rec.Err = err.Error()
	}
}

// Get returns a copy of the record with the given ID.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Record{}, false
	}
	return e.rec, true
}

// Active returns copies of every listed record, oldest first. Records
// whose loop failed stay listed with StatusError until stopped.
func (r *Registry) Active() []Record {
	r.mu.Lock()
	out := make([]Record, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.rec)
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b Record) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of listed records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stop cancels the monitor, removes it and waits for its loop to return.
func (r *Registry) Stop(id string) (Record, bool) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
		e.cancel()
	}
	r.mu.Unlock()

	if !ok {
		return Record{}, false
	}

	<-e.done
	rec := e.rec
	rec.Status = StatusStopped
	slog.Info("Monitor stopped", "monitor", id)
	return rec, true
}

// StopAll stops every monitor and returns their IDs, oldest first.
func (r *Registry) StopAll() []string {
	ids := make([]string, 0)
	for _, rec := range r.Active() {
		if _, ok := r.Stop(rec.ID); ok {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

// Close stops everything, refuses new monitors and waits for all loops.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.StopAll()
	r.wg.Wait()
}
