// Package scheduler provides the tiny bounded-concurrency primitive used by
// VersionResolver and Builder (spec.md §4.10): fan out a cap'd
// number of worker goroutines, poll for completions, and sweep up the rest
// at a barrier. It is grounded directly on the original implementation's own
// technique (original_source/src/pkgbuild.rs::fill_all_pkgvers): a
// poll-and-sleep loop over join handles rather than a channel/errgroup
// barrier, because the spec requires joining *any* completed handle to free
// a slot while the rest keep running — errgroup only exposes "wait for all".
package scheduler

import (
	"log/slog"
	"time"
)

// pollInterval matches the original's own polling cadence (10ms).
const pollInterval = 10 * time.Millisecond

// Handle is a single in-flight unit of work. Done reports completion without
// blocking; Err returns the result once Done is true.
type Handle struct {
	done chan struct{}
	err  error
}

// Spawn starts fn in its own goroutine and returns a Handle for it.
func Spawn(fn func() error) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.err = fn()
	}()
	return h
}

func (h *Handle) isDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Handle) join() error {
	<-h.done
	return h.err
}

// Pool runs a bounded number of concurrent Handles, polling for completions.
// A non-nil error from any worker is treated as a fatal join failure by the
// caller, per spec.md §4.10 ("join failure of any worker is fatal"); Pool
// itself only collects errors, it does not interpret them. Spawn does not
// recover panics, so a panicking worker ends the whole process.
type Pool struct {
	cap     int
	label   string
	handles []*Handle
}

// New creates a Pool with the given max-in-flight cap and a label used only
// for log messages.
func New(cap int, label string) *Pool {
	if cap < 1 {
		cap = 1
	}
	return &Pool{cap: cap, label: label}
}

// Go blocks until fewer than cap workers are in flight (joining any
// completed handle along the way — wait_if_too_busy in spec.md §4.10), then
// spawns fn as a new handle.
func (p *Pool) Go(fn func() error) error {
	if err := p.waitUntilBelowCap(); err != nil {
		return err
	}
	p.handles = append(p.handles, Spawn(fn))
	return nil
}

func (p *Pool) waitUntilBelowCap() error {
	for len(p.handles) >= p.cap {
		if err := p.reapOne(); err != nil {
			return err
		}
	}
	return nil
}

// reapOne polls until at least one handle has completed, removes it from
// the in-flight set, and returns its error (if any).
func (p *Pool) reapOne() error {
	for {
		for i, h := range p.handles {
			if h.isDone() {
				err := h.join()
				p.handles = append(p.handles[:i], p.handles[i+1:]...)
				if err != nil {
					slog.Error("scheduler worker failed", "label", p.label, "error", err)
				}
				return err
			}
		}
		time.Sleep(pollInterval)
	}
}

// Wait joins every remaining in-flight handle (wait_remaining in spec.md
// §4.10). It collects and returns the first error encountered, after
// joining all handles so none are leaked.
func (p *Pool) Wait() error {
	var first error
	for len(p.handles) > 0 {
		if err := p.reapOne(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// InFlight returns the current number of unjoined handles, which Go keeps
// below the cap (spec.md §8, property 5).
func (p *Pool) InFlight() int {
	return len(p.handles)
}
