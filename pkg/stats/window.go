// Package stats provides per-session windowed frame statistics.
//
// Counting uses tumbling, non-overlapping windows of at least one second:
// a window closes on the first event at or past the 1000 ms boundary, so
// under load a window can run slightly long, never short.
package stats

import (
	"sync"
	"time"
)

// WindowLength is the nominal length of one stats window.
const WindowLength = time.Second

// Report is the snapshot published when a window closes.
type Report struct {
	// FramesReceived is the number of frames counted in the closed window.
	FramesReceived int

	// AvgLatency is how far past the nominal window boundary the flush
	// fired. Frames carry no timestamps, so this is a coarse jitter proxy
	// rather than true end-to-end latency.
	AvgLatency time.Duration

	// DroppedFrames is the running decode-failure count at flush time.
	DroppedFrames uint64
}

// Window counts frame arrivals in tumbling windows. Each session owns
// exactly one Window; there is no cross-session aggregation inside it.
type Window struct {
	mu      sync.Mutex
	start   time.Time
	count   int
	dropped uint64
	last    Report

	now func() time.Time

	// OnFlush, if set, is called with the report of each closed window.
	// Called with the internal lock held; keep it short.
	OnFlush func(Report)
}

// NewWindow creates a window starting now.
func NewWindow() *Window {
	return NewWindowClock(time.Now)
}

// NewWindowClock creates a window with an injectable clock, for tests.
func NewWindowClock(now func() time.Time) *Window {
	return &Window{start: now(), now: now}
}

// Mark records one frame arrival and flushes if the window has elapsed.
func (w *Window) Mark() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.count++
	w.maybeFlush(w.now())
}

// MarkDropped records one decode failure. Dropped frames accumulate for the
// session's lifetime and are not cleared by window flushes.
func (w *Window) MarkDropped() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dropped++
}

// TryFlush closes the window if it has elapsed, even without a new arrival.
// Lets an idle stream report zero frames instead of a stale count.
func (w *Window) TryFlush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.maybeFlush(w.now())
}

func (w *Window) maybeFlush(t time.Time) {
	elapsed := t.Sub(w.start)
	if elapsed < WindowLength {
		return
	}

	w.last = Report{
		FramesReceived: w.count,
		AvgLatency:     elapsed - WindowLength,
		DroppedFrames:  w.dropped,
	}
	w.count = 0
	w.start = t

	if w.OnFlush != nil {
		w.OnFlush(w.last)
	}
}

// Last returns the report of the most recently closed window.
func (w *Window) Last() Report {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Dropped returns the running decode-failure count.
func (w *Window) Dropped() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Reset restarts the window and clears all counters, including the dropped
// count. Called when a session reconnects.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.start = w.now()
	w.count = 0
	w.dropped = 0
	w.last = Report{}
}
