// Package registry tracks the active-stream set announced by the relay and
// fans consumer pipelines in and out as it changes.
//
// Broadcasts are diffed as canonical sorted sets: an unchanged set causes
// zero pipeline churn, and ids present in consecutive snapshots keep their
// pipeline (and its session) untouched. No stream is assumed to persist;
// absence from one broadcast is enough to tear its pipeline down.
package registry

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/teslashibe/go-telecam/pkg/protocol"
)

// StallAfter is how long a stream may go without a metrics update before
// the watchdog logs a warning.
const StallAfter = 5 * time.Second

// Stream is one managed consumer pipeline (session included).
type Stream interface {
	Close() error
}

// Factory opens a consumer pipeline for a newly discovered stream id.
type Factory interface {
	Create(streamID string) (Stream, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(streamID string) (Stream, error)

// Create calls f.
func (f FactoryFunc) Create(streamID string) (Stream, error) { return f(streamID) }

// Registry owns the consumer set of a multi-viewer.
type Registry struct {
	factory Factory
	logger  *slog.Logger

	mu       sync.Mutex
	current  []string // canonical: sorted, deduped
	streams  map[string]Stream
	lastSeen map[string]time.Time
	now      func() time.Time
}

// New creates an empty registry.
func New(factory Factory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factory:  factory,
		logger:   logger,
		streams:  make(map[string]Stream),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

// HandleControl feeds relay control messages into the registry. Wire it to
// the multi-viewer session's control callback. Unknown types are ignored.
func (r *Registry) HandleControl(msg *protocol.Message) {
	if msg.Type == protocol.TypeActiveStreams {
		r.Apply(msg.Streams)
	}
}

// Apply diffs a broadcast id set against the previous snapshot, creating
// pipelines for new ids and destroying pipelines for vanished ones.
// Returns the ids actually created and destroyed.
func (r *Registry) Apply(ids []string) (created, destroyed []string) {
	next := canonicalize(ids)

	r.mu.Lock()
	if slices.Equal(next, r.current) {
		r.mu.Unlock()
		return nil, nil
	}

	added, removed := diff(r.current, next)
	r.current = next

	var toClose []Stream
	for _, id := range removed {
		if s, ok := r.streams[id]; ok {
			delete(r.streams, id)
			delete(r.lastSeen, id)
			toClose = append(toClose, s)
			destroyed = append(destroyed, id)
		}
	}

	for _, id := range added {
		if _, exists := r.streams[id]; exists {
			continue // idempotent: never double-create
		}
		s, err := r.factory.Create(id)
		if err != nil {
			r.logger.Error("failed to open consumer pipeline", "stream", id, "error", err)
			continue
		}
		r.streams[id] = s
		r.lastSeen[id] = r.now()
		created = append(created, id)
	}
	r.mu.Unlock()

	for _, s := range toClose {
		s.Close()
	}

	if len(created) > 0 || len(destroyed) > 0 {
		r.logger.Info("active streams changed", "created", created, "destroyed", destroyed)
	}
	return created, destroyed
}

// Snapshot returns the current canonical id set.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.current)
}

// Len returns the number of managed pipelines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// Touch records a metrics update for a stream, feeding the stall watchdog.
func (r *Registry) Touch(streamID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.streams[streamID]; ok {
		r.lastSeen[streamID] = r.now()
	}
}

// CheckStalled returns the ids of streams with no metrics update for
// StallAfter. Display-only; stalled streams are not torn down.
func (r *Registry) CheckStalled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stalled []string
	cutoff := r.now().Add(-StallAfter)
	for id, seen := range r.lastSeen {
		if seen.Before(cutoff) {
			stalled = append(stalled, id)
		}
	}
	slices.Sort(stalled)
	return stalled
}

// Close tears down every managed pipeline.
func (r *Registry) Close() error {
	r.mu.Lock()
	streams := r.streams
	r.streams = make(map[string]Stream)
	r.lastSeen = make(map[string]time.Time)
	r.current = nil
	r.mu.Unlock()

	for _, s := range streams {
		s.Close()
	}
	return nil
}

// canonicalize sorts and dedupes an id list so snapshots compare
// structurally, independent of broadcast ordering.
func canonicalize(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// diff returns new-old and old-new for two canonical sets.
func diff(old, next []string) (added, removed []string) {
	i, j := 0, 0
	for i < len(old) && j < len(next) {
		switch {
		case old[i] == next[j]:
			i++
			j++
		case old[i] < next[j]:
			removed = append(removed, old[i])
			i++
		default:
			added = append(added, next[j])
			j++
		}
	}
	removed = append(removed, old[i:]...)
	added = append(added, next[j:]...)
	return added, removed
}
