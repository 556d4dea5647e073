package settings

import (
	"fmt"
	"sync"
)

// Store is the single source of truth for producer settings. One external
// settings surface writes it; every producer pipeline reads the latest value
// at the start of each frame cycle.
type Store struct {
	mu       sync.RWMutex
	settings Settings
	errors   map[string]string // streamId -> last error, display only

	// Callback when settings change (for logging/broadcast)
	OnChange func(s Settings)
}

// NewStore creates a store seeded with the given settings.
func NewStore(s Settings) *Store {
	return &Store{
		settings: s,
		errors:   make(map[string]string),
	}
}

// Get returns the current settings snapshot.
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.settings
}

// Set replaces the settings after validation.
func (st *Store) Set(s Settings) error {
	if errs := s.Validate(); len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}

	st.mu.Lock()
	st.settings = s
	callback := st.OnChange
	st.mu.Unlock()

	if callback != nil {
		callback(s)
	}
	return nil
}

// Update merges a partial patch onto the current settings.
// Unset fields keep their current values.
func (st *Store) Update(p Patch) error {
	st.mu.RLock()
	next := p.Apply(st.settings)
	st.mu.RUnlock()
	return st.Set(next)
}

// SetError records the last error observed for a stream.
func (st *Store) SetError(streamID, msg string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.errors[streamID] = msg
}

// ClearError removes the recorded error for a stream.
func (st *Store) ClearError(streamID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.errors, streamID)
}

// Err returns the last recorded error for a stream, if any.
func (st *Store) Err(streamID string) (string, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	msg, ok := st.errors[streamID]
	return msg, ok
}

// Errors returns a copy of the stream error map.
func (st *Store) Errors() map[string]string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make(map[string]string, len(st.errors))
	for k, v := range st.errors {
		out[k] = v
	}
	return out
}
