// Package netprobe measures round-trip latency to the relay by polling
// its /ping endpoint on a fixed interval.
package netprobe

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-telecam/internal/httpc"
)

// DefaultInterval is how often the probe fires.
const DefaultInterval = 5 * time.Second

// Sample is one completed probe. RTT is valid only when Err is nil.
type Sample struct {
	RTT time.Duration
	At  time.Time
	Err error
}

// Probe polls a relay's /ping endpoint and keeps the most recent sample.
type Probe struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger
	onSample func(Sample)

	mu     sync.Mutex
	last   Sample
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Probe.
type Option func(*Probe)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(p *Probe) { p.interval = d }
}

// WithClient overrides the shared HTTP client.
func WithClient(c *http.Client) Option {
	return func(p *Probe) { p.client = c }
}

// WithSampleFunc registers a callback invoked after every probe, failed
// ones included. Called from the probe goroutine.
func WithSampleFunc(fn func(Sample)) Option {
	return func(p *Probe) { p.onSample = fn }
}

// New creates a probe against the relay at baseURL. The ws:// scheme is
// accepted and mapped to http:// so callers can pass the relay URL they
// already have.
func New(baseURL string, logger *slog.Logger, opts ...Option) *Probe {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Probe{
		url:      pingURL(baseURL),
		interval: DefaultInterval,
		client:   httpc.Client,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func pingURL(base string) string {
	base = strings.TrimSuffix(base, "/")
	switch {
	case strings.HasPrefix(base, "ws://"):
		base = "http://" + strings.TrimPrefix(base, "ws://")
	case strings.HasPrefix(base, "wss://"):
		base = "https://" + strings.TrimPrefix(base, "wss://")
	}
	base = strings.TrimSuffix(base, "/ws")
	return base + "/ping"
}

// Start begins probing in the background.
func (p *Probe) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		p.run(ctx)
	}()
}

// Stop halts probing and waits for the probe goroutine to exit.
func (p *Probe) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Last returns the most recent sample. The zero Sample means no probe
// has completed yet.
func (p *Probe) Last() Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Probe) run(ctx context.Context) {
	// First probe immediately so the display is never blank for a full
	// interval after startup.
	p.once(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.once(ctx)
		}
	}
}

func (p *Probe) once(ctx context.Context) {
	start := time.Now()
	sample := Sample{At: start}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if reqErr != nil {
		sample.Err = reqErr
		p.record(sample)
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		sample.Err = err
		p.logger.Debug("ping probe failed", "url", p.url, "error", err)
	} else {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		sample.RTT = time.Since(start)
	}

	p.record(sample)
}

func (p *Probe) record(sample Sample) {
	p.mu.Lock()
	p.last = sample
	p.mu.Unlock()

	if p.onSample != nil {
		p.onSample(sample)
	}
}
