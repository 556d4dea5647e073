// Package producer runs the capture -> rasterize -> encode -> pace -> send
// pipeline for one stream.
//
// The pipeline and the transport recover independently: losing the socket
// never stops capture, it only drops transmission until the session
// reconnects. Frames are never queued while disconnected.
package producer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-telecam/pkg/capture"
	"github.com/teslashibe/go-telecam/pkg/settings"
	"github.com/teslashibe/go-telecam/pkg/stats"
)

// Sender is the transport the pipeline transmits on. A *session.Session
// satisfies it.
type Sender interface {
	StreamID() string

	// SendBinary transmits one frame, returning false when the transport
	// is not connected and the frame was dropped.
	SendBinary(payload []byte) bool
}

// Pipeline captures, encodes and transmits frames for one stream.
type Pipeline struct {
	sess   Sender
	source capture.Source
	store  *settings.Store
	logger *slog.Logger
	window *stats.Window

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// New creates a pipeline. The settings store is shared: the pipeline reads
// the latest value at the start of every frame cycle.
func New(sess Sender, source capture.Source, store *settings.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		sess:   sess,
		source: source,
		store:  store,
		logger: logger.With("stream", sess.StreamID()),
		window: stats.NewWindow(),
	}
}

// Start begins the frame loop. It returns immediately.
func (p *Pipeline) Start(ctx context.Context) {
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

// Stop cancels the frame loop and waits for it to exit. The media source is
// not closed; the caller owns it.
func (p *Pipeline) Stop() {
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

// Err returns the terminal error that stopped the pipeline, if any.
// Media-acquisition failures land here; they are surfaced, not retried.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// SentReport returns the last closed window of sent-frame stats.
func (p *Pipeline) SentReport() stats.Report {
	return p.window.Last()
}

func (p *Pipeline) run(ctx context.Context) {
	p.logger.Info("producer pipeline started")

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if ctx.Err() != nil {
			return
		}

		// The settings snapshot is taken once per cycle: a concurrent
		// update is seen by the next iteration, never mid-frame.
		cfg := p.store.Get()

		img, err := p.source.Read()
		if err != nil {
			msg := capture.UserMessage(err)
			p.store.SetError(p.sess.StreamID(), msg)
			p.mu.Lock()
			p.lastErr = err
			p.mu.Unlock()
			p.logger.Error("media source failed, stopping pipeline",
				"error", err, "user_message", msg)
			return
		}

		payload, err := EncodeFrame(img, cfg.Resolution, cfg.JPEGQuality())
		if err != nil {
			// Local failure: skip this frame, keep the loop alive.
			p.logger.Warn("frame encode failed", "error", err)
		} else if p.sess.SendBinary(payload) {
			p.window.Mark()
		}
		// Not connected: the frame is silently dropped, no backlog.

		timer.Reset(cfg.FrameInterval())
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}
