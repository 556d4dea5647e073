// Package consumer runs the receive -> decode -> render pipeline for one
// stream and tracks its windowed statistics.
//
// A decode failure on one frame never affects the next: it is counted as a
// dropped frame and the pipeline keeps going. Under back-pressure only the
// most recently decoded frame is drawn; older pending frames are
// superseded, never queued.
package consumer

import (
	"bytes"
	"context"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-telecam/pkg/protocol"
	"github.com/teslashibe/go-telecam/pkg/stats"
)

// DefaultRefresh is the render loop tick, roughly one display refresh.
const DefaultRefresh = 16 * time.Millisecond

// Metrics is the rolling performance snapshot for one stream.
type Metrics struct {
	FramesReceived int           `json:"framesReceived"`
	AvgLatency     time.Duration `json:"avgLatency"`
	DroppedFrames  uint64        `json:"droppedFrames"`
}

// Pipeline decodes and renders binary frame payloads for one stream.
type Pipeline struct {
	streamID string
	sink     Sink
	logger   *slog.Logger
	window   *stats.Window
	slot     *frameSlot
	refresh  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPipeline creates a pipeline rendering to the given sink.
func NewPipeline(streamID string, sink Sink, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = &Discard{}
	}
	return &Pipeline{
		streamID: streamID,
		sink:     sink,
		logger:   logger.With("stream", streamID),
		window:   stats.NewWindow(),
		slot:     newFrameSlot(),
		refresh:  DefaultRefresh,
	}
}

// StreamID returns the stream this pipeline renders.
func (p *Pipeline) StreamID() string { return p.streamID }

// Start begins the render loop.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		p.renderLoop(ctx)
	}()
}

// Stop cancels the render loop, discards any pending draw and waits for
// the loop to exit.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.slot.clear()
	if done != nil {
		<-done
	}
}

// HandleBinary processes one received frame payload. Safe to call from the
// session's read goroutine.
func (p *Pipeline) HandleBinary(payload []byte) {
	p.window.Mark()

	img, err := jpeg.Decode(bytes.NewReader(payload))
	if err != nil {
		p.window.MarkDropped()
		p.logger.Debug("frame decode failed", "error", err, "bytes", len(payload))
		return
	}
	p.slot.put(img)
}

// HandleControl processes a control message received on the viewer
// session. Unrecognized types are ignored, not errors.
func (p *Pipeline) HandleControl(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeActiveStreams:
		// Discovery broadcasts are a multi-viewer concern; a plain
		// viewer has nothing to do with them.
	default:
		p.logger.Debug("ignoring control message", "type", msg.Type)
	}
}

// OnSessionState resets the dropped-frame counter when the underlying
// session reconnects. Wire it to the session's state observer.
func (p *Pipeline) OnSessionState(connected bool) {
	if connected {
		p.window.Reset()
	}
}

// Metrics returns the current rolling snapshot.
func (p *Pipeline) Metrics() Metrics {
	last := p.window.Last()
	return Metrics{
		FramesReceived: last.FramesReceived,
		AvgLatency:     last.AvgLatency,
		DroppedFrames:  p.window.Dropped(),
	}
}

func (p *Pipeline) renderLoop(ctx context.Context) {
	ticker := time.NewTicker(p.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.window.TryFlush()
			if frame, ok := p.slot.take(); ok {
				p.sink.Render(frame)
			}
		}
	}
}
