package consumer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/teslashibe/go-telecam/pkg/protocol"
)

func jpegFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: uint8(x), A: 255})
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode test frame: %v", err)
	}
	return buf.Bytes()
}

func TestFrameSlotLatestWins(t *testing.T) {
	slot := newFrameSlot()

	a := image.NewRGBA(image.Rect(0, 0, 1, 1))
	b := image.NewRGBA(image.Rect(0, 0, 2, 2))
	c := image.NewRGBA(image.Rect(0, 0, 3, 3))

	slot.put(a)
	slot.put(b)
	slot.put(c)

	got, ok := slot.take()
	if !ok {
		t.Fatal("take() found nothing")
	}
	if got.Bounds().Dx() != 3 {
		t.Errorf("take() returned a superseded frame: %v", got.Bounds())
	}
	if _, ok := slot.take(); ok {
		t.Error("second take() should be empty; intermediate frames must not queue")
	}
}

func TestDecodeFailureDoesNotStall(t *testing.T) {
	p := NewPipeline("main", &Discard{}, nil)

	good := jpegFrame(t, 8, 8)
	p.HandleBinary(good)
	p.HandleBinary([]byte("definitely not a jpeg"))
	p.HandleBinary(good)

	if got := p.window.Dropped(); got != 1 {
		t.Errorf("droppedFrames = %d, want exactly 1", got)
	}
	// Frame k+1 after the failure must still be pending for render.
	if _, ok := p.slot.take(); !ok {
		t.Error("frame after decode failure was not processed")
	}
}

func TestRenderDrawsOnlyLatest(t *testing.T) {
	sink := &Discard{}
	p := NewPipeline("main", sink, nil)
	p.refresh = 20 * time.Millisecond
	p.Start(context.Background())
	defer p.Stop()

	// A burst far faster than the refresh rate collapses to one draw.
	frame := jpegFrame(t, 8, 8)
	for i := 0; i < 10; i++ {
		p.HandleBinary(frame)
	}

	time.Sleep(50 * time.Millisecond)
	if got := sink.Rendered(); got != 1 {
		t.Errorf("rendered %d frames from one burst, want 1", got)
	}
}

func TestMetricsWindow(t *testing.T) {
	p := NewPipeline("main", &Discard{}, nil)
	p.Start(context.Background())
	defer p.Stop()

	frame := jpegFrame(t, 8, 8)
	for i := 0; i < 30; i++ {
		p.HandleBinary(frame)
	}

	// The render loop flushes once the 1 s window elapses.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if p.Metrics().FramesReceived == 30 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	m := p.Metrics()
	if m.FramesReceived != 30 {
		t.Errorf("framesReceived = %d, want 30", m.FramesReceived)
	}
	if m.DroppedFrames != 0 {
		t.Errorf("droppedFrames = %d, want 0", m.DroppedFrames)
	}
}

func TestHandleControlIgnoresUnknown(t *testing.T) {
	p := NewPipeline("main", &Discard{}, nil)

	// Must not panic or disturb frame flow.
	p.HandleControl(&protocol.Message{Type: "something-new"})
	p.HandleControl(protocol.NewActiveStreams([]string{"a"}))

	p.HandleBinary(jpegFrame(t, 4, 4))
	if _, ok := p.slot.take(); !ok {
		t.Error("frame flow disturbed by control messages")
	}
}

func TestReconnectResetsDropped(t *testing.T) {
	p := NewPipeline("main", &Discard{}, nil)

	p.HandleBinary([]byte("junk"))
	p.HandleBinary([]byte("junk"))
	if got := p.Metrics().DroppedFrames; got != 2 {
		t.Fatalf("droppedFrames = %d, want 2", got)
	}

	p.OnSessionState(true)
	if got := p.Metrics().DroppedFrames; got != 0 {
		t.Errorf("droppedFrames after reconnect = %d, want 0", got)
	}
}

func TestStopDiscardsPendingDraw(t *testing.T) {
	sink := &Discard{}
	p := NewPipeline("main", sink, nil)
	p.refresh = time.Hour // the tick never fires
	p.Start(context.Background())

	p.HandleBinary(jpegFrame(t, 8, 8))
	p.Stop()

	if _, ok := p.slot.take(); ok {
		t.Error("pending draw survived Stop")
	}
	if sink.Rendered() != 0 {
		t.Error("frame drawn after Stop")
	}
}
