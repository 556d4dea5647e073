package relay_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-telecam/pkg/consumer"
	"github.com/teslashibe/go-telecam/pkg/protocol"
	"github.com/teslashibe/go-telecam/pkg/registry"
	"github.com/teslashibe/go-telecam/pkg/relay"
	"github.com/teslashibe/go-telecam/pkg/session"
)

// startRelay runs a relay on a loopback port and returns its base URLs.
func startRelay(t *testing.T, interval time.Duration) (wsURL, httpURL string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := relay.NewServer(relay.Config{BroadcastInterval: interval})
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Shutdown() })

	addr := ln.Addr().String()
	return "ws://" + addr + "/ws", "http://" + addr
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestPingEndpoint(t *testing.T) {
	_, httpURL := startRelay(t, time.Second)

	resp, err := http.Get(httpURL + "/ping")
	if err != nil {
		t.Fatalf("GET /ping: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || string(body) != "pong" {
		t.Errorf("GET /ping = %d %q", resp.StatusCode, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, httpURL := startRelay(t, time.Second)

	resp, err := http.Get(httpURL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("telecam_relay_clients_connected")) {
		t.Error("metrics exposition missing relay gauges")
	}
}

// TestFrameRouting runs the full producer-to-viewer scenario: a streamer
// registered on "main" sends 30 frames inside one stats window; the viewer
// must report framesReceived = 30 with zero drops.
func TestFrameRouting(t *testing.T) {
	wsURL, _ := startRelay(t, time.Second)

	pipe := consumer.NewPipeline("main", &consumer.Discard{}, nil)

	var received atomic.Int32
	viewer, err := session.Open(session.Config{
		URL:      wsURL,
		Role:     protocol.RoleViewer,
		StreamID: "main",
		OnBinary: func(payload []byte) {
			received.Add(1)
			pipe.HandleBinary(payload)
		},
		OnControl: pipe.HandleControl,
	})
	if err != nil {
		t.Fatalf("open viewer: %v", err)
	}
	defer viewer.Close()

	streamer, err := session.Open(session.Config{
		URL:      wsURL,
		Role:     protocol.RoleStreamer,
		StreamID: "main",
	})
	if err != nil {
		t.Fatalf("open streamer: %v", err)
	}
	defer streamer.Close()

	waitFor(t, 2*time.Second, func() bool {
		return streamer.Connected() && viewer.Connected()
	})
	// Give the relay a beat to process both registrations.
	time.Sleep(100 * time.Millisecond)

	frame := testJPEG(t)
	for i := 0; i < 30; i++ {
		if !streamer.SendBinary(frame) {
			t.Fatalf("frame %d not sent", i)
		}
		time.Sleep(2 * time.Millisecond)
	}
	waitFor(t, 2*time.Second, func() bool { return received.Load() == 30 })

	// All 30 arrivals landed in the pipeline's first, still-open window;
	// starting the render loop flushes it.
	pipe.Start(context.Background())
	defer pipe.Stop()

	waitFor(t, 3*time.Second, func() bool {
		return pipe.Metrics().FramesReceived == 30
	})
	if m := pipe.Metrics(); m.DroppedFrames != 0 {
		t.Errorf("droppedFrames = %d, want 0", m.DroppedFrames)
	}
}

func TestViewerIsolationAcrossStreams(t *testing.T) {
	wsURL, _ := startRelay(t, time.Second)

	var mu sync.Mutex
	got := map[string]int{}

	openViewer := func(id string) *session.Session {
		s, err := session.Open(session.Config{
			URL:      wsURL,
			Role:     protocol.RoleViewer,
			StreamID: id,
			OnBinary: func(p []byte) {
				mu.Lock()
				got[id]++
				mu.Unlock()
			},
		})
		if err != nil {
			t.Fatalf("open viewer %s: %v", id, err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}

	vMain := openViewer("main")
	vSide := openViewer("side")

	streamer, err := session.Open(session.Config{
		URL:      wsURL,
		Role:     protocol.RoleStreamer,
		StreamID: "main",
	})
	if err != nil {
		t.Fatalf("open streamer: %v", err)
	}
	defer streamer.Close()

	waitFor(t, 2*time.Second, func() bool {
		return streamer.Connected() && vMain.Connected() && vSide.Connected()
	})
	time.Sleep(100 * time.Millisecond)

	frame := testJPEG(t)
	for i := 0; i < 5; i++ {
		streamer.SendBinary(frame)
	}

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got["main"] == 5
	})
	mu.Lock()
	defer mu.Unlock()
	if got["side"] != 0 {
		t.Errorf("viewer of side received %d frames from main", got["side"])
	}
}

// TestDiscoveryDiff runs the multi-viewer scenario: broadcasts of
// [main side] then [main] must destroy exactly the side pipeline.
func TestDiscoveryDiff(t *testing.T) {
	wsURL, _ := startRelay(t, 100*time.Millisecond)

	var mu sync.Mutex
	created, closed := []string{}, []string{}

	reg := registry.New(registry.FactoryFunc(func(id string) (registry.Stream, error) {
		mu.Lock()
		created = append(created, id)
		mu.Unlock()
		return closerFunc(func() error {
			mu.Lock()
			closed = append(closed, id)
			mu.Unlock()
			return nil
		}), nil
	}), nil)
	defer reg.Close()

	mv, err := session.Open(session.Config{
		URL:       wsURL,
		Role:      protocol.RoleMultiViewer,
		StreamID:  protocol.StreamAll,
		OnControl: reg.HandleControl,
	})
	if err != nil {
		t.Fatalf("open multi-viewer: %v", err)
	}
	defer mv.Close()

	openStreamer := func(id string) *session.Session {
		s, err := session.Open(session.Config{
			URL:      wsURL,
			Role:     protocol.RoleStreamer,
			StreamID: id,
		})
		if err != nil {
			t.Fatalf("open streamer %s: %v", id, err)
		}
		return s
	}

	sMain := openStreamer("main")
	defer sMain.Close()
	sSide := openStreamer("side")

	waitFor(t, 3*time.Second, func() bool {
		return slices.Equal(reg.Snapshot(), []string{"main", "side"})
	})

	sSide.Close()
	waitFor(t, 3*time.Second, func() bool {
		return slices.Equal(reg.Snapshot(), []string{"main"})
	})

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(created, []string{"main", "side"}) {
		t.Errorf("created = %v, want [main side]", created)
	}
	if !slices.Equal(closed, []string{"side"}) {
		t.Errorf("closed = %v, want exactly [side]", closed)
	}
}

func TestDuplicateStreamerRejected(t *testing.T) {
	wsURL, _ := startRelay(t, time.Second)

	first, err := session.Open(session.Config{
		URL:      wsURL,
		Role:     protocol.RoleStreamer,
		StreamID: "main",
	})
	if err != nil {
		t.Fatalf("open first streamer: %v", err)
	}
	defer first.Close()

	waitFor(t, 2*time.Second, func() bool { return first.Connected() })

	var mu sync.Mutex
	var states []session.State
	second, err := session.Open(session.Config{
		URL:            wsURL,
		Role:           protocol.RoleStreamer,
		StreamID:       "main",
		ReconnectDelay: time.Hour,
		OnState: func(st session.State) {
			mu.Lock()
			states = append(states, st)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("open second streamer: %v", err)
	}
	defer second.Close()

	// The relay closes the duplicate; the session falls back to
	// reconnecting rather than erroring out.
	waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return slices.Contains(states, session.StateReconnecting)
	})

	if first.State() != session.StateRegistered {
		t.Errorf("first streamer state = %v, want registered", first.State())
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func ExampleServer() {
	srv := relay.NewServer(relay.Config{})
	fmt.Println(len(srv.ActiveStreams()))
	// Output: 0
}
