// Streamer - camera producer for the telecam relay.
//
// Captures frames from a webcam (or a synthetic test pattern), encodes
// them as JPEG at the configured resolution/quality and sends them to the
// relay, paced to the configured frame rate. Runs a local control server
// for settings and stats.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-telecam/internal/config"
	"github.com/teslashibe/go-telecam/internal/log"
	"github.com/teslashibe/go-telecam/pkg/capture"
	"github.com/teslashibe/go-telecam/pkg/consumer"
	"github.com/teslashibe/go-telecam/pkg/netprobe"
	"github.com/teslashibe/go-telecam/pkg/producer"
	"github.com/teslashibe/go-telecam/pkg/protocol"
	"github.com/teslashibe/go-telecam/pkg/session"
	"github.com/teslashibe/go-telecam/pkg/settings"
	"github.com/teslashibe/go-telecam/pkg/web"
)

func main() {
	relayURL := flag.String("relay", config.RelayURL("ws://localhost:5000/ws"), "Relay WebSocket URL (overrides RELAY_URL env var)")
	streamID := flag.String("stream", config.StreamID(), "Stream id to produce (overrides STREAM_ID env var)")
	device := flag.Int("device", config.CameraDevice(), "Camera device index (overrides CAMERA_DEVICE env var)")
	testPattern := flag.Bool("test-pattern", false, "Stream a synthetic test pattern instead of a camera")
	webPort := flag.String("web-port", config.WebPort(), "Local control server port (overrides WEB_PORT env var)")
	logLevel := flag.String("log-level", config.LogLevel(), "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)
	logger := log.With("stream", *streamID)

	store := settings.NewStore(settings.Default())

	source, err := openSource(*testPattern, *device, store.Get())
	if err != nil {
		logger.Error("camera open failed", "device", *device, "error", err)
		os.Exit(1)
	}

	sess, err := session.Open(session.Config{
		URL:      *relayURL,
		Role:     protocol.RoleStreamer,
		StreamID: *streamID,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("session open failed", "error", err)
		os.Exit(1)
	}
	defer sess.Close()

	pipe := producer.New(sess, source, store, logger)

	probe := netprobe.New(*relayURL, logger)

	ctrl := web.NewServer(*webPort, store, logger)
	ctrl.OnStats = func() consumer.Metrics {
		sent := pipe.SentReport()
		return consumer.Metrics{
			FramesReceived: sent.FramesReceived,
			AvgLatency:     sent.AvgLatency,
			DroppedFrames:  sent.DroppedFrames,
		}
	}
	ctrl.OnStatus = func() web.Status {
		last := probe.Last()
		return web.Status{
			Role:      string(protocol.RoleStreamer),
			StreamID:  *streamID,
			State:     sess.State().String(),
			Connected: sess.Connected(),
			PingMs:    last.RTT.Milliseconds(),
		}
	}
	ctrl.StartAsync()
	defer ctrl.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	probe.Start(ctx)
	defer probe.Stop()
	pipe.Start(ctx)
	defer pipe.Stop()

	logger.Info("streaming", "relay", *relayURL)
	<-ctx.Done()

	if err := pipe.Err(); err != nil {
		logger.Error("pipeline stopped", "error", err)
	}
	logger.Info("shutting down")
}

func openSource(testPattern bool, device int, s settings.Settings) (capture.Source, error) {
	if testPattern {
		return capture.NewTestPattern(s.Resolution.Width, s.Resolution.Height), nil
	}
	return capture.OpenWebcam(device)
}
