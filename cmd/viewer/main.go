// Viewer - single-stream consumer for the telecam relay.
//
// Registers as a viewer for one stream, decodes incoming JPEG frames and
// renders the most recent one. Logs the per-second stats window.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-telecam/internal/config"
	"github.com/teslashibe/go-telecam/internal/log"
	"github.com/teslashibe/go-telecam/pkg/consumer"
	"github.com/teslashibe/go-telecam/pkg/protocol"
	"github.com/teslashibe/go-telecam/pkg/session"
)

func main() {
	relayURL := flag.String("relay", config.RelayURL("ws://localhost:5000/ws"), "Relay WebSocket URL (overrides RELAY_URL env var)")
	streamID := flag.String("stream", config.StreamID(), "Stream id to view (overrides STREAM_ID env var)")
	outPath := flag.String("out", "", "Write the latest frame to this file (default: stats only)")
	logLevel := flag.String("log-level", config.LogLevel(), "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)
	logger := log.With("stream", *streamID)

	var sink consumer.Sink = &consumer.Discard{}
	if *outPath != "" {
		sink = &consumer.FileSink{Path: *outPath}
	}

	pipe := consumer.NewPipeline(*streamID, sink, logger)

	sess, err := session.Open(session.Config{
		URL:       *relayURL,
		Role:      protocol.RoleViewer,
		StreamID:  *streamID,
		Logger:    logger,
		OnBinary:  pipe.HandleBinary,
		OnControl: pipe.HandleControl,
		OnState: func(st session.State) {
			pipe.OnSessionState(st == session.StateRegistered)
		},
	})
	if err != nil {
		logger.Error("session open failed", "error", err)
		os.Exit(1)
	}
	defer sess.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pipe.Start(ctx)
	defer pipe.Stop()

	logger.Info("viewing", "relay", *relayURL)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			m := pipe.Metrics()
			logger.Info("stats",
				"fps", m.FramesReceived,
				"avgLatency", m.AvgLatency,
				"dropped", m.DroppedFrames,
				"state", sess.State())
		}
	}
}
