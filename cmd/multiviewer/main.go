// Multiviewer - consumes every active stream on the relay.
//
// Registers with the wildcard stream id, follows active-stream broadcasts
// and maintains one viewer session plus decode pipeline per live stream.
// Streams that stop updating are flagged as stalled but kept alive.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/teslashibe/go-telecam/internal/config"
	"github.com/teslashibe/go-telecam/internal/log"
	"github.com/teslashibe/go-telecam/pkg/consumer"
	"github.com/teslashibe/go-telecam/pkg/protocol"
	"github.com/teslashibe/go-telecam/pkg/registry"
	"github.com/teslashibe/go-telecam/pkg/session"
)

// viewerStream is one managed stream: its relay session and its decode
// pipeline, torn down together.
type viewerStream struct {
	sess *session.Session
	pipe *consumer.Pipeline
}

func (v *viewerStream) Close() error {
	err := v.sess.Close()
	v.pipe.Stop()
	return err
}

func main() {
	relayURL := flag.String("relay", config.RelayURL("ws://localhost:5000/ws"), "Relay WebSocket URL (overrides RELAY_URL env var)")
	outDir := flag.String("out-dir", "", "Write the latest frame of each stream to <dir>/<stream>.jpg")
	logLevel := flag.String("log-level", config.LogLevel(), "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)
	logger := log.L()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var mu sync.Mutex
	streams := make(map[string]*viewerStream)

	var reg *registry.Registry
	reg = registry.New(registry.FactoryFunc(func(id string) (registry.Stream, error) {
		var sink consumer.Sink = &consumer.Discard{}
		if *outDir != "" {
			sink = &consumer.FileSink{Path: *outDir + "/" + id + ".jpg"}
		}

		pipe := consumer.NewPipeline(id, sink, logger)
		pipe.Start(ctx)

		sess, err := session.Open(session.Config{
			URL:      *relayURL,
			Role:     protocol.RoleViewer,
			StreamID: id,
			Logger:   logger,
			OnBinary: func(payload []byte) {
				pipe.HandleBinary(payload)
				reg.Touch(id)
			},
			OnControl: pipe.HandleControl,
			OnState: func(st session.State) {
				pipe.OnSessionState(st == session.StateRegistered)
			},
		})
		if err != nil {
			pipe.Stop()
			return nil, err
		}

		v := &viewerStream{sess: sess, pipe: pipe}
		mu.Lock()
		streams[id] = v
		mu.Unlock()
		return v, nil
	}), logger)
	defer reg.Close()

	mv, err := session.Open(session.Config{
		URL:       *relayURL,
		Role:      protocol.RoleMultiViewer,
		StreamID:  protocol.StreamAll,
		Logger:    logger,
		OnControl: reg.HandleControl,
	})
	if err != nil {
		logger.Error("session open failed", "error", err)
		os.Exit(1)
	}
	defer mv.Close()

	logger.Info("watching all streams", "relay", *relayURL)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			live := reg.Snapshot()

			mu.Lock()
			for id := range streams {
				if !slices.Contains(live, id) {
					delete(streams, id)
				}
			}
			for _, id := range live {
				if v, ok := streams[id]; ok {
					m := v.pipe.Metrics()
					logger.Info("stream stats", "stream", id,
						"fps", m.FramesReceived,
						"avgLatency", m.AvgLatency,
						"dropped", m.DroppedFrames)
				}
			}
			mu.Unlock()

			for _, id := range reg.CheckStalled() {
				logger.Warn("stream stalled", "stream", id, "after", registry.StallAfter)
			}
		}
	}
}
