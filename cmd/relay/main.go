// Relay - WebSocket frame relay between streamers and viewers.
//
// Accepts registered streamer, viewer and multi-viewer connections,
// routes binary frames per stream and broadcasts the active-stream set.
package main

import (
	"flag"
	"os"

	"github.com/teslashibe/go-telecam/internal/config"
	"github.com/teslashibe/go-telecam/internal/log"
	"github.com/teslashibe/go-telecam/pkg/relay"
)

func main() {
	port := flag.String("port", config.RelayPort(), "Port to listen on (overrides RELAY_PORT env var)")
	logLevel := flag.String("log-level", config.LogLevel(), "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)

	srv := relay.NewServer(relay.Config{Logger: log.L()})

	log.Info("relay listening", "port", *port)
	if err := srv.Listen(":" + *port); err != nil {
		log.Error("relay stopped", "error", err)
		os.Exit(1)
	}
}
