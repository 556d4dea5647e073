// Package config provides configuration helpers for go-telecam commands.
package config

import (
	"fmt"
	"os"
)

// Defaults shared by the commands.
const (
	DefaultRelayPort = "5000"
	DefaultWebPort   = "8080"
	DefaultStreamID  = "main"
)

// RelayURL returns the relay WebSocket URL from RELAY_URL.
// Falls back to the provided default if not set.
func RelayURL(defaultURL string) string {
	if url := os.Getenv("RELAY_URL"); url != "" {
		return url
	}
	return defaultURL
}

// RelayURLRequired returns the relay WebSocket URL from RELAY_URL.
// Exits if not set.
func RelayURLRequired() string {
	url := os.Getenv("RELAY_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "Error: RELAY_URL environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: RELAY_URL=ws://relay:5000/ws go run ./cmd/...")
		os.Exit(1)
	}
	return url
}

// StreamID returns the stream identifier from STREAM_ID or the default.
func StreamID() string {
	if id := os.Getenv("STREAM_ID"); id != "" {
		return id
	}
	return DefaultStreamID
}

// LogLevel returns the log level from LOG_LEVEL or "info".
func LogLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

// RelayPort returns the relay listen port from RELAY_PORT or the default.
func RelayPort() string {
	if port := os.Getenv("RELAY_PORT"); port != "" {
		return port
	}
	return DefaultRelayPort
}

// WebPort returns the settings API listen port from WEB_PORT or the default.
func WebPort() string {
	if port := os.Getenv("WEB_PORT"); port != "" {
		return port
	}
	return DefaultWebPort
}

// CameraDevice returns the capture device index from CAMERA_DEVICE or 0.
func CameraDevice() int {
	if dev := os.Getenv("CAMERA_DEVICE"); dev != "" {
		var idx int
		if _, err := fmt.Sscanf(dev, "%d", &idx); err == nil {
			return idx
		}
	}
	return 0
}
