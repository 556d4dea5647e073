// Package capture provides frame sources for the producer pipeline.
//
// Failure to acquire a device is terminal for a pipeline: it is classified
// into a user-facing message and surfaced, never retried automatically.
// Recovery takes explicit operator action.
package capture

import (
	"errors"
	"image"
	"strings"
)

// Source produces raw frames at the device's native resolution. The
// pipeline rescales to the target resolution itself.
type Source interface {
	// Read returns the current frame. An error is terminal for the
	// source; callers stop the pipeline and surface it.
	Read() (image.Image, error)

	// Close releases the device.
	Close() error
}

// Media acquisition failure classes.
var (
	ErrDeviceNotFound   = errors.New("capture device not found")
	ErrDeviceBusy       = errors.New("capture device busy")
	ErrPermissionDenied = errors.New("capture permission denied")
)

// UserMessage maps a media-acquisition error to the message shown to the
// operator next to the retry control.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		return "No camera found. Check that the device is attached."
	case errors.Is(err, ErrDeviceBusy):
		return "Camera is in use by another process."
	case errors.Is(err, ErrPermissionDenied):
		return "Camera access denied. Grant permission and retry."
	default:
		return "Camera error: " + err.Error()
	}
}

// classifyOpenError folds driver error text into one of the failure
// classes. Driver messages are not stable across platforms, so this is a
// best-effort discriminator.
func classifyOpenError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission") || strings.Contains(msg, "denied"):
		return ErrPermissionDenied
	case strings.Contains(msg, "busy") || strings.Contains(msg, "in use"):
		return ErrDeviceBusy
	default:
		return ErrDeviceNotFound
	}
}
