// Package settings holds the runtime capture/encode configuration shared by
// producer pipelines, plus the per-stream error map shown to operators.
// Settings changes are observed by the next frame cycle, never the one in
// flight.
package settings

import (
	"fmt"
	"time"
)

// Resolution is a capture target resolution in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Supported capture resolutions.
var (
	ResVGA    = Resolution{Width: 640, Height: 480}
	ResHD     = Resolution{Width: 1280, Height: 720}
	ResFullHD = Resolution{Width: 1920, Height: 1080}
)

// Resolutions returns the enumerated set of supported resolutions.
func Resolutions() []Resolution {
	return []Resolution{ResVGA, ResHD, ResFullHD}
}

// Settings holds the producer capture/encode configuration.
type Settings struct {
	Resolution Resolution `json:"resolution"`
	FrameRate  int        `json:"frameRate"` // target FPS, 1-60
	Quality    float64    `json:"quality"`   // JPEG quality, 0.1-1.0
}

// Default returns the recommended streaming configuration.
func Default() Settings {
	return Settings{
		Resolution: ResHD,
		FrameRate:  30,
		Quality:    0.8,
	}
}

// Validate checks that all values are within bounds.
// Returns a list of validation errors, or nil if valid.
func (s Settings) Validate() []string {
	var errs []string

	if s.FrameRate < 1 || s.FrameRate > 60 {
		errs = append(errs, "frameRate must be between 1 and 60")
	}
	if s.Quality < 0.1 || s.Quality > 1.0 {
		errs = append(errs, "quality must be between 0.1 and 1.0")
	}

	supported := false
	for _, r := range Resolutions() {
		if s.Resolution == r {
			supported = true
			break
		}
	}
	if !supported {
		errs = append(errs, fmt.Sprintf("unsupported resolution %dx%d",
			s.Resolution.Width, s.Resolution.Height))
	}

	return errs
}

// FrameInterval returns the pacing interval between frames.
func (s Settings) FrameInterval() time.Duration {
	return time.Second / time.Duration(s.FrameRate)
}

// JPEGQuality maps the 0.1-1.0 quality to the encoder's 1-100 scale.
func (s Settings) JPEGQuality() int {
	q := int(s.Quality * 100)
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	return q
}

// Patch is a partial settings update. Nil fields keep their current value.
type Patch struct {
	Resolution *Resolution `json:"resolution,omitempty"`
	FrameRate  *int        `json:"frameRate,omitempty"`
	Quality    *float64    `json:"quality,omitempty"`
}

// Apply merges the patch onto s and returns the result.
func (p Patch) Apply(s Settings) Settings {
	if p.Resolution != nil {
		s.Resolution = *p.Resolution
	}
	if p.FrameRate != nil {
		s.FrameRate = *p.FrameRate
	}
	if p.Quality != nil {
		s.Quality = *p.Quality
	}
	return s
}
