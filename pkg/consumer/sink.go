package consumer

import (
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync/atomic"
)

// Sink receives decoded frames from the render loop, at most one per
// refresh tick.
type Sink interface {
	Render(frame image.Image)
}

// Discard is a sink that drops every frame. Useful for stats-only viewing.
type Discard struct {
	rendered atomic.Int64
}

// Render counts the frame and drops it.
func (d *Discard) Render(frame image.Image) {
	d.rendered.Add(1)
}

// Rendered returns how many frames have been rendered.
func (d *Discard) Rendered() int64 {
	return d.rendered.Load()
}

// FileSink writes each rendered frame to a fixed path, atomically, so an
// external tool can watch the latest frame.
type FileSink struct {
	Path string
}

// Render writes the frame as JPEG via a temp-file rename.
func (f *FileSink) Render(frame image.Image) {
	tmp := f.Path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return
	}
	if err := jpeg.Encode(out, frame, &jpeg.Options{Quality: 90}); err != nil {
		out.Close()
		os.Remove(tmp)
		return
	}
	out.Close()
	os.Rename(tmp, filepath.Clean(f.Path))
}
