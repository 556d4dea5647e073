package capture

import (
	"image"
	"image/color"
	"sync"
)

// TestPattern is a synthetic frame source: a gradient with a moving bar.
// Useful for running the pipeline without a camera attached.
type TestPattern struct {
	mu     sync.Mutex
	width  int
	height int
	frame  int
	closed bool
	err    error
}

// NewTestPattern creates a pattern source with the given native size.
func NewTestPattern(width, height int) *TestPattern {
	return &TestPattern{width: width, height: height}
}

// Read renders the next pattern frame.
func (p *TestPattern) Read() (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrDeviceNotFound
	}
	if p.err != nil {
		return nil, p.err
	}

	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	bar := (p.frame * 4) % p.width
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			c := color.RGBA{
				R: uint8(x * 255 / p.width),
				G: uint8(y * 255 / p.height),
				B: uint8(p.frame),
				A: 255,
			}
			if x >= bar && x < bar+8 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	p.frame++
	return img, nil
}

// Fail makes every subsequent Read return err. Drives the terminal
// media-failure path in tests and demos.
func (p *TestPattern) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Frames returns how many frames have been read.
func (p *TestPattern) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame
}

// Close stops the source.
func (p *TestPattern) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
