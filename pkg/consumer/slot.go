package consumer

import (
	"image"
	"sync"
)

// frameSlot is a single-slot overwrite buffer between receive and draw.
// When frames arrive faster than the render loop consumes them, newer
// frames replace older pending ones: intermediate frames are dropped by
// design to bound memory and visual lag.
type frameSlot struct {
	mu     sync.Mutex
	frame  image.Image
	notify chan struct{}
}

func newFrameSlot() *frameSlot {
	return &frameSlot{notify: make(chan struct{}, 1)}
}

// put stores a decoded frame, superseding any pending one.
func (s *frameSlot) put(img image.Image) {
	s.mu.Lock()
	s.frame = img
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// take removes and returns the pending frame, if any.
func (s *frameSlot) take() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img := s.frame
	s.frame = nil
	return img, img != nil
}

// clear drops any pending frame without drawing it.
func (s *frameSlot) clear() {
	s.mu.Lock()
	s.frame = nil
	s.mu.Unlock()
}
