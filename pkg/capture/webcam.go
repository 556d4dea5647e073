package capture

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Webcam captures frames from a local camera via OpenCV.
type Webcam struct {
	mu     sync.Mutex
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// OpenWebcam opens the camera at the given device index.
func OpenWebcam(device int) (*Webcam, error) {
	cap, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", device, classifyOpenError(err))
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("open camera %d: %w", device, ErrDeviceNotFound)
	}

	return &Webcam{
		cap: cap,
		mat: gocv.NewMat(),
	}, nil
}

// Read grabs the next frame from the camera.
func (w *Webcam) Read() (image.Image, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrDeviceNotFound
	}
	if ok := w.cap.Read(&w.mat); !ok {
		return nil, fmt.Errorf("camera read: %w", ErrDeviceBusy)
	}
	if w.mat.Empty() {
		return nil, fmt.Errorf("camera returned empty frame: %w", ErrDeviceBusy)
	}

	img, err := w.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

// Close releases the camera.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.mat.Close()
	return w.cap.Close()
}
