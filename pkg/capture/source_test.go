package capture

import (
	"errors"
	"testing"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", ErrDeviceNotFound, "No camera found. Check that the device is attached."},
		{"busy", ErrDeviceBusy, "Camera is in use by another process."},
		{"denied", ErrPermissionDenied, "Camera access denied. Grant permission and retry."},
		{"other", errors.New("boom"), "Camera error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyOpenError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"VIDEOIO ERROR: permission denied", ErrPermissionDenied},
		{"device or resource busy", ErrDeviceBusy},
		{"device already in use", ErrDeviceBusy},
		{"cannot open device 3", ErrDeviceNotFound},
	}
	for _, tt := range tests {
		if got := classifyOpenError(errors.New(tt.msg)); !errors.Is(got, tt.want) {
			t.Errorf("classifyOpenError(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestTestPattern(t *testing.T) {
	p := NewTestPattern(64, 48)
	defer p.Close()

	img, err := p.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("bounds = %v, want 64x48", b)
	}

	// Frames must differ so the encoded stream is not static.
	img2, _ := p.Read()
	if img2 == img {
		t.Error("Read() returned the same frame twice")
	}
	if p.Frames() != 2 {
		t.Errorf("Frames() = %d, want 2", p.Frames())
	}

	p.Fail(ErrDeviceBusy)
	if _, err := p.Read(); !errors.Is(err, ErrDeviceBusy) {
		t.Errorf("injected error not surfaced: %v", err)
	}

	p.Close()
	if _, err := p.Read(); err == nil {
		t.Error("Read() after Close should fail")
	}
}
