package settings

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{
			name:   "default is valid",
			mutate: func(s *Settings) {},
		},
		{
			name:    "frame rate too low",
			mutate:  func(s *Settings) { s.FrameRate = 0 },
			wantErr: true,
		},
		{
			name:    "frame rate too high",
			mutate:  func(s *Settings) { s.FrameRate = 61 },
			wantErr: true,
		},
		{
			name:    "quality below range",
			mutate:  func(s *Settings) { s.Quality = 0.05 },
			wantErr: true,
		},
		{
			name:    "quality above range",
			mutate:  func(s *Settings) { s.Quality = 1.5 },
			wantErr: true,
		},
		{
			name:    "off-list resolution",
			mutate:  func(s *Settings) { s.Resolution = Resolution{Width: 800, Height: 600} },
			wantErr: true,
		},
		{
			name:   "vga resolution",
			mutate: func(s *Settings) { s.Resolution = ResVGA },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(&s)
			errs := s.Validate()
			if (len(errs) > 0) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", errs, tt.wantErr)
			}
		})
	}
}

func TestUpdatePartial(t *testing.T) {
	st := NewStore(Default())

	q := 0.2
	if err := st.Update(Patch{Quality: &q}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got := st.Get()
	if got.Quality != 0.2 {
		t.Errorf("quality = %v, want 0.2", got.Quality)
	}
	// Untouched fields must survive the merge.
	if got.FrameRate != Default().FrameRate {
		t.Errorf("frameRate = %v, want %v", got.FrameRate, Default().FrameRate)
	}
	if got.Resolution != Default().Resolution {
		t.Errorf("resolution = %v, want %v", got.Resolution, Default().Resolution)
	}
}

func TestUpdateRejectsInvalid(t *testing.T) {
	st := NewStore(Default())

	fr := 500
	if err := st.Update(Patch{FrameRate: &fr}); err == nil {
		t.Fatal("Update() accepted out-of-range frame rate")
	}
	if got := st.Get().FrameRate; got != Default().FrameRate {
		t.Errorf("rejected update mutated store: frameRate = %v", got)
	}
}

func TestOnChange(t *testing.T) {
	st := NewStore(Default())

	var seen []Settings
	st.OnChange = func(s Settings) { seen = append(seen, s) }

	fr := 15
	if err := st.Update(Patch{FrameRate: &fr}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(seen) != 1 || seen[0].FrameRate != 15 {
		t.Errorf("OnChange saw %v, want one update with frameRate 15", seen)
	}
}

func TestPresets(t *testing.T) {
	st := NewStore(Default())

	p := GetPreset(PresetLow)
	if p == nil {
		t.Fatal("GetPreset(low) = nil")
	}
	if err := st.Update(*p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got := st.Get()
	if got.Quality != 0.3 || got.FrameRate != 15 {
		t.Errorf("low preset applied %v, want quality 0.3 frameRate 15", got)
	}
	if got.Resolution != Default().Resolution {
		t.Errorf("preset must not change resolution, got %v", got.Resolution)
	}

	if GetPreset("ultra") != nil {
		t.Error("GetPreset(ultra) should be nil")
	}
}

func TestFrameInterval(t *testing.T) {
	s := Default()
	s.FrameRate = 20
	if got := s.FrameInterval(); got != 50*time.Millisecond {
		t.Errorf("FrameInterval() = %v, want 50ms", got)
	}
}

func TestJPEGQuality(t *testing.T) {
	tests := []struct {
		quality float64
		want    int
	}{
		{0.8, 80},
		{0.1, 10},
		{1.0, 100},
	}
	for _, tt := range tests {
		s := Default()
		s.Quality = tt.quality
		if got := s.JPEGQuality(); got != tt.want {
			t.Errorf("JPEGQuality(%v) = %d, want %d", tt.quality, got, tt.want)
		}
	}
}

func TestStreamErrors(t *testing.T) {
	st := NewStore(Default())

	if _, ok := st.Err("main"); ok {
		t.Error("fresh store should have no errors")
	}

	st.SetError("main", "camera busy")
	if msg, ok := st.Err("main"); !ok || msg != "camera busy" {
		t.Errorf("Err(main) = %q, %v", msg, ok)
	}

	st.ClearError("main")
	if _, ok := st.Err("main"); ok {
		t.Error("error survived ClearError")
	}
}
