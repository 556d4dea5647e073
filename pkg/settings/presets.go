package settings

// Preset names for quick quality/frame-rate switching.
const (
	PresetLow    = "low"
	PresetMedium = "medium"
	PresetHigh   = "high"
)

// Presets returns the named quick-setting patches. Presets adjust quality
// and frame rate only; the resolution keeps its current value.
func Presets() map[string]Patch {
	return map[string]Patch{
		PresetLow:    patch(0.3, 15),
		PresetMedium: patch(0.5, 30),
		PresetHigh:   patch(0.8, 60),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetLow, PresetMedium, PresetHigh}
}

// GetPreset returns a preset patch by name, or nil if not found.
func GetPreset(name string) *Patch {
	if p, ok := Presets()[name]; ok {
		return &p
	}
	return nil
}

func patch(quality float64, frameRate int) Patch {
	return Patch{Quality: &quality, FrameRate: &frameRate}
}
