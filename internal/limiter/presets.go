package limiter

import (
	"fmt"
	"strings"
	"time"
)

// Preset pairs a request budget with its window.
type Preset struct {
	Name   string
	Limit  int
	Window time.Duration
}

var (
	Strict   = Preset{Name: "strict", Limit: 3, Window: time.Hour}
	Standard = Preset{Name: "standard", Limit: 10, Window: time.Minute}
	Lenient  = Preset{Name: "lenient", Limit: 30, Window: time.Minute}
	Internal = Preset{Name: "internal", Limit: 100, Window: time.Minute}
)

// PresetByName looks a preset up case-insensitively.
func PresetByName(name string) (Preset, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Strict.Name:
		return Strict, nil
	case Standard.Name:
		return Standard, nil
	case Lenient.Name:
		return Lenient, nil
	case Internal.Name:
		return Internal, nil
	default:
		return Preset{}, fmt.Errorf("unknown rate limit preset %q", name)
	}
}
