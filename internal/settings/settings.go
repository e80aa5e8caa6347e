package settings

import (
	"math"
	"math/rand/v2"
	"strings"
)

type Quality string

const (
	QualityFlash Quality = "flash"
	QualityPro   Quality = "pro"
)

const (
	ImageSize1K = "1K"
	ImageSize2K = "2K"
	ImageSize4K = "4K"
)

// LatLng is an optional user location used for maps grounding on the base tier.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Settings struct {
	Seed            int64   `json:"seed"`
	Quality         Quality `json:"quality"`
	ImageSize       string  `json:"imageSize,omitempty"`
	CreativeContext string  `json:"creativeContext,omitempty"`
	Location        *LatLng `json:"location,omitempty"`
}

type Patch struct {
	Seed            *int64   `json:"seed,omitempty"`
	Quality         *Quality `json:"quality,omitempty"`
	ImageSize       *string  `json:"imageSize,omitempty"`
	CreativeContext *string  `json:"creativeContext,omitempty"`
	Location        *LatLng  `json:"location,omitempty"`
	ClearLocation   bool     `json:"clearLocation,omitempty"`
}

func Default() Settings {
	return Settings{Quality: QualityFlash}
}

func (s Settings) IsPro() bool {
	return s.Quality == QualityPro
}

// Normalize returns a copy with every field inside its domain. ImageSize only
// survives on the pro tier.
func (s Settings) Normalize() Settings {
	if s.Seed > math.MaxInt32 {
		s.Seed = math.MaxInt32
	}
	if s.Seed < math.MinInt32 {
		s.Seed = math.MinInt32
	}

	switch Quality(strings.ToLower(strings.TrimSpace(string(s.Quality)))) {
	case QualityPro:
		s.Quality = QualityPro
	default:
		s.Quality = QualityFlash
	}

	if s.Quality != QualityPro {
		s.ImageSize = ""
	} else {
		s.ImageSize = normalizeSize(s.ImageSize)
	}

	s.CreativeContext = strings.TrimSpace(s.CreativeContext)

	if s.Location != nil {
		loc := *s.Location
		if math.IsNaN(loc.Latitude) || math.IsNaN(loc.Longitude) ||
			loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
			s.Location = nil
		} else {
			s.Location = &loc
		}
	}
	return s
}

func (s Settings) Apply(p Patch) Settings {
	if p.Seed != nil {
		s.Seed = *p.Seed
	}
	if p.Quality != nil {
		s.Quality = *p.Quality
	}
	if p.ImageSize != nil {
		s.ImageSize = *p.ImageSize
	}
	if p.CreativeContext != nil {
		s.CreativeContext = *p.CreativeContext
	}
	if p.Location != nil {
		s.Location = p.Location
	}
	if p.ClearLocation {
		s.Location = nil
	}
	return s.Normalize()
}

func RandomSeed() int64 {
	return int64(rand.Int32())
}

func normalizeSize(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case ImageSize2K:
		return ImageSize2K
	case ImageSize4K:
		return ImageSize4K
	default:
		return ImageSize1K
	}
}
