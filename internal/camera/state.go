package camera

import "math"

const (
	RotateMin  = -90.0
	RotateMax  = 90.0
	ForwardMin = 0.0
	ForwardMax = 10.0
	TiltMin    = -1.0
	TiltMax    = 1.0
)

// State is the virtual camera control vector. Values are replaced, never
// shared: every mutation produces a new State.
type State struct {
	Rotate    float64 `json:"rotate"`
	Forward   float64 `json:"forward"`
	Tilt      float64 `json:"tilt"`
	WideAngle bool    `json:"wideAngle"`
	Floating  bool    `json:"floating"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Rotate    *float64 `json:"rotate,omitempty"`
	Forward   *float64 `json:"forward,omitempty"`
	Tilt      *float64 `json:"tilt,omitempty"`
	WideAngle *bool    `json:"wideAngle,omitempty"`
	Floating  *bool    `json:"floating,omitempty"`
}

func Default() State {
	return State{}
}

func (s State) IsDefault() bool {
	return s == Default()
}

// Apply merges p into s and clamps the result.
func (s State) Apply(p Patch) State {
	if p.Rotate != nil {
		s.Rotate = *p.Rotate
	}
	if p.Forward != nil {
		s.Forward = *p.Forward
	}
	if p.Tilt != nil {
		s.Tilt = *p.Tilt
	}
	if p.WideAngle != nil {
		s.WideAngle = *p.WideAngle
	}
	if p.Floating != nil {
		s.Floating = *p.Floating
	}
	return s.Clamped()
}

func (s State) Clamped() State {
	s.Rotate = clamp(s.Rotate, RotateMin, RotateMax)
	s.Forward = clamp(s.Forward, ForwardMin, ForwardMax)
	s.Tilt = clamp(s.Tilt, TiltMin, TiltMax)
	return s
}

// Full returns a patch that sets every field of s.
func (s State) Full() Patch {
	return Patch{
		Rotate:    Float(s.Rotate),
		Forward:   Float(s.Forward),
		Tilt:      Float(s.Tilt),
		WideAngle: Bool(s.WideAngle),
		Floating:  Bool(s.Floating),
	}
}

func Float(v float64) *float64 { return &v }

func Bool(v bool) *bool { return &v }

// clamp maps NaN to the zero value of the domain (0 is inside every domain)
// and infinities to the nearest bound.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
