package prompt

import (
	"fmt"
	"math"
	"strings"

	"camera-angle-studio/internal/camera"
	"camera-angle-studio/internal/settings"
)

// NoCameraMovement is returned for a state that moves nothing. Surfaces
// compare against it, so the wording must stay stable.
const NoCameraMovement = "NO CAMERA MOVEMENT: keep the original viewpoint, framing and lens of the reference photo."

const (
	orbitDeadZone = 5.0

	dollyInThreshold = 3.0
	macroThreshold   = 7.0

	zenithThreshold   = 0.5
	lowAngleThreshold = -0.5

	vertigoDollyThreshold = 6.0
	vertigoMaxRotate      = 15.0
	vertigoMaxTilt        = 0.15
)

const vertigoInstruction = "DOLLY ZOOM (VERTIGO EFFECT): push the camera physically toward the subject while " +
	"widening the lens so the subject keeps the same size in frame and the background perspective stretches " +
	"dramatically behind it. Keep the subject's face, proportions, materials and colors identical to the reference photo."

const identityLock = "IDENTITY LOCK: the subject must stay identical to the reference photo, the exact same person or object. " +
	"Preserve face, features, proportions, materials, colors and any text or logos exactly; change only the camera."

// Compile maps a camera state to the instruction sent with the source image.
// It is pure: equal inputs always give an equal string.
func Compile(st camera.State, s settings.Settings) string {
	st = st.Clamped()

	if isVertigo(st) {
		return vertigoInstruction
	}

	var segments []string
	if seg := levitation(st); seg != "" {
		segments = append(segments, seg)
	}
	if seg := orbit(st); seg != "" {
		segments = append(segments, seg)
	}
	if seg := dolly(st); seg != "" {
		segments = append(segments, seg)
	}
	if seg := pitch(st); seg != "" {
		segments = append(segments, seg)
	}

	if len(segments) == 0 && !st.WideAngle {
		return NoCameraMovement
	}

	segments = append(segments, optics(st, s.Normalize()), identityLock)
	return strings.Join(segments, "\n")
}

// IsNeutral reports whether p is the no-movement sentinel.
func IsNeutral(p string) bool {
	return strings.TrimSpace(p) == NoCameraMovement
}

func isVertigo(st camera.State) bool {
	return st.WideAngle &&
		st.Forward > vertigoDollyThreshold &&
		math.Abs(st.Rotate) < vertigoMaxRotate &&
		math.Abs(st.Tilt) < vertigoMaxTilt
}

func levitation(st camera.State) string {
	if !st.Floating {
		return ""
	}
	return "LEVITATION: the subject floats about 30 cm above the ground in zero gravity; " +
		"detach contact shadows and leave a soft diffuse shadow below."
}

func orbit(st camera.State) string {
	if math.Abs(st.Rotate) <= orbitDeadZone {
		return ""
	}
	direction, turn := "right", "clockwise"
	if st.Rotate < 0 {
		direction, turn = "left", "counter-clockwise"
	}
	degrees := int(math.Round(math.Abs(st.Rotate)))
	return fmt.Sprintf("ORBIT: move the camera %d degrees to the %s around the subject (%s seen from above), "+
		"keeping it centered; reveal the geometry that becomes visible from this angle.", degrees, direction, turn)
}

func dolly(st camera.State) string {
	switch {
	case st.Forward > macroThreshold:
		return fmt.Sprintf("MACRO: extreme close-up, camera dollied in to %.1f/10; fill the frame with surface detail "+
			"and texture of the subject.", st.Forward)
	case st.Forward > dollyInThreshold:
		return fmt.Sprintf("DOLLY IN: move the camera closer (%.1f/10) so the subject fills more of the frame.", st.Forward)
	default:
		return ""
	}
}

func pitch(st camera.State) string {
	switch {
	case st.Tilt > zenithThreshold:
		return fmt.Sprintf("ZENITH: raise the camera and look down on the subject (pitch %.2f), top-down view.", st.Tilt)
	case st.Tilt < lowAngleThreshold:
		return fmt.Sprintf("LOW ANGLE: lower the camera and look up at the subject (pitch %.2f), heroic perspective.", st.Tilt)
	default:
		return ""
	}
}

func optics(st camera.State, s settings.Settings) string {
	var b strings.Builder
	if st.WideAngle {
		b.WriteString("OPTICS: 24mm wide-angle rectilinear lens, deep focus, straight lines stay straight, stronger perspective.")
	} else {
		b.WriteString("OPTICS: 85mm portrait telephoto lens, shallow depth of field, compressed background bokeh.")
	}
	if s.IsPro() {
		b.WriteString(fmt.Sprintf(" Resolve fine texture for %s output.", s.ImageSize))
	}
	return b.String()
}
