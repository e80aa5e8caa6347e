package prompt

import (
	"fmt"
	"math"
	"strings"

	"camera-angle-studio/internal/camera"
	"camera-angle-studio/internal/settings"
)

// SystemInstruction travels with every request, so even the neutral prompt
// carries the identity lock.
const SystemInstruction = "You are a virtual camera operator re-photographing a single reference photo. " +
	"Render the same scene from the requested viewpoint as a photorealistic image. " +
	identityLock

const DefaultAtmosphere = "Match the lighting, color grading and atmosphere of the reference photo."

// Augment appends the control metadata block the model receives after the
// compiled camera instruction.
func Augment(compiled string, s settings.Settings) string {
	s = s.Normalize()

	atmosphere := DefaultAtmosphere
	if s.CreativeContext != "" {
		atmosphere = "Creative direction: " + s.CreativeContext
	}

	var b strings.Builder
	b.Grow(len(compiled) + 256)
	b.WriteString(strings.TrimSpace(compiled))
	b.WriteString("\n\nCONTROL:\n")
	b.WriteString(fmt.Sprintf("- Seed: %d\n", s.Seed))
	b.WriteString("- Stability: identity-lock=on\n")
	b.WriteString("- Output: one square 1:1 image\n")
	b.WriteString("- Atmosphere: " + atmosphere)
	return b.String()
}

// Describe is a short one-line summary of a state for control surfaces.
func Describe(st camera.State) string {
	st = st.Clamped()
	parts := []string{
		fmt.Sprintf("orbit %+d°", int(math.Round(st.Rotate))),
		fmt.Sprintf("dolly %.1f", st.Forward),
		fmt.Sprintf("tilt %.2f", st.Tilt),
	}
	if st.WideAngle {
		parts = append(parts, "wide")
	} else {
		parts = append(parts, "tele")
	}
	if st.Floating {
		parts = append(parts, "floating")
	}
	return strings.Join(parts, ", ")
}
