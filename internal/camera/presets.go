package camera

import "strings"

type Preset struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	State State  `json:"state"`
}

var presets = []Preset{
	{Key: "front", Name: "Front", State: State{}},
	{Key: "orbit-left", Name: "Orbit left", State: State{Rotate: -45}},
	{Key: "orbit-right", Name: "Orbit right", State: State{Rotate: 45}},
	{Key: "profile-left", Name: "Profile left", State: State{Rotate: -90}},
	{Key: "profile-right", Name: "Profile right", State: State{Rotate: 90}},
	{Key: "hero-low", Name: "Hero low angle", State: State{Tilt: -0.8, Forward: 2}},
	{Key: "top-down", Name: "Top-down", State: State{Tilt: 0.9}},
	{Key: "macro", Name: "Macro close-up", State: State{Forward: 8.5}},
	{Key: "vertigo", Name: "Vertigo", State: State{Forward: 8, WideAngle: true}},
	{Key: "levitate", Name: "Levitate", State: State{Floating: true, Tilt: -0.3}},
}

func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

func LookupPreset(key string) (Preset, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, p := range presets {
		if p.Key == key {
			return p, true
		}
	}
	return Preset{}, false
}

// ApplyPreset sets every field from the named preset through Update, so the
// change is undoable like any other edit.
func (s *Store) ApplyPreset(key string) (State, bool) {
	p, ok := LookupPreset(key)
	if !ok {
		return s.Current(), false
	}
	return s.Update(p.State.Full()), true
}
