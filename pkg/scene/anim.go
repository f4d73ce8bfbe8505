package scene

import (
	"sort"

	"github.com/Faultbox/psxexport/pkg/math"
)

// AnimData holds an object's animation: an optional unbaked action and a
// stack of tracks evaluated bottom to top.
type AnimData struct {
	Action *Strip   `json:"action,omitempty"`
	Tracks []*Track `json:"tracks,omitempty"`
}

// Track is a layer of strips.
type Track struct {
	Name   string   `json:"name"`
	Solo   bool     `json:"solo,omitempty"`
	Mute   bool     `json:"mute,omitempty"`
	Strips []*Strip `json:"strips"`
}

// Strip is a time-bounded range of vertex keyframes. Key frames are
// relative to Start.
type Strip struct {
	Name      string  `json:"name"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Influence float64 `json:"influence,omitempty"` // 0 is read as 1
	Keys      []Key   `json:"keys,omitempty"`
}

// Key is a full set of vertex positions at a frame.
type Key struct {
	Frame    float64     `json:"frame"`
	Vertices []math.Vec3 `json:"vertices"`
}

// DerivedMesh is a temporary evaluated copy of a mesh at the current frame.
// It must be handed back with Release.
type DerivedMesh struct {
	Object   *Object
	Frame    int
	Vertices []math.Vec3
}

func normalizeAnim(ad *AnimData) {
	if ad == nil {
		return
	}
	strips := make([]*Strip, 0, len(ad.Tracks)+1)
	for _, t := range ad.Tracks {
		strips = append(strips, t.Strips...)
	}
	if ad.Action != nil {
		strips = append(strips, ad.Action)
	}
	for _, st := range strips {
		if st.Influence == 0 {
			st.Influence = 1
		}
		sort.SliceStable(st.Keys, func(i, j int) bool { return st.Keys[i].Frame < st.Keys[j].Frame })
	}
}

// Empty reports whether there is nothing to play.
func (ad *AnimData) Empty() bool {
	if ad == nil {
		return true
	}
	if ad.Action != nil {
		return false
	}
	for _, t := range ad.Tracks {
		if len(t.Strips) > 0 {
			return false
		}
	}
	return true
}

// Sample returns the strip's vertex positions at an absolute scene frame,
// holding the first and last keys outside the keyed range.
func (st *Strip) Sample(frame float64) []math.Vec3 {
	if len(st.Keys) == 0 {
		return nil
	}
	local := frame - st.Start
	keys := st.Keys
	if local <= keys[0].Frame {
		return keys[0].Vertices
	}
	last := keys[len(keys)-1]
	if local >= last.Frame {
		return last.Vertices
	}
	i := sort.Search(len(keys), func(i int) bool { return keys[i].Frame > local })
	a, b := keys[i-1], keys[i]
	f := (local - a.Frame) / (b.Frame - a.Frame)
	n := min(len(a.Vertices), len(b.Vertices))
	out := make([]math.Vec3, n)
	for j := 0; j < n; j++ {
		out[j] = a.Vertices[j].Add(b.Vertices[j].Sub(a.Vertices[j]).Scale(f))
	}
	return out
}

// Covers reports whether the strip is active at frame.
func (st *Strip) Covers(frame float64) bool {
	return frame >= st.Start && frame <= st.End
}

// blend applies one strip on top of verts.
func (st *Strip) blend(verts []math.Vec3, frame float64) {
	src := st.Sample(frame)
	n := min(len(src), len(verts))
	for i := 0; i < n; i++ {
		verts[i] = verts[i].Add(src[i].Sub(verts[i]).Scale(st.Influence))
	}
}

// apply evaluates the track stack. Solo tracks silence all others.
func (ad *AnimData) apply(verts []math.Vec3, frame float64) {
	if ad == nil {
		return
	}
	solo := false
	for _, t := range ad.Tracks {
		solo = solo || t.Solo
	}
	for _, t := range ad.Tracks {
		if t.Mute || (solo && !t.Solo) {
			continue
		}
		for _, st := range t.Strips {
			if st.Covers(frame) {
				st.blend(verts, frame)
			}
		}
	}
	if ad.Action != nil {
		ad.Action.blend(verts, frame)
	}
}

// SetFrame moves the scene to frame.
func (s *Scene) SetFrame(frame int) {
	s.frame = frame
}

// Frame returns the current frame.
func (s *Scene) Frame() int {
	return s.frame
}

// SetSolo toggles a track's solo state.
func (s *Scene) SetSolo(t *Track, solo bool) {
	t.Solo = solo
}

// SetMute toggles a track's mute state.
func (s *Scene) SetMute(t *Track, mute bool) {
	t.Mute = mute
}

// Evaluate returns the object's mesh deformed at the current frame, in
// object-local space. Shape-key animation is applied before object
// animation.
func (s *Scene) Evaluate(o *Object) *DerivedMesh {
	if s.live == nil {
		s.live = make(map[*DerivedMesh]struct{})
	}
	d := &DerivedMesh{Object: o, Frame: s.frame}
	if o.Mesh != nil {
		d.Vertices = append([]math.Vec3(nil), o.Mesh.Vertices...)
		o.Mesh.ShapeAnim.apply(d.Vertices, float64(s.frame))
	}
	o.Anim.apply(d.Vertices, float64(s.frame))
	s.live[d] = struct{}{}
	return d
}

// Release discards a derived mesh.
func (s *Scene) Release(d *DerivedMesh) {
	delete(s.live, d)
}

// LiveDerived returns the number of derived meshes not yet released.
func (s *Scene) LiveDerived() int {
	return len(s.live)
}
