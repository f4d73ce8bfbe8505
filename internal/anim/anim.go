// Package anim flattens an object's animation tracks into per-frame vertex
// clips.
package anim

import (
	"errors"
	"fmt"

	"github.com/Faultbox/psxexport/pkg/math"
	"github.com/Faultbox/psxexport/pkg/scene"
)

// ErrDerivedLeak is returned when evaluated meshes were not released.
var ErrDerivedLeak = errors.New("derived meshes not released")

// Sampler evaluates an object at a given frame. *scene.Scene implements it.
type Sampler interface {
	SetFrame(frame int)
	Frame() int
	SetSolo(t *scene.Track, solo bool)
	SetMute(t *scene.Track, mute bool)
	Evaluate(o *scene.Object) *scene.DerivedMesh
	Release(d *scene.DerivedMesh)
	LiveDerived() int
}

// Clip is one flattened animation: Frames rows of Verts positions.
type Clip struct {
	Name        string
	Start, End  int // sampled range [Start, End)
	Frames      int
	Verts       int
	Cursor      int
	LerpCursor  int
	Loop        int
	Dir         int
	PingPong    int
	Interpolate bool
	Compressed  bool
	Data        [][3]int
}

// Frame returns row i of the stored data.
func (c *Clip) Frame(i int) [][3]int {
	return c.Data[i*c.Verts : (i+1)*c.Verts]
}

// Decompress returns absolute positions. Uncompressed clips return a copy.
func (c *Clip) Decompress() [][3]int {
	out := make([][3]int, len(c.Data))
	copy(out, c.Data)
	if !c.Compressed {
		return out
	}
	for f := 1; f < c.Frames; f++ {
		for v := 0; v < c.Verts; v++ {
			cur, prev := f*c.Verts+v, (f-1)*c.Verts+v
			for a := 0; a < 3; a++ {
				out[cur][a] += out[prev][a]
			}
		}
	}
	return out
}

// Set holds the clips of one object, in emission order.
type Set struct {
	Object string
	Clips  []*Clip
}

// Options controls flattening.
type Options struct {
	Scale       float64
	Mix         bool // one clip per group of overlapping strips
	Compress    bool
	Interpolate bool
}

// Bake turns a pending action into a track with one strip and drops empty
// tracks. It reports whether anything changed.
func Bake(ad *scene.AnimData) bool {
	if ad == nil {
		return false
	}
	changed := false
	if ad.Action != nil {
		ad.Tracks = append(ad.Tracks, &scene.Track{
			Name:   ad.Action.Name,
			Strips: []*scene.Strip{ad.Action},
		})
		ad.Action = nil
		changed = true
	}
	kept := ad.Tracks[:0]
	for _, t := range ad.Tracks {
		if len(t.Strips) == 0 {
			changed = true
			continue
		}
		kept = append(kept, t)
	}
	ad.Tracks = kept
	return changed
}

// Tracks returns the object's tracks followed by its shape-key tracks.
func Tracks(o *scene.Object) []*scene.Track {
	var out []*scene.Track
	if o.Anim != nil {
		out = append(out, o.Anim.Tracks...)
	}
	if o.Mesh != nil && o.Mesh.ShapeAnim != nil {
		out = append(out, o.Mesh.ShapeAnim.Tracks...)
	}
	return out
}

// Overlaps reports whether b starts before a ends and ends after a starts.
func Overlaps(a, b *scene.Strip) bool {
	return b.Start < a.End && b.End > a.Start
}

// Groups partitions strips into connected components of Overlaps. Groups
// are ordered by their first strip and keep the input order inside.
func Groups(strips []*scene.Strip) [][]*scene.Strip {
	group := make([]int, len(strips))
	for i := range group {
		group[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for group[i] != i {
			group[i] = group[group[i]]
			i = group[i]
		}
		return i
	}
	for i := range strips {
		for j := i + 1; j < len(strips); j++ {
			if Overlaps(strips[i], strips[j]) {
				a, b := find(i), find(j)
				if a > b {
					a, b = b, a
				}
				group[b] = a
			}
		}
	}

	var out [][]*scene.Strip
	slot := make(map[int]int)
	for i, st := range strips {
		root := find(i)
		k, ok := slot[root]
		if !ok {
			k = len(out)
			slot[root] = k
			out = append(out, nil)
		}
		out[k] = append(out[k], st)
	}
	return out
}

// Flatten samples every animation of o.
func Flatten(s Sampler, o *scene.Object, opts Options) (*Set, error) {
	set := &Set{Object: o.Name}
	if o.Mesh == nil {
		return set, nil
	}
	Bake(o.Anim)
	Bake(o.Mesh.ShapeAnim)
	tracks := Tracks(o)
	if len(tracks) == 0 {
		return set, nil
	}

	saved := s.Frame()
	defer s.SetFrame(saved)

	if opts.Mix {
		var strips []*scene.Strip
		for _, t := range tracks {
			strips = append(strips, t.Strips...)
		}
		for _, g := range Groups(strips) {
			lo, hi := g[0].Start, g[0].End
			for _, st := range g[1:] {
				lo = min(lo, st.Start)
				hi = max(hi, st.End)
			}
			set.Clips = append(set.Clips, sample(s, o, g[0].Name, int(lo), int(hi), opts))
		}
	} else {
		defer restore(s, tracks, save(tracks))
		for _, t := range tracks {
			isolate(s, tracks, t)
			for _, st := range t.Strips {
				set.Clips = append(set.Clips, sample(s, o, st.Name, int(st.Start), int(st.End), opts))
			}
		}
	}

	if n := s.LiveDerived(); n > 0 {
		return nil, fmt.Errorf("%w: %d for %s", ErrDerivedLeak, n, o.Name)
	}
	return set, nil
}

type trackState struct{ solo, mute bool }

func save(tracks []*scene.Track) []trackState {
	out := make([]trackState, len(tracks))
	for i, t := range tracks {
		out[i] = trackState{t.Solo, t.Mute}
	}
	return out
}

func restore(s Sampler, tracks []*scene.Track, states []trackState) {
	for i, t := range tracks {
		s.SetSolo(t, states[i].solo)
		s.SetMute(t, states[i].mute)
	}
}

// isolate solos t and mutes every other track of the object, object and
// shape-key stacks alike.
func isolate(s Sampler, tracks []*scene.Track, t *scene.Track) {
	for _, u := range tracks {
		s.SetSolo(u, u == t)
		s.SetMute(u, u != t)
	}
}

func sample(s Sampler, o *scene.Object, name string, start, end int, opts Options) *Clip {
	c := &Clip{
		Name:        name,
		Start:       start,
		End:         end,
		Verts:       len(o.Mesh.Vertices),
		Cursor:      -1,
		Dir:         1,
		Interpolate: opts.Interpolate,
		Compressed:  opts.Compress,
	}
	var prev [][3]int
	for f := start; f < end; f++ {
		s.SetFrame(f)
		d := s.Evaluate(o)
		row := make([][3]int, c.Verts)
		for i := range row {
			if i < len(d.Vertices) {
				row[i] = math.Remap(d.Vertices[i], opts.Scale)
			}
		}
		s.Release(d)

		out := row
		if opts.Compress && prev != nil {
			out = make([][3]int, c.Verts)
			for i := range row {
				for a := 0; a < 3; a++ {
					out[i][a] = row[i][a] - prev[i][a]
				}
			}
		}
		c.Data = append(c.Data, out...)
		prev = row
		c.Frames++
	}
	return c
}
