// Package scene holds the in-memory scene graph the exporter compiles:
// objects, meshes, cameras, lamps, speakers and their animation data.
//
// The authoring convention is Z-up with cameras looking down their local -Z
// axis. Scene also implements the queries the compiler needs from a host
// application: ray casts, camera projection and per-frame mesh evaluation.
package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/psxexport/pkg/math"
)

// Errors returned while loading or linking a scene.
var (
	ErrUnsupportedProperty = errors.New("unsupported custom property")
	ErrUnknownParent       = errors.New("unknown parent object")
	ErrDuplicateObject     = errors.New("duplicate object name")
	ErrBadPolygon          = errors.New("polygon references missing vertex")
	ErrParentCycle         = errors.New("parent chain forms a cycle")
)

// ObjectType tags what an Object carries.
type ObjectType string

// Object types.
const (
	TypeMesh    ObjectType = "MESH"
	TypeCamera  ObjectType = "CAMERA"
	TypeLamp    ObjectType = "LAMP"
	TypeSpeaker ObjectType = "SPEAKER"
)

// Default render resolution (NTSC).
const (
	DefaultResX = 320
	DefaultResY = 240
)

// Scene is a complete scene graph.
type Scene struct {
	Name       string    `json:"name,omitempty"`
	FrameStart int       `json:"frame_start,omitempty"`
	FrameEnd   int       `json:"frame_end,omitempty"`
	World      World     `json:"world"`
	Objects    []*Object `json:"objects"`

	resX, resY int
	frame      int
	byName     map[string]*Object
	live       map[*DerivedMesh]struct{}
}

// World holds global colors, in linear space.
type World struct {
	HorizonColor [3]float64 `json:"horizon_color"`
	AmbientColor [3]float64 `json:"ambient_color"`
}

// Object is a node of the scene graph.
type Object struct {
	Name     string     `json:"name"`
	Type     ObjectType `json:"type"`
	Parent   string     `json:"parent,omitempty"`
	Location math.Vec3  `json:"location"`
	Rotation math.Vec3  `json:"rotation"` // XYZ euler, radians
	Scale    math.Vec3  `json:"scale"`
	Props    Props      `json:"props,omitempty"` // object custom properties
	Data     Props      `json:"data,omitempty"`  // datablock custom properties (flags)

	Mesh    *Mesh     `json:"mesh,omitempty"`
	Camera  *Camera   `json:"camera,omitempty"`
	Lamp    *Lamp     `json:"lamp,omitempty"`
	Speaker *Speaker  `json:"speaker,omitempty"`
	Anim    *AnimData `json:"anim,omitempty"`

	parent *Object
}

// Mesh is polygon data in object-local space. UVs and Colors are stored per
// polygon corner, in polygon order.
type Mesh struct {
	Name      string       `json:"name,omitempty"`
	Vertices  []math.Vec3  `json:"vertices"`
	Normals   []math.Vec3  `json:"normals,omitempty"`
	Polygons  [][]int      `json:"polygons"`
	UVs       []math.Vec2  `json:"uvs,omitempty"`
	Colors    [][3]float64 `json:"colors,omitempty"`
	Texture   *Texture     `json:"texture,omitempty"`
	ShapeAnim *AnimData    `json:"shape_anim,omitempty"`
}

// Texture is the image mapped through a mesh's UVs.
type Texture struct {
	Name   string `json:"name"`
	Path   string `json:"path,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Camera holds perspective camera settings.
type Camera struct {
	Lens        float64 `json:"lens,omitempty"`         // focal length, mm
	SensorWidth float64 `json:"sensor_width,omitempty"` // mm
	Background  string  `json:"background,omitempty"`   // pre-rendered background image
}

// Lamp is a directional light.
type Lamp struct {
	Energy float64    `json:"energy"`
	Color  [3]float64 `json:"color"`
}

// Speaker is a sound emitter.
type Speaker struct {
	Sound     string  `json:"sound"`
	Volume    float64 `json:"volume"`
	VolumeMin float64 `json:"volume_min"`
	VolumeMax float64 `json:"volume_max"`
}

// Corners returns the number of polygon corners.
func (m *Mesh) Corners() int {
	n := 0
	for _, p := range m.Polygons {
		n += len(p)
	}
	return n
}

// MeshName returns the mesh datablock name, falling back to the object name.
func (o *Object) MeshName() string {
	if o.Mesh != nil && o.Mesh.Name != "" {
		return o.Mesh.Name
	}
	return o.Name
}

// ParentObject returns the linked parent, or nil.
func (o *Object) ParentObject() *Object {
	return o.parent
}

// Matrix returns the local-to-world matrix. A zero scale reads as 1.
func (o *Object) Matrix() math.Mat4 {
	scale := o.Scale
	if scale == (math.Vec3{}) {
		scale = math.Vec3{X: 1, Y: 1, Z: 1}
	}
	m := math.Compose(o.Location, o.Rotation, scale)
	if o.parent != nil {
		return o.parent.Matrix().Mul(m)
	}
	return m
}

// WorldLocation returns the object origin in world space.
func (o *Object) WorldLocation() math.Vec3 {
	return o.Matrix().Translation()
}

// WorldVertices returns the mesh vertices transformed to world space.
func (o *Object) WorldVertices() []math.Vec3 {
	if o.Mesh == nil {
		return nil
	}
	mw := o.Matrix()
	out := make([]math.Vec3, len(o.Mesh.Vertices))
	for i, v := range o.Mesh.Vertices {
		out[i] = mw.TransformPoint(v)
	}
	return out
}

// New returns an empty scene with the default resolution.
func New(name string) *Scene {
	s := &Scene{Name: name}
	s.init()
	return s
}

func (s *Scene) init() {
	if s.resX == 0 {
		s.resX, s.resY = DefaultResX, DefaultResY
	}
	s.byName = make(map[string]*Object, len(s.Objects))
	if s.live == nil {
		s.live = make(map[*DerivedMesh]struct{})
	}
}

// Add appends an object. Call Link after the graph is complete.
func (s *Scene) Add(o *Object) {
	s.Objects = append(s.Objects, o)
}

// Link resolves parents, fills defaults and checks custom properties and
// polygon indices. It must be called after decoding or building a scene.
func (s *Scene) Link() error {
	s.init()
	for _, o := range s.Objects {
		if _, dup := s.byName[o.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateObject, o.Name)
		}
		s.byName[o.Name] = o
	}
	for _, o := range s.Objects {
		o.parent = nil
		if o.Parent != "" {
			p, ok := s.byName[o.Parent]
			if !ok {
				return fmt.Errorf("%w: %s (parent of %s)", ErrUnknownParent, o.Parent, o.Name)
			}
			o.parent = p
		}
		if o.Scale == (math.Vec3{}) {
			o.Scale = math.Vec3{X: 1, Y: 1, Z: 1}
		}
		if err := o.Props.check(); err != nil {
			return fmt.Errorf("object %s: %w", o.Name, err)
		}
		if err := o.Data.check(); err != nil {
			return fmt.Errorf("object %s data: %w", o.Name, err)
		}
		if o.Camera != nil {
			if o.Camera.Lens == 0 {
				o.Camera.Lens = 50
			}
			if o.Camera.SensorWidth == 0 {
				o.Camera.SensorWidth = 36
			}
		}
		if o.Mesh != nil {
			for _, p := range o.Mesh.Polygons {
				for _, vi := range p {
					if vi < 0 || vi >= len(o.Mesh.Vertices) {
						return fmt.Errorf("%w: %s index %d", ErrBadPolygon, o.Name, vi)
					}
				}
			}
			normalizeAnim(o.Mesh.ShapeAnim)
		}
		normalizeAnim(o.Anim)
	}
	for _, o := range s.Objects {
		if err := checkChain(o); err != nil {
			return err
		}
	}
	return nil
}

func checkChain(o *Object) error {
	seen := map[*Object]bool{}
	for p := o; p != nil; p = p.parent {
		if seen[p] {
			return fmt.Errorf("%w: %s", ErrParentCycle, o.Name)
		}
		seen[p] = true
	}
	return nil
}

// Lookup returns the object with the given name.
func (s *Scene) Lookup(name string) (*Object, bool) {
	o, ok := s.byName[name]
	return o, ok
}

// ObjectsOf returns the objects of one type, in scene order.
func (s *Scene) ObjectsOf(t ObjectType) []*Object {
	var out []*Object
	for _, o := range s.Objects {
		if o.Type == t {
			out = append(out, o)
		}
	}
	return out
}

// SetResolution sets the render size used by CameraView.
func (s *Scene) SetResolution(x, y int) {
	s.resX, s.resY = x, y
}

// Resolution returns the render size.
func (s *Scene) Resolution() (int, int) {
	if s.resX == 0 {
		return DefaultResX, DefaultResY
	}
	return s.resX, s.resY
}
